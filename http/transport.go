package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"stablecoin-swap/domain"
	"stablecoin-swap/events"
	"stablecoin-swap/exchange"
)

// maxBodyBytes bounds request bodies, batches included
const maxBodyBytes = 1 << 20

// CallerHeader carries the caller identity, set by the gateway in front of this server
const CallerHeader = "X-Caller-Id"

// Server dependencies for HTTP Server functions
type Server struct {
	Service exchange.Service

	// Events recent notifications, nil disables the events route
	Events *events.Recorder

	Logger log.Logger

	router chi.Router
}

func NewServer(s exchange.Service, recorder *events.Recorder, logger log.Logger) *Server {
	server := &Server{
		Service: s,
		Events:  recorder,
		Logger:  logger,
		router:  chi.NewRouter(),
	}
	server.routes()
	return server
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/owner", s.owner())
		r.Get("/rates/{from}/{to}", s.rate())
		r.Put("/rates/{from}/{to}", s.setRate())
		r.Get("/balances/{id}", s.balance())
		r.Post("/deposits", s.deposit())
		r.Post("/convert", s.convert())
		r.Post("/convert/batch", s.convertBatch())
		if s.Events != nil {
			r.Get("/events", s.recentEvents())
		}
	})
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(rw, r)
}

// owner produces HTTP handler returning the owner identity
func (s *Server) owner() http.HandlerFunc {
	type response struct {
		Owner domain.ID `json:"owner"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		s.respond(rw, http.StatusOK, response{Owner: s.Service.Owner()})
	}
}

// rate produces HTTP handler looking up the rate of a pair
func (s *Server) rate() http.HandlerFunc {
	type response struct {
		From domain.ID `json:"from"`
		To   domain.ID `json:"to"`
		Rate string    `json:"rate"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		from, to, ok := s.pairParams(rw, r)
		if !ok {
			return
		}
		rate, err := s.Service.Rate(r.Context(), from, to)
		if err != nil {
			s.fail(rw, err)
			return
		}
		s.respond(rw, http.StatusOK, response{From: from, To: to, Rate: rate.Dec()})
	}
}

// setRate produces HTTP handler configuring the rate of a pair
func (s *Server) setRate() http.HandlerFunc {
	type request struct {
		Rate string `json:"rate"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(rw, r)
		if !ok {
			return
		}
		from, to, ok := s.pairParams(rw, r)
		if !ok {
			return
		}
		var req request
		if !s.decode(rw, r, &req) {
			return
		}
		rate, err := domain.ParseAmount(req.Rate)
		if err != nil {
			s.writeError(rw, http.StatusBadRequest, "invalid rate")
			return
		}
		if err := s.Service.SetRate(r.Context(), caller, from, to, rate); err != nil {
			s.fail(rw, err)
			return
		}
		rw.WriteHeader(http.StatusNoContent)
	}
}

// balance produces HTTP handler returning the balance keyed by an identifier
func (s *Server) balance() http.HandlerFunc {
	type response struct {
		ID      domain.ID `json:"id"`
		Balance string    `json:"balance"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseID(chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(rw, http.StatusBadRequest, "invalid identifier")
			return
		}
		balance, err := s.Service.Balance(r.Context(), id)
		if err != nil {
			s.fail(rw, err)
			return
		}
		s.respond(rw, http.StatusOK, response{ID: id, Balance: balance.Dec()})
	}
}

// deposit produces HTTP handler crediting the caller
func (s *Server) deposit() http.HandlerFunc {
	type request struct {
		Amount string `json:"amount"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(rw, r)
		if !ok {
			return
		}
		var req request
		if !s.decode(rw, r, &req) {
			return
		}
		amount, err := domain.ParseAmount(req.Amount)
		if err != nil {
			s.writeError(rw, http.StatusBadRequest, "invalid amount")
			return
		}
		if err := s.Service.Deposit(r.Context(), caller, amount); err != nil {
			s.fail(rw, err)
			return
		}
		rw.WriteHeader(http.StatusNoContent)
	}
}

// conversion a conversion request as posted by clients
type conversion struct {
	From   domain.ID `json:"from"`
	To     domain.ID `json:"to"`
	Amount string    `json:"amount"`
}

func (c conversion) toDomain() (domain.ConversionRequest, error) {
	amount, err := domain.ParseAmount(c.Amount)
	if err != nil {
		return domain.ConversionRequest{}, err
	}
	return domain.ConversionRequest{From: c.From, To: c.To, Amount: amount}, nil
}

// convert produces HTTP handler for single conversions
func (s *Server) convert() http.HandlerFunc {
	type response struct {
		Amount   string `json:"amount"`
		Original string `json:"original"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(rw, r)
		if !ok {
			return
		}
		var req conversion
		if !s.decode(rw, r, &req) {
			return
		}
		c, err := req.toDomain()
		if err != nil {
			s.writeError(rw, http.StatusBadRequest, "invalid amount")
			return
		}

		out, err := s.Service.Convert(r.Context(), caller, c.From, c.To, c.Amount)
		if err != nil {
			s.fail(rw, err)
			return
		}
		s.respond(rw, http.StatusOK, response{Amount: out.Dec(), Original: c.Amount.Dec()})
	}
}

// convertBatch produces HTTP handler for batch conversions
func (s *Server) convertBatch() http.HandlerFunc {
	type request struct {
		Requests []conversion `json:"requests"`
	}
	type response struct {
		Total string `json:"total"`
		Count int    `json:"count"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		caller, ok := s.caller(rw, r)
		if !ok {
			return
		}
		var req request
		if !s.decode(rw, r, &req) {
			return
		}
		requests := make([]domain.ConversionRequest, 0, len(req.Requests))
		for _, c := range req.Requests {
			dc, err := c.toDomain()
			if err != nil {
				s.writeError(rw, http.StatusBadRequest, "invalid amount")
				return
			}
			requests = append(requests, dc)
		}

		total, err := s.Service.ConvertBatch(r.Context(), caller, requests)
		if err != nil {
			s.fail(rw, err)
			return
		}
		s.respond(rw, http.StatusOK, response{Total: total.Dec(), Count: len(requests)})
	}
}

// recentEvents produces HTTP handler listing recent notifications, newest first
func (s *Server) recentEvents() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				s.writeError(rw, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}
		s.respond(rw, http.StatusOK, s.Events.Recent(limit))
	}
}

// caller resolves the calling identity or writes an error response
func (s *Server) caller(rw http.ResponseWriter, r *http.Request) (domain.ID, bool) {
	id, err := domain.ParseID(r.Header.Get(CallerHeader))
	if err != nil {
		s.writeError(rw, http.StatusUnauthorized, "missing or invalid caller")
		return domain.ID{}, false
	}
	return id, true
}

func (s *Server) pairParams(rw http.ResponseWriter, r *http.Request) (domain.ID, domain.ID, bool) {
	from, err := domain.ParseID(chi.URLParam(r, "from"))
	if err != nil {
		s.writeError(rw, http.StatusBadRequest, "invalid from identifier")
		return domain.ID{}, domain.ID{}, false
	}
	to, err := domain.ParseID(chi.URLParam(r, "to"))
	if err != nil {
		s.writeError(rw, http.StatusBadRequest, "invalid to identifier")
		return domain.ID{}, domain.ID{}, false
	}
	return from, to, true
}

func (s *Server) decode(rw http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(rw, r.Body, maxBodyBytes)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(rw, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.writeError(rw, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// fail maps a service error onto a response
func (s *Server) fail(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotOwner):
		s.writeError(rw, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrZeroAmount), errors.Is(err, domain.ErrInvalidExchangeRate):
		s.writeError(rw, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		s.writeError(rw, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrBalanceOverflow):
		s.writeError(rw, http.StatusUnprocessableEntity, err.Error())
	default:
		level.Error(s.Logger).Log("msg", "request failed", "err", err)
		s.writeError(rw, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(rw http.ResponseWriter, status int, msg string) {
	s.respond(rw, status, map[string]string{"error": msg})
}

func (s *Server) respond(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		s.Logger.Log("msg", "failed json encoding", "err", err)
	}
}
