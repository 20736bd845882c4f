package exchange

import (
	"context"
	"time"

	"github.com/go-kit/log"

	"stablecoin-swap/domain"
)

// loggingService decorates an exchange.Service with logging
type loggingService struct {
	logger log.Logger
	next   Service
}

// NewLoggingService returns a new instance of a logging Service
func NewLoggingService(logger log.Logger, s Service) Service {
	return &loggingService{
		next:   s,
		logger: logger,
	}
}

func (s *loggingService) Owner() domain.ID {
	return s.next.Owner()
}

func (s *loggingService) SetRate(ctx context.Context, caller, from, to domain.ID, rate domain.Rate) (err error) {
	defer func(begin time.Time) {
		s.logger.Log(
			"method", "set_rate",
			"caller", caller,
			"from", from,
			"to", to,
			"rate", rate.Dec(),
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.SetRate(ctx, caller, from, to, rate)
}

func (s *loggingService) Rate(ctx context.Context, from, to domain.ID) (rate domain.Rate, err error) {
	defer func(begin time.Time) {
		s.logger.Log(
			"method", "rate",
			"from", from,
			"to", to,
			"rate", rate.Dec(),
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Rate(ctx, from, to)
}

func (s *loggingService) Balance(ctx context.Context, id domain.ID) (balance domain.Amount, err error) {
	defer func(begin time.Time) {
		s.logger.Log(
			"method", "balance",
			"id", id,
			"balance", balance.Dec(),
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Balance(ctx, id)
}

func (s *loggingService) Deposit(ctx context.Context, caller domain.ID, amount domain.Amount) (err error) {
	defer func(begin time.Time) {
		s.logger.Log(
			"method", "deposit",
			"caller", caller,
			"amount", amount.Dec(),
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Deposit(ctx, caller, amount)
}

func (s *loggingService) Convert(ctx context.Context, caller, from, to domain.ID, amount domain.Amount) (out domain.Amount, err error) {
	defer func(begin time.Time) {
		s.logger.Log(
			"method", "convert",
			"caller", caller,
			"from", from,
			"to", to,
			"amount", amount.Dec(),
			"converted_amount", out.Dec(),
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Convert(ctx, caller, from, to, amount)
}

func (s *loggingService) ConvertBatch(ctx context.Context, caller domain.ID, requests []domain.ConversionRequest) (total domain.Amount, err error) {
	defer func(begin time.Time) {
		s.logger.Log(
			"method", "convert_batch",
			"caller", caller,
			"count", len(requests),
			"total", total.Dec(),
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.ConvertBatch(ctx, caller, requests)
}
