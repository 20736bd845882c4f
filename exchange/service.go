package exchange

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/holiman/uint256"

	"stablecoin-swap/domain"
	"stablecoin-swap/events"
	"stablecoin-swap/store"
)

// Service interface for configuring rates and converting between assets
type Service interface {
	// Owner returns the identity allowed to configure rates
	Owner() domain.ID

	// SetRate creates or overwrites the rate of the ordered pair. Owner only.
	SetRate(ctx context.Context, caller, from, to domain.ID, rate domain.Rate) error

	// Rate returns the rate of the ordered pair, or domain.DefaultRate when none is configured
	Rate(ctx context.Context, from, to domain.ID) (domain.Rate, error)

	// Balance returns the balance keyed by id
	Balance(ctx context.Context, id domain.ID) (domain.Amount, error)

	// Deposit credits amount to the caller's balance
	Deposit(ctx context.Context, caller domain.ID, amount domain.Amount) error

	// Convert debits amount from the caller and credits the converted amount to the
	// balance keyed by to. It returns the converted amount.
	Convert(ctx context.Context, caller, from, to domain.ID, amount domain.Amount) (domain.Amount, error)

	// ConvertBatch runs each request in order against the caller's running balance,
	// skipping zero amounts, and returns the sum of the converted amounts.
	ConvertBatch(ctx context.Context, caller domain.ID, requests []domain.ConversionRequest) (domain.Amount, error)
}

// BatchPolicy decides what a failing batch leaves behind
type BatchPolicy int

const (
	// AllOrNothing discards every leg of a batch when any leg fails
	AllOrNothing BatchPolicy = iota

	// PartialCommit keeps the legs applied before the failing one
	PartialCommit
)

// Option configures a Service
type Option func(*service)

// WithPublisher sets where notifications go once a call commits
func WithPublisher(p events.Publisher) Option {
	return func(s *service) { s.publisher = p }
}

// WithBatchPolicy sets the batch failure policy. The default is AllOrNothing.
func WithBatchPolicy(p BatchPolicy) Option {
	return func(s *service) { s.batchPolicy = p }
}

// WithMaxRate rejects rates above max with domain.ErrInvalidExchangeRate
func WithMaxRate(max domain.Rate) Option {
	return func(s *service) { s.maxRate = &max }
}

// WithLogger sets the logger used for failures that do not fail the call
func WithLogger(logger log.Logger) Option {
	return func(s *service) { s.logger = logger }
}

// service conversion engine over an explicit store
type service struct {
	// store holds the rate table and balances
	store store.Store

	// owner may configure rates; fixed at construction
	owner domain.ID

	publisher   events.Publisher
	batchPolicy BatchPolicy

	// maxRate upper bound for SetRate, nil for unbounded
	maxRate *domain.Rate

	logger log.Logger
}

// NewService constructs a Service owned by owner, the identity creating it
func NewService(s store.Store, owner domain.ID, opts ...Option) Service {
	svc := &service{
		store:       s,
		owner:       owner,
		publisher:   events.Nop{},
		batchPolicy: AllOrNothing,
		logger:      log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *service) Owner() domain.ID {
	return s.owner
}

func (s *service) SetRate(ctx context.Context, caller, from, to domain.ID, rate domain.Rate) error {
	if caller != s.owner {
		return fmt.Errorf("set rate [%v -> %v] by %v: %w", from, to, caller, domain.ErrNotOwner)
	}
	if s.maxRate != nil && rate.Gt(s.maxRate) {
		return fmt.Errorf("set rate [%v -> %v] to %v above %v: %w", from, to, rate.Dec(), s.maxRate.Dec(), domain.ErrInvalidExchangeRate)
	}
	err := s.store.Update(ctx, func(tx store.Tx) error {
		return tx.SetRate(ctx, from, to, rate)
	})
	if err != nil {
		return fmt.Errorf("set rate [%v -> %v]: %w", from, to, err)
	}
	return nil
}

func (s *service) Rate(ctx context.Context, from, to domain.ID) (domain.Rate, error) {
	var rate domain.Rate
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		rate, err = lookupRate(ctx, tx, from, to)
		return err
	})
	return rate, err
}

func (s *service) Balance(ctx context.Context, id domain.ID) (domain.Amount, error) {
	var balance domain.Amount
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		balance, err = tx.Balance(ctx, id)
		return err
	})
	if err != nil {
		return balance, fmt.Errorf("balance [%v]: %w", id, err)
	}
	return balance, nil
}

func (s *service) Deposit(ctx context.Context, caller domain.ID, amount domain.Amount) error {
	err := s.store.Update(ctx, func(tx store.Tx) error {
		return credit(ctx, tx, caller, amount)
	})
	if err != nil {
		return fmt.Errorf("deposit [%v]: %w", caller, err)
	}
	return nil
}

func (s *service) Convert(ctx context.Context, caller, from, to domain.ID, amount domain.Amount) (domain.Amount, error) {
	var out domain.Amount
	if amount.IsZero() {
		return out, fmt.Errorf("convert [%v -> %v]: %w", from, to, domain.ErrZeroAmount)
	}

	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		out, err = convert(ctx, tx, caller, from, to, amount)
		return err
	})
	if err != nil {
		return domain.Amount{}, fmt.Errorf("convert [%v -> %v]: %w", from, to, err)
	}

	s.publish(ctx, events.NewConversionEvent(domain.ConversionCompleted{
		From:       from,
		To:         to,
		FromAmount: amount,
		ToAmount:   out,
	}))
	return out, nil
}

func (s *service) ConvertBatch(ctx context.Context, caller domain.ID, requests []domain.ConversionRequest) (domain.Amount, error) {
	var (
		total  domain.Amount
		legErr error
	)

	err := s.store.Update(ctx, func(tx store.Tx) error {
		// reset on every attempt, the store may re-run this function
		total, legErr = domain.Amount{}, nil

		for i, req := range requests {
			if req.Amount.IsZero() {
				continue
			}
			if err := s.convertLeg(ctx, tx, caller, req, &total); err != nil {
				err = fmt.Errorf("leg %d [%v -> %v]: %w", i, req.From, req.To, err)
				if s.batchPolicy == PartialCommit {
					// commit what the earlier legs did, report the failure afterwards
					legErr = err
					return nil
				}
				return err
			}
		}
		return nil
	})
	if err == nil {
		err = legErr
	}
	if err != nil {
		return domain.Amount{}, fmt.Errorf("convert batch of %d: %w", len(requests), err)
	}

	s.publish(ctx, events.NewBatchEvent(domain.BatchCompleted{
		Caller: caller,
		Count:  len(requests),
		Total:  total,
	}))
	return total, nil
}

// publish delivers an event for a call that already committed. Failures are logged only.
func (s *service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		level.Error(s.logger).Log("msg", "publishing event failed", "id", event.ID, "kind", event.Kind, "err", err)
	}
}

// lookupRate returns the configured rate or the default 1:1 rate
func lookupRate(ctx context.Context, tx store.Tx, from, to domain.ID) (domain.Rate, error) {
	rate, ok, err := tx.Rate(ctx, from, to)
	if err != nil {
		return rate, fmt.Errorf("rate [%v -> %v]: %w", from, to, err)
	}
	if !ok {
		return domain.DefaultRate(), nil
	}
	return rate, nil
}

// Quote computes floor(amount * rate / RateScale) with a 512-bit intermediate product
func Quote(amount domain.Amount, rate domain.Rate) (domain.Amount, error) {
	var out domain.Amount
	if _, overflow := out.MulDivOverflow(&amount, &rate, uint256.NewInt(domain.RateScale)); overflow {
		return domain.Amount{}, fmt.Errorf("quote %v at %v: %w", amount.Dec(), rate.Dec(), domain.ErrBalanceOverflow)
	}
	return out, nil
}

// convertLeg runs one batch leg and adds its output to total. Nothing is written when
// the leg fails, including when total would overflow.
func (s *service) convertLeg(ctx context.Context, tx store.Tx, caller domain.ID, req domain.ConversionRequest, total *domain.Amount) error {
	out, err := quote(ctx, tx, req.From, req.To, req.Amount)
	if err != nil {
		return err
	}
	var next domain.Amount
	if _, overflow := next.AddOverflow(total, &out); overflow {
		return fmt.Errorf("total: %w", domain.ErrBalanceOverflow)
	}
	if err := settle(ctx, tx, caller, req.To, req.Amount, out); err != nil {
		return err
	}
	*total = next
	return nil
}

// convert runs one conversion leg inside tx: rate, quote, sufficiency check, debit, credit.
// The caller's balance is debited and the balance keyed by the destination asset is credited.
func convert(ctx context.Context, tx store.Tx, caller, from, to domain.ID, amount domain.Amount) (domain.Amount, error) {
	out, err := quote(ctx, tx, from, to, amount)
	if err != nil {
		return domain.Amount{}, err
	}
	if err := settle(ctx, tx, caller, to, amount, out); err != nil {
		return domain.Amount{}, err
	}
	return out, nil
}

func quote(ctx context.Context, tx store.Tx, from, to domain.ID, amount domain.Amount) (domain.Amount, error) {
	rate, err := lookupRate(ctx, tx, from, to)
	if err != nil {
		return domain.Amount{}, err
	}
	return Quote(amount, rate)
}

// settle debits amount from caller and credits out to the balance keyed by to.
// Every check runs before the first write.
func settle(ctx context.Context, tx store.Tx, caller, to domain.ID, amount, out domain.Amount) error {
	balance, err := tx.Balance(ctx, caller)
	if err != nil {
		return fmt.Errorf("balance [%v]: %w", caller, err)
	}
	if balance.Lt(&amount) {
		return fmt.Errorf("balance of %v is %v, need %v: %w", caller, balance.Dec(), amount.Dec(), domain.ErrInsufficientBalance)
	}
	var debited domain.Amount
	debited.Sub(&balance, &amount)

	// the credit sees the debit when the caller is also the destination
	target := debited
	if to != caller {
		if target, err = tx.Balance(ctx, to); err != nil {
			return fmt.Errorf("balance [%v]: %w", to, err)
		}
	}
	var credited domain.Amount
	if _, overflow := credited.AddOverflow(&target, &out); overflow {
		return fmt.Errorf("credit %v to %v: %w", out.Dec(), to, domain.ErrBalanceOverflow)
	}

	if to == caller {
		if err := tx.SetBalance(ctx, caller, credited); err != nil {
			return fmt.Errorf("credit [%v]: %w", to, err)
		}
		return nil
	}
	if err := tx.SetBalance(ctx, caller, debited); err != nil {
		return fmt.Errorf("debit [%v]: %w", caller, err)
	}
	if err := tx.SetBalance(ctx, to, credited); err != nil {
		return fmt.Errorf("credit [%v]: %w", to, err)
	}
	return nil
}

// credit adds amount to the balance keyed by id, refusing to wrap around
func credit(ctx context.Context, tx store.Tx, id domain.ID, amount domain.Amount) error {
	balance, err := tx.Balance(ctx, id)
	if err != nil {
		return fmt.Errorf("balance [%v]: %w", id, err)
	}
	var next domain.Amount
	if _, overflow := next.AddOverflow(&balance, &amount); overflow {
		return fmt.Errorf("credit %v to %v: %w", amount.Dec(), id, domain.ErrBalanceOverflow)
	}
	if err := tx.SetBalance(ctx, id, next); err != nil {
		return fmt.Errorf("credit [%v]: %w", id, err)
	}
	return nil
}
