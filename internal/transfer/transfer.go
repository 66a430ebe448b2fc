// Package transfer orchestrates the remittance flows: rate quotes, channel
// comparison and optimization, fraud assessment, and sending money.
//
// The service composes the pure engines (fraud scoring, channel ranking)
// with their collaborators (rate resolver, history store, audit store).
// Collaborator failures degrade rather than fail: missing history scores as
// empty, an unreachable rate feed falls back to cached or static rates, and
// audit writes happen off the request path.
package transfer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mbd888/remitwise/internal/catalog"
	"github.com/mbd888/remitwise/internal/channels"
	"github.com/mbd888/remitwise/internal/fraud"
	"github.com/mbd888/remitwise/internal/history"
	"github.com/mbd888/remitwise/internal/rates"
	"github.com/mbd888/remitwise/internal/syncutil"
)

var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInvalidAmount       = errors.New("amount must be greater than 0")
	ErrInvalidSender       = errors.New("invalid sender id")
)

// Status is the state a submitted transfer lands in.
type Status string

const (
	StatusPending Status = "pending"
	StatusReview  Status = "review"
	StatusBlocked Status = "blocked"
)

func statusFor(d fraud.Decision) Status {
	switch d {
	case fraud.DecisionBlock:
		return StatusBlocked
	case fraud.DecisionReview:
		return StatusReview
	default:
		return StatusPending
	}
}

// Transfer is a submitted money transfer.
type Transfer struct {
	ID                string           `json:"id"`
	SenderID          string           `json:"senderId"`
	RecipientName     string           `json:"recipientName,omitempty"`
	RecipientEmail    string           `json:"recipientEmail,omitempty"`
	Amount            float64          `json:"amount"`
	SourceCurrency    string           `json:"sourceCurrency"`
	TargetCurrency    string           `json:"targetCurrency"`
	ExchangeRate      float64          `json:"exchangeRate"`
	Fees              float64          `json:"fees"`
	RecipientReceives float64          `json:"recipientReceives"`
	RateSource        rates.Source     `json:"rateSource"`
	Status            Status           `json:"status"`
	AssessmentID      string           `json:"assessmentId"`
	FraudAnalysis     fraud.Assessment `json:"fraudAnalysis"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// RateResolver returns a usable market rate for a pair. *rates.Resolver
// satisfies it.
type RateResolver interface {
	Resolve(ctx context.Context, from, to string) rates.Resolved
}

const (
	defaultHistoryLimit = 20
	// DisplayHistoryLimit is how many transfers the history endpoint shows.
	DisplayHistoryLimit = 10
	auditTimeout        = 5 * time.Second
)

// Service implements the transfer flows.
type Service struct {
	catalog   *catalog.Catalog
	engine    *channels.Engine
	brands    *channels.Resolver
	rates     RateResolver
	scorer    *fraud.Scorer
	history   history.Store
	audit     fraud.Store
	transfers Store
	logger    *slog.Logger
	now       func() time.Time
	histSize  int
	senders   *syncutil.KeyedMutex

	pending sync.WaitGroup
}

// NewService wires the flows over a catalog, a rate resolver, a scorer and
// the history and audit stores. Transfers are kept in memory until
// WithTransferStore says otherwise.
func NewService(cat *catalog.Catalog, rr RateResolver, scorer *fraud.Scorer, hist history.Store, audit fraud.Store, logger *slog.Logger) *Service {
	return &Service{
		catalog:   cat,
		engine:    cat.Engine(),
		brands:    cat.Resolver(),
		rates:     rr,
		scorer:    scorer,
		history:   hist,
		audit:     audit,
		transfers: NewMemoryStore(),
		logger:    logger,
		now:       time.Now,
		histSize:  defaultHistoryLimit,
		senders:   syncutil.NewKeyedMutex(0),
	}
}

// WithTransferStore sets where submitted transfers are kept.
func (s *Service) WithTransferStore(st Store) *Service {
	if st != nil {
		s.transfers = st
	}
	return s
}

// WithHistoryLimit sets how many past transfers feed each assessment.
func (s *Service) WithHistoryLimit(n int) *Service {
	if n > 0 {
		s.histSize = n
	}
	return s
}

// WithClock replaces the time source used for assessments and timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Catalog returns the channel catalog the service prices against.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Wait blocks until in-flight audit writes finish.
func (s *Service) Wait() {
	s.pending.Wait()
}

// pair normalizes and checks a currency pair.
func pair(from, to string) (string, string, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	for _, c := range []string{from, to} {
		if !rates.Supported(c) {
			return "", "", &CurrencyError{Code: c}
		}
	}
	return from, to, nil
}

// CurrencyError names the offending code. It matches ErrUnsupportedCurrency.
type CurrencyError struct {
	Code string
}

func (e *CurrencyError) Error() string {
	return "currency " + e.Code + " is not supported"
}

func (e *CurrencyError) Is(target error) bool {
	return target == ErrUnsupportedCurrency
}
