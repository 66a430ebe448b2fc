package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mbd888/remitwise/internal/channels"
	"github.com/mbd888/remitwise/internal/fraud"
	"github.com/mbd888/remitwise/internal/history"
	"github.com/mbd888/remitwise/internal/logging"
	"github.com/mbd888/remitwise/internal/metrics"
	"github.com/mbd888/remitwise/internal/pagination"
	"github.com/mbd888/remitwise/internal/traces"
)

// AssessRequest is a transfer attempt to score. LocalHour defaults to the
// server's UTC hour when omitted.
type AssessRequest struct {
	SenderID          string  `json:"senderId" binding:"required,senderid"`
	Amount            float64 `json:"amount" binding:"gt=0"`
	SourceCurrency    string  `json:"sourceCurrency" binding:"required,currency"`
	TargetCurrency    string  `json:"targetCurrency" binding:"required,currency"`
	NewRecipient      bool    `json:"isNewRecipient"`
	IPCountryMismatch bool    `json:"ipCountryMismatch"`
	DeviceChanged     bool    `json:"deviceChanged"`
	LocalHour         *int    `json:"localHour" binding:"omitempty,gte=0,lte=23"`
}

func (s *Service) attempt(req AssessRequest, now time.Time) (fraud.Attempt, error) {
	if req.Amount <= 0 {
		return fraud.Attempt{}, ErrInvalidAmount
	}
	from, to, err := pair(req.SourceCurrency, req.TargetCurrency)
	if err != nil {
		return fraud.Attempt{}, err
	}
	hour := now.UTC().Hour()
	if req.LocalHour != nil {
		hour = *req.LocalHour
	}
	return fraud.Attempt{
		Amount:            req.Amount,
		SourceCurrency:    from,
		TargetCurrency:    to,
		NewRecipient:      req.NewRecipient,
		IPCountryMismatch: req.IPCountryMismatch,
		DeviceChanged:     req.DeviceChanged,
		LocalHour:         hour,
	}, nil
}

// Assess scores an attempt against the sender's recent history and records
// the result in the audit trail. History that cannot be read scores as
// empty.
func (s *Service) Assess(ctx context.Context, req AssessRequest) (*fraud.AuditRecord, error) {
	senderID := strings.TrimSpace(req.SenderID)
	if senderID == "" {
		return nil, ErrInvalidSender
	}
	now := s.now()
	a, err := s.attempt(req, now)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithSenderID(ctx, senderID)
	ctx, span := traces.StartSpan(ctx, "transfer.Assess",
		traces.SenderID(senderID), traces.Corridor(a.SourceCurrency, a.TargetCurrency), traces.Amount(a.Amount))
	defer span.End()

	hist := s.recentHistory(ctx, senderID, s.histSize)
	asmt := s.scorer.AssessAt(a, hist, now)
	observe(asmt)

	rec := &fraud.AuditRecord{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		Amount:      a.Amount,
		Corridor:    a.SourceCurrency + "-" + a.TargetCurrency,
		Assessment:  asmt,
		EvaluatedAt: now.UTC(),
	}
	s.recordAudit(ctx, rec)

	logging.L(ctx).Info("transfer assessed",
		"assessment_id", rec.ID, "score", asmt.Score, "decision", asmt.Decision, "flags", asmt.Flags)
	return rec, nil
}

func (s *Service) recentHistory(ctx context.Context, senderID string, limit int) []history.Record {
	ctx, span := traces.StartSpan(ctx, "history.Recent", traces.SenderID(senderID))
	defer span.End()

	hist, err := s.history.Recent(ctx, senderID, limit)
	if err != nil {
		span.RecordError(err)
		logging.L(ctx).Warn("history unavailable, scoring without it", "error", err)
		return nil
	}
	return hist
}

func observe(a fraud.Assessment) {
	metrics.FraudAssessmentsTotal.WithLabelValues(string(a.Decision)).Inc()
	metrics.FraudScore.Observe(float64(a.Score))
	for _, f := range a.Flags {
		metrics.FraudFlagsTotal.WithLabelValues(string(f)).Inc()
	}
}

// recordAudit persists rec off the request path. The write outlives the
// request context but is bounded by its own timeout.
func (s *Service) recordAudit(ctx context.Context, rec *fraud.AuditRecord) {
	logger := logging.L(ctx)
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, auditTimeout)
		defer cancel()
		if err := s.audit.Record(ctx, rec); err != nil {
			metrics.AuditWriteFailures.Inc()
			logger.Error("failed to record fraud assessment", "assessment_id", rec.ID, "error", err)
		}
	}()
}

// SendRequest submits a transfer.
type SendRequest struct {
	AssessRequest
	RecipientName  string `json:"recipientName" binding:"omitempty,max=256"`
	RecipientEmail string `json:"recipientEmail" binding:"omitempty,email,max=256"`
}

// Send scores the transfer, prices it through the house channel and records
// it. Every transfer is stored, blocked ones with status blocked; only
// transfers that went through feed the sender's scoring history.
func (s *Service) Send(ctx context.Context, req SendRequest) (*Transfer, error) {
	// Scoring and appending are serialised per sender so concurrent sends
	// see each other in the velocity count.
	unlock, err := s.senders.Lock(ctx, strings.TrimSpace(req.SenderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := s.Assess(ctx, req.AssessRequest)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithSenderID(ctx, rec.SenderID)

	from, to, _ := pair(req.SourceCurrency, req.TargetCurrency)
	r := s.rates.Resolve(ctx, from, to)
	q := s.engine.Quote(req.Amount, r.Rate, s.catalog.HouseParams(),
		channels.QuoteContext{SourceCurrency: from, TargetCurrency: to})

	t := &Transfer{
		ID:                uuid.NewString(),
		SenderID:          rec.SenderID,
		RecipientName:     strings.TrimSpace(req.RecipientName),
		RecipientEmail:    strings.TrimSpace(req.RecipientEmail),
		Amount:            req.Amount,
		SourceCurrency:    from,
		TargetCurrency:    to,
		ExchangeRate:      q.ExchangeRate,
		Fees:              q.Fee,
		RecipientReceives: q.RecipientGets,
		RateSource:        r.Source,
		Status:            statusFor(rec.Assessment.Decision),
		AssessmentID:      rec.ID,
		FraudAnalysis:     rec.Assessment,
		CreatedAt:         rec.EvaluatedAt,
	}

	if err := s.transfers.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("record transfer: %w", err)
	}
	if t.Status != StatusBlocked {
		if err := s.history.Append(ctx, t.SenderID, history.NewRecord(t.Amount, t.CreatedAt)); err != nil {
			return nil, fmt.Errorf("record transfer history: %w", err)
		}
	}
	metrics.TransfersTotal.WithLabelValues(string(t.Status)).Inc()

	logging.L(ctx).Info("transfer submitted",
		"transfer_id", t.ID, "status", t.Status, "amount", t.Amount, "corridor", from+"-"+to)
	return t, nil
}

// History returns the sender's most recent transfers, newest first.
func (s *Service) History(ctx context.Context, senderID string) ([]*Transfer, error) {
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return nil, ErrInvalidSender
	}
	ts, err := s.transfers.ListBySender(ctx, senderID, DisplayHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if ts == nil {
		ts = []*Transfer{}
	}
	return ts, nil
}

// Transfer looks up one of the sender's transfers. Transfers of other
// senders are reported as not found.
func (s *Service) Transfer(ctx context.Context, senderID, id string) (*Transfer, error) {
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return nil, ErrInvalidSender
	}
	t, err := s.transfers.Get(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrTransferNotFound) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load transfer: %w", err)
	}
	if t.SenderID != senderID {
		return nil, ErrTransferNotFound
	}
	return t, nil
}

// AssessmentPage is one page of a sender's audit trail.
type AssessmentPage struct {
	Assessments []*fraud.AuditRecord `json:"assessments"`
	Count       int                  `json:"count"`
	NextCursor  string               `json:"nextCursor,omitempty"`
}

// Assessments returns the sender's audit trail, newest first, starting
// after cursor ("" for the first page).
func (s *Service) Assessments(ctx context.Context, senderID string, limit int, cursor string) (*AssessmentPage, error) {
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return nil, ErrInvalidSender
	}
	after, err := pagination.Decode(cursor)
	if err != nil {
		return nil, err
	}
	recs, err := s.audit.ListBySender(ctx, senderID, limit+1, after)
	if err != nil {
		return nil, fmt.Errorf("load assessments: %w", err)
	}
	recs, next := pagination.Trim(recs, limit, func(r *fraud.AuditRecord) (time.Time, string) {
		return r.EvaluatedAt, r.ID
	})
	if recs == nil {
		recs = []*fraud.AuditRecord{}
	}
	return &AssessmentPage{Assessments: recs, Count: len(recs), NextCursor: next}, nil
}
