// Package payment provides the transaction-submission step of the payment
// flow.
//
// Process issues exactly one POST for a verified draft and turns whatever
// happens into a terminal Outcome: it never retries and never returns an
// error of its own.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/logging"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/metrics"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/shared"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/tracker"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMinDisplay = 2 * time.Second
)

// Client posts a transaction.
type Client interface {
	SubmitTransaction(ctx context.Context, tx model.TransactionRequest) (model.Receipt, error)
}

// Config tunes a Service. Zero durations take the defaults; a negative
// MinDisplay disables the minimum.
type Config struct {
	Timeout    time.Duration
	MinDisplay time.Duration
	Now        func() time.Time
	Logger     logrus.FieldLogger
}

// Service runs submissions and counts them in the tracker.
type Service struct {
	tr         *tracker.Tracker
	timeout    time.Duration
	minDisplay time.Duration
	now        func() time.Time
	log        logrus.FieldLogger
}

// New creates a Service. A nil tracker gets a private one.
func New(tr *tracker.Tracker, cfg Config) *Service {
	if tr == nil {
		tr = &tracker.Tracker{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	minDisplay := cfg.MinDisplay
	if minDisplay == 0 {
		minDisplay = DefaultMinDisplay
	}
	return &Service{
		tr:         tr,
		timeout:    shared.DurationOr(cfg.Timeout, DefaultTimeout),
		minDisplay: max(minDisplay, 0),
		now:        cfg.Now,
		log:        logging.OrDiscard(cfg.Logger),
	}
}

// Tracker returns the in-flight counter.
func (s *Service) Tracker() *tracker.Tracker { return s.tr }

// Process submits draft through c. The request is bounded by the service
// timeout; the processing view is held for at least MinDisplay. A network
// error or a non-2xx answer yields StatusFailed, with any txn_id and time
// the body carried.
func (s *Service) Process(ctx context.Context, c Client, draft model.Draft) model.Outcome {
	// Track the running submission
	s.tr.Inc()
	defer s.tr.Dec()

	start := s.now()

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	receipt, err := c.SubmitTransaction(reqCtx, model.TransactionRequest{
		ReceiverAccount: draft.Recipient,
		Amount:          draft.Amount,
		Note:            draft.Note,
		PIN:             draft.PIN,
	})
	cancel()

	if wait := s.minDisplay - s.now().Sub(start); wait > 0 {
		_ = shared.SleepOrDone(ctx, wait)
	}

	out := model.Outcome{
		Status:        model.StatusSuccess,
		TransactionID: receipt.TxnID,
		OccurredAt:    receipt.Time,
		ServerTime:    receipt.HasTime,
	}
	if !receipt.HasTime {
		out.OccurredAt = s.now()
	}
	if err != nil {
		out.Status = model.StatusFailed
		out.Err = fmt.Errorf("payment: %w", err)
	}

	metrics.RecordOutcome(string(out.Status))
	s.log.WithFields(logrus.Fields{
		"status":   out.Status,
		"txn_id":   out.TransactionID,
		"kind":     apperr.Kind(err),
		"duration": s.now().Sub(start),
	}).Info("transaction settled")

	return out
}
