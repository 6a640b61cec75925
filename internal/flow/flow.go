// Package flow orchestrates the payment wizard:
//
//	SelectMethod -> EnterDetails -> EnterPIN -> Processing -> Result
//
// The Flow owns the draft, the outcome and the one leaf collector of the
// current step. A fresh leaf is built on every entry into a step and leaves
// report upward only through the callback they are built with. Processing
// is entered only from a PIN the backend accepted, and the step is switched
// to Processing before the transaction is posted, so a second submission
// for the same draft cannot be issued.
package flow

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/logging"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/metrics"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/account"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/camera"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/merchant"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/payment"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/pin"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/processing"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/qrscan"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/result"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/shared"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/validate"
)

// Backend is the set of remote calls one signed-in user's flow makes.
type Backend interface {
	VerifyAccount(ctx context.Context, account string) (model.AccountVerification, error)
	VerifyPIN(ctx context.Context, pin string) error
	SubmitTransaction(ctx context.Context, tx model.TransactionRequest) (model.Receipt, error)
}

// Deps are the collaborators of a Flow.
type Deps struct {
	Backend  Backend
	Payments *payment.Service
	// Camera is optional; without it the QR scanner offers upload and demo only.
	Camera *camera.Camera
	// Sender is optional; when set, payments to its account are refused.
	Sender Sender
	Logger logrus.FieldLogger
}

// Sender reports the account number of the signed-in user, or "".
type Sender interface {
	Account(ctx context.Context) string
}

type options struct {
	clock            shared.Clock
	shake            time.Duration
	demoPayload      string
	progressInterval time.Duration
	celebrateFor     time.Duration
	celebrate        func(result.Burst)
	loc              *time.Location
}

// Option customizes a Flow.
type Option func(*options)

// WithClock sets the clock of the timed effects.
func WithClock(c shared.Clock) Option { return func(o *options) { o.clock = c } }

// WithShake sets how long a PIN rejection pulse lasts.
func WithShake(d time.Duration) Option { return func(o *options) { o.shake = d } }

// WithDemoPayload sets what the QR demo mode scans.
func WithDemoPayload(p string) Option { return func(o *options) { o.demoPayload = p } }

// WithProgressInterval sets the processing progress tick.
func WithProgressInterval(d time.Duration) Option {
	return func(o *options) { o.progressInterval = d }
}

// WithCelebration makes successful outcomes emit bursts to sink for d.
func WithCelebration(d time.Duration, sink func(result.Burst)) Option {
	return func(o *options) {
		o.celebrateFor = d
		o.celebrate = sink
	}
}

// WithLocation sets the zone result times are rendered in.
func WithLocation(loc *time.Location) Option { return func(o *options) { o.loc = loc } }

// Flow is one payment wizard instance.
type Flow struct {
	backend  Backend
	payments *payment.Service
	camera   *camera.Camera
	sender   Sender
	log      logrus.FieldLogger
	opts     options

	mu       sync.Mutex
	step     model.Step
	draft    model.Draft
	outcome  model.Outcome
	callback string

	// gen changes on Reset; results of older submissions are dropped.
	gen uint64
	// leaf identifies the current leaf; callbacks from stale leaves are refused.
	leaf uint64

	account     *account.Entry
	scanner     *qrscan.Scanner
	pin         *pin.Entry
	progress    *processing.Simulator
	celebration *result.Celebration
	done        chan struct{}
}

// New returns a Flow on SelectMethod with an empty draft.
func New(deps Deps, opts ...Option) *Flow {
	if deps.Backend == nil {
		panic("flow.New: nil backend")
	}
	if deps.Payments == nil {
		panic("flow.New: nil payment service")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.clock = shared.ClockOr(o.clock)

	return &Flow{
		backend:  deps.Backend,
		payments: deps.Payments,
		camera:   deps.Camera,
		sender:   deps.Sender,
		log:      logging.OrDiscard(deps.Logger),
		opts:     o,
		step:     model.StepSelectMethod,
		outcome:  model.Outcome{Status: model.StatusIdle},
	}
}

// Step returns the current step.
func (f *Flow) Step() model.Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Choose picks the payment method and moves to EnterDetails.
func (f *Flow) Choose(m model.Method) error {
	if _, ok := model.ParseMethod(string(m)); !ok {
		return apperr.New(apperr.ErrWrongStep, "Unknown payment method")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != model.StepSelectMethod {
		return f.wrongStepLocked("choose")
	}
	f.draft.Method = m
	f.enterDetailsLocked()
	return nil
}

// Account returns the account-entry leaf of step 2.
func (f *Flow) Account() (*account.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != model.StepEnterDetails || f.account == nil {
		return nil, f.wrongStepLocked("account entry")
	}
	return f.account, nil
}

// Scanner returns the QR leaf of step 2.
func (f *Flow) Scanner() (*qrscan.Scanner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != model.StepEnterDetails || f.scanner == nil {
		return nil, f.wrongStepLocked("qr scanner")
	}
	return f.scanner, nil
}

// PIN returns the PIN leaf of step 3.
func (f *Flow) PIN() (*pin.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != model.StepEnterPIN || f.pin == nil {
		return nil, f.wrongStepLocked("pin entry")
	}
	return f.pin, nil
}

// Back moves one step back from EnterDetails or EnterPIN. The draft is
// kept: the account form comes back prefilled and unverified, the QR
// scanner comes back on its amount sub-view for the scanned recipient.
// Processing cannot be left while the submission is in flight.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.step {
	case model.StepEnterDetails:
		f.dropLeavesLocked()
		f.setStepLocked(model.StepSelectMethod)
	case model.StepEnterPIN:
		f.enterDetailsLocked()
		switch {
		case f.account != nil:
			f.account.SetAccountNumber(f.draft.Recipient)
			if !f.draft.Amount.IsZero() {
				f.account.SetAmount(f.draft.Amount.StringFixed(2))
			}
			f.account.SetNote(f.draft.Note)
		case f.scanner != nil:
			f.scanner.Prefill(model.Details{
				Recipient: f.draft.Recipient,
				Name:      f.draft.RecipientName,
				Amount:    f.draft.Amount,
				Note:      f.draft.Note,
			})
		}
	default:
		return f.wrongStepLocked("back")
	}
	return nil
}

// Reset returns to SelectMethod with an empty draft and an idle outcome.
// A submission still in flight keeps running but its result is dropped.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gen++
	f.dropLeavesLocked()
	if f.progress != nil {
		f.progress.Stop()
		f.progress = nil
	}
	if f.celebration != nil {
		f.celebration.Stop()
		f.celebration = nil
	}
	f.draft = model.Draft{}
	f.outcome = model.Outcome{Status: model.StatusIdle}
	f.callback = ""
	f.done = nil
	f.setStepLocked(model.StepSelectMethod)
}

// Close releases timers and any open camera. The flow is unusable after.
func (f *Flow) Close() { f.Reset() }

// Done is closed once the current submission has settled. Without a
// submission in flight it is already closed.
func (f *Flow) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return f.done
}

// Wait blocks until the current submission settles and returns its outcome.
func (f *Flow) Wait(ctx context.Context) (model.Outcome, error) {
	f.mu.Lock()
	done, gen := f.done, f.gen
	if done == nil {
		out := f.outcome
		f.mu.Unlock()
		if out.Status == model.StatusIdle {
			return out, apperr.New(apperr.ErrWrongStep, "No payment has been submitted")
		}
		return out, nil
	}
	f.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return model.Outcome{}, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		return model.Outcome{Status: model.StatusIdle}, apperr.New(apperr.ErrWrongStep, "The payment was reset")
	}
	return f.outcome, nil
}

// Start applies a deep link to a fresh flow: scan-qr and manual open step 2
// with that method; acc with amt is verified and, when valid, lands on
// EnterPIN. A link that fails verification leaves the account form open
// with the input prefilled and the inline error set, and the error is
// returned.
func (f *Flow) Start(ctx context.Context, link model.DeepLink) error {
	f.mu.Lock()
	if f.step != model.StepSelectMethod || !f.draft.Empty() {
		defer f.mu.Unlock()
		return f.wrongStepLocked("deep link")
	}
	if link.Callback != "" {
		if err := merchant.CheckCallback(link.Callback); err != nil {
			f.log.WithError(err).Warn("ignoring merchant callback")
		} else {
			f.callback = link.Callback
		}
	}
	f.mu.Unlock()

	switch {
	case link.ScanQR:
		return f.Choose(model.MethodQRCode)
	case link.Manual:
		return f.Choose(model.MethodAccount)
	case link.Account == "" || link.Amount == "":
		return nil
	}

	if err := f.Choose(model.MethodAccount); err != nil {
		return err
	}
	entry, err := f.Account()
	if err != nil {
		return err
	}
	entry.SetAccountNumber(link.Account)
	entry.SetAmount(link.Amount)
	entry.SetNote(link.Note)

	if err := entry.Verify(ctx); err != nil {
		return err
	}
	return entry.Submit()
}

func (f *Flow) enterDetailsLocked() {
	f.dropLeavesLocked()
	token := f.leaf

	switch f.draft.Method {
	case model.MethodQRCode:
		f.scanner = qrscan.New(qrscan.Config{
			Camera:      f.camera,
			Verifier:    f.backend,
			DemoPayload: f.opts.demoPayload,
			Logger:      f.log,
		}, func(d model.Details) error { return f.onDetails(token, d) })
	default:
		f.account = account.New(f.backend, func(d model.Details) error {
			return f.onDetails(token, d)
		}, f.log)
	}
	f.setStepLocked(model.StepEnterDetails)
}

// onDetails is the step-2 leaf callback.
func (f *Flow) onDetails(token uint64, d model.Details) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != model.StepEnterDetails || token != f.leaf {
		return f.wrongStepLocked("submit details")
	}
	if err := validate.AccountNumber(d.Recipient); err != nil {
		return err
	}
	if err := validate.CheckAmount(d.Amount); err != nil {
		return err
	}
	if f.sender != nil && f.sender.Account(context.Background()) == d.Recipient {
		return apperr.New(apperr.ErrInvalidAccount, "You cannot pay your own account")
	}

	f.draft.Recipient = d.Recipient
	f.draft.RecipientName = d.Name
	f.draft.Amount = d.Amount
	f.draft.Note = d.Note

	f.dropLeavesLocked()
	token = f.leaf
	f.pin = pin.New(pin.Config{
		Verifier: f.backend,
		Clock:    f.opts.clock,
		Shake:    f.opts.shake,
		Logger:   f.log,
	}, func(ctx context.Context, p string) error { return f.onPIN(ctx, token, p) })
	f.setStepLocked(model.StepEnterPIN)
	return nil
}

// onPIN is the step-3 leaf callback, reached only after the backend
// accepted the PIN.
func (f *Flow) onPIN(ctx context.Context, token uint64, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != model.StepEnterPIN || token != f.leaf {
		return f.wrongStepLocked("submit pin")
	}

	f.draft.PIN = p
	f.dropLeavesLocked()
	f.setStepLocked(model.StepProcessing)
	f.outcome = model.Outcome{Status: model.StatusProcessing}

	f.progress = processing.New(f.opts.clock, f.opts.progressInterval, nil)
	f.progress.Start()

	done := make(chan struct{})
	f.done = done
	go f.submit(context.WithoutCancel(ctx), f.gen, f.draft, done)
	return nil
}

func (f *Flow) submit(ctx context.Context, gen uint64, d model.Draft, done chan struct{}) {
	defer close(done)

	out := f.payments.Process(ctx, f.backend, d)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		f.log.WithField("status", out.Status).Info("dropping result of reset flow")
		return
	}

	if out.Status == model.StatusSuccess && f.callback != "" {
		u, err := merchant.ReturnURL(f.callback, f.draft)
		if err != nil {
			f.log.WithError(err).Warn("merchant return url")
		}
		out.ReturnURL = u
	}

	f.draft.PIN = ""
	f.outcome = out
	if f.progress != nil {
		f.progress.Complete()
	}
	if out.Status == model.StatusSuccess && f.opts.celebrate != nil {
		f.celebration = result.Celebrate(f.opts.clock, f.opts.celebrateFor, 0, f.opts.celebrate)
	}
	f.setStepLocked(model.StepResult)
}

// dropLeavesLocked discards the current leaf and its transient state.
func (f *Flow) dropLeavesLocked() {
	if f.scanner != nil {
		f.scanner.Cancel()
	}
	if f.pin != nil {
		f.pin.Close()
	}
	f.account, f.scanner, f.pin = nil, nil, nil
	f.leaf++
}

func (f *Flow) setStepLocked(to model.Step) {
	from := f.step
	f.step = to
	metrics.RecordTransition(from.String(), to.String())
	f.log.WithFields(logrus.Fields{
		"from":   from.String(),
		"to":     to.String(),
		"method": f.draft.Method,
	}).Debug("step transition")
}

func (f *Flow) wrongStepLocked(action string) error {
	return apperr.New(apperr.ErrWrongStep, "Cannot "+action+" during "+f.step.String())
}
