// Package pin is the PIN collector of step 3. It verifies the PIN remotely
// before reporting it upward, so the caller only ever sees a PIN the
// backend accepted.
package pin

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/logging"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/shared"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/validate"
)

// Length is the number of PIN cells.
const Length = 4

// DefaultShake is how long the rejection pulse stays raised.
const DefaultShake = 500 * time.Millisecond

// Verifier checks a PIN for the signed-in user.
type Verifier interface {
	VerifyPIN(ctx context.Context, pin string) error
}

// Config wires an Entry.
type Config struct {
	Verifier Verifier
	Clock    shared.Clock
	Shake    time.Duration
	Logger   logrus.FieldLogger
}

// View is a read-only copy of the PIN form. Digits are never exposed.
type View struct {
	Filled    [Length]bool `json:"filled"`
	Focus     int          `json:"focus"`
	Ready     bool         `json:"ready"`
	Verifying bool         `json:"verifying,omitempty"`
	Error     string       `json:"error,omitempty"`
	Shake     bool         `json:"shake,omitempty"`
}

// Entry holds four single-digit cells.
type Entry struct {
	verifier Verifier
	clock    shared.Clock
	shakeFor time.Duration
	log      logrus.FieldLogger
	onSubmit func(ctx context.Context, pin string) error

	mu        sync.Mutex
	cells     [Length]string
	focus     int
	verifying bool
	err       error
	shaking   bool
	shakeGen  int
	stopShake func() bool
}

// New returns an empty Entry reporting verified PINs to onSubmit.
func New(cfg Config, onSubmit func(ctx context.Context, pin string) error) *Entry {
	if cfg.Verifier == nil {
		panic("pin.New: nil verifier")
	}
	if onSubmit == nil {
		panic("pin.New: nil callback")
	}
	return &Entry{
		verifier: cfg.Verifier,
		clock:    shared.ClockOr(cfg.Clock),
		shakeFor: shared.DurationOr(cfg.Shake, DefaultShake),
		log:      logging.OrDiscard(cfg.Logger),
		onSubmit: onSubmit,
	}
}

// Type stores v in cell i. Non-digit input is rejected without touching any
// state; of a multi-digit value only the first digit is kept. Focus moves to
// the next cell after a digit is entered.
func (e *Entry) Type(i int, v string) error {
	if i < 0 || i >= Length {
		return apperr.New(apperr.ErrInvalidPIN, "No such PIN cell")
	}
	if !validate.Digits(v) {
		return apperr.New(apperr.ErrInvalidPIN, "PIN must contain digits only")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cells[i] = firstDigit(v)
	e.err = nil
	if v != "" && i < Length-1 {
		e.focus = i + 1
	} else {
		e.focus = i
	}
	return nil
}

// Backspace clears cell i, or when it is already empty moves focus to the
// previous cell.
func (e *Entry) Backspace(i int) {
	if i < 0 || i >= Length {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cells[i] != "" {
		e.cells[i] = ""
		e.focus = i
		return
	}
	if i > 0 {
		e.focus = i - 1
	}
}

// Fill types pin into the cells from the first one on, clearing the rest.
// Non-digit input is rejected without touching any state.
func (e *Entry) Fill(pin string) error {
	if !validate.Digits(pin) {
		return apperr.New(apperr.ErrInvalidPIN, "PIN must contain digits only")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.cells {
		e.cells[i] = ""
		if i < len(pin) {
			e.cells[i] = pin[i : i+1]
		}
	}
	e.focus = min(len(pin), Length-1)
	e.err = nil
	return nil
}

// Ready reports whether all cells hold a digit.
func (e *Entry) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readyLocked()
}

func (e *Entry) readyLocked() bool {
	for _, c := range e.cells {
		if c == "" {
			return false
		}
	}
	return true
}

// Submit verifies the PIN remotely and, on success, hands it to the
// callback. A rejection keeps the digits, sets the error and raises the
// shake pulse.
func (e *Entry) Submit(ctx context.Context) error {
	e.mu.Lock()
	if e.verifying {
		e.mu.Unlock()
		return apperr.New(apperr.ErrBusy, "")
	}
	pin := strings.Join(e.cells[:], "")
	if err := validate.PIN(pin); err != nil {
		e.err = err
		e.mu.Unlock()
		return err
	}
	e.verifying = true
	e.err = nil
	e.mu.Unlock()

	err := e.verifier.VerifyPIN(ctx, pin)

	e.mu.Lock()
	e.verifying = false
	if err != nil {
		e.err = err
		e.raiseShakeLocked()
		e.mu.Unlock()
		e.log.WithField("kind", apperr.Kind(err)).Info("pin rejected")
		return err
	}
	e.mu.Unlock()

	return e.onSubmit(ctx, pin)
}

func (e *Entry) raiseShakeLocked() {
	if e.stopShake != nil {
		e.stopShake()
	}
	e.shaking = true
	e.shakeGen++
	gen := e.shakeGen
	e.stopShake = e.clock.AfterFunc(e.shakeFor, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.shakeGen == gen {
			e.shaking = false
		}
	})
}

// Close stops the shake timer.
func (e *Entry) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopShake != nil {
		e.stopShake()
		e.stopShake = nil
	}
	e.shaking = false
}

// View returns a copy of the form state.
func (e *Entry) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	var v View
	for i, c := range e.cells {
		v.Filled[i] = c != ""
	}
	v.Focus = e.focus
	v.Ready = e.readyLocked()
	v.Verifying = e.verifying
	v.Error = apperr.Message(e.err)
	v.Shake = e.shaking
	return v
}

func firstDigit(v string) string {
	if v == "" {
		return ""
	}
	return v[:1]
}
