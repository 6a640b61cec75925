// Package account is the manual input collector of step 2: an account
// number that must be verified remotely, an amount and an optional note.
package account

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/format"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/logging"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/validate"
)

// Verifier checks that an account exists.
type Verifier interface {
	VerifyAccount(ctx context.Context, account string) (model.AccountVerification, error)
}

// View is a read-only copy of the entry form.
type View struct {
	Account      string `json:"account"`
	Verified     bool   `json:"verified"`
	Verifying    bool   `json:"verifying,omitempty"`
	Name         string `json:"name,omitempty"`
	FullName     string `json:"full_name,omitempty"`
	Amount       string `json:"amount"`
	Note         string `json:"note,omitempty"`
	AccountError string `json:"account_error,omitempty"`
	AmountError  string `json:"amount_error,omitempty"`
}

// Entry holds the form state. Verification is bound to the exact account
// text it was obtained for: any edit revokes it.
type Entry struct {
	verifier Verifier
	onSubmit func(model.Details) error
	log      logrus.FieldLogger

	mu         sync.Mutex
	account    string
	verified   bool
	verifying  bool
	name       string
	fullName   string
	amountRaw  string
	note       string
	accountErr error
	amountErr  error
}

// New returns an empty Entry reporting to onSubmit.
func New(v Verifier, onSubmit func(model.Details) error, logger logrus.FieldLogger) *Entry {
	if v == nil {
		panic("account.New: nil verifier")
	}
	if onSubmit == nil {
		panic("account.New: nil callback")
	}
	return &Entry{verifier: v, onSubmit: onSubmit, log: logging.OrDiscard(logger)}
}

// SetAccountNumber replaces the account text and revokes any verification,
// even when the value is unchanged.
func (e *Entry) SetAccountNumber(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.account = s
	e.verified = false
	e.name, e.fullName = "", ""
	e.accountErr = nil
}

// Verify checks the format locally and then asks the backend. Malformed
// input never reaches the network.
func (e *Entry) Verify(ctx context.Context) error {
	e.mu.Lock()
	if e.verifying {
		e.mu.Unlock()
		return apperr.New(apperr.ErrBusy, "")
	}
	acct := e.account
	if err := validate.AccountNumber(acct); err != nil {
		e.accountErr = err
		e.mu.Unlock()
		return err
	}
	e.verifying = true
	e.accountErr = nil
	e.mu.Unlock()

	v, err := e.verifier.VerifyAccount(ctx, acct)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.verifying = false

	// Edited while the request was out: the answer is for another number.
	if e.account != acct {
		return nil
	}

	switch {
	case err != nil:
		e.log.WithError(err).Warn("account verification failed")
		e.accountErr = apperr.New(apperr.ErrVerificationUnavailable, "Error verifying account")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.accountErr = err
		}
		return e.accountErr
	case !v.Exists:
		e.accountErr = apperr.New(apperr.ErrAccountNotFound, "Account not found")
		return e.accountErr
	}

	e.verified = true
	e.name, e.fullName = v.Name, v.FullName
	return nil
}

// SetAmount stores the typed amount; grouping commas are accepted.
func (e *Entry) SetAmount(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.amountRaw = validate.StripGrouping(s)
	e.amountErr = nil
}

// SetNote stores the optional note.
func (e *Entry) SetNote(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.note = s
}

// Submit reports the details upward when the account is verified and the
// amount is within bounds. On failure the inline errors are set and the
// callback is not invoked.
func (e *Entry) Submit() error {
	e.mu.Lock()

	var firstErr error
	if !e.verified {
		if e.accountErr == nil {
			if err := validate.AccountNumber(e.account); err != nil {
				e.accountErr = err
			} else {
				e.accountErr = apperr.New(apperr.ErrInvalidAccount, "Verify the account number first")
			}
		}
		firstErr = e.accountErr
	}

	amount, err := validate.Amount(e.amountRaw)
	if err != nil {
		e.amountErr = err
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		e.mu.Unlock()
		return firstErr
	}

	d := model.Details{
		Recipient: e.account,
		Name:      e.name,
		Amount:    amount,
		Note:      e.note,
	}
	e.mu.Unlock()

	return e.onSubmit(d)
}

// View returns a copy of the form state.
func (e *Entry) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return View{
		Account:      e.account,
		Verified:     e.verified,
		Verifying:    e.verifying,
		Name:         e.name,
		FullName:     e.fullName,
		Amount:       format.AmountInput(e.amountRaw),
		Note:         e.note,
		AccountError: apperr.Message(e.accountErr),
		AmountError:  apperr.Message(e.amountErr),
	}
}
