// Package qrscan is the QR-code input collector of step 2. Live camera
// frames, uploaded images and a fixed demo payload all end in
// HandleDecoded, which verifies the encoded account and either reports the
// recipient and amount upward or asks for the amount.
package qrscan

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/format"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/logging"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/camera"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/validate"
)

// DefaultDemoPayload is scanned by Demo when none is configured.
const DefaultDemoPayload = "1234567890|100"

// Mode is the sub-view the scanner is showing.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeScanning  Mode = "scanning"
	ModeVerifying Mode = "verifying"
	ModeAmount    Mode = "amount"
	ModeDone      Mode = "done"
)

// Verifier checks that a decoded account exists.
type Verifier interface {
	VerifyAccount(ctx context.Context, account string) (model.AccountVerification, error)
}

// Config wires a Scanner.
type Config struct {
	// Camera may be nil when no video input is available.
	Camera      *camera.Camera
	Verifier    Verifier
	DemoPayload string
	Logger      logrus.FieldLogger
}

// View is a read-only copy of the scanner state.
type View struct {
	Mode          Mode   `json:"mode"`
	Device        string `json:"device,omitempty"`
	Account       string `json:"account,omitempty"`
	Name          string `json:"name,omitempty"`
	FullName      string `json:"full_name,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Note          string `json:"note,omitempty"`
	ScanError     string `json:"scan_error,omitempty"`
	AccountError  string `json:"account_error,omitempty"`
	AmountError   string `json:"amount_error,omitempty"`
	CameraMissing bool   `json:"camera_missing,omitempty"`
}

// Scanner collects a recipient and amount from a QR code.
type Scanner struct {
	cam      *camera.Camera
	verifier Verifier
	demo     string
	log      logrus.FieldLogger
	onScan   func(model.Details) error

	mu         sync.Mutex
	mode       Mode
	device     string
	cancelScan context.CancelFunc
	account    string
	name       string
	fullName   string
	amountRaw  string
	note       string
	scanErr    error
	accountErr error
	amountErr  error
}

// New returns a Scanner reporting to onScan.
func New(cfg Config, onScan func(model.Details) error) *Scanner {
	if cfg.Verifier == nil {
		panic("qrscan.New: nil verifier")
	}
	if onScan == nil {
		panic("qrscan.New: nil callback")
	}
	if cfg.DemoPayload == "" {
		cfg.DemoPayload = DefaultDemoPayload
	}
	return &Scanner{
		cam:      cfg.Camera,
		verifier: cfg.Verifier,
		demo:     cfg.DemoPayload,
		log:      logging.OrDiscard(cfg.Logger),
		onScan:   onScan,
		mode:     ModeIdle,
	}
}

// ScanCamera reads frames until one holds a QR code, then hands its text to
// HandleDecoded. It runs until a decode succeeds, Cancel is called or ctx is
// done; the camera is released on every return.
func (s *Scanner) ScanCamera(ctx context.Context) error {
	if s.cam == nil {
		return s.failScan(apperr.New(apperr.ErrNoCamera, ""))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.mode == ModeScanning || s.mode == ModeVerifying {
		s.mu.Unlock()
		return apperr.New(apperr.ErrBusy, "")
	}
	s.mode = ModeScanning
	s.scanErr = nil
	s.cancelScan = cancel
	s.mu.Unlock()

	text, err := s.readCode(ctx)

	s.mu.Lock()
	s.cancelScan = nil
	s.device = ""
	if s.mode == ModeScanning {
		s.mode = ModeIdle
	}
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return s.failScan(err)
	}
	return s.HandleDecoded(ctx, text)
}

func (s *Scanner) readCode(ctx context.Context) (string, error) {
	stream, dev, err := s.cam.Open(ctx)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	s.mu.Lock()
	s.device = dev.Label
	s.mu.Unlock()
	s.log.WithField("device", dev.Label).Debug("camera opened")

	for {
		frame, err := stream.Next(ctx)
		switch {
		case ctx.Err() != nil:
			return "", ctx.Err()
		case errors.Is(err, io.EOF):
			return "", apperr.New(apperr.ErrCameraAccess, "Camera stream ended")
		case err != nil:
			return "", fmt.Errorf("qrscan: read frame: %w: %w", apperr.ErrCameraAccess, err)
		}

		text, err := Decode(frame)
		if err == nil {
			return text, nil
		}
	}
}

// Cancel stops a running camera scan.
func (s *Scanner) Cancel() {
	s.mu.Lock()
	cancel := s.cancelScan
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// DecodeImage decodes an uploaded image and hands its text to HandleDecoded.
func (s *Scanner) DecodeImage(ctx context.Context, r io.Reader) error {
	img, _, err := image.Decode(r)
	if err != nil {
		return s.failScan(fmt.Errorf("qrscan: decode upload: %w: %w", apperr.ErrImageDecode, err))
	}
	text, err := Decode(img)
	if err != nil {
		return s.failScan(fmt.Errorf("%w: %w", apperr.ErrImageDecode, err))
	}
	return s.HandleDecoded(ctx, text)
}

// Demo scans the configured demo payload.
func (s *Scanner) Demo(ctx context.Context) error {
	return s.HandleDecoded(ctx, s.demo)
}

// HandleDecoded parses "<account>" or "<account>|<amount>", verifies the
// account and, for a combined payload with a valid amount, reports both
// upward at once. Otherwise the amount sub-view is shown.
func (s *Scanner) HandleDecoded(ctx context.Context, text string) error {
	account, amount, combined := strings.Cut(strings.TrimSpace(text), "|")
	account = strings.TrimSpace(account)

	s.mu.Lock()
	if s.mode == ModeVerifying {
		s.mu.Unlock()
		return apperr.New(apperr.ErrBusy, "")
	}
	s.scanErr, s.accountErr, s.amountErr = nil, nil, nil
	if account == "" || validate.AccountNumber(account) != nil {
		s.accountErr = apperr.New(apperr.ErrInvalidQR, "Invalid QR code format")
		s.mode = ModeIdle
		err := s.accountErr
		s.mu.Unlock()
		return err
	}
	s.mode = ModeVerifying
	s.mu.Unlock()

	v, err := s.verifier.VerifyAccount(ctx, account)

	s.mu.Lock()
	switch {
	case err != nil:
		s.log.WithError(err).Warn("qr account verification failed")
		s.accountErr = apperr.New(apperr.ErrVerificationUnavailable, "Error verifying account")
		if errors.Is(err, apperr.ErrUnauthenticated) {
			s.accountErr = err
		}
	case !v.Exists:
		s.accountErr = apperr.New(apperr.ErrAccountNotFound, "Account not found")
	}
	if s.accountErr != nil {
		s.mode = ModeIdle
		err := s.accountErr
		s.mu.Unlock()
		return err
	}

	s.account, s.name, s.fullName = account, v.Name, v.FullName
	s.amountRaw = validate.StripGrouping(amount)

	if !combined {
		s.mode = ModeAmount
		s.mu.Unlock()
		return nil
	}

	d, err := validate.Amount(amount)
	if err != nil {
		s.amountErr = err
		s.mode = ModeAmount
		s.mu.Unlock()
		return err
	}
	return s.reportLocked(d)
}

// Prefill reopens the amount sub-view for a recipient scanned and verified
// earlier in the same payment, with the amount and note filled in.
func (s *Scanner) Prefill(d model.Details) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account, s.name, s.fullName = d.Recipient, d.Name, ""
	s.amountRaw = ""
	if !d.Amount.IsZero() {
		s.amountRaw = d.Amount.StringFixed(2)
	}
	s.note = d.Note
	s.scanErr, s.accountErr, s.amountErr = nil, nil, nil
	s.mode = ModeAmount
}

// SetAmount updates the amount typed in the amount sub-view.
func (s *Scanner) SetAmount(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.amountRaw = validate.StripGrouping(v)
	s.amountErr = nil
}

// SetNote updates the optional note.
func (s *Scanner) SetNote(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.note = v
}

// SubmitAmount validates the amount sub-view and reports upward.
func (s *Scanner) SubmitAmount() error {
	s.mu.Lock()
	if s.mode != ModeAmount {
		s.mu.Unlock()
		return apperr.New(apperr.ErrWrongStep, "Scan a QR code first")
	}
	d, err := validate.Amount(s.amountRaw)
	if err != nil {
		s.amountErr = err
		s.mu.Unlock()
		return err
	}
	return s.reportLocked(d)
}

// reportLocked is called with s.mu held and releases it before invoking the
// callback.
func (s *Scanner) reportLocked(amount decimal.Decimal) error {
	d := model.Details{
		Recipient: s.account,
		Name:      s.name,
		Amount:    amount,
		Note:      s.note,
	}
	prev := s.mode
	s.mode = ModeDone
	s.mu.Unlock()

	if err := s.onScan(d); err != nil {
		s.mu.Lock()
		s.mode = prev
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Scanner) failScan(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanErr = err
	if s.mode == ModeScanning {
		s.mode = ModeIdle
	}
	return err
}

// View returns a copy of the scanner state.
func (s *Scanner) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Mode:          s.mode,
		Device:        s.device,
		Account:       s.account,
		Name:          s.name,
		FullName:      s.fullName,
		Amount:        format.AmountInput(s.amountRaw),
		Note:          s.note,
		ScanError:     apperr.Message(s.scanErr),
		AccountError:  apperr.Message(s.accountErr),
		AmountError:   apperr.Message(s.amountErr),
		CameraMissing: s.cam == nil,
	}
}
