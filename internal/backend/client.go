// Package backend is the HTTP client for the account, PIN and transaction
// endpoints the payment flow depends on. The service behind BaseURL is an
// external system; this package only shapes requests and reads responses.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/logging"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/metrics"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/session"
)

const (
	PathVerifyAccount = "/api/accounts/verify"
	PathVerifyPIN     = "/api/auth/verify-pin"
	PathTransaction   = "/api/blockchain/transaction"

	maxBodyBytes = 64 << 10
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client

	// VerifyTimeout bounds account and PIN verification calls.
	VerifyTimeout time.Duration
	// SubmitTimeout bounds the transaction submission call.
	SubmitTimeout time.Duration

	// VerifyRPS and VerifyBurst throttle account verification calls.
	VerifyRPS   float64
	VerifyBurst int

	Logger logrus.FieldLogger
}

// Client talks to the wallet backend.
type Client struct {
	baseURL       string
	hc            *http.Client
	verifyTimeout time.Duration
	submitTimeout time.Duration
	limiter       *rate.Limiter
	verifies      singleflight.Group
	log           logrus.FieldLogger
}

// New creates a Client. BaseURL must be an absolute http(s) URL.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: invalid base url %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = 10 * time.Second
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}
	if cfg.VerifyRPS <= 0 {
		cfg.VerifyRPS = 5
	}
	if cfg.VerifyBurst <= 0 {
		cfg.VerifyBurst = 5
	}

	return &Client{
		baseURL:       strings.TrimRight(u.String(), "/"),
		hc:            hc,
		verifyTimeout: cfg.VerifyTimeout,
		submitTimeout: cfg.SubmitTimeout,
		limiter:       rate.NewLimiter(rate.Limit(cfg.VerifyRPS), cfg.VerifyBurst),
		log:           logging.OrDiscard(cfg.Logger),
	}, nil
}

// VerifyAccount asks whether account exists. A missing account is reported
// as Exists=false with a nil error; transport and server failures return
// ErrVerificationUnavailable. Concurrent calls for the same number share one
// request, which is bounded by the verify timeout only: a caller that gives
// up returns ctx.Err() without failing the others.
func (c *Client) VerifyAccount(ctx context.Context, account string) (model.AccountVerification, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.AccountVerification{}, fmt.Errorf("backend: verify account: %w", err)
	}

	shared := context.WithoutCancel(ctx)
	ch := c.verifies.DoChan(account, func() (any, error) {
		return c.verifyAccount(shared, account)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.AccountVerification{}, res.Err
		}
		return res.Val.(model.AccountVerification), nil
	case <-ctx.Done():
		return model.AccountVerification{}, fmt.Errorf("backend: verify account: %w", ctx.Err())
	}
}

func (c *Client) verifyAccount(ctx context.Context, account string) (model.AccountVerification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.verifyTimeout)
	defer cancel()

	endpoint := c.baseURL + PathVerifyAccount + "?" + url.Values{"accountNumber": {account}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.AccountVerification{}, fmt.Errorf("backend: verify account: %w", err)
	}

	status, body, err := c.do(req, "verify_account")
	if err != nil {
		return model.AccountVerification{}, fmt.Errorf("backend: verify account: %w: %w", apperr.ErrVerificationUnavailable, err)
	}

	switch {
	case status == http.StatusNotFound:
		return model.AccountVerification{Exists: false}, nil
	case status < 200 || status > 299:
		return model.AccountVerification{}, apperr.Remote(apperr.ErrVerificationUnavailable, status, "Error verifying account")
	case !gjson.ValidBytes(body):
		return model.AccountVerification{}, apperr.Remote(apperr.ErrVerificationUnavailable, status, "Error verifying account")
	}

	res := gjson.ParseBytes(body)
	return model.AccountVerification{
		Exists:   res.Get("exists").Bool(),
		Name:     displayName(res),
		FullName: res.Get("full_name").String(),
	}, nil
}

// displayName prefers "first last" and falls back to name.
func displayName(res gjson.Result) string {
	first, last := res.Get("first_name").String(), res.Get("last_name").String()
	if n := strings.TrimSpace(first + " " + last); n != "" {
		return n
	}
	return res.Get("name").String()
}

// For binds the client to the bearer token of one signed-in user.
func (c *Client) For(s *session.Session) *Authorized {
	if s == nil {
		panic("backend.For: nil session")
	}
	return &Authorized{c: c, s: s}
}

// Authorized performs the calls that need the user's bearer token.
type Authorized struct {
	c *Client
	s *session.Session
}

// VerifyAccount is Client.VerifyAccount; the account endpoint is not authenticated.
func (a *Authorized) VerifyAccount(ctx context.Context, account string) (model.AccountVerification, error) {
	return a.c.VerifyAccount(ctx, account)
}

// VerifyPIN checks pin for the signed-in user. Any non-2xx answer is a
// rejection carrying the server's message when it sent one.
func (a *Authorized) VerifyPIN(ctx context.Context, pin string) error {
	ctx, cancel := context.WithTimeout(ctx, a.c.verifyTimeout)
	defer cancel()

	req, err := a.newJSONRequest(ctx, PathVerifyPIN, map[string]string{"pin": pin})
	if err != nil {
		return fmt.Errorf("backend: verify pin: %w", err)
	}

	status, body, err := a.c.do(req, "verify_pin")
	if err != nil {
		return fmt.Errorf("backend: verify pin: %w: %w", apperr.ErrVerificationUnavailable, err)
	}
	if status >= 200 && status <= 299 {
		return nil
	}

	msg := serverMessage(body)
	if status >= 500 {
		if msg == "" {
			msg = "PIN verification failed, please try again"
		}
		return apperr.Remote(apperr.ErrVerificationUnavailable, status, msg)
	}
	if msg == "" {
		msg = "Invalid PIN"
	}
	return apperr.Remote(apperr.ErrPINRejected, status, msg)
}

// SubmitTransaction posts the payment. The response body is read whatever
// the status so txn_id and time survive a failed submission. The call is
// never retried.
func (a *Authorized) SubmitTransaction(ctx context.Context, tx model.TransactionRequest) (model.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, a.c.submitTimeout)
	defer cancel()

	req, err := a.newJSONRequest(ctx, PathTransaction, map[string]any{
		"receiver_account": tx.ReceiverAccount,
		"amount":           json.Number(tx.Amount.String()),
		"note":             tx.Note,
		"pin":              tx.PIN,
	})
	if err != nil {
		return model.Receipt{}, fmt.Errorf("backend: submit transaction: %w: %w", apperr.ErrSubmissionFailed, err)
	}

	status, body, err := a.c.do(req, "submit_transaction")
	if err != nil {
		return model.Receipt{}, fmt.Errorf("backend: submit transaction: %w: %w", apperr.ErrSubmissionFailed, err)
	}

	receipt := parseReceipt(body)
	if status < 200 || status > 299 {
		msg := serverMessage(body)
		if msg == "" {
			msg = http.StatusText(status)
		}
		return receipt, apperr.Remote(apperr.ErrSubmissionFailed, status, msg)
	}
	return receipt, nil
}

func (a *Authorized) newJSONRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := a.s.Authorize(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// do sends req and returns the status and at most maxBodyBytes of the body.
func (c *Client) do(req *http.Request, call string) (int, []byte, error) {
	start := time.Now()
	log := c.log.WithFields(logrus.Fields{"call": call, "path": req.URL.Path})

	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.RecordBackendCall(call, "network_error", time.Since(start))
		log.WithError(err).Warn("backend call failed")
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RecordBackendCall(call, "network_error", time.Since(start))
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}

	result := "ok"
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result = "rejected"
		if resp.StatusCode >= 500 {
			result = "error"
		}
	}
	d := time.Since(start)
	metrics.RecordBackendCall(call, result, d)
	log.WithFields(logrus.Fields{"status": resp.StatusCode, "duration": d}).Debug("backend call")

	return resp.StatusCode, body, nil
}

// serverMessage reads {message} or {error} from an error body.
func serverMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	res := gjson.ParseBytes(body)
	if m := res.Get("message"); m.Type == gjson.String && m.String() != "" {
		return m.String()
	}
	if m := res.Get("error"); m.Type == gjson.String {
		return m.String()
	}
	return ""
}

var receiptTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

func parseReceipt(body []byte) model.Receipt {
	if !gjson.ValidBytes(body) {
		return model.Receipt{}
	}
	res := gjson.ParseBytes(body)
	r := model.Receipt{TxnID: res.Get("txn_id").String()}

	raw := strings.TrimSpace(res.Get("time").String())
	if raw == "" {
		return r
	}
	for _, layout := range receiptTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			r.Time, r.HasTime = t, true
			break
		}
	}
	return r
}
