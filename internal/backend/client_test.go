package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/session"
)

func newClient(t *testing.T, h http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, VerifyRPS: 1000, VerifyBurst: 1000})
	require.NoError(t, err)
	return c
}

func TestNew_InvalidBaseURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "localhost:8000", "://bad"} {
		_, err := New(Config{BaseURL: raw})
		require.Error(t, err, raw)
	}
}

func TestVerifyAccount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		want     model.AccountVerification
		wantKind string
	}{
		{
			name:   "found_first_last",
			status: http.StatusOK,
			body:   `{"exists":true,"first_name":"Asha","last_name":"Rao","full_name":"Asha K Rao"}`,
			want:   model.AccountVerification{Exists: true, Name: "Asha Rao", FullName: "Asha K Rao"},
		},
		{
			name:   "found_name_only",
			status: http.StatusOK,
			body:   `{"exists":true,"name":"Ravi"}`,
			want:   model.AccountVerification{Exists: true, Name: "Ravi"},
		},
		{
			name:   "not_found",
			status: http.StatusNotFound,
			body:   `{"exists":false}`,
			want:   model.AccountVerification{Exists: false},
		},
		{
			name:     "server_error",
			status:   http.StatusInternalServerError,
			body:     `oops`,
			wantKind: "verification_unavailable",
		},
		{
			name:     "garbled_ok",
			status:   http.StatusOK,
			body:     `{"exists":`,
			wantKind: "verification_unavailable",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, PathVerifyAccount, r.URL.Path)
				require.Equal(t, "1234567890", r.URL.Query().Get("accountNumber"))
				require.Empty(t, r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			got, err := c.VerifyAccount(context.Background(), "1234567890")
			if tt.wantKind != "" {
				require.Equal(t, tt.wantKind, apperr.Kind(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyAccount_NetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: base})
	require.NoError(t, err)

	_, err = c.VerifyAccount(context.Background(), "1234567890")
	require.ErrorIs(t, err, apperr.ErrVerificationUnavailable)
}

func TestVerifyAccount_CollapsesDuplicates(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	release := make(chan struct{})
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = io.WriteString(w, `{"exists":true,"name":"Ravi"}`)
	}))

	const callers = 5
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			v, err := c.VerifyAccount(context.Background(), "1234567890")
			require.NoError(t, err)
			require.True(t, v.Exists)
		}()
	}

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.LessOrEqual(t, hits.Load(), int32(callers))
	require.GreaterOrEqual(t, hits.Load(), int32(1))
}

func TestVerifyAccount_CancelledCallerDoesNotFailOthers(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	release := make(chan struct{})
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_, _ = io.WriteString(w, `{"exists":true,"name":"Ravi"}`)
	}))

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	errA := make(chan error, 1)
	go func() {
		_, err := c.VerifyAccount(ctxA, "1234567890")
		errA <- err
	}()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		v   model.AccountVerification
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := c.VerifyAccount(context.Background(), "1234567890")
		resB <- result{v, err}
	}()

	cancelA()
	select {
	case err := <-errA:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case got := <-resB:
		require.NoError(t, got.err)
		require.Equal(t, model.AccountVerification{Exists: true, Name: "Ravi"}, got.v)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
}

func TestVerifyPIN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{name: "ok", status: http.StatusOK, body: `{"valid":true}`},
		{name: "rejected_message", status: http.StatusUnauthorized, body: `{"message":"Invalid PIN"}`, wantErr: apperr.ErrPINRejected, wantMsg: "Invalid PIN"},
		{name: "rejected_error_field", status: http.StatusBadRequest, body: `{"error":"PIN locked"}`, wantErr: apperr.ErrPINRejected, wantMsg: "PIN locked"},
		{name: "rejected_no_body", status: http.StatusForbidden, body: ``, wantErr: apperr.ErrPINRejected, wantMsg: "Invalid PIN"},
		{name: "server_error", status: http.StatusBadGateway, body: ``, wantErr: apperr.ErrVerificationUnavailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodPost, r.Method)
				require.Equal(t, PathVerifyPIN, r.URL.Path)
				require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				require.Equal(t, "1234", body["pin"])

				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			err := c.For(session.New(session.Static("tok"))).VerifyPIN(context.Background(), "1234")
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				require.Equal(t, tt.wantMsg, apperr.Message(err))
			}
		})
	}
}

func TestVerifyPIN_NoToken(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	err := c.For(session.New(session.Static(""))).VerifyPIN(context.Background(), "1234")
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	require.Zero(t, hits.Load())
}

func TestSubmitTransaction(t *testing.T) {
	t.Parallel()

	tx := model.TransactionRequest{
		ReceiverAccount: "1234567890",
		Amount:          decimal.RequireFromString("250.50"),
		Note:            "rent",
		PIN:             "1234",
	}

	tests := []struct {
		name     string
		status   int
		body     string
		want     model.Receipt
		wantFail bool
	}{
		{
			name:   "created",
			status: http.StatusCreated,
			body:   `{"txn_id":"T1","time":"2024-01-01T10:00:00Z"}`,
			want:   model.Receipt{TxnID: "T1", Time: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), HasTime: true},
		},
		{
			name:   "python_isoformat",
			status: http.StatusOK,
			body:   `{"txn_id":"T2","time":"2024-01-01T10:00:00.123456"}`,
			want:   model.Receipt{TxnID: "T2", Time: time.Date(2024, 1, 1, 10, 0, 0, 123456000, time.UTC), HasTime: true},
		},
		{
			name:   "no_time",
			status: http.StatusOK,
			body:   `{"txn_id":"T3"}`,
			want:   model.Receipt{TxnID: "T3"},
		},
		{
			name:     "rejected_with_id",
			status:   http.StatusBadRequest,
			body:     `{"txn_id":"T4","message":"Insufficient balance"}`,
			want:     model.Receipt{TxnID: "T4"},
			wantFail: true,
		},
		{
			name:     "server_error_plain",
			status:   http.StatusInternalServerError,
			body:     `boom`,
			wantFail: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, PathTransaction, r.URL.Path)
				require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

				dec := json.NewDecoder(r.Body)
				dec.UseNumber()
				var body map[string]any
				require.NoError(t, dec.Decode(&body))
				require.Equal(t, "1234567890", body["receiver_account"])
				require.Equal(t, json.Number("250.5"), body["amount"])
				require.Equal(t, "rent", body["note"])
				require.Equal(t, "1234", body["pin"])

				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			got, err := c.For(session.New(session.Static("tok"))).SubmitTransaction(context.Background(), tx)
			require.Equal(t, tt.want.TxnID, got.TxnID)
			require.Equal(t, tt.want.HasTime, got.HasTime)
			if tt.want.HasTime {
				require.True(t, tt.want.Time.Equal(got.Time), "got %v", got.Time)
			}
			if tt.wantFail {
				require.ErrorIs(t, err, apperr.ErrSubmissionFailed)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSubmitTransaction_NetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: base})
	require.NoError(t, err)

	_, err = c.For(session.New(session.Static("tok"))).SubmitTransaction(context.Background(), model.TransactionRequest{
		ReceiverAccount: "1234567890",
		Amount:          decimal.NewFromInt(10),
		PIN:             "1234",
	})
	require.ErrorIs(t, err, apperr.ErrSubmissionFailed)
	require.False(t, errors.Is(err, apperr.ErrVerificationUnavailable))
}

func TestFor_NilSessionPanics(t *testing.T) {
	t.Parallel()

	c, err := New(Config{BaseURL: "http://example.test"})
	require.NoError(t, err)
	require.Panics(t, func() { c.For(nil) })
}
