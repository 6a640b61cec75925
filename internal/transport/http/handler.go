// Package httptransport exposes payment flows over a JSON API. Each API
// session owns one flow; the routes map one to one onto flow and leaf
// operations.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/flow"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/logging"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/metrics"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/middleware"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/session"
)

const maxImageBytes = 10 << 20

// FlowFactory builds a flow whose remote calls carry tokens from src.
type FlowFactory func(src session.TokenSource) *flow.Flow

// Response is the envelope of every API answer.
type Response struct {
	Status    string              `json:"status"` // "ok" | "error"
	SessionID string              `json:"session_id,omitempty"`
	Session   *flow.Snapshot      `json:"session,omitempty"`
	Error     *model.ErrorPayload `json:"error,omitempty"`
}

// Handler serves the payment session API.
type Handler struct {
	newFlow        FlowFactory
	store          *Store
	requestTimeout time.Duration
	log            logrus.FieldLogger
}

// New returns a Handler creating flows with newFlow and keeping them in store.
//
// It panics if newFlow or store is nil. If requestTimeout is non-positive,
// a default timeout is applied.
func New(newFlow FlowFactory, store *Store, requestTimeout time.Duration, logger logrus.FieldLogger) *Handler {
	if newFlow == nil {
		panic("httptransport.New: nil flow factory")
	}
	if store == nil {
		panic("httptransport.New: nil store")
	}
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	return &Handler{
		newFlow:        newFlow,
		store:          store,
		requestTimeout: requestTimeout,
		log:            logging.OrDiscard(logger),
	}
}

// Router returns the API routes with access logging and metrics installed,
// plus /healthz and /metrics.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging(h.log), middleware.Metrics)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/sessions", h.HandleCreate).Methods(http.MethodPost)

	s := r.PathPrefix("/sessions/{id}").Subrouter()
	s.HandleFunc("", h.HandleGet).Methods(http.MethodGet)
	s.HandleFunc("", h.HandleDelete).Methods(http.MethodDelete)
	s.HandleFunc("/method", h.HandleMethod).Methods(http.MethodPost)
	s.HandleFunc("/account", h.HandleAccount).Methods(http.MethodPost)
	s.HandleFunc("/account/verify", h.HandleVerify).Methods(http.MethodPost)
	s.HandleFunc("/details", h.HandleDetails).Methods(http.MethodPost)
	s.HandleFunc("/qr/image", h.HandleQRImage).Methods(http.MethodPost)
	s.HandleFunc("/qr/demo", h.HandleQRDemo).Methods(http.MethodPost)
	s.HandleFunc("/qr/amount", h.HandleQRAmount).Methods(http.MethodPost)
	s.HandleFunc("/pin", h.HandlePIN).Methods(http.MethodPost)
	s.HandleFunc("/back", h.HandleBack).Methods(http.MethodPost)
	s.HandleFunc("/reset", h.HandleReset).Methods(http.MethodPost)
	return r
}

// HandleCreate opens a session. The deep link is read from the JSON body
// when there is one, otherwise from the query string.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	link := model.ParseDeepLink(r.URL.Query())
	if r.ContentLength != 0 {
		var req model.CreateSessionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err, nil)
			return
		}
		link = req.DeepLink()
	}

	box := &tokenBox{}
	box.set(string(session.FromRequest(r)))
	sess := h.store.put(h.newFlow(box), box)
	h.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"request_id": middleware.RequestID(r.Context()),
	}).Info("payment session opened")

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	err := sess.Flow.Start(ctx, link)

	status := http.StatusCreated
	if err != nil {
		status = httpStatus(err)
	}
	writeSession(w, status, sess, err)
}

// HandleGet returns the snapshot. With ?wait set it first blocks until
// the submission in flight settles or the request times out.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(ctx context.Context, sess *Session) error {
		if r.URL.Query().Get("wait") == "" || sess.Flow.Step() != model.StepProcessing {
			return nil
		}
		_, err := sess.Flow.Wait(ctx)
		return err
	})
}

// HandleDelete discards the session.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMethod picks the payment method.
func (h *Handler) HandleMethod(w http.ResponseWriter, r *http.Request) {
	var req model.MethodRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	h.with(w, r, func(_ context.Context, sess *Session) error {
		return sess.Flow.Choose(model.Method(req.Method))
	})
}

// HandleAccount replaces the typed account number.
func (h *Handler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	var req model.AccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	h.with(w, r, func(_ context.Context, sess *Session) error {
		e, err := sess.Flow.Account()
		if err != nil {
			return err
		}
		e.SetAccountNumber(req.AccountNumber)
		return nil
	})
}

// HandleVerify verifies the typed account number.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(ctx context.Context, sess *Session) error {
		e, err := sess.Flow.Account()
		if err != nil {
			return err
		}
		return e.Verify(ctx)
	})
}

// HandleDetails sets amount and note on the account form and submits it.
func (h *Handler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	var req model.DetailsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	h.with(w, r, func(_ context.Context, sess *Session) error {
		e, err := sess.Flow.Account()
		if err != nil {
			return err
		}
		e.SetAmount(req.Amount)
		e.SetNote(req.Note)
		return e.Submit()
	})
}

// HandleQRImage decodes an uploaded image, sent raw or as the "image" field
// of a multipart form.
func (h *Handler) HandleQRImage(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(ctx context.Context, sess *Session) error {
		s, err := sess.Flow.Scanner()
		if err != nil {
			return err
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)

		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if !strings.HasPrefix(ct, "multipart/") {
			return s.DecodeImage(ctx, r.Body)
		}
		f, _, err := r.FormFile("image")
		if err != nil {
			return badRequest{msg: "image field is required"}
		}
		defer f.Close()
		return s.DecodeImage(ctx, f)
	})
}

// HandleQRDemo scans the configured demo payload.
func (h *Handler) HandleQRDemo(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(ctx context.Context, sess *Session) error {
		s, err := sess.Flow.Scanner()
		if err != nil {
			return err
		}
		return s.Demo(ctx)
	})
}

// HandleQRAmount submits the amount sub-view of the QR path.
func (h *Handler) HandleQRAmount(w http.ResponseWriter, r *http.Request) {
	var req model.DetailsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	h.with(w, r, func(_ context.Context, sess *Session) error {
		s, err := sess.Flow.Scanner()
		if err != nil {
			return err
		}
		s.SetAmount(req.Amount)
		s.SetNote(req.Note)
		return s.SubmitAmount()
	})
}

// HandlePIN types the PIN and submits it. An accepted PIN answers 202: the
// transaction is then in flight and the outcome is read with GET ?wait=1.
func (h *Handler) HandlePIN(w http.ResponseWriter, r *http.Request) {
	var req model.PINRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err, nil)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	err := func() error {
		leaf, err := sess.Flow.PIN()
		if err != nil {
			return err
		}
		if err := leaf.Fill(req.PIN); err != nil {
			return err
		}
		return leaf.Submit(ctx)
	}()
	if err != nil {
		writeSession(w, httpStatus(err), sess, err)
		return
	}
	writeSession(w, http.StatusAccepted, sess, nil)
}

// HandleBack moves one step back.
func (h *Handler) HandleBack(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(_ context.Context, sess *Session) error {
		return sess.Flow.Back()
	})
}

// HandleReset starts the session over.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.with(w, r, func(_ context.Context, sess *Session) error {
		sess.Flow.Reset()
		return nil
	})
}

// with looks up the session, runs op under the request timeout and writes
// the resulting snapshot.
func (h *Handler) with(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, sess *Session) error) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	err := op(ctx, sess)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"session_id": sess.ID,
			"request_id": middleware.RequestID(r.Context()),
			"kind":       errorKind(err),
		}).Debug("operation refused")
	}
	writeSession(w, httpStatus(err), sess, err)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := h.store.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, nil)
		return nil, false
	}
	sess.token.set(string(session.FromRequest(r)))
	return sess, true
}

// decodeJSON reads exactly one JSON value with no unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest{msg: "invalid JSON"}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest{msg: "invalid JSON"}
	}
	return nil
}

func writeSession(w http.ResponseWriter, status int, sess *Session, err error) {
	snap := sess.Flow.Snapshot()
	if err != nil {
		writeError(w, err, &Response{SessionID: sess.ID, Session: &snap})
		return
	}
	writeJSON(w, status, Response{Status: "ok", SessionID: sess.ID, Session: &snap})
}

func writeError(w http.ResponseWriter, err error, resp *Response) {
	if resp == nil {
		resp = &Response{}
	}
	resp.Status = "error"
	resp.Error = errorPayload(err)
	writeJSON(w, httpStatus(err), resp)
}

// writeJSON writes v as a JSON response with the given status code.
// The Content-Type is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var _ kinder = (*apperr.Error)(nil)
