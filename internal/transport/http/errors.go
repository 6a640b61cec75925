package httptransport

import (
	"errors"
	"net/http"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
)

// kinder is satisfied by domain errors
// that carry a classification kind.
type kinder interface {
	Kind() string
}

// badRequest marks malformed request bodies.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }
func (badRequest) Kind() string    { return "bad_request" }

// errorKind returns the kind of an error.
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return apperr.Kind(err)
}

func httpStatus(err error) int {
	var br badRequest
	if errors.As(err, &br) {
		return http.StatusBadRequest
	}
	return apperr.HTTPStatus(err)
}

func errorPayload(err error) *model.ErrorPayload {
	if err == nil {
		return nil
	}
	msg := apperr.Message(err)
	var br badRequest
	if errors.As(err, &br) {
		msg = br.msg
	}
	return &model.ErrorPayload{Kind: errorKind(err), Message: msg}
}
