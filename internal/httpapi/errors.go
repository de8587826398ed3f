// Package httpapi exposes the ingest and query coordinators over HTTP,
// mirroring the teacher's internal/api package: a thin mux.Router layer
// that decodes requests, calls into the core, and maps the shared errs.Kind
// vocabulary onto HTTP status codes and a {code, message, retry_after?,
// trace_id} JSON body.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/logx"
)

// ErrorResponse is the client-visible error body, per spec.md §7.
type ErrorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter string `json:"retry_after,omitempty"`
	TraceID    string `json:"trace_id,omitempty"`
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.BadRequest, errs.OutOfRange:
		return http.StatusBadRequest
	case errs.Throttled:
		return http.StatusTooManyRequests
	case errs.Timeout:
		return http.StatusGatewayTimeout
	case errs.Unavailable:
		return http.StatusServiceUnavailable
	case errs.Incomplete:
		return http.StatusPartialContent
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto the shared errs.Kind vocabulary (err need not
// be an *errs.Error itself -- codec/wal errors are wrapped by the ingest
// and query coordinators before reaching this layer) and writes the
// client-visible JSON body.
func writeError(rw http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)

	resp := ErrorResponse{Code: string(kind), Message: err.Error()}
	if e, ok := err.(*errs.Error); ok {
		resp.TraceID = e.TraceID
		if e.RetryAfter > 0 {
			resp.RetryAfter = e.RetryAfter.String()
			rw.Header().Set("Retry-After", strconv.Itoa(int(e.RetryAfter.Seconds())))
		}
	}

	if status >= http.StatusInternalServerError {
		logx.Errorf("httpapi: %s", err)
	} else {
		logx.Warnf("httpapi: %s", err)
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(resp)
}

// decode reads and JSON-decodes r into val, rejecting unknown fields --
// the same strictness the teacher's internal/api.decode applies to every
// request body.
func decode(r io.Reader, val interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(val)
}

// tenantHeader is the multi-tenant identity header, matching Loki's
// X-Scope-OrgID convention since the push wire format it carries is
// itself Loki-shaped.
const tenantHeader = "X-Scope-OrgID"

func tenantFromRequest(r *http.Request) string {
	if t := r.Header.Get(tenantHeader); t != "" {
		return t
	}
	return "default"
}
