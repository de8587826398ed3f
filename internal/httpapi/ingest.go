package httpapi

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openobserve/corelake/internal/codec"
	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/ingest"
)

// IngestAPI exposes C4's Push over the three wire formats spec.md §6
// names: Loki push, NDJSON, and a bulk indexing envelope.
type IngestAPI struct {
	Coordinator *ingest.Coordinator
}

// MountRoutes attaches the ingest endpoints under r, mirroring the
// teacher's RestApi.MountRoutes(r *mux.Router) shape.
func (api *IngestAPI) MountRoutes(r *mux.Router) {
	r.HandleFunc("/loki/api/v1/push", api.push(codec.FormatLoki)).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/push", api.push(codec.FormatJSON)).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/_bulk", api.push(codec.FormatBulk)).Methods(http.MethodPost)
}

func (api *IngestAPI) push(format codec.Format) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 64<<20))
		if err != nil {
			writeError(rw, errs.Wrap(errs.BadRequest, err, "httpapi: read request body"))
			return
		}

		tsField := codec.JSONTimestampField(r.URL.Query().Get("ts_field"))
		records, err := codec.NewDecoder(format, tsField).Decode(body)
		if err != nil {
			if codecErr, ok := err.(*codec.Error); ok {
				writeError(rw, errs.New(codec.ToErrsKind(codecErr.Kind), "%s", codecErr.Message))
				return
			}
			writeError(rw, errs.Wrap(errs.BadRequest, err, "httpapi: decode request"))
			return
		}

		tenant := tenantFromRequest(r)
		if err := api.Coordinator.Push(r.Context(), tenant, records); err != nil {
			writeError(rw, err)
			return
		}

		rw.WriteHeader(http.StatusNoContent)
	}
}
