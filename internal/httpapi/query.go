package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/openobserve/corelake/internal/cluster"
	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/query"
)

// QueryAPI exposes C5's Execute as a single JSON request/response
// endpoint. A client disconnect cancels r.Context(), which Execute
// observes and uses to broadcast cancellation to every worker -- the
// propagation path spec.md §4.5 requires, free of any extra bookkeeping
// at this layer.
type QueryAPI struct {
	Coordinator *query.Coordinator
}

func (api *QueryAPI) MountRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/query", api.runQuery).Methods(http.MethodPost)
}

// queryWire is the JSON shape of a Request, per spec.md §4.5:
// {tenant, stream, time_range, predicate, projection, limit, sort}.
type queryWire struct {
	Tenant    string `json:"tenant"`
	Stream    string `json:"stream"`
	TimeRange struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"time_range"`
	Predicate struct {
		LabelEquals  map[string]string `json:"label_equals"`
		LineContains []string          `json:"line_contains"`
	} `json:"predicate"`
	Projection     []string `json:"projection"`
	Limit          int64    `json:"limit"`
	Sort           string   `json:"sort"` // "_timestamp ASC" or "_timestamp DESC"
	PartialResults *bool    `json:"partial_results"`
}

func (api *QueryAPI) runQuery(rw http.ResponseWriter, r *http.Request) {
	var wire queryWire
	if err := decode(r.Body, &wire); err != nil {
		writeError(rw, errs.Wrap(errs.BadRequest, err, "httpapi: decode query request"))
		return
	}
	if wire.Tenant == "" || wire.Stream == "" {
		writeError(rw, errs.New(errs.BadRequest, "httpapi: tenant and stream are required"))
		return
	}

	partialOK := true
	if wire.PartialResults != nil {
		partialOK = *wire.PartialResults
	}

	req := query.Request{
		Tenant:  wire.Tenant,
		Stream:  wire.Stream,
		StartTS: wire.TimeRange.Start,
		EndTS:   wire.TimeRange.End,
		Predicate: cluster.Predicate{
			LabelEquals:  wire.Predicate.LabelEquals,
			LineContains: wire.Predicate.LineContains,
		},
		Projection:            wire.Projection,
		Limit:                 wire.Limit,
		SortDesc:              strings.HasSuffix(strings.ToUpper(strings.TrimSpace(wire.Sort)), "DESC"),
		PartialResultsAllowed: partialOK,
	}

	resp, err := api.Coordinator.Execute(r.Context(), req)
	if err != nil {
		writeError(rw, err)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	if resp.Incomplete {
		rw.WriteHeader(http.StatusPartialContent)
	} else {
		rw.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(rw).Encode(resp)
}
