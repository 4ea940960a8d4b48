package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/atlekbai/query_compiler/internal/filter"
	"github.com/atlekbai/query_compiler/internal/grammar"
	"github.com/atlekbai/query_compiler/internal/query"
	"github.com/atlekbai/query_compiler/internal/schema"
	"github.com/atlekbai/query_compiler/internal/store"
)

type Handler struct {
	registry  *schema.Registry
	store     *store.Store
	validator *grammar.Validator
}

func New(registry *schema.Registry, st *store.Store, validator *grammar.Validator) *Handler {
	return &Handler{registry: registry, store: st, validator: validator}
}

// Register mounts the list routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/{model}/count", h.Count).Methods(http.MethodGet)
	r.HandleFunc("/api/{model}", h.List).Methods(http.MethodGet)
}

// ListResponse is the body of GET /api/{model}.
type ListResponse struct {
	store.ListResult
	Data []map[string]any `json:"data"`
}

// List handles GET /api/{model}?filter=&sort=&range=&fields=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	page, err := h.store.Find(r.Context(), *req)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}

	name := mux.Vars(r)["model"]
	w.Header().Set("Content-Range", fmt.Sprintf("%s %d-%d/%d", name, page.Start, page.End, page.Total))
	writeJSON(w, http.StatusOK, ListResponse{ListResult: page.ListResult, Data: page.Rows})
}

// Count handles GET /api/{model}/count. Sort, range and fields are ignored.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	count, err := h.store.Total(r.Context(), *req)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// request resolves the model and validates the query parameters. It writes the
// error response itself and reports false when the request cannot proceed.
func (h *Handler) request(w http.ResponseWriter, r *http.Request) (*store.Request, bool) {
	name := mux.Vars(r)["model"]
	model := h.registry.Get(name)
	if model == nil {
		writeError(w, http.StatusNotFound, "MODEL_NOT_FOUND",
			"Model not found",
			"No table registered with name '"+name+"'")
		return nil, false
	}

	q := r.URL.Query()
	payload, err := h.validator.Validate(q.Get("filter"), q.Get("sort"), q.Get("range"), q.Get("fields"))
	if err != nil {
		writeQueryError(w, r, err)
		return nil, false
	}

	joins, clauses := h.resolveJoins(model, payload.Filter)
	return &store.Request{
		Model:       model,
		Joins:       joins,
		JoinClauses: clauses,
		Payload:     payload,
	}, true
}

// resolveJoins maps each join key of f ("$author") to the registered model of
// the same name, provided a foreign key links it to a table already in the
// query. Unresolved keys are left out and fail compilation as unknown fields.
func (h *Handler) resolveJoins(model *schema.Model, f filter.Filter) (query.JoinMap, []string) {
	keys := f.JoinKeys()
	if len(keys) == 0 {
		return nil, nil
	}

	joined := map[string]bool{model.Name: true}
	joins := make(query.JoinMap, len(keys))
	var clauses []string

	for _, key := range keys {
		name := key[1:]
		target := h.registry.Get(name)
		if target == nil || joined[target.Name] {
			continue
		}
		for _, rel := range h.registry.Relations(name) {
			other, _ := rel.Ends(target.Name)
			if !joined[other.Table] {
				continue
			}
			clauses = append(clauses, store.JoinClause(target, rel, other.Table))
			joins[key] = target
			joined[target.Name] = true
			break
		}
	}
	return joins, clauses
}

func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, grammar.ErrSchemaViolation),
		errors.Is(err, schema.ErrUnknownField),
		errors.Is(err, filter.ErrUnsupportedRangeBounds):
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error(), "")
	default:
		logrus.WithContext(r.Context()).WithError(err).Error("list query failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Query failed", err.Error())
	}
}
