package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"carehome.org/internal/auth"
	"carehome.org/internal/residents"
)

const residentAlias = "r"

type residentListResponse struct {
	Total int                  `json:"total"`
	Items []residents.Resident `json:"items"`
}

func (a *API) handleResidentList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing session")
		return
	}

	predicate, err := a.auth.ScopeFilter(r.Context(), session, residentAlias)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "scope resolution failed")
		return
	}

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 50, 1, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 200")
		return
	}
	offset, err := parsePositiveInt(r.URL.Query().Get("offset"), 0, 0, 1<<30)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	q := residents.Query{
		Name:   strings.TrimSpace(r.URL.Query().Get("name")),
		Limit:  limit,
		Offset: offset,
	}
	items, err := a.residents.List(r.Context(), predicate, q)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	total, err := a.residents.Count(r.Context(), predicate)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []residents.Resident{}
	}
	writeJSON(w, http.StatusOK, residentListResponse{Total: total, Items: items})
}

func (a *API) handleResidentGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/residents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing session")
		return
	}

	predicate, err := a.auth.ScopeFilter(r.Context(), session, residentAlias)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "scope resolution failed")
		return
	}

	resident, err := a.residents.Get(r.Context(), predicate, id)
	if err != nil {
		// Out-of-scope rows read as absent, so the response does not
		// reveal whether the id exists.
		if errors.Is(err, residents.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, resident)
}
