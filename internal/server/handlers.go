package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"

	"github.com/koustreak/tabula/internal/app"
	"github.com/koustreak/tabula/internal/crud"
	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/logger"
	"github.com/koustreak/tabula/internal/schema"
	"github.com/koustreak/tabula/internal/semantics"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// reservedParams are list query parameters that are not column filters.
var reservedParams = map[string]bool{
	"page": true, "page_size": true, "sort": true, "desc": true,
	"q": true, "include_deleted": true,
}

// TableSummary is one entry of GET /api/tables.
type TableSummary struct {
	Name     string `json:"table_name"`
	RowCount int64  `json:"row_count"`
}

// TableDetail is the body of GET /api/tables/{table}.
type TableDetail struct {
	*schema.TableMetadata
	Semantics semantics.ColumnSemantics `json:"semantics"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	err := s.app.View(func(sess *app.Session) error {
		if err := sess.DB.Ping(r.Context()); err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "target": sess.Name})
		return nil
	})
	if err != nil {
		respondError(w, r, err)
	}
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	_ = s.app.View(func(sess *app.Session) error {
		names := sess.Cache.ListTables()
		out := make([]TableSummary, 0, len(names))
		for _, name := range names {
			meta, err := sess.Cache.Get(name)
			if err != nil {
				continue
			}
			out = append(out, TableSummary{Name: name, RowCount: meta.RowCount})
		}
		writeJSON(w, http.StatusOK, out)
		return nil
	})
}

func (s *Server) handleDescribeTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	err := s.app.View(func(sess *app.Session) error {
		entry, err := sess.Cache.Entry(table)
		if err != nil {
			if errs.IsCacheMiss(err) {
				return errs.UnknownTable(table)
			}
			return err
		}
		writeJSON(w, http.StatusOK, TableDetail{TableMetadata: entry.Meta, Semantics: entry.Semantics})
		return nil
	})
	if err != nil {
		respondError(w, r, err)
	}
}

func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	table := chi.URLParam(r, "table")

	err = s.app.View(func(sess *app.Session) error {
		page, err := sess.Engine.ListRows(r.Context(), table, q)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, page)
		return nil
	})
	if err != nil {
		respondError(w, r, err)
	}
}

// parseListQuery reads paging, sorting, search and column filters from
// the query string. Every unreserved parameter is an equality filter.
func parseListQuery(r *http.Request) (crud.ListQuery, error) {
	values := r.URL.Query()
	q := crud.ListQuery{
		Sort:   values.Get("sort"),
		Search: values.Get("q"),
	}

	var err error
	if v := values.Get("page"); v != "" {
		if q.Page, err = strconv.Atoi(v); err != nil {
			return q, errs.Validation("", "", fmt.Sprintf("page %q is not a number", v))
		}
	}
	if v := values.Get("page_size"); v != "" {
		if q.PageSize, err = strconv.Atoi(v); err != nil {
			return q, errs.Validation("", "", fmt.Sprintf("page_size %q is not a number", v))
		}
	}
	if v := values.Get("desc"); v != "" {
		if q.Desc, err = cast.ToBoolE(v); err != nil {
			return q, errs.Validation("", "", fmt.Sprintf("desc %q is not a boolean", v))
		}
	}
	if v := values.Get("include_deleted"); v != "" {
		if q.IncludeDeleted, err = cast.ToBoolE(v); err != nil {
			return q, errs.Validation("", "", fmt.Sprintf("include_deleted %q is not a boolean", v))
		}
	}

	for key, vals := range values {
		if reservedParams[key] || len(vals) == 0 {
			continue
		}
		if q.Filters == nil {
			q.Filters = make(map[string]any)
		}
		q.Filters[key] = vals[0]
	}
	return q, nil
}

func (s *Server) handleGetRow(w http.ResponseWriter, r *http.Request) {
	table, pk := chi.URLParam(r, "table"), chi.URLParam(r, "pk")
	err := s.app.View(func(sess *app.Session) error {
		row, err := sess.Engine.GetRow(r.Context(), table, pk)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, row)
		return nil
	})
	if err != nil {
		respondError(w, r, err)
	}
}

func (s *Server) handleCreateRow(w http.ResponseWriter, r *http.Request) {
	data, err := decodeObject(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	table := chi.URLParam(r, "table")

	err = s.app.View(func(sess *app.Session) error {
		id, err := sess.Engine.CreateRow(r.Context(), table, data, currentUser(r))
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id})
		return nil
	})
	if err != nil {
		respondError(w, r, err)
	}
}

func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	data, err := decodeObject(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	table, pk := chi.URLParam(r, "table"), chi.URLParam(r, "pk")

	err = s.app.View(func(sess *app.Session) error {
		row, err := sess.Engine.UpdateRow(r.Context(), table, pk, data, currentUser(r))
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, row)
		return nil
	})
	if err != nil {
		respondError(w, r, err)
	}
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	table, pk := chi.URLParam(r, "table"), chi.URLParam(r, "pk")
	err := s.app.View(func(sess *app.Session) error {
		return sess.Engine.DeleteRow(r.Context(), table, pk)
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	modeParam := r.URL.Query().Get("mode")
	if modeParam == "" {
		modeParam = string(crud.FormCreate)
	}
	mode, err := crud.ParseFormMode(modeParam)
	if err != nil {
		respondError(w, r, err)
		return
	}
	table := chi.URLParam(r, "table")

	err = s.app.View(func(sess *app.Session) error {
		fields, err := sess.Engine.FormFields(r.Context(), table, mode, currentUser(r))
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{"table": table, "mode": mode, "fields": fields})
		return nil
	})
	if err != nil {
		respondError(w, r, err)
	}
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	err := s.app.View(func(sess *app.Session) error {
		if err := sess.Cache.RefreshAll(r.Context()); err != nil {
			return err
		}
		tables := sess.Cache.ListTables()
		logger.FromContext(r.Context()).With().Int("tables", len(tables)).Logger().Info("metadata refreshed")
		writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
		return nil
	})
	if err != nil {
		respondError(w, r, err)
	}
}

func (s *Server) handleRefreshTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	err := s.app.View(func(sess *app.Session) error {
		if err := sess.Cache.Refresh(r.Context(), table); err != nil {
			return err
		}
		entry, err := sess.Cache.Entry(table)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, TableDetail{TableMetadata: entry.Meta, Semantics: entry.Semantics})
		return nil
	})
	if err != nil {
		respondError(w, r, err)
	}
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	err := s.app.View(func(sess *app.Session) error {
		return sess.Cache.InvalidateAll(r.Context())
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	names, err := s.app.Available(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current": s.app.Current().Name, "databases": names})
}

func (s *Server) handleLoadDatabase(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.app.SwitchTarget(r.Context(), name); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current": name,
		"tables":  s.app.Current().Cache.ListTables(),
	})
}

// decodeObject reads a JSON object body. Numbers stay json.Number so the
// engine can coerce them per column.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(http.MaxBytesReader(w, r.Body, maxBodyBytes)); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "cannot read request body", err)
	}

	dec := json.NewDecoder(&buf)
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "request body must be a JSON object", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}
