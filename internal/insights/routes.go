package insights

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the insights query API.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/insights", func(r chi.Router) {
		r.Get("/", handleQuery(store))
		r.Get("/{id}", handleGet(store))
	})
}

func handleQuery(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := Filter{}
		q := r.URL.Query()
		f.Company = q.Get("company")
		f.DocType = q.Get("doc_type")
		f.Metric = q.Get("metric")
		if v := q.Get("task"); v != "" {
			task, ok := ParseTask(v)
			if !ok {
				http.Error(w, `{"error":"unknown task"}`, http.StatusBadRequest)
				return
			}
			f.Task = task
		}
		if v := q.Get("since"); v != "" {
			t, err := parseQueryTime(v)
			if err != nil {
				http.Error(w, `{"error":"invalid since"}`, http.StatusBadRequest)
				return
			}
			f.Since = &t
		}
		if v := q.Get("until"); v != "" {
			t, err := parseQueryTime(v)
			if err != nil {
				http.Error(w, `{"error":"invalid until"}`, http.StatusBadRequest)
				return
			}
			f.Until = &t
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				f.Limit = n
			}
		}

		results, err := store.Query(r.Context(), f)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		if results == nil {
			results = []*Insight{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"insight not found"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(in)
	}
}

func parseQueryTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
