package feedback

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the corrections and review-metrics API.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/feedback", func(r chi.Router) {
		r.Post("/corrections", handleAddCorrection(store))
		r.Get("/corrections/{insightID}", handleListCorrections(store))
		r.Get("/accuracy", handleAccuracy(store))
		r.Get("/drift", handleDrift(store))
	})
}

func handleAddCorrection(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c Correction
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		err := store.Add(r.Context(), &c)
		if errors.Is(err, ErrUnknownInsight) {
			http.Error(w, `{"error":"insight not found"}`, http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(c)
	}
}

func handleListCorrections(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		corrections, err := store.ByInsight(r.Context(), chi.URLParam(r, "insightID"))
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		if corrections == nil {
			corrections = []*Correction{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(corrections)
	}
}

func handleAccuracy(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accuracy, err := store.Accuracy(r.Context())
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		if accuracy == nil {
			accuracy = []TaskAccuracy{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(accuracy)
	}
}

func handleDrift(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		window := 30 * 24 * time.Hour
		if v := r.URL.Query().Get("window"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				http.Error(w, `{"error":"invalid window"}`, http.StatusBadRequest)
				return
			}
			window = d
		}
		report, err := store.SentimentDrift(r.Context(), window)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}
