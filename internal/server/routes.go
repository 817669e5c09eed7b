package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/finsight-ai/finsight/internal/documents"
	"github.com/finsight-ai/finsight/internal/ingest"
	"github.com/finsight-ai/finsight/internal/insights"
	"github.com/finsight-ai/finsight/internal/retriever"
	"github.com/finsight-ai/finsight/internal/tasks"
	"github.com/finsight-ai/finsight/internal/vectordb"
)

func (s *Server) registerRoutes(r chi.Router) {
	r.Route("/api/documents", func(r chi.Router) {
		r.Post("/", s.handleIngestDocument)
		r.Get("/", s.handleListDocuments)
		r.Get("/{id}", s.handleGetDocument)
		r.Get("/{id}/segments", s.handleGetSegments)
		r.Post("/{id}/extract", s.handleExtract)
		r.Get("/{id}/tasks", s.handleDocumentTasks)
		r.Get("/{id}/insights", s.handleDocumentInsights)
	})
	r.Get("/api/tasks/{id}", s.handleGetTask)
	r.Get("/api/search", s.handleSearch)
	r.Get("/api/ws/tasks", s.handleTaskStream)
}

type ingestRequest struct {
	Source     string `json:"source"`
	Text       string `json:"text"`
	Company    string `json:"company,omitempty"`
	DocType    string `json:"doc_type,omitempty"`
	FilingDate string `json:"filing_date,omitempty"`
	Force      bool   `json:"force,omitempty"`
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "source and text are required")
		return
	}

	var docType documents.DocType
	if req.DocType != "" {
		parsed, ok := documents.ParseDocType(req.DocType)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown doc_type")
			return
		}
		docType = parsed
	}

	doc, reingested, err := s.deps.Pipeline.Accept(r.Context(), ingest.Request{
		Source:     req.Source,
		Text:       req.Text,
		Company:    req.Company,
		DocType:    docType,
		FilingDate: req.FilingDate,
		Force:      req.Force,
	})
	if errors.Is(err, ingest.ErrUnchanged) {
		writeError(w, http.StatusConflict, "document content unchanged")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Segmentation and indexing run as a queued task; the caller polls the
	// document status or the task endpoint.
	task, err := s.deps.Runner.Submit(r.Context(), doc.ID, tasks.KindIngest, doc.Version)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"document":   doc,
		"task_id":    task.ID,
		"reingested": reingested,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docType := documents.DocType(r.URL.Query().Get("doc_type"))
	docs, err := s.deps.Documents.List(r.Context(), r.URL.Query().Get("company"), docType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []documents.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Documents.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, documents.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetSegments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Documents.Get(r.Context(), id); errors.Is(err, documents.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	segs, err := s.deps.Documents.Segments(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if segs == nil {
		segs = []documents.Segment{}
	}
	writeJSON(w, http.StatusOK, segs)
}

type extractRequest struct {
	Kinds []string `json:"kinds,omitempty"`
}

// handleExtract queues extraction work for a document and returns 202 with
// the queued tasks. Duplicate requests return the already-queued task for
// the same document version.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.deps.Documents.Get(r.Context(), id)
	if errors.Is(err, documents.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc.Status != documents.StatusProcessed {
		writeError(w, http.StatusConflict, "document is not processed yet")
		return
	}

	var req extractRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	kinds := []tasks.Kind{tasks.KindAnalyze}
	if len(req.Kinds) > 0 {
		kinds = kinds[:0]
		for _, k := range req.Kinds {
			kind := tasks.Kind(k)
			switch kind {
			case tasks.KindAnalyze, tasks.KindMetric, tasks.KindRisk, tasks.KindSentiment, tasks.KindSummary:
				kinds = append(kinds, kind)
			default:
				writeError(w, http.StatusBadRequest, "unknown task kind: "+k)
				return
			}
		}
	}

	queued := make([]*tasks.Task, 0, len(kinds))
	for _, kind := range kinds {
		task, err := s.deps.Runner.Submit(r.Context(), doc.ID, kind, doc.Version)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		queued = append(queued, task)
	}
	writeJSON(w, http.StatusAccepted, queued)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.deps.Tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, tasks.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDocumentTasks(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Tasks.ByDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*tasks.Task{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDocumentInsights(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Documents.Get(r.Context(), id); errors.Is(err, documents.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	list, err := s.deps.Insights.ByDocument(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*insights.Insight{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	k := 0
	if v := q.Get("k"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			k = n
		}
	}

	var filter vectordb.Filter
	if v := q.Get("company"); v != "" {
		filter.Company = &v
	}
	if v := q.Get("doc_type"); v != "" {
		filter.DocType = &v
	}

	hits, err := s.deps.Retriever.Retrieve(r.Context(), query, k, &filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hits == nil {
		hits = []retriever.Hit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
