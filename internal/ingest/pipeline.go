// Package ingest turns raw filing text into stored, segmented, indexed
// documents.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/finsight-ai/finsight/internal/documents"
	"github.com/finsight-ai/finsight/internal/segmenter"
	"github.com/finsight-ai/finsight/internal/vectordb"
)

// ErrUnchanged is returned when a source is re-ingested with identical
// content, so no work was done.
var ErrUnchanged = errors.New("document content unchanged")

// Request describes one document to ingest. Company, DocType, and
// FilingDate are optional; missing fields are recovered from the text.
type Request struct {
	Source     string
	Text       string
	Company    string
	DocType    documents.DocType
	FilingDate string
	Force      bool
}

// Result reports what Ingest did.
type Result struct {
	Document     *documents.Document
	SegmentCount int
	Reingested   bool
	Indexed      bool
}

// Pipeline runs the full ingestion flow: clean, extract metadata, segment,
// store, embed, index. The store is the source of truth; the vector index
// is a derived cache, so an indexing failure leaves the document processed
// but unindexed for later backfill.
type Pipeline struct {
	docs     *documents.Store
	index    vectordb.Index
	indexDir string
	logger   *zap.Logger
}

func NewPipeline(docs *documents.Store, index vectordb.Index, indexDir string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{docs: docs, index: index, indexDir: indexDir, logger: logger}
}

// IngestFile reads a file from disk and ingests it. The document type is
// guessed from the filename when the request leaves it empty.
func (p *Pipeline) IngestFile(ctx context.Context, path string, req Request) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	req.Source = path
	req.Text = string(data)
	return p.Ingest(ctx, req)
}

// Accept validates and stores one document in pending state without
// segmenting or indexing it, so upload requests can return immediately and
// the heavy work can run as a queued task. Re-submitting a source with
// changed content bumps the document version, which invalidates queued work
// against the old version; identical content returns ErrUnchanged unless
// Force is set. The reported bool is true when an existing document was
// superseded.
func (p *Pipeline) Accept(ctx context.Context, req Request) (*documents.Document, bool, error) {
	if req.Source == "" {
		return nil, false, errors.New("ingest: source is required")
	}

	text := segmenter.Clean(req.Text)
	if text == "" {
		return nil, false, errors.New("ingest: document is empty")
	}
	hash := contentHash(text)

	meta := segmenter.ExtractMetadata(text)
	if req.Company == "" {
		req.Company = meta.Company
	}
	if req.FilingDate == "" {
		req.FilingDate = meta.FilingDate
	}

	existing, err := p.docs.FindBySource(ctx, req.Source)
	switch {
	case err == nil:
		if existing.ContentHash == hash && !req.Force {
			return nil, false, fmt.Errorf("%s: %w", req.Source, ErrUnchanged)
		}
		if req.DocType == "" {
			req.DocType = existing.DocType
		}
		if _, err := p.docs.BumpVersion(ctx, existing.ID); err != nil {
			return nil, false, err
		}
		if err := p.docs.UpdateMetadata(ctx, existing.ID, req.Company, req.DocType, req.FilingDate, hash, text); err != nil {
			return nil, false, err
		}
		doc, err := p.docs.Get(ctx, existing.ID)
		if err != nil {
			return nil, false, err
		}
		return doc, true, nil
	case errors.Is(err, documents.ErrNotFound):
		if req.DocType == "" {
			req.DocType = documents.DocTypeGeneric
		}
		id, err := p.docs.Create(ctx, documents.Document{
			Company:     req.Company,
			DocType:     req.DocType,
			FilingDate:  req.FilingDate,
			Source:      req.Source,
			ContentHash: hash,
			RawText:     text,
		})
		if err != nil {
			return nil, false, err
		}
		doc, err := p.docs.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return doc, false, nil
	default:
		return nil, false, err
	}
}

// Process segments and indexes an accepted document. It is the body of the
// queued ingest task and is safe to re-run: segments are replaced wholesale
// and old vectors are cleared before new ones are added.
func (p *Pipeline) Process(ctx context.Context, documentID string) (*Result, error) {
	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	text, err := p.docs.RawText(ctx, documentID)
	if err != nil {
		return nil, err
	}

	segs := segmenter.Segment(text, doc.DocType)
	if err := p.docs.ReplaceSegments(ctx, doc.ID, segs); err != nil {
		p.docs.SetStatus(ctx, doc.ID, documents.StatusFailed, err.Error())
		return nil, fmt.Errorf("storing segments: %w", err)
	}
	stored, err := p.docs.Segments(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	result := &Result{Document: doc, SegmentCount: len(stored)}

	if err := p.indexSegments(ctx, doc, stored); err != nil {
		// The document is usable without the index; backfill picks it up.
		p.logger.Warn("indexing failed, document left unindexed",
			zap.String("document", doc.ID), zap.Error(err))
		p.docs.SetIndexed(ctx, doc.ID, false)
		return result, nil
	}

	if err := p.docs.SetIndexed(ctx, doc.ID, true); err != nil {
		return nil, err
	}
	result.Indexed = true
	return result, nil
}

// Ingest runs Accept and Process back to back. The CLI uses it so a shell
// invocation finishes with the document fully searchable.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	doc, reingested, err := p.Accept(ctx, req)
	if err != nil {
		return nil, err
	}
	result, err := p.Process(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	result.Reingested = reingested
	return result, nil
}

// Backfill indexes processed documents whose segments are missing from the
// vector index.
func (p *Pipeline) Backfill(ctx context.Context) (int, error) {
	pending, err := p.docs.NotIndexed(ctx)
	if err != nil {
		return 0, err
	}

	indexed := 0
	for i := range pending {
		doc := &pending[i]
		segs, err := p.docs.Segments(ctx, doc.ID)
		if err != nil {
			return indexed, err
		}
		if err := p.indexSegments(ctx, doc, segs); err != nil {
			return indexed, fmt.Errorf("backfilling %s: %w", doc.ID, err)
		}
		if err := p.docs.SetIndexed(ctx, doc.ID, true); err != nil {
			return indexed, err
		}
		indexed++
	}
	return indexed, nil
}

// Rebuild re-embeds every processed document into the index. Used after an
// embedding model change invalidates the persisted snapshot.
func (p *Pipeline) Rebuild(ctx context.Context) (int, error) {
	docs, err := p.docs.List(ctx, "", "")
	if err != nil {
		return 0, err
	}

	rebuilt := 0
	for i := range docs {
		doc := &docs[i]
		if doc.Status != documents.StatusProcessed {
			continue
		}
		segs, err := p.docs.Segments(ctx, doc.ID)
		if err != nil {
			return rebuilt, err
		}
		if err := p.indexSegments(ctx, doc, segs); err != nil {
			return rebuilt, fmt.Errorf("rebuilding %s: %w", doc.ID, err)
		}
		if err := p.docs.SetIndexed(ctx, doc.ID, true); err != nil {
			return rebuilt, err
		}
		rebuilt++
	}
	return rebuilt, nil
}

func (p *Pipeline) indexSegments(ctx context.Context, doc *documents.Document, segs []documents.Segment) error {
	if err := p.index.DeleteByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("clearing old vectors: %w", err)
	}

	entries := make([]vectordb.Entry, len(segs))
	for i, s := range segs {
		entries[i] = vectordb.Entry{
			SegmentID: s.ID,
			Text:      s.Text,
			Metadata: vectordb.EntryMetadata{
				DocumentID: doc.ID,
				Section:    s.Section,
				Ordinal:    s.Ordinal,
				Company:    doc.Company,
				DocType:    string(doc.DocType),
			},
		}
	}
	if err := p.index.AddSegments(ctx, entries); err != nil {
		return fmt.Errorf("embedding segments: %w", err)
	}

	if p.indexDir != "" {
		if err := p.index.Persist(ctx, p.indexDir); err != nil {
			return fmt.Errorf("persisting index: %w", err)
		}
	}
	return nil
}

func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
