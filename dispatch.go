package couchmcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/couchmcp/couchmcp/mango"
)

// Handler dispatches a single tool call. *Dispatcher implements it;
// observer.WrapDispatcher decorates it.
type Handler interface {
	Dispatch(ctx context.Context, operation string, args json.RawMessage) (any, error)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets a structured logger. When set, the dispatcher emits a
// debug line per call with operation, status and timing. If not set, no
// logs are emitted.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithRecorder sets the audit recorder invoked after every call.
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithDefaultLimit overrides the page limit applied when the caller omits
// one.
func WithDefaultLimit(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.defaultLimit = n
		}
	}
}

// nopLogger discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Dispatcher routes tool calls to a Backend. It holds no cross-call state:
// no sessions, no cached revisions, no result cache. Calls may run
// concurrently; all consistency is the backend's.
type Dispatcher struct {
	backend      Backend
	logger       *slog.Logger
	recorder     Recorder
	defaultLimit int
}

// NewDispatcher builds a dispatcher over the given backend.
func NewDispatcher(b Backend, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		backend:      b,
		logger:       nopLogger,
		recorder:     NopRecorder{},
		defaultLimit: DefaultLimit,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ Handler = (*Dispatcher)(nil)

// zeroMatchNote points the agent at a way to distinguish "no match" from
// "empty database".
const zeroMatchNote = "No documents matched the query. To verify documents exist, use couchdb_list_documents with include_docs=true"

// Dispatch validates and executes one operation. Every failure is returned
// as a *Error; nothing is retried and nothing panics across this boundary.
func (d *Dispatcher) Dispatch(ctx context.Context, operation string, args json.RawMessage) (any, error) {
	start := time.Now()
	out, err := d.dispatch(ctx, operation, args)
	err = normalizeErr(err)

	status := "ok"
	if err != nil {
		status = string(KindOf(err))
	}
	d.logger.Debug("dispatch", "op", operation, "status", status,
		"duration_ms", time.Since(start).Milliseconds())
	d.record(ctx, operation, args, status, err)

	return out, err
}

func (d *Dispatcher) dispatch(ctx context.Context, operation string, args json.RawMessage) (any, error) {
	switch operation {
	case OpListDatabases:
		return d.listDatabases(ctx)
	case OpCreateDatabase:
		return d.createDatabase(ctx, args)
	case OpDeleteDatabase:
		return d.deleteDatabase(ctx, args)
	case OpCreateDocument:
		return d.createDocument(ctx, args)
	case OpGetDocument:
		return d.getDocument(ctx, args)
	case OpUpdateDocument:
		return d.updateDocument(ctx, args)
	case OpDeleteDocument:
		return d.deleteDocument(ctx, args)
	case OpSearchDocuments:
		return d.searchDocuments(ctx, args)
	case OpListDocuments:
		return d.listDocuments(ctx, args)
	case OpCreateIndex:
		return d.createIndex(ctx, args)
	case OpListIndexes:
		return d.listIndexes(ctx, args)
	default:
		return nil, Errorf(KindUnknownOperation, "unknown operation %q", operation)
	}
}

func (d *Dispatcher) listDatabases(ctx context.Context) (any, error) {
	names, err := d.backend.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return DatabaseList{Databases: names, Count: len(names)}, nil
}

func (d *Dispatcher) createDatabase(ctx context.Context, args json.RawMessage) (any, error) {
	var a databaseNameArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireString("name", a.Name); err != nil {
		return nil, err
	}
	if err := d.backend.CreateDatabase(ctx, a.Name); err != nil {
		return nil, err
	}
	return Ack{OK: true, Database: a.Name}, nil
}

func (d *Dispatcher) deleteDatabase(ctx context.Context, args json.RawMessage) (any, error) {
	var a databaseNameArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireString("name", a.Name); err != nil {
		return nil, err
	}
	if err := d.backend.DeleteDatabase(ctx, a.Name); err != nil {
		return nil, err
	}
	return Ack{OK: true, Database: a.Name}, nil
}

func (d *Dispatcher) createDocument(ctx context.Context, args json.RawMessage) (any, error) {
	var a createDocumentArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireString("database", a.Database); err != nil {
		return nil, err
	}
	if a.Document == nil {
		return nil, Errorf(KindInvalidArgument, "document is required")
	}

	// The document's own _id wins over the doc_id argument.
	doc := make(map[string]any, len(a.Document)+1)
	if a.DocID != "" {
		doc["_id"] = a.DocID
	}
	for k, v := range a.Document {
		doc[k] = v
	}

	return d.backend.CreateDocument(ctx, a.Database, doc)
}

func (d *Dispatcher) getDocument(ctx context.Context, args json.RawMessage) (any, error) {
	var a getDocumentArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireString("database", a.Database); err != nil {
		return nil, err
	}
	if err := requireString("doc_id", a.DocID); err != nil {
		return nil, err
	}
	return d.backend.GetDocument(ctx, a.Database, a.DocID)
}

func (d *Dispatcher) updateDocument(ctx context.Context, args json.RawMessage) (any, error) {
	var a updateDocumentArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireString("database", a.Database); err != nil {
		return nil, err
	}
	if err := requireString("doc_id", a.DocID); err != nil {
		return nil, err
	}
	if a.Document == nil {
		return nil, Errorf(KindInvalidArgument, "document is required")
	}
	// The revision must come from the caller. Fetching the current one
	// here would turn a conflict into a silent overwrite.
	if rev, _ := a.Document["_rev"].(string); rev == "" {
		return nil, Errorf(KindInvalidArgument, "document must include the current _rev; get the document and retry with its revision")
	}

	doc := make(map[string]any, len(a.Document)+1)
	for k, v := range a.Document {
		doc[k] = v
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = a.DocID
	}

	return d.backend.UpdateDocument(ctx, a.Database, a.DocID, doc)
}

func (d *Dispatcher) deleteDocument(ctx context.Context, args json.RawMessage) (any, error) {
	var a deleteDocumentArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireString("database", a.Database); err != nil {
		return nil, err
	}
	if err := requireString("doc_id", a.DocID); err != nil {
		return nil, err
	}
	if a.Rev == "" {
		return nil, Errorf(KindInvalidArgument, "rev is required; get the document and pass its current revision")
	}
	return d.backend.DeleteDocument(ctx, a.Database, a.DocID, a.Rev)
}

func (d *Dispatcher) searchDocuments(ctx context.Context, args json.RawMessage) (any, error) {
	var a searchDocumentsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireString("database", a.Database); err != nil {
		return nil, err
	}
	if len(a.Query) == 0 {
		return nil, Errorf(KindInvalidArgument, "query is required")
	}
	sel, err := mango.Parse(a.Query)
	if err != nil {
		return nil, Errorf(KindInvalidArgument, "invalid selector: %v", err)
	}
	window, err := resolveWindow(a.Limit, a.Skip, d.defaultLimit)
	if err != nil {
		return nil, err
	}
	selector, err := json.Marshal(sel)
	if err != nil {
		return nil, Errorf(KindInvalidArgument, "invalid selector: %v", err)
	}

	res, err := d.backend.Find(ctx, a.Database, FindQuery{
		Selector: selector,
		Limit:    window.Limit,
		Skip:     window.Skip,
	})
	if err != nil {
		return nil, err
	}

	out := SearchResult{Docs: res.Docs, Count: len(res.Docs), Warning: res.Warning}
	if out.Docs == nil {
		out.Docs = []map[string]any{}
	}
	if out.Count == 0 {
		out.Note = zeroMatchNote
	}
	return out, nil
}

func (d *Dispatcher) listDocuments(ctx context.Context, args json.RawMessage) (any, error) {
	var a listDocumentsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireString("database", a.Database); err != nil {
		return nil, err
	}
	window, err := resolveWindow(a.Limit, a.Skip, d.defaultLimit)
	if err != nil {
		return nil, err
	}

	res, err := d.backend.AllDocs(ctx, a.Database, AllDocsQuery{
		Limit:       window.Limit,
		Skip:        window.Skip,
		IncludeDocs: a.IncludeDocs,
	})
	if err != nil {
		return nil, err
	}

	docs := make([]map[string]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		if a.IncludeDocs {
			docs = append(docs, row.Doc)
			continue
		}
		docs = append(docs, map[string]any{
			"id":    row.ID,
			"key":   row.Key,
			"value": row.Value,
		})
	}
	return DocumentList{Documents: docs, Count: len(docs)}, nil
}

func (d *Dispatcher) createIndex(ctx context.Context, args json.RawMessage) (any, error) {
	var a createIndexArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireString("database", a.Database); err != nil {
		return nil, err
	}
	spec := IndexSpec{Fields: a.Fields, Name: a.IndexName}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return d.backend.CreateIndex(ctx, a.Database, spec)
}

func (d *Dispatcher) listIndexes(ctx context.Context, args json.RawMessage) (any, error) {
	var a listIndexesArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireString("database", a.Database); err != nil {
		return nil, err
	}
	res, err := d.backend.ListIndexes(ctx, a.Database)
	if err != nil {
		return nil, err
	}
	indexes := res.Indexes
	if indexes == nil {
		indexes = []Index{}
	}
	return IndexListing{Indexes: indexes, Count: len(indexes), TotalRows: res.TotalRows}, nil
}

// normalizeErr guarantees the taxonomy at the dispatch boundary: anything a
// backend returns outside it is reported as a backend error.
func normalizeErr(err error) error {
	if err == nil || KindOf(err) != "" {
		return err
	}
	return &Error{Kind: KindBackendError, Message: err.Error()}
}

// auditProbe pulls the identifying fields out of the raw arguments without
// re-running per-operation decoding.
type auditProbe struct {
	Database string `json:"database"`
	Name     string `json:"name"`
	DocID    string `json:"doc_id"`
}

func (d *Dispatcher) record(ctx context.Context, operation string, args json.RawMessage, status string, err error) {
	var probe auditProbe
	_ = json.Unmarshal(args, &probe)
	db := probe.Database
	if db == "" {
		db = probe.Name
	}

	entry := AuditEntry{
		Time:      time.Now(),
		Operation: operation,
		Database:  db,
		DocID:     probe.DocID,
		Status:    status,
	}
	if err != nil {
		entry.Detail = err.Error()
	}
	if recErr := d.recorder.Record(ctx, entry); recErr != nil {
		d.logger.Warn("audit record failed", "op", operation, "err", recErr)
	}
}
