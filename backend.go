package couchmcp

import (
	"context"
	"encoding/json"
	"time"
)

// Backend is the document-database collaborator. The couch package
// implements it over CouchDB's HTTP API; couchtest provides an in-memory
// fake for tests. Every method issues at most one backend request and
// returns taxonomy errors (*Error) on failure.
type Backend interface {
	ListDatabases(ctx context.Context) ([]string, error)
	CreateDatabase(ctx context.Context, name string) error
	DeleteDatabase(ctx context.Context, name string) error

	// CreateDocument stores a new document. When doc carries a non-empty
	// "_id" the backend must use it; otherwise the backend generates one.
	CreateDocument(ctx context.Context, db string, doc map[string]any) (DocMeta, error)
	GetDocument(ctx context.Context, db, id string) (map[string]any, error)
	// UpdateDocument replaces the document at id. The doc must already
	// carry the current "_rev"; a mismatch yields KindRevisionConflict.
	UpdateDocument(ctx context.Context, db, id string, doc map[string]any) (DocMeta, error)
	DeleteDocument(ctx context.Context, db, id, rev string) (DocMeta, error)

	Find(ctx context.Context, db string, query FindQuery) (FindResult, error)
	AllDocs(ctx context.Context, db string, query AllDocsQuery) (AllDocsResult, error)

	CreateIndex(ctx context.Context, db string, spec IndexSpec) (IndexResult, error)
	ListIndexes(ctx context.Context, db string) (IndexList, error)
}

// DocMeta acknowledges a document mutation: the id and the revision the
// backend assigned.
type DocMeta struct {
	OK  bool   `json:"ok"`
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

// FindQuery is a Mango query: a validated selector in the backend's wire
// form plus a resolved page window.
type FindQuery struct {
	Selector json.RawMessage `json:"selector"`
	Limit    int             `json:"limit"`
	Skip     int             `json:"skip"`
}

// FindResult carries matched documents and any planner warning the backend
// reported (e.g. "no matching index"), verbatim.
type FindResult struct {
	Docs    []map[string]any `json:"docs"`
	Warning string           `json:"warning,omitempty"`
}

// AllDocsQuery pages through a database's documents in id order.
type AllDocsQuery struct {
	Limit       int
	Skip        int
	IncludeDocs bool
}

// AllDocsRow is one backend row: id/key/value metadata, plus the full
// document when requested.
type AllDocsRow struct {
	ID    string         `json:"id"`
	Key   string         `json:"key"`
	Value map[string]any `json:"value,omitempty"`
	Doc   map[string]any `json:"doc,omitempty"`
}

// AllDocsResult is the backend's document listing in wire shape.
type AllDocsResult struct {
	TotalRows int          `json:"total_rows"`
	Offset    int          `json:"offset"`
	Rows      []AllDocsRow `json:"rows"`
}

// IndexResult acknowledges index creation. Result is "created" or
// "exists" (creation is idempotent at the backend).
type IndexResult struct {
	Result string `json:"result"`
	ID     string `json:"id"`
	Name   string `json:"name"`
}

// Index describes one backend index. DDoc is nil for the built-in
// primary index.
type Index struct {
	DDoc *string  `json:"ddoc"`
	Name string   `json:"name"`
	Type string   `json:"type"`
	Def  IndexDef `json:"def"`
}

// IndexDef holds the indexed fields in order, each mapped to its sort
// direction as the backend reports it.
type IndexDef struct {
	Fields []map[string]string `json:"fields"`
}

// IndexList is the backend's index listing.
type IndexList struct {
	TotalRows int     `json:"total_rows"`
	Indexes   []Index `json:"indexes"`
}

// AuditEntry records one dispatched call for the audit trail.
type AuditEntry struct {
	Time      time.Time
	Operation string
	Database  string
	DocID     string
	Status    string // "ok" or the error Kind
	Detail    string // error message, empty on success
}

// Recorder receives an entry after every dispatched call. Implementations
// must not block dispatch; failures are logged, never surfaced to the
// caller.
type Recorder interface {
	Record(ctx context.Context, e AuditEntry) error
}

// NopRecorder discards all entries.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, AuditEntry) error { return nil }

var _ Recorder = NopRecorder{}
