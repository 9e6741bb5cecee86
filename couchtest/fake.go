// Package couchtest provides test collaborators for the adapter: an
// in-memory Backend fake with CouchDB's observable behaviors, and a docker
// harness that runs the real thing for integration tests.
package couchtest

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/couchmcp/couchmcp"
	"github.com/couchmcp/couchmcp/mango"
)

// plannerWarning matches the warning CouchDB's query planner attaches when
// no index can serve a selector.
const plannerWarning = "No matching index found, create an index to optimize query time."

// Fake is an in-memory couchmcp.Backend. It keeps CouchDB's contract where
// tests depend on it: revision checks on update/delete, id-ordered
// listings, Mango evaluation via the mango package, idempotent index
// creation, and the planner warning when no index covers a query. Safe for
// concurrent use.
type Fake struct {
	mu  sync.Mutex
	dbs map[string]*fakeDB
}

type fakeDB struct {
	docs    map[string]map[string]any
	indexes []fakeIndex
}

type fakeIndex struct {
	ddoc   string
	name   string
	fields []string
}

// NewFake returns an empty fake backend.
func NewFake() *Fake {
	return &Fake{dbs: map[string]*fakeDB{}}
}

var _ couchmcp.Backend = (*Fake)(nil)

func (f *Fake) ListDatabases(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.dbs))
	for name := range f.dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *Fake) CreateDatabase(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.dbs[name]; ok {
		return &couchmcp.Error{
			Kind:    couchmcp.KindBackendError,
			Status:  412,
			Message: "file_exists: The database could not be created, the file already exists.",
		}
	}
	f.dbs[name] = &fakeDB{docs: map[string]map[string]any{}}
	return nil
}

func (f *Fake) DeleteDatabase(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.dbs[name]; !ok {
		return errDatabaseMissing()
	}
	delete(f.dbs, name)
	return nil
}

func (f *Fake) CreateDocument(ctx context.Context, db string, doc map[string]any) (couchmcp.DocMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.database(db)
	if err != nil {
		return couchmcp.DocMeta{}, err
	}

	id, _ := doc["_id"].(string)
	if id == "" {
		id = revHash()
	}
	rev, _ := doc["_rev"].(string)
	existing, exists := d.docs[id]
	if exists && rev != existing["_rev"] {
		return couchmcp.DocMeta{}, errConflict()
	}
	if !exists && rev != "" {
		return couchmcp.DocMeta{}, errConflict()
	}

	next := nextRev(rev)
	stored := maps.Clone(doc)
	stored["_id"] = id
	stored["_rev"] = next
	d.docs[id] = stored
	return couchmcp.DocMeta{OK: true, ID: id, Rev: next}, nil
}

func (f *Fake) GetDocument(ctx context.Context, db, id string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.database(db)
	if err != nil {
		return nil, err
	}
	doc, ok := d.docs[id]
	if !ok {
		return nil, errDocumentMissing()
	}
	return maps.Clone(doc), nil
}

func (f *Fake) UpdateDocument(ctx context.Context, db, id string, doc map[string]any) (couchmcp.DocMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.database(db)
	if err != nil {
		return couchmcp.DocMeta{}, err
	}

	rev, _ := doc["_rev"].(string)
	existing, ok := d.docs[id]
	if !ok || rev != existing["_rev"] {
		// A PUT carrying a revision the backend has never issued, or a
		// stale one, is the same failure on the wire.
		return couchmcp.DocMeta{}, errConflict()
	}

	next := nextRev(rev)
	stored := maps.Clone(doc)
	stored["_id"] = id
	stored["_rev"] = next
	d.docs[id] = stored
	return couchmcp.DocMeta{OK: true, ID: id, Rev: next}, nil
}

func (f *Fake) DeleteDocument(ctx context.Context, db, id, rev string) (couchmcp.DocMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.database(db)
	if err != nil {
		return couchmcp.DocMeta{}, err
	}
	existing, ok := d.docs[id]
	if !ok {
		return couchmcp.DocMeta{}, errDocumentMissing()
	}
	if rev != existing["_rev"] {
		return couchmcp.DocMeta{}, errConflict()
	}
	delete(d.docs, id)
	return couchmcp.DocMeta{OK: true, ID: id, Rev: nextRev(rev)}, nil
}

func (f *Fake) Find(ctx context.Context, db string, query couchmcp.FindQuery) (couchmcp.FindResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.database(db)
	if err != nil {
		return couchmcp.FindResult{}, err
	}

	sel, err := mango.Parse(query.Selector)
	if err != nil {
		return couchmcp.FindResult{}, &couchmcp.Error{
			Kind:    couchmcp.KindBackendError,
			Status:  400,
			Message: fmt.Sprintf("invalid_selector: %v", err),
		}
	}

	var matched []map[string]any
	for _, id := range d.sortedIDs() {
		if sel.Matches(d.docs[id]) {
			matched = append(matched, maps.Clone(d.docs[id]))
		}
	}
	matched = window(matched, query.Limit, query.Skip)

	res := couchmcp.FindResult{Docs: matched}
	if !sel.MatchAll() && !d.served(sel.Fields()) {
		res.Warning = plannerWarning
	}
	return res, nil
}

func (f *Fake) AllDocs(ctx context.Context, db string, query couchmcp.AllDocsQuery) (couchmcp.AllDocsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.database(db)
	if err != nil {
		return couchmcp.AllDocsResult{}, err
	}

	ids := window(d.sortedIDs(), query.Limit, query.Skip)
	rows := make([]couchmcp.AllDocsRow, 0, len(ids))
	for _, id := range ids {
		doc := d.docs[id]
		row := couchmcp.AllDocsRow{
			ID:    id,
			Key:   id,
			Value: map[string]any{"rev": doc["_rev"]},
		}
		if query.IncludeDocs {
			row.Doc = maps.Clone(doc)
		}
		rows = append(rows, row)
	}
	return couchmcp.AllDocsResult{
		TotalRows: len(d.docs),
		Offset:    query.Skip,
		Rows:      rows,
	}, nil
}

func (f *Fake) CreateIndex(ctx context.Context, db string, spec couchmcp.IndexSpec) (couchmcp.IndexResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.database(db)
	if err != nil {
		return couchmcp.IndexResult{}, err
	}

	for _, idx := range d.indexes {
		if equalFields(idx.fields, spec.Fields) && (spec.Name == "" || spec.Name == idx.name) {
			return couchmcp.IndexResult{Result: "exists", ID: idx.ddoc, Name: idx.name}, nil
		}
	}

	frag := revHash()[:16]
	name := spec.Name
	if name == "" {
		name = frag
	}
	idx := fakeIndex{ddoc: "_design/" + frag, name: name, fields: append([]string(nil), spec.Fields...)}
	d.indexes = append(d.indexes, idx)
	return couchmcp.IndexResult{Result: "created", ID: idx.ddoc, Name: idx.name}, nil
}

func (f *Fake) ListIndexes(ctx context.Context, db string) (couchmcp.IndexList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, err := f.database(db)
	if err != nil {
		return couchmcp.IndexList{}, err
	}

	// CouchDB always reports the built-in primary index first.
	indexes := []couchmcp.Index{{
		DDoc: nil,
		Name: "_all_docs",
		Type: "special",
		Def:  couchmcp.IndexDef{Fields: []map[string]string{{"_id": "asc"}}},
	}}
	for _, idx := range d.indexes {
		ddoc := idx.ddoc
		fields := make([]map[string]string, 0, len(idx.fields))
		for _, fld := range idx.fields {
			fields = append(fields, map[string]string{fld: "asc"})
		}
		indexes = append(indexes, couchmcp.Index{
			DDoc: &ddoc,
			Name: idx.name,
			Type: "json",
			Def:  couchmcp.IndexDef{Fields: fields},
		})
	}
	return couchmcp.IndexList{TotalRows: len(indexes), Indexes: indexes}, nil
}

func (f *Fake) database(name string) (*fakeDB, error) {
	d, ok := f.dbs[name]
	if !ok {
		return nil, errDatabaseMissing()
	}
	return d, nil
}

func (d *fakeDB) sortedIDs() []string {
	ids := make([]string, 0, len(d.docs))
	for id := range d.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// served reports whether any JSON index prefix-covers the queried fields.
func (d *fakeDB) served(queryFields []string) bool {
	for _, idx := range d.indexes {
		spec := couchmcp.IndexSpec{Fields: idx.fields}
		if spec.Serves(queryFields) {
			return true
		}
	}
	return false
}

func window[T any](items []T, limit, skip int) []T {
	if skip >= len(items) {
		return nil
	}
	items = items[skip:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

func equalFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// nextRev bumps the generation counter and appends a fresh hash, matching
// CouchDB's N-hash revision shape.
func nextRev(current string) string {
	gen := 1
	if i := strings.IndexByte(current, '-'); i > 0 {
		if n, err := strconv.Atoi(current[:i]); err == nil {
			gen = n + 1
		}
	}
	return fmt.Sprintf("%d-%s", gen, revHash())
}

func revHash() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func errDatabaseMissing() error {
	return &couchmcp.Error{Kind: couchmcp.KindNotFound, Status: 404, Message: "not_found: Database does not exist."}
}

func errDocumentMissing() error {
	return &couchmcp.Error{Kind: couchmcp.KindNotFound, Status: 404, Message: "not_found: missing"}
}

func errConflict() error {
	return &couchmcp.Error{Kind: couchmcp.KindRevisionConflict, Status: 409, Message: "conflict: Document update conflict."}
}
