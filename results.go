package couchmcp

// Tool result shapes. Each is built fresh per dispatched call and rendered
// to the agent as indented JSON plus structured content.

// DatabaseList is the result of couchdb_list_databases.
type DatabaseList struct {
	Databases []string `json:"databases"`
	Count     int      `json:"count"`
}

// Ack acknowledges a database-level mutation.
type Ack struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
}

// SearchResult is the result of couchdb_search_documents. Warning carries
// the backend planner's message verbatim when present. Note is set when
// nothing matched, pointing the agent at couchdb_list_documents to verify
// the database isn't simply empty.
type SearchResult struct {
	Docs    []map[string]any `json:"docs"`
	Count   int              `json:"count"`
	Warning string           `json:"warning,omitempty"`
	Note    string           `json:"note,omitempty"`
}

// DocumentList is the result of couchdb_list_documents. Entries are
// id/key/value rows, or full documents when include_docs was set.
type DocumentList struct {
	Documents []map[string]any `json:"documents"`
	Count     int              `json:"count"`
}

// IndexListing is the result of couchdb_list_indexes. TotalRows is the
// backend's own count and may exceed Count if the backend pages.
type IndexListing struct {
	Indexes   []Index `json:"indexes"`
	Count     int     `json:"count"`
	TotalRows int     `json:"total_rows"`
}
