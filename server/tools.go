package server

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/couchmcp/couchmcp"
)

// tools returns the eleven tool declarations in dispatch order. Schemas are
// declarative only: argument validation happens in the dispatcher so that
// failures surface in the adapter's error taxonomy instead of as protocol
// schema faults.
func tools() []*mcp.Tool {
	database := prop("string", "Name of the database")

	return []*mcp.Tool{
		{
			Name:        couchmcp.OpListDatabases,
			Description: "List all databases in the CouchDB server",
			InputSchema: obj(map[string]*jsonschema.Schema{}),
		},
		{
			Name:        couchmcp.OpCreateDatabase,
			Description: "Create a new database",
			InputSchema: obj(map[string]*jsonschema.Schema{
				"name": prop("string", "Name of the database to create"),
			}, "name"),
		},
		{
			Name:        couchmcp.OpDeleteDatabase,
			Description: "Delete a database",
			InputSchema: obj(map[string]*jsonschema.Schema{
				"name": prop("string", "Name of the database to delete"),
			}, "name"),
		},
		{
			Name:        couchmcp.OpCreateDocument,
			Description: "Create a new document in a database",
			InputSchema: obj(map[string]*jsonschema.Schema{
				"database": database,
				"document": prop("object", "Document data as JSON object"),
				"doc_id":   prop("string", "Optional document ID (if not provided, CouchDB generates one)"),
			}, "database", "document"),
		},
		{
			Name:        couchmcp.OpGetDocument,
			Description: "Retrieve a document from a database",
			InputSchema: obj(map[string]*jsonschema.Schema{
				"database": database,
				"doc_id":   prop("string", "Document ID"),
			}, "database", "doc_id"),
		},
		{
			Name:        couchmcp.OpUpdateDocument,
			Description: "Update an existing document in a database",
			InputSchema: obj(map[string]*jsonschema.Schema{
				"database": database,
				"doc_id":   prop("string", "Document ID"),
				"document": prop("object", "Updated document data (must include _rev)"),
			}, "database", "doc_id", "document"),
		},
		{
			Name:        couchmcp.OpDeleteDocument,
			Description: "Delete a document from a database",
			InputSchema: obj(map[string]*jsonschema.Schema{
				"database": database,
				"doc_id":   prop("string", "Document ID"),
				"rev":      prop("string", "Document revision (_rev)"),
			}, "database", "doc_id", "rev"),
		},
		{
			Name: couchmcp.OpSearchDocuments,
			Description: "Search for documents in a database using a Mango query. " +
				"Works without indexes but creating indexes (via couchdb_create_index) improves performance significantly.",
			InputSchema: obj(map[string]*jsonschema.Schema{
				"database": database,
				"query":    prop("object", "Mango query selector (e.g., {'name': 'John'} for exact match, {'age': {'$gt': 18}} for comparisons)"),
				"limit":    prop("integer", "Maximum number of documents to return (default: 25)"),
				"skip":     prop("integer", "Number of documents to skip (default: 0)"),
			}, "database", "query"),
		},
		{
			Name:        couchmcp.OpListDocuments,
			Description: "List all documents in a database with their IDs and revisions",
			InputSchema: obj(map[string]*jsonschema.Schema{
				"database":     database,
				"limit":        prop("integer", "Maximum number of documents to return (default: 25)"),
				"skip":         prop("integer", "Number of documents to skip (default: 0)"),
				"include_docs": prop("boolean", "Include full document content (default: false)"),
			}, "database"),
		},
		{
			Name: couchmcp.OpCreateIndex,
			Description: "Create an index to improve Mango query performance. " +
				"While optional, indexes dramatically speed up queries and ensure reliable results. " +
				"Field order matters: an index on ['type', 'status'] serves queries on 'type' alone " +
				"or on 'type' and 'status' together, but not on 'status' alone.",
			InputSchema: obj(map[string]*jsonschema.Schema{
				"database": database,
				"fields": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Fields to index, in order (e.g., ['type', 'name']). A query is served only when its fields form a prefix of this list.",
				},
				"index_name": prop("string", "Optional name for the index"),
			}, "database", "fields"),
		},
		{
			Name:        couchmcp.OpListIndexes,
			Description: "List all indexes in a database",
			InputSchema: obj(map[string]*jsonschema.Schema{
				"database": database,
			}, "database"),
		},
	}
}

func prop(typ, desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: typ, Description: desc}
}

func obj(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}
