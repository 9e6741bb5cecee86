package couchmcp

// Operation names, as exposed to the calling agent. The set is fixed;
// dispatching any other name fails with KindUnknownOperation.
const (
	OpListDatabases   = "couchdb_list_databases"
	OpCreateDatabase  = "couchdb_create_database"
	OpDeleteDatabase  = "couchdb_delete_database"
	OpCreateDocument  = "couchdb_create_document"
	OpGetDocument     = "couchdb_get_document"
	OpUpdateDocument  = "couchdb_update_document"
	OpDeleteDocument  = "couchdb_delete_document"
	OpSearchDocuments = "couchdb_search_documents"
	OpListDocuments   = "couchdb_list_documents"
	OpCreateIndex     = "couchdb_create_index"
	OpListIndexes     = "couchdb_list_indexes"
)

// Operations returns all operation names in registration order.
func Operations() []string {
	return []string{
		OpListDatabases,
		OpCreateDatabase,
		OpDeleteDatabase,
		OpCreateDocument,
		OpGetDocument,
		OpUpdateDocument,
		OpDeleteDocument,
		OpSearchDocuments,
		OpListDocuments,
		OpCreateIndex,
		OpListIndexes,
	}
}
