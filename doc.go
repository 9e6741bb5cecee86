// Package couchmcp exposes a CouchDB server to AI agents as a fixed set of
// MCP tools: database lifecycle, document CRUD under CouchDB's revision
// contract, Mango-selector search, and index management.
//
// The package is the translation layer between the two protocols. It
// validates tool arguments, builds well-formed backend requests, and maps
// backend failures into a small stable error taxonomy ([Kind]) that the
// calling agent can branch on. Storage, revision generation, and query
// execution remain the backend's job; the adapter never caches state,
// never retries, and never fetches a revision on the caller's behalf.
//
// # Architecture
//
//	couchmcp    dispatcher, argument validation, error taxonomy
//	mango       selector validation and canonical serialization
//	couch       CouchDB HTTP client implementing [Backend]
//	server      MCP glue over the official go-sdk (stdio transport)
//	observer    OpenTelemetry instrumentation for dispatched calls
//	audit       optional SQLite audit trail of every call
//	couchtest   in-memory fake backend and a docker harness for tests
//
// # Usage
//
//	backend, err := couch.New("http://localhost:5984")
//	d := couchmcp.NewDispatcher(backend)
//	out, err := d.Dispatch(ctx, couchmcp.OpSearchDocuments,
//		json.RawMessage(`{"database":"users","query":{"type":"user"}}`))
//
// Every failure comes back as a *[Error]; inspect it with [KindOf] or
// errors.As. The dispatch boundary never panics and never raises backend
// faults through to the protocol layer.
package couchmcp
