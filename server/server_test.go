package server

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/couchmcp/couchmcp"
	"github.com/couchmcp/couchmcp/couchtest"
)

// startSession wires the server to an in-memory MCP client and returns the
// connected client session.
func startSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	srv := New(couchmcp.NewDispatcher(couchtest.NewFake()))

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := srv.mcp.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "couchmcp-test", Version: "0.0.0"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = clientSession.Close() })
	return clientSession
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

// structured returns the result's structured content as a map.
func structured(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	m, ok := res.StructuredContent.(map[string]any)
	if !ok {
		t.Fatalf("structured content is %T, want map", res.StructuredContent)
	}
	return m
}

func TestListToolsExposesAllOperations(t *testing.T) {
	cs := startSession(t)

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, tool := range res.Tools {
		got[tool.Name] = true
		if tool.Description == "" {
			t.Errorf("tool %s has no description", tool.Name)
		}
		if tool.InputSchema == nil {
			t.Errorf("tool %s has no input schema", tool.Name)
		}
	}
	ops := couchmcp.Operations()
	if len(got) != len(ops) {
		t.Fatalf("listed %d tools, want %d", len(got), len(ops))
	}
	for _, op := range ops {
		if !got[op] {
			t.Errorf("operation %s not listed", op)
		}
	}
}

func TestCallToolSuccessShape(t *testing.T) {
	cs := startSession(t)

	res := callTool(t, cs, couchmcp.OpCreateDatabase, map[string]any{"name": "users"})
	if res.IsError {
		t.Fatalf("unexpected error result: %v", res.Content)
	}

	m := structured(t, res)
	if m["ok"] != true || m["database"] != "users" {
		t.Errorf("structured content = %v", m)
	}

	// The text content carries the same payload as indented JSON.
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want TextContent", res.Content[0])
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(text.Text), &decoded); err != nil {
		t.Fatalf("text content is not JSON: %v", err)
	}
	if decoded["database"] != "users" {
		t.Errorf("text payload = %v", decoded)
	}
	if !strings.Contains(text.Text, "\n  ") {
		t.Error("text content should be indented")
	}
}

func TestCallToolErrorIsDataNotFault(t *testing.T) {
	cs := startSession(t)
	callTool(t, cs, couchmcp.OpCreateDatabase, map[string]any{"name": "users"})

	// Update without _rev: rejected by the dispatcher before any backend
	// work, surfaced as an IsError result, not a protocol error.
	res := callTool(t, cs, couchmcp.OpUpdateDocument, map[string]any{
		"database": "users",
		"doc_id":   "u1",
		"document": map[string]any{"role": "admin"},
	})
	if !res.IsError {
		t.Fatal("expected IsError result")
	}
	m := structured(t, res)
	if m["kind"] != string(couchmcp.KindInvalidArgument) {
		t.Errorf("kind = %v, want %s", m["kind"], couchmcp.KindInvalidArgument)
	}
	if msg, _ := m["error"].(string); msg == "" {
		t.Error("error message missing")
	}
}

func TestCallToolBackendErrorCarriesStatus(t *testing.T) {
	cs := startSession(t)

	res := callTool(t, cs, couchmcp.OpGetDocument, map[string]any{
		"database": "nope",
		"doc_id":   "u1",
	})
	if !res.IsError {
		t.Fatal("expected IsError result")
	}
	m := structured(t, res)
	if m["kind"] != string(couchmcp.KindNotFound) {
		t.Errorf("kind = %v, want %s", m["kind"], couchmcp.KindNotFound)
	}
	if m["status"] != float64(404) {
		t.Errorf("status = %v, want 404", m["status"])
	}
}

// The full optimistic-concurrency round trip over the wire: stale revision
// conflicts, fresh revision succeeds with a new distinct token.
func TestRevisionContractOverMCP(t *testing.T) {
	cs := startSession(t)

	callTool(t, cs, couchmcp.OpCreateDatabase, map[string]any{"name": "users"})

	created := structured(t, callTool(t, cs, couchmcp.OpCreateDocument, map[string]any{
		"database": "users",
		"doc_id":   "u1",
		"document": map[string]any{"type": "user", "role": "admin"},
	}))
	rev1, _ := created["rev"].(string)
	if rev1 == "" {
		t.Fatalf("no rev in create result: %v", created)
	}

	search := structured(t, callTool(t, cs, couchmcp.OpSearchDocuments, map[string]any{
		"database": "users",
		"query":    map[string]any{"type": "user"},
	}))
	if search["count"] != float64(1) {
		t.Fatalf("search count = %v, want 1", search["count"])
	}

	// First update consumes rev1.
	updated := structured(t, callTool(t, cs, couchmcp.OpUpdateDocument, map[string]any{
		"database": "users",
		"doc_id":   "u1",
		"document": map[string]any{"_rev": rev1, "type": "user", "role": "moderator"},
	}))
	rev2, _ := updated["rev"].(string)
	if rev2 == "" || rev2 == rev1 {
		t.Fatalf("update rev = %q, want new token distinct from %q", rev2, rev1)
	}

	// Replaying the stale revision must conflict, never overwrite.
	conflict := callTool(t, cs, couchmcp.OpUpdateDocument, map[string]any{
		"database": "users",
		"doc_id":   "u1",
		"document": map[string]any{"_rev": rev1, "type": "user", "role": "intruder"},
	})
	if !conflict.IsError {
		t.Fatal("stale revision update should fail")
	}
	if m := structured(t, conflict); m["kind"] != string(couchmcp.KindRevisionConflict) {
		t.Errorf("kind = %v, want %s", m["kind"], couchmcp.KindRevisionConflict)
	}

	// The current revision still works.
	final := structured(t, callTool(t, cs, couchmcp.OpUpdateDocument, map[string]any{
		"database": "users",
		"doc_id":   "u1",
		"document": map[string]any{"_rev": rev2, "type": "user", "role": "moderator"},
	}))
	if rev3, _ := final["rev"].(string); rev3 == "" || rev3 == rev2 {
		t.Errorf("final rev = %q, want new token distinct from %q", rev3, rev2)
	}
}
