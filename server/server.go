// Package server exposes the dispatcher as an MCP server over the official
// go-sdk. It owns no CouchDB semantics: tool declarations, result
// rendering, and the stdio transport live here, everything else is the
// dispatcher's.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/couchmcp/couchmcp"
)

const (
	serverName = "couchdb-mcp-server"
	// Version is reported to clients during the MCP handshake.
	Version = "0.2.0"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a structured logger for protocol-level events. If not
// set, no logs are emitted.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// nopLogger discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Server bridges MCP tool calls to a couchmcp.Handler. Every registered
// tool routes through the same dispatch path, so the error taxonomy is the
// single source of failure shapes on the wire.
type Server struct {
	handler couchmcp.Handler
	mcp     *mcp.Server
	logger  *slog.Logger
}

// New builds the MCP server and registers the eleven CouchDB tools.
func New(h couchmcp.Handler, opts ...Option) *Server {
	s := &Server{handler: h, logger: nopLogger}
	for _, opt := range opts {
		opt(s)
	}

	srv := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: Version}, nil)
	for _, tool := range tools() {
		srv.AddTool(tool, s.call(tool.Name))
	}
	s.mcp = srv
	return s
}

// Run serves MCP over stdio until ctx is cancelled or stdin closes.
// Anything the process wants to log must go to stderr; stdout belongs to
// the protocol.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "name", serverName, "version", Version)
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// call builds the tool handler for one operation. The dispatcher returns
// taxonomy errors as values; here they become IsError results with a
// structured payload, never protocol faults, so the calling agent can
// branch on the kind.
func (s *Server) call(operation string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := s.handler.Dispatch(ctx, operation, rawArguments(req))
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(out)
	}
}

// rawArguments extracts the argument bag as raw JSON. Raw tool handlers
// receive a json.RawMessage from the SDK; anything else (tests calling
// in-process, clients sending decoded maps) is re-marshalled.
func rawArguments(req *mcp.CallToolRequest) json.RawMessage {
	switch args := any(req.Params.Arguments).(type) {
	case nil:
		return nil
	case json.RawMessage:
		return args
	default:
		raw, err := json.Marshal(args)
		if err != nil {
			return nil
		}
		return raw
	}
}

func successResult(out any) (*mcp.CallToolResult, error) {
	text, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errorResult(&couchmcp.Error{
			Kind:    couchmcp.KindBackendError,
			Message: "encode result: " + err.Error(),
		}), nil
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
		StructuredContent: out,
	}, nil
}

// errorPayload is the wire shape of a failed call. Status is present only
// when the backend produced the failure.
type errorPayload struct {
	Error  string        `json:"error"`
	Kind   couchmcp.Kind `json:"kind"`
	Status int           `json:"status,omitempty"`
}

func errorResult(err error) *mcp.CallToolResult {
	payload := errorPayload{Error: err.Error(), Kind: couchmcp.KindBackendError}
	var e *couchmcp.Error
	if errors.As(err, &e) {
		payload = errorPayload{Error: e.Message, Kind: e.Kind, Status: e.Status}
	}
	text, _ := json.MarshalIndent(payload, "", "  ")
	return &mcp.CallToolResult{
		IsError:           true,
		Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
		StructuredContent: payload,
	}
}
