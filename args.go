package couchmcp

import (
	"encoding/json"
	"errors"
)

// Argument bags arrive from the calling agent as loose JSON. Each
// operation decodes into its own struct and validates explicitly at the
// dispatch boundary; nothing is coerced. Pointer fields distinguish
// "omitted" from zero values where the difference matters (limit=0 is a
// valid request for zero entries).

type databaseNameArgs struct {
	Name string `json:"name"`
}

type createDocumentArgs struct {
	Database string         `json:"database"`
	Document map[string]any `json:"document"`
	DocID    string         `json:"doc_id"`
}

type getDocumentArgs struct {
	Database string `json:"database"`
	DocID    string `json:"doc_id"`
}

type updateDocumentArgs struct {
	Database string         `json:"database"`
	DocID    string         `json:"doc_id"`
	Document map[string]any `json:"document"`
}

type deleteDocumentArgs struct {
	Database string `json:"database"`
	DocID    string `json:"doc_id"`
	Rev      string `json:"rev"`
}

type searchDocumentsArgs struct {
	Database string          `json:"database"`
	Query    json.RawMessage `json:"query"`
	Limit    *int            `json:"limit"`
	Skip     *int            `json:"skip"`
}

type listDocumentsArgs struct {
	Database    string `json:"database"`
	Limit       *int   `json:"limit"`
	Skip        *int   `json:"skip"`
	IncludeDocs bool   `json:"include_docs"`
}

type createIndexArgs struct {
	Database  string   `json:"database"`
	Fields    []string `json:"fields"`
	IndexName string   `json:"index_name"`
}

type listIndexesArgs struct {
	Database string `json:"database"`
}

// decodeArgs unmarshals the raw argument bag into v. Type mismatches are
// argument errors, not faults: the agent sent a string where an object
// belongs, or similar.
func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return Errorf(KindInvalidArgument, "argument %q: unexpected JSON %s", typeErr.Field, typeErr.Value)
		}
		return Errorf(KindInvalidArgument, "malformed arguments: %v", err)
	}
	return nil
}

func requireString(name, value string) error {
	if value == "" {
		return Errorf(KindInvalidArgument, "%s is required", name)
	}
	return nil
}
