package mango

import (
	"encoding/json"
	"strings"
	"testing"
)

func mustParse(t *testing.T, raw string) *Selector {
	t.Helper()
	s, err := Parse(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Parse(%s): %v", raw, err)
	}
	return s
}

func TestParseValid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", `{}`},
		{"implicit equality", `{"name":"John"}`},
		{"implicit equality object operand", `{"address":{"city":"Oslo"}}`},
		{"explicit operator", `{"age":{"$gt":18}}`},
		{"multiple operators one field", `{"age":{"$gte":18,"$lt":65}}`},
		{"regex", `{"name":{"$regex":"^Jo"}}`},
		{"conjunction", `{"$and":[{"type":"user"},{"age":{"$gt":18}}]}`},
		{"disjunction", `{"$or":[{"role":"admin"},{"role":"moderator"}]}`},
		{"negation", `{"$nor":[{"deleted":true}]}`},
		{"nested combinators", `{"$and":[{"$or":[{"a":1},{"b":2}]},{"c":{"$lte":3}}]}`},
		{"fields and combinator together", `{"type":"user","$or":[{"a":1},{"b":2}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(json.RawMessage(tc.raw)); err != nil {
				t.Errorf("Parse(%s) = %v, want nil", tc.raw, err)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantMsg string
	}{
		{"not an object", `[1,2]`, "must be a JSON object"},
		{"scalar", `"x"`, "must be a JSON object"},
		{"unknown operator", `{"a":{"$near":1}}`, "unknown operator"},
		{"unknown combinator", `{"$xor":[{"a":1}]}`, "unknown combinator"},
		{"gt string operand", `{"age":{"$gt":"18"}}`, "numeric operand"},
		{"lte bool operand", `{"age":{"$lte":true}}`, "numeric operand"},
		{"regex number", `{"name":{"$regex":7}}`, "string pattern"},
		{"regex does not compile", `{"name":{"$regex":"["}}`, "$regex"},
		{"combinator not a list", `{"$and":{"a":1}}`, "list of selectors"},
		{"combinator element invalid", `{"$or":[{"a":{"$gt":"x"}}]}`, "numeric operand"},
		{"combinator as field operator", `{"a":{"$and":[{"b":1}]}}`, "cannot be applied"},
		{"mixed operator and plain keys", `{"a":{"$gt":1,"b":2}}`, "mixes operators"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(json.RawMessage(tc.raw))
			if err == nil {
				t.Fatalf("Parse(%s) succeeded, want error", tc.raw)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("Parse(%s) error = %q, want substring %q", tc.raw, err, tc.wantMsg)
			}
		})
	}
}

// Serializing a parsed selector and parsing it again must yield the same
// tree: the canonical form is a fixed point.
func TestCanonicalRoundTrip(t *testing.T) {
	cases := []string{
		`{}`,
		`{"name":"John"}`,
		`{"age":{"$gte":18,"$lt":65},"type":"user"}`,
		`{"$and":[{"a":1},{"$or":[{"b":2},{"c":{"$regex":"x+"}}]}]}`,
		`{"$nor":[{"deleted":true}],"status":"active"}`,
	}
	for _, raw := range cases {
		first := mustParse(t, raw)
		wire1, err := json.Marshal(first)
		if err != nil {
			t.Fatalf("marshal %s: %v", raw, err)
		}
		second, err := Parse(wire1)
		if err != nil {
			t.Fatalf("re-parse %s: %v", wire1, err)
		}
		wire2, err := json.Marshal(second)
		if err != nil {
			t.Fatalf("re-marshal %s: %v", wire1, err)
		}
		if string(wire1) != string(wire2) {
			t.Errorf("round trip of %s: %s != %s", raw, wire1, wire2)
		}
	}
}

func TestCanonicalFormNormalizesEquality(t *testing.T) {
	s := mustParse(t, `{"name":"John"}`)
	wire, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"name":{"$eq":"John"}}`
	if string(wire) != want {
		t.Errorf("canonical form = %s, want %s", wire, want)
	}
}

func TestMatchAll(t *testing.T) {
	if !mustParse(t, `{}`).MatchAll() {
		t.Error("{} should match all")
	}
	if mustParse(t, `{"a":1}`).MatchAll() {
		t.Error(`{"a":1} should not match all`)
	}
}

func TestMatches(t *testing.T) {
	doc := map[string]any{
		"type": "user",
		"name": "John",
		"age":  float64(30),
		"address": map[string]any{
			"city": "Oslo",
		},
		"tags": []any{"a", "b"},
	}

	cases := []struct {
		name     string
		selector string
		want     bool
	}{
		{"empty matches", `{}`, true},
		{"equality hit", `{"name":"John"}`, true},
		{"equality miss", `{"name":"Jane"}`, false},
		{"equality missing field", `{"email":"x"}`, false},
		{"implicit conjunction", `{"type":"user","name":"John"}`, true},
		{"implicit conjunction partial", `{"type":"user","name":"Jane"}`, false},
		{"array equality", `{"tags":["a","b"]}`, true},
		{"ne hit", `{"name":{"$ne":"Jane"}}`, true},
		{"ne miss", `{"name":{"$ne":"John"}}`, false},
		{"gt hit", `{"age":{"$gt":18}}`, true},
		{"gt boundary", `{"age":{"$gt":30}}`, false},
		{"gte boundary", `{"age":{"$gte":30}}`, true},
		{"lt miss", `{"age":{"$lt":30}}`, false},
		{"lte boundary", `{"age":{"$lte":30}}`, true},
		{"range", `{"age":{"$gte":18,"$lt":65}}`, true},
		{"comparison on non-numeric value", `{"name":{"$gt":5}}`, false},
		{"comparison on missing field", `{"height":{"$gt":5}}`, false},
		{"regex hit", `{"name":{"$regex":"^Jo"}}`, true},
		{"regex miss", `{"name":{"$regex":"^X"}}`, false},
		{"regex on non-string", `{"age":{"$regex":"3"}}`, false},
		{"dotted path", `{"address.city":"Oslo"}`, true},
		{"dotted path miss", `{"address.city":"Bergen"}`, false},
		{"and", `{"$and":[{"type":"user"},{"age":{"$gt":18}}]}`, true},
		{"and short circuit", `{"$and":[{"type":"bot"},{"age":{"$gt":18}}]}`, false},
		{"or", `{"$or":[{"type":"bot"},{"name":"John"}]}`, true},
		{"or all miss", `{"$or":[{"type":"bot"},{"name":"Jane"}]}`, false},
		{"or empty", `{"$or":[]}`, false},
		{"nor", `{"$nor":[{"type":"bot"}]}`, true},
		{"nor hit blocks", `{"$nor":[{"type":"user"}]}`, false},
		{"nested", `{"$and":[{"$or":[{"name":"Jane"},{"name":"John"}]},{"age":{"$gte":30}}]}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mustParse(t, tc.selector).Matches(doc); got != tc.want {
				t.Errorf("Matches(%s) = %v, want %v", tc.selector, got, tc.want)
			}
		})
	}
}

func TestFields(t *testing.T) {
	s := mustParse(t, `{"type":"user","$or":[{"age":{"$gt":18}},{"type":"bot","role":"admin"}]}`)
	got := s.Fields()
	want := []string{"age", "role", "type"}
	if len(got) != len(want) {
		t.Fatalf("Fields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Fields() = %v, want %v", got, want)
		}
	}
}
