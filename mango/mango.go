// Package mango validates Mango-style query selectors and serializes them
// to the backend's wire form.
//
// A selector is a tree: leaf conditions (field, operator, operand) and the
// combinators $and, $or, $nor, each holding a list of sub-selectors. A bare
// field→value mapping is an implicit $eq, and the empty selector {} matches
// every document. Field names and string operands pass through verbatim and
// case-sensitively; the package never normalizes them.
//
// Parse checks structure only. Whether an index can serve the query is the
// backend planner's concern and is surfaced through its warning field, not
// decided here.
package mango

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Leaf operators. Comparison operators require numeric operands; $regex
// requires a pattern that compiles.
const (
	OpEq    = "$eq"
	OpNe    = "$ne"
	OpGt    = "$gt"
	OpGte   = "$gte"
	OpLt    = "$lt"
	OpLte   = "$lte"
	OpRegex = "$regex"
)

// Combinators. Each takes a list of sub-selectors.
const (
	OpAnd = "$and"
	OpOr  = "$or"
	OpNor = "$nor"
)

// Selector is a validated condition tree. The zero value is not valid;
// obtain one through Parse.
type Selector struct {
	fields []fieldCond
	combos []combo
}

type fieldCond struct {
	field string
	ops   []opCond
}

type opCond struct {
	op      string
	operand any
}

type combo struct {
	op   string
	subs []*Selector
}

// Parse validates raw as a selector object. Conditions are held in sorted
// field order so that serialization is canonical: parsing the output of
// MarshalJSON yields a structurally identical tree.
func Parse(raw json.RawMessage) (*Selector, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("selector must be a JSON object")
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, fmt.Errorf("selector must be a JSON object")
	}

	s := &Selector{}
	for _, key := range sortedKeys(m) {
		val := m[key]
		if strings.HasPrefix(key, "$") {
			c, err := parseCombo(key, val)
			if err != nil {
				return nil, err
			}
			s.combos = append(s.combos, c)
			continue
		}
		fc, err := parseField(key, val)
		if err != nil {
			return nil, err
		}
		s.fields = append(s.fields, fc)
	}
	return s, nil
}

func parseCombo(op string, raw json.RawMessage) (combo, error) {
	switch op {
	case OpAnd, OpOr, OpNor:
	default:
		return combo{}, fmt.Errorf("unknown combinator %q", op)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return combo{}, fmt.Errorf("%s requires a list of selectors", op)
	}
	c := combo{op: op, subs: make([]*Selector, 0, len(elems))}
	for i, elem := range elems {
		sub, err := Parse(elem)
		if err != nil {
			return combo{}, fmt.Errorf("%s[%d]: %v", op, i, err)
		}
		c.subs = append(c.subs, sub)
	}
	return c, nil
}

func parseField(field string, raw json.RawMessage) (fieldCond, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err == nil && len(probe) > 0 {
		operators, plain := 0, 0
		for k := range probe {
			if strings.HasPrefix(k, "$") {
				operators++
			} else {
				plain++
			}
		}
		if operators > 0 && plain > 0 {
			return fieldCond{}, fmt.Errorf("field %q mixes operators and plain keys", field)
		}
		if operators > 0 {
			fc := fieldCond{field: field}
			for _, op := range sortedKeys(probe) {
				oc, err := parseOp(field, op, probe[op])
				if err != nil {
					return fieldCond{}, err
				}
				fc.ops = append(fc.ops, oc)
			}
			return fc, nil
		}
	}

	// Implicit equality: any non-operator value, objects included.
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fieldCond{}, fmt.Errorf("field %q: invalid value", field)
	}
	return fieldCond{field: field, ops: []opCond{{op: OpEq, operand: v}}}, nil
}

func parseOp(field, op string, raw json.RawMessage) (opCond, error) {
	switch op {
	case OpEq, OpNe:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return opCond{}, fmt.Errorf("%s on %q: invalid operand", op, field)
		}
		return opCond{op: op, operand: v}, nil
	case OpGt, OpGte, OpLt, OpLte:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return opCond{}, fmt.Errorf("%s on %q requires a numeric operand", op, field)
		}
		return opCond{op: op, operand: n}, nil
	case OpRegex:
		var pattern string
		if err := json.Unmarshal(raw, &pattern); err != nil {
			return opCond{}, fmt.Errorf("$regex on %q requires a string pattern", field)
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return opCond{}, fmt.Errorf("$regex on %q: %v", field, err)
		}
		return opCond{op: op, operand: pattern}, nil
	case OpAnd, OpOr, OpNor:
		return opCond{}, fmt.Errorf("%s cannot be applied to field %q", op, field)
	default:
		return opCond{}, fmt.Errorf("unknown operator %q on field %q", op, field)
	}
}

// MatchAll reports whether the selector is empty and matches every
// document.
func (s *Selector) MatchAll() bool {
	return len(s.fields) == 0 && len(s.combos) == 0
}

// Fields returns the distinct field names the selector constrains, sorted,
// including fields inside combinators.
func (s *Selector) Fields() []string {
	set := map[string]bool{}
	s.collectFields(set)
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (s *Selector) collectFields(set map[string]bool) {
	for _, fc := range s.fields {
		set[fc.field] = true
	}
	for _, c := range s.combos {
		for _, sub := range c.subs {
			sub.collectFields(set)
		}
	}
}

// MarshalJSON emits the canonical wire form: implicit equality becomes an
// explicit $eq, keys are sorted, combinators keep their element order.
func (s *Selector) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.fields)+len(s.combos))
	for _, fc := range s.fields {
		ops := make(map[string]any, len(fc.ops))
		for _, oc := range fc.ops {
			ops[oc.op] = oc.operand
		}
		m[fc.field] = ops
	}
	for _, c := range s.combos {
		m[c.op] = c.subs
	}
	return json.Marshal(m)
}

// Matches evaluates the selector against a decoded document. Dotted field
// names descend into nested objects. Comparisons on missing or non-numeric
// values do not match; they are never errors.
func (s *Selector) Matches(doc map[string]any) bool {
	for _, fc := range s.fields {
		v, ok := lookup(doc, fc.field)
		for _, oc := range fc.ops {
			if !matchOp(v, ok, oc) {
				return false
			}
		}
	}
	for _, c := range s.combos {
		if !matchCombo(doc, c) {
			return false
		}
	}
	return true
}

func matchCombo(doc map[string]any, c combo) bool {
	switch c.op {
	case OpAnd:
		for _, sub := range c.subs {
			if !sub.Matches(doc) {
				return false
			}
		}
		return true
	case OpOr:
		for _, sub := range c.subs {
			if sub.Matches(doc) {
				return true
			}
		}
		return false
	case OpNor:
		for _, sub := range c.subs {
			if sub.Matches(doc) {
				return false
			}
		}
		return true
	}
	return false
}

func matchOp(v any, present bool, oc opCond) bool {
	switch oc.op {
	case OpEq:
		return present && equalJSON(v, oc.operand)
	case OpNe:
		return present && !equalJSON(v, oc.operand)
	case OpGt, OpGte, OpLt, OpLte:
		n, numeric := v.(float64)
		if !present || !numeric {
			return false
		}
		want := oc.operand.(float64)
		switch oc.op {
		case OpGt:
			return n > want
		case OpGte:
			return n >= want
		case OpLt:
			return n < want
		default:
			return n <= want
		}
	case OpRegex:
		str, isStr := v.(string)
		if !present || !isStr {
			return false
		}
		re, err := regexp.Compile(oc.operand.(string))
		return err == nil && re.MatchString(str)
	}
	return false
}

// equalJSON compares two values decoded from JSON.
func equalJSON(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ab) == string(bb)
}

func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
