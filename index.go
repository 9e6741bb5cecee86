package couchmcp

// IndexSpec describes a JSON index to create: an ordered field list and an
// optional caller-supplied name. Field order is semantically significant.
// A compound index on [a, b] serves queries restricted to a, or to a and
// b, but not to b alone. The adapter forwards the order exactly as given
// and never claims an index will serve a particular query; coverage is the
// backend planner's call, surfaced only through its warning field.
type IndexSpec struct {
	Fields []string
	Name   string
}

// Validate rejects malformed specs before any backend call: the field
// list must be non-empty and every field a non-empty string.
func (s IndexSpec) Validate() error {
	if len(s.Fields) == 0 {
		return Errorf(KindInvalidArgument, "index fields must be a non-empty list")
	}
	for i, f := range s.Fields {
		if f == "" {
			return Errorf(KindInvalidArgument, "index field %d is empty", i)
		}
	}
	return nil
}

// Serves reports whether an index over s.Fields can answer a query that
// constrains exactly queryFields: the queried fields must cover a prefix
// of the index's field order. Order inside queryFields does not matter;
// position in s.Fields does. The fake backend uses it to decide when to
// emit the planner warning; the dispatcher itself never consults it.
func (s IndexSpec) Serves(queryFields []string) bool {
	if len(queryFields) == 0 || len(queryFields) > len(s.Fields) {
		return false
	}
	queried := make(map[string]bool, len(queryFields))
	for _, f := range queryFields {
		queried[f] = true
	}
	if len(queried) != len(queryFields) {
		return false
	}
	for _, f := range s.Fields[:len(queryFields)] {
		if !queried[f] {
			return false
		}
	}
	return true
}
