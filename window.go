package couchmcp

// DefaultLimit bounds listing and search results when the caller omits a
// limit. There is no upper clamp; the backend enforces its own ceilings.
const DefaultLimit = 25

// Window is a resolved page: non-negative limit and skip, independent per
// call. No cursor state is carried between calls.
type Window struct {
	Limit int
	Skip  int
}

// resolveWindow fills defaults and validates the optional limit/skip
// arguments. A nil pointer means the argument was omitted. Zero is a valid
// limit and returns zero entries; negative values are rejected.
func resolveWindow(limit, skip *int, defaultLimit int) (Window, error) {
	w := Window{Limit: defaultLimit, Skip: 0}
	if limit != nil {
		if *limit < 0 {
			return Window{}, Errorf(KindInvalidArgument, "limit must be non-negative, got %d", *limit)
		}
		w.Limit = *limit
	}
	if skip != nil {
		if *skip < 0 {
			return Window{}, Errorf(KindInvalidArgument, "skip must be non-negative, got %d", *skip)
		}
		w.Skip = *skip
	}
	return w, nil
}
