package couchmcp

import "testing"

func intp(n int) *int { return &n }

func TestResolveWindow(t *testing.T) {
	tests := []struct {
		name    string
		limit   *int
		skip    *int
		want    Window
		wantErr bool
	}{
		{"both omitted", nil, nil, Window{Limit: 25, Skip: 0}, false},
		{"explicit limit", intp(100), nil, Window{Limit: 100, Skip: 0}, false},
		{"zero limit is valid", intp(0), nil, Window{Limit: 0, Skip: 0}, false},
		{"explicit skip", nil, intp(50), Window{Limit: 25, Skip: 50}, false},
		{"zero skip", intp(10), intp(0), Window{Limit: 10, Skip: 0}, false},
		{"no upper clamp", intp(1000000), nil, Window{Limit: 1000000, Skip: 0}, false},
		{"negative limit", intp(-1), nil, Window{}, true},
		{"negative skip", nil, intp(-5), Window{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveWindow(tt.limit, tt.skip, DefaultLimit)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if KindOf(err) != KindInvalidArgument {
					t.Errorf("KindOf = %q, want %q", KindOf(err), KindInvalidArgument)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveWindow = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolveWindowCustomDefault(t *testing.T) {
	got, err := resolveWindow(nil, nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got.Limit != 10 {
		t.Errorf("Limit = %d, want 10", got.Limit)
	}
}
