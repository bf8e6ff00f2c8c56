package core

import (
	"testing"
	"time"
)

func dateP(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestFilterOwnerScope(t *testing.T) {
	if got := (Filter{}).OwnerScope(); got != "ALL" {
		t.Fatalf("expected ALL, got %q", got)
	}
	f := Filter{Owner: &User{Username: "dana"}}
	if got := f.OwnerScope(); got != "dana" {
		t.Fatalf("expected dana, got %q", got)
	}
}

func TestFilterPeriod(t *testing.T) {
	cases := []struct {
		name string
		f    Filter
		want string
	}{
		{"no bounds", Filter{}, "all"},
		{"both bounds", Filter{Start: dateP(2025, 1, 1), End: dateP(2025, 1, 31)}, "2025-01-01_to_2025-01-31"},
		{"start only", Filter{Start: dateP(2025, 1, 1)}, "2025-01-01_to"},
		{"end only", Filter{End: dateP(2025, 1, 31)}, "to_2025-01-31"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.f.Period(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestFieldErrorsMessage(t *testing.T) {
	fe := FieldErrors{"vendor": "vendor is required", "date": "date is required"}
	msg := fe.Error()
	// Fields come out sorted so messages are stable.
	if msg != "date: date is required; vendor: vendor is required" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestAsFieldErrors(t *testing.T) {
	var err error = FieldErrors{"date": "bad"}
	if _, ok := AsFieldErrors(err); !ok {
		t.Fatalf("expected match")
	}
	if _, ok := AsFieldErrors(ErrNotFound); ok {
		t.Fatalf("expected no match for sentinel")
	}
}
