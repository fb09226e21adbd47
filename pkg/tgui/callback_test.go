package tgui

import (
	"errors"
	"strings"
	"testing"
)

func TestDataRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scope, action, payload string
		want                   string
	}{
		{"confirm", "ok", "abc", "confirm:ok:abc"},
		{"confirm", "no", "", "confirm:no"},
		{"s", "a", "x:y:z", "s:a:x:y:z"},
	}
	for _, tc := range cases {
		got := Data(tc.scope, tc.action, tc.payload)
		if got != tc.want {
			t.Fatalf("Data(%q,%q,%q) = %q, want %q", tc.scope, tc.action, tc.payload, got, tc.want)
		}
		scope, action, payload := ParseData(got)
		if scope != tc.scope || action != tc.action || payload != tc.payload {
			t.Fatalf("ParseData(%q) = %q,%q,%q", got, scope, action, payload)
		}
	}
}

func TestDataCheckedLimit(t *testing.T) {
	t.Parallel()
	if _, err := DataChecked("confirm", "ok", strings.Repeat("x", 36)); err != nil {
		t.Fatalf("uuid-sized payload rejected: %v", err)
	}
	_, err := DataChecked("confirm", "ok", strings.Repeat("x", MaxCallbackDataLen))
	if !errors.Is(err, ErrCallbackDataTooLong) {
		t.Fatalf("err = %v, want ErrCallbackDataTooLong", err)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel…"},
		{"héllö wörld", 5, "héllö…"},
		{"x", 0, ""},
	}
	for _, tc := range cases {
		if got := TruncRunes(tc.in, tc.n); got != tc.want {
			t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}
