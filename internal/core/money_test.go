package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.34", 12.34, true},
		{"12,34", 12.34, true},
		{" 7 ", 7, true},
		{"0.01", 0.01, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Errorf("ParseAmount(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseAmount(%q) expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestRoundAmount(t *testing.T) {
	if got := RoundAmount(108.00000000000001); got != 108 {
		t.Fatalf("got %v", got)
	}
	if got := RoundAmount(1.005); got != 1.01 {
		t.Fatalf("got %v", got)
	}
}
