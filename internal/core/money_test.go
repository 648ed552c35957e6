package core

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.001", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"1e3", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents() != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents(), err)
			}
		} else {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
			}
		}
	}
}

func TestMoneyFromFloat(t *testing.T) {
	cases := []struct {
		in  float64
		out int64
		ok  bool
	}{
		{10, 1000, true},
		{0.1, 10, true},
		{19.999, 2000, true},
		{0, 0, false},
		{-5, 0, false},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
		{math.Inf(-1), 0, false},
	}
	for _, tc := range cases {
		got, err := MoneyFromFloat(tc.in)
		if tc.ok {
			if err != nil || got.Cents() != tc.out {
				t.Fatalf("%v expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents(), err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%v expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestMoneyArithmeticIsExact(t *testing.T) {
	sum := Zero
	for i := 0; i < 10; i++ {
		sum = sum.Add(FromCents(10))
	}
	if !sum.Equal(FromCents(100)) {
		t.Fatalf("expected 1.00, got %s", sum)
	}
	if got := FromCents(100).Sub(FromCents(250)); !got.IsNegative() || got.Cents() != -150 {
		t.Fatalf("expected -1.50, got %s", got)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Sum Money `json:"sum"`
	}{FromCents(45050)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"sum":450.50}` {
		t.Fatalf("unexpected encoding %s", b)
	}

	var v struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":12.345,"b":"7.1"}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.A.Cents() != 1235 || v.B.Cents() != 710 {
		t.Fatalf("unexpected decode %s %s", v.A, v.B)
	}
}

func TestMoneyUnmarshalRejectsExponentsAndHugeInput(t *testing.T) {
	cases := []string{
		`{"a":1e20000000}`,
		`{"a":"1E5"}`,
		`{"a":2.5e-3}`,
		`{"a":"` + strings.Repeat("9", 40) + `"}`,
		`{"a":""}`,
		`{"a":"1-2"}`,
	}
	for _, in := range cases {
		var v struct {
			A Money `json:"a"`
		}
		if err := json.Unmarshal([]byte(in), &v); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("%s: expected ErrInvalidAmount, got %v", in, err)
		}
	}

	var v struct {
		A Money `json:"a"`
	}
	if err := json.Unmarshal([]byte(`{"a":-3.5}`), &v); err != nil || v.A.Cents() != -350 {
		t.Fatalf("expected -3.50 to decode, got %s %v", v.A, err)
	}
}
