package core

import (
	"encoding/json"
	"testing"
)

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{Money{Cents: 123450}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"a":1234.50}` {
		t.Fatalf("unexpected json %s", b)
	}

	for in, want := range map[string]int64{
		`12.5`:    1250,
		`"12.5"`:  1250,
		`0.015`:   2,
		`3000`:    300000,
		`-50`:     -5000,
		`"19.99"`: 1999,
	} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if m.Cents != want {
			t.Errorf("unmarshal %s: got %d want %d", in, m.Cents, want)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`"abc"`), &m); err == nil {
		t.Fatalf("expected error for non numeric amount")
	}
}

func TestMoneyFromFloat(t *testing.T) {
	if got := MoneyFromFloat(19.99).Cents; got != 1999 {
		t.Fatalf("got %d", got)
	}
	if got := MoneyFromFloat(0.1 + 0.2).Cents; got != 30 {
		t.Fatalf("got %d", got)
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		m    Money
		code string
		want string
	}{
		{Money{Cents: 123450}, "USD", "$1,234.50"},
		{Money{Cents: 5}, "EUR", "€0.05"},
		{Money{Cents: -5000}, "GBP", "-£50.00"},
		{Money{Cents: 100000000}, "usd", "$1,000,000.00"},
		{Money{Cents: 999}, "XXX", "$9.99"},
	}
	for _, tc := range cases {
		if got := FormatMoney(tc.m, tc.code); got != tc.want {
			t.Errorf("FormatMoney(%d, %s) = %q, want %q", tc.m.Cents, tc.code, got, tc.want)
		}
	}
}
