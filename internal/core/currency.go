package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used until a user picks another one.
const DefaultCurrency = "USD"

// Currency describes a selectable currency.
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

var Currencies = []Currency{
	{Code: "USD", Name: "United States Dollar", Symbol: "$"},
	{Code: "EUR", Name: "Euro", Symbol: "€"},
	{Code: "JPY", Name: "Japanese Yen", Symbol: "¥"},
	{Code: "GBP", Name: "British Pound Sterling", Symbol: "£"},
	{Code: "AUD", Name: "Australian Dollar", Symbol: "A$"},
	{Code: "CAD", Name: "Canadian Dollar", Symbol: "CA$"},
	{Code: "CHF", Name: "Swiss Franc", Symbol: "CHF"},
	{Code: "CNY", Name: "Chinese Yuan Renminbi", Symbol: "CN¥"},
	{Code: "INR", Name: "Indian Rupee", Symbol: "₹"},
	{Code: "BRL", Name: "Brazilian Real", Symbol: "R$"},
	{Code: "RUB", Name: "Russian Ruble", Symbol: "RUB"},
	{Code: "KRW", Name: "South Korean Won", Symbol: "₩"},
	{Code: "SGD", Name: "Singapore Dollar", Symbol: "SGD"},
	{Code: "NZD", Name: "New Zealand Dollar", Symbol: "NZ$"},
	{Code: "MXN", Name: "Mexican Peso", Symbol: "MX$"},
}

func lookupCurrency(code string) (Currency, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range Currencies {
		if c.Code == code {
			return c, true
		}
	}
	return Currency{}, false
}

func IsSupportedCurrency(code string) bool {
	_, ok := lookupCurrency(code)
	return ok
}

// FormatMoney renders m with the currency symbol and thousands separators,
// e.g. "$1,234.50" or "-€12.00". Unknown codes fall back to USD.
func FormatMoney(m Money, code string) string {
	cur, ok := lookupCurrency(code)
	if !ok {
		cur, _ = lookupCurrency(DefaultCurrency)
	}
	sign := ""
	if m.Cents < 0 {
		sign = "-"
	}
	return sign + cur.Symbol + groupThousands(m.Abs().Decimal())
}

func groupThousands(d decimal.Decimal) string {
	s := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + "." + frac
}
