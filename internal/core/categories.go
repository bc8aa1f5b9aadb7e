package core

// Fixed category enumerations per transaction type.
var (
	IncomeCategories = []string{
		"Salary",
		"Bonus",
		"Gifts",
		"Investments",
		"Freelance",
		"Other Income",
	}
	ExpenseCategories = []string{
		"Food & Drinks",
		"Housing",
		"Transportation",
		"Utilities",
		"Healthcare",
		"Entertainment",
		"Shopping",
		"Education",
		"Personal Care",
		"Other Expense",
	}
)

// CategoryVisual is the icon and color a client renders for a category.
type CategoryVisual struct {
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// DefaultVisual is returned for category names outside the enumeration.
var DefaultVisual = CategoryVisual{Icon: "circle-help", Color: "#94a3b8"}

var visuals = map[string]CategoryVisual{
	"Salary":         {Icon: "briefcase", Color: "#16a34a"},
	"Bonus":          {Icon: "sparkles", Color: "#22c55e"},
	"Gifts":          {Icon: "gift", Color: "#4ade80"},
	"Investments":    {Icon: "trending-up", Color: "#15803d"},
	"Freelance":      {Icon: "dollar-sign", Color: "#86efac"},
	"Other Income":   {Icon: "dollar-sign", Color: "#bbf7d0"},
	"Food & Drinks":  {Icon: "utensils", Color: "#f97316"},
	"Housing":        {Icon: "home", Color: "#ef4444"},
	"Transportation": {Icon: "car", Color: "#3b82f6"},
	"Utilities":      {Icon: "zap", Color: "#eab308"},
	"Healthcare":     {Icon: "pill", Color: "#ec4899"},
	"Entertainment":  {Icon: "clapperboard", Color: "#8b5cf6"},
	"Shopping":       {Icon: "shirt", Color: "#06b6d4"},
	"Education":      {Icon: "book-open", Color: "#6366f1"},
	"Personal Care":  {Icon: "palette", Color: "#d946ef"},
	"Other Expense":  DefaultVisual,
}

// VisualFor maps a category to its visual token, falling back to DefaultVisual.
func VisualFor(category string) CategoryVisual {
	if v, ok := visuals[category]; ok {
		return v
	}
	return DefaultVisual
}

// CategoriesFor returns the enumeration for a transaction type, or nil.
func CategoriesFor(t TxType) []string {
	switch t {
	case Income:
		return IncomeCategories
	case Expense:
		return ExpenseCategories
	default:
		return nil
	}
}

func IsKnownCategory(t TxType, category string) bool {
	for _, c := range CategoriesFor(t) {
		if c == category {
			return true
		}
	}
	return false
}
