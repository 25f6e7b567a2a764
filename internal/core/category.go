package core

// Category is one entry of a type-specific category set.
type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
}

const (
	OtherExpense = "other"
	OtherIncome  = "other_income"
)

var ExpenseCategories = []Category{
	{ID: "food", Label: "Food", Color: "#f97316"},
	{ID: "transport", Label: "Transport", Color: "#3b82f6"},
	{ID: "housing", Label: "Housing", Color: "#8b5cf6"},
	{ID: "health", Label: "Health", Color: "#ef4444"},
	{ID: "entertainment", Label: "Entertainment", Color: "#ec4899"},
	{ID: "shopping", Label: "Shopping", Color: "#f59e0b"},
	{ID: "utilities", Label: "Utilities", Color: "#6366f1"},
	{ID: "education", Label: "Education", Color: "#14b8a6"},
	{ID: "subscriptions", Label: "Subscriptions", Color: "#a855f7"},
	{ID: OtherExpense, Label: "Other", Color: "#6b7280"},
}

var IncomeCategories = []Category{
	{ID: "salary", Label: "Salary", Color: "#10b981"},
	{ID: "freelance", Label: "Freelance", Color: "#06b6d4"},
	{ID: "investment", Label: "Investment", Color: "#8b5cf6"},
	{ID: "gift", Label: "Gift", Color: "#f43f5e"},
	{ID: "refund", Label: "Refund", Color: "#64748b"},
	{ID: OtherIncome, Label: "Other", Color: "#6b7280"},
}

// Categories returns the category set for a transaction type.
func Categories(t TransactionType) []Category {
	if t == Income {
		return IncomeCategories
	}
	return ExpenseCategories
}

// DefaultCategory is the catch-all bucket of a transaction type.
func DefaultCategory(t TransactionType) Category {
	cats := Categories(t)
	return cats[len(cats)-1]
}

// FindCategory looks up a category id in the set of the given type.
func FindCategory(t TransactionType, id string) (Category, bool) {
	for _, c := range Categories(t) {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// ResolveCategory is FindCategory with the catch-all bucket for unknown ids.
func ResolveCategory(t TransactionType, id string) Category {
	if c, ok := FindCategory(t, id); ok {
		return c
	}
	return DefaultCategory(t)
}
