package markup

import "strings"

// verticalByCategory maps publisher primary categories onto the
// reporting verticals the CRM uses.
var verticalByCategory = map[string]string{
	"fashion":        "Shopping",
	"beauty":         "Shopping",
	"home":           "Shopping",
	"tech":           "Shopping",
	"electronics":    "Shopping",
	"shopping":       "Shopping",
	"deals":          "Shopping",
	"travel":         "Travel",
	"hotels":         "Travel",
	"flights":        "Travel",
	"finance":        "Finance",
	"loans":          "Finance",
	"credit cards":   "Finance",
	"insurance":      "Finance",
	"betting":        "Betting",
	"casino":         "Betting",
	"sports betting": "Betting",
	"gaming":         "Betting",
	"health":         "Health",
	"wellness":       "Health",
	"cbd":            "Health",
	"broadband":      "Utilities",
	"energy":         "Utilities",
	"mobile":         "Utilities",
}

// VerticalFor returns the vertical for a primary category, or nil when
// the category is unknown or unmapped.
func VerticalFor(category *string) *string {
	if category == nil {
		return nil
	}
	v, ok := verticalByCategory[strings.ToLower(strings.TrimSpace(*category))]
	if !ok {
		return nil
	}
	return &v
}
