package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Color is a display color, usually "#RRGGBB" or an "rgb(...)" string.
type Color string

// NoColor is the fill reported for a category that has no color document.
// Renderers must substitute their own default.
const NoColor Color = "none"

// IsSet reports whether c carries a real color.
func (c Color) IsSet() bool {
	return c != "" && c != NoColor
}

// CategoryKind selects the expenditure or income category set.
type CategoryKind string

const (
	ExpenditureCategories CategoryKind = "expenditure"
	IncomeCategories      CategoryKind = "income"
)

// Valid reports whether k names a known category set.
func (k CategoryKind) Valid() bool {
	return k == ExpenditureCategories || k == IncomeCategories
}

// CategoryColor is the color metadata of one category, keyed by title.
type CategoryColor struct {
	Title   string
	Color   Color
	Checked bool
}

// Category is a full category document as shown on the category screen.
type Category struct {
	Key     string // document id
	ID      string // user-facing id field stored inside the document
	Title   string
	Icon    string
	Color   Color
	Checked bool
	Kind    CategoryKind
}

// CategoryTotal is one slice of the expense chart.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
	Fill     Color
}

// Float returns the amount as float64 for renderers that only take numbers.
func (c CategoryTotal) Float() float64 {
	f, _ := c.Amount.Float64()
	return f
}

// Hex returns c as "#RRGGBB" when it is a "#RGB" or "#RRGGBB" color.
func (c Color) Hex() (string, bool) {
	s := string(c)
	if (len(s) != 4 && len(s) != 7) || s[0] != '#' {
		return "", false
	}
	for _, r := range s[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return "", false
		}
	}
	if len(s) == 4 {
		s = string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
	}
	return strings.ToUpper(s), true
}
