package pipeline

import (
	"strings"

	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/model"
)

// ColorMap maps category titles to display colors.
type ColorMap map[string]model.Color

// Lookup returns the color for title, or model.NoColor.
func (m ColorMap) Lookup(title string) model.Color {
	if c, ok := m[title]; ok && c != "" {
		return c
	}
	return model.NoColor
}

// ResolveColors builds a title to color mapping. When titles repeat, the
// later entry wins.
func ResolveColors(colors []model.CategoryColor) ColorMap {
	m := make(ColorMap, len(colors))
	for _, c := range colors {
		m[c.Title] = c.Color
	}
	return m
}

// ProjectColor maps a category document to its color metadata.
func ProjectColor(doc docstore.Document) (model.CategoryColor, bool, error) {
	title := strings.TrimSpace(doc.String("title"))
	if title == "" {
		return model.CategoryColor{}, false, dataErr(doc.ID, "title", ErrMissingTitle)
	}
	return model.CategoryColor{
		Title:   title,
		Color:   model.Color(doc.String("color")),
		Checked: doc.Bool("checked"),
	}, true, nil
}

// ProjectCategory maps a category document of the given kind.
func ProjectCategory(kind model.CategoryKind) func(docstore.Document) (model.Category, bool, error) {
	return func(doc docstore.Document) (model.Category, bool, error) {
		title := strings.TrimSpace(doc.String("title"))
		if title == "" {
			return model.Category{}, false, dataErr(doc.ID, "title", ErrMissingTitle)
		}
		return model.Category{
			Key:     doc.ID,
			ID:      doc.String("id"),
			Title:   title,
			Icon:    doc.String("icon"),
			Color:   model.Color(doc.String("color")),
			Checked: doc.Bool("checked"),
			Kind:    kind,
		}, true, nil
	}
}
