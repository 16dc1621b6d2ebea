package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
	"github.com/theirongolddev/fintrack/internal/viewmodel"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// categoryValues holds the form field values. huh binds to these pointers,
// so the struct lives on the heap and outlives App copies.
type categoryValues struct {
	kind  string
	title string
	icon  string
	color string
}

func (v categoryValues) newCategory() (model.CategoryKind, viewmodel.NewCategory) {
	return model.CategoryKind(v.kind), viewmodel.NewCategory{
		Title: strings.TrimSpace(v.title),
		Icon:  strings.TrimSpace(v.icon),
		Color: model.Color(strings.TrimSpace(v.color)),
	}
}

// newCategoryForm builds the add-category form. existing is used to reject
// titles already taken in the chosen set before the write is attempted.
func newCategoryForm(vals *categoryValues, existing viewmodel.CategoriesState) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("New category").
				Description("Categories are matched to transactions by title."),

			huh.NewSelect[string]().
				Title("Kind").
				Options(
					huh.NewOption("Expenditure", string(model.ExpenditureCategories)),
					huh.NewOption("Income", string(model.IncomeCategories)),
				).
				Value(&vals.kind),

			huh.NewInput().
				Title("Title").
				Value(&vals.title).
				Validate(func(s string) error {
					title := strings.TrimSpace(s)
					if title == "" {
						return errors.New("title is required")
					}
					if titleTaken(existing, model.CategoryKind(vals.kind), title) {
						return viewmodel.ErrDuplicateTitle
					}
					return nil
				}),

			huh.NewInput().
				Title("Icon").
				Description("Optional icon name or emoji.").
				Value(&vals.icon),

			huh.NewInput().
				Title("Color").
				Description("Optional, #RRGGBB.").
				Placeholder("#4385BE").
				Value(&vals.color).
				Validate(func(s string) error {
					s = strings.TrimSpace(s)
					if s != "" && !theme.ValidColor(s) {
						return errors.New("use #RGB or #RRGGBB")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeDracula())
}

// PromptCategory runs the add-category form on its own, outside the
// dashboard. ok is false when the user aborts.
func PromptCategory(existing viewmodel.CategoriesState) (kind model.CategoryKind, nc viewmodel.NewCategory, ok bool, err error) {
	vals := &categoryValues{kind: string(model.ExpenditureCategories)}
	if err := newCategoryForm(vals, existing).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", viewmodel.NewCategory{}, false, nil
		}
		return "", viewmodel.NewCategory{}, false, err
	}
	kind, nc = vals.newCategory()
	return kind, nc, true, nil
}

func titleTaken(st viewmodel.CategoriesState, kind model.CategoryKind, title string) bool {
	list := st.Expenditure
	if kind == model.IncomeCategories {
		list = st.Income
	}
	for _, c := range list {
		if c.Title == title {
			return true
		}
	}
	return false
}

func (a App) openForm() (tea.Model, tea.Cmd) {
	a.formVals = &categoryValues{kind: string(model.ExpenditureCategories)}
	a.form = newCategoryForm(a.formVals, a.cats)
	if a.width > 0 {
		a.form = a.form.WithWidth(a.width).WithHeight(a.height)
	}
	a.notice = ""
	return a, a.form.Init()
}

func (a App) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		a.form = nil
		a.formVals = nil
		return a, nil
	}

	form, cmd := a.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.form = f
	}

	switch a.form.State {
	case huh.StateCompleted:
		kind, nc := a.formVals.newCategory()
		a.form = nil
		a.formVals = nil
		return a, addCategoryCmd(a.live.cats, kind, nc)
	case huh.StateAborted:
		a.form = nil
		a.formVals = nil
		return a, nil
	}
	return a, cmd
}

func (a App) viewForm() string {
	t := theme.Active
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, a.form.View(),
		lipgloss.WithWhitespaceBackground(t.Background))
}

// addCategoryCmd writes the category off the UI goroutine.
func addCategoryCmd(cats *viewmodel.Categories, kind model.CategoryKind, nc viewmodel.NewCategory) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err := cats.Add(ctx, kind, nc)
		return categoryAddedMsg{Title: nc.Title, Err: err}
	}
}
