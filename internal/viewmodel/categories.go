package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/snapshot"
)

var (
	// ErrDuplicateTitle is returned when adding a category whose title is
	// already used in the same set. Colors and icons are looked up by title.
	ErrDuplicateTitle = errors.New("category title already exists")
	// ErrInvalidKind is returned for a category kind other than expenditure or income.
	ErrInvalidKind = errors.New("invalid category kind")
)

// NewCategory is the input for adding a category.
type NewCategory struct {
	Title string
	Icon  string
	Color model.Color
}

// CategoriesState is one immutable rendering of both category sets.
type CategoriesState struct {
	Status      snapshot.State
	Expenditure []model.Category
	Income      []model.Category
	Rejected    []pipeline.Rejection
	Err         error
	UpdatedAt   time.Time
}

// Icon returns the icon of the category titled title in the given set.
// When titles repeat, the last match wins. Unknown titles return "".
func (s CategoriesState) Icon(kind model.CategoryKind, title string) string {
	var icon string
	for _, c := range s.list(kind) {
		if c.Title == title {
			icon = c.Icon
		}
	}
	return icon
}

func (s CategoriesState) list(kind model.CategoryKind) []model.Category {
	if kind == model.IncomeCategories {
		return s.Income
	}
	return s.Expenditure
}

// Categories is the category management screen: both category sets, live.
type Categories struct {
	*base
	onChange func(CategoriesState)
	latest   atomic.Pointer[CategoriesState]

	// loop-owned
	expReady, incReady bool
	expRejected        []pipeline.Rejection
	incRejected        []pipeline.Rejection
	expErr, incErr     error
}

// NewCategories subscribes to the expenditure and income category collections.
func NewCategories(deps Deps, onChange func(CategoriesState)) *Categories {
	c := &Categories{
		base:     newBase(deps, "categories"),
		onChange: onChange,
	}
	c.latest.Store(&CategoriesState{Status: snapshot.Loading})
	c.subscribe(docstore.Collection(deps.Collections.ExpenseCategories), c.handler(model.ExpenditureCategories))
	c.subscribe(docstore.Collection(deps.Collections.IncomeCategories), c.handler(model.IncomeCategories))
	return c
}

// Latest returns the most recent state.
func (c *Categories) Latest() CategoriesState {
	return *c.latest.Load()
}

// Icon looks up a category icon in the latest state.
func (c *Categories) Icon(kind model.CategoryKind, title string) string {
	return c.Latest().Icon(kind, title)
}

// Add creates a category document. The new category shows up through the
// subscription like any other change.
func (c *Categories) Add(ctx context.Context, kind model.CategoryKind, nc NewCategory) (model.Category, error) {
	return AddCategory(ctx, c.deps.Store, c.deps.Collections, kind, nc)
}

// Close stops both subscriptions. A callback already running may still
// finish after Close returns.
func (c *Categories) Close() {
	c.close()
}

func (c *Categories) handler(kind model.CategoryKind) snapshot.Handler {
	return func(snap snapshot.Snapshot) {
		st := c.Latest()
		st.UpdatedAt = snap.At

		if snap.State == snapshot.Failed {
			c.setErr(kind, snap.Err)
		} else {
			cats, rejected := pipeline.ProjectAll(snap.Docs, pipeline.ProjectCategory(kind))
			c.logRejections(string(kind), rejected)
			c.setErr(kind, nil)
			if kind == model.IncomeCategories {
				st.Income, c.incRejected, c.incReady = cats, rejected, true
			} else {
				st.Expenditure, c.expRejected, c.expReady = cats, rejected, true
			}
		}

		st.Err = errors.Join(c.expErr, c.incErr)
		st.Rejected = append(append([]pipeline.Rejection(nil), c.expRejected...), c.incRejected...)
		switch {
		case st.Err != nil:
			st.Status = snapshot.Failed
		case c.expReady && c.incReady:
			st.Status = snapshot.Ready
		default:
			st.Status = snapshot.Loading
		}

		c.latest.Store(&st)
		if c.onChange != nil {
			c.onChange(st)
		}
	}
}

func (c *Categories) setErr(kind model.CategoryKind, err error) {
	if kind == model.IncomeCategories {
		c.incErr = err
	} else {
		c.expErr = err
	}
}

// AddCategory validates nc and writes it to the collection for kind.
func AddCategory(ctx context.Context, store Store, cols config.CollectionsConfig, kind model.CategoryKind, nc NewCategory) (model.Category, error) {
	if !kind.Valid() {
		return model.Category{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	title := strings.TrimSpace(nc.Title)
	if title == "" {
		return model.Category{}, pipeline.ErrMissingTitle
	}

	collection := collectionFor(cols, kind)
	existing, err := store.Query(ctx, docstore.Collection(collection).Where("title", docstore.Eq, title))
	if err != nil {
		return model.Category{}, fmt.Errorf("checking %s titles: %w", collection, err)
	}
	if len(existing) > 0 {
		return model.Category{}, fmt.Errorf("%w: %q", ErrDuplicateTitle, title)
	}

	doc, err := store.Add(ctx, collection, map[string]any{
		"title":   title,
		"icon":    nc.Icon,
		"color":   string(nc.Color),
		"checked": false,
	})
	if err != nil {
		return model.Category{}, fmt.Errorf("adding category: %w", err)
	}

	return model.Category{
		Key:   doc.ID,
		Title: title,
		Icon:  nc.Icon,
		Color: nc.Color,
		Kind:  kind,
	}, nil
}

func collectionFor(cols config.CollectionsConfig, kind model.CategoryKind) string {
	if kind == model.IncomeCategories {
		return cols.IncomeCategories
	}
	return cols.ExpenseCategories
}
