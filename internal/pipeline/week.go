package pipeline

import (
	"time"

	"github.com/theirongolddev/fintrack/internal/docstore"
)

// DateRange is an inclusive range of YYYY-MM-DD dates. Stored dates use the
// same format, so string comparison orders them correctly.
type DateRange struct {
	Start string
	End   string
}

// WeekRange returns the ISO week (Monday through Sunday) containing t.
func WeekRange(t time.Time) DateRange {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	return DateRange{
		Start: monday.Format(dateLayout),
		End:   monday.AddDate(0, 0, 6).Format(dateLayout),
	}
}

// MonthRange returns the calendar month containing t.
func MonthRange(t time.Time) DateRange {
	y, m, _ := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	return DateRange{
		Start: first.Format(dateLayout),
		End:   first.AddDate(0, 1, -1).Format(dateLayout),
	}
}

// IsZero reports whether the range is unbounded.
func (r DateRange) IsZero() bool {
	return r.Start == "" && r.End == ""
}

// Contains reports whether date falls inside the range.
func (r DateRange) Contains(date string) bool {
	if r.Start != "" && date < r.Start {
		return false
	}
	if r.End != "" && date > r.End {
		return false
	}
	return true
}

// Query restricts a query on field to the range.
func (r DateRange) Query(q docstore.Query, field string) docstore.Query {
	if r.Start != "" {
		q = q.Where(field, docstore.Gte, r.Start)
	}
	if r.End != "" {
		q = q.Where(field, docstore.Lte, r.End)
	}
	return q
}

func (r DateRange) String() string {
	if r.IsZero() {
		return "all time"
	}
	return r.Start + " to " + r.End
}
