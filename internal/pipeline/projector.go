package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/docstore"
	"github.com/theirongolddev/fintrack/internal/model"
)

const dateLayout = "2006-01-02"

// ProjectTransaction validates a transaction document and maps it to a record.
// Income and expenditure documents are both accepted.
func ProjectTransaction(doc docstore.Document) (model.TransactionRecord, error) {
	typ, err := projectType(doc)
	if err != nil {
		return model.TransactionRecord{}, err
	}
	return projectRecord(doc, typ)
}

// ProjectExpense is the filtering projection used by the statistics view.
// Income documents yield ok=false with no error.
func ProjectExpense(doc docstore.Document) (model.TransactionRecord, bool, error) {
	typ, err := projectType(doc)
	if err != nil {
		return model.TransactionRecord{}, false, err
	}
	if typ != model.Expenditure {
		return model.TransactionRecord{}, false, nil
	}
	rec, err := projectRecord(doc, typ)
	if err != nil {
		return model.TransactionRecord{}, false, err
	}
	return rec, true, nil
}

// ProjectAll runs project over docs, collecting accepted values and
// rejections. A bad document never stops the rest from being projected.
func ProjectAll[T any](docs []docstore.Document, project func(docstore.Document) (T, bool, error)) ([]T, []Rejection) {
	out := make([]T, 0, len(docs))
	var rejected []Rejection
	for _, d := range docs {
		v, ok, err := project(d)
		if err != nil {
			rejected = append(rejected, Rejection{DocID: d.ID, Err: err})
			continue
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, rejected
}

func projectType(doc docstore.Document) (model.TransactionType, error) {
	typ := model.TransactionType(strings.TrimSpace(doc.String("type")))
	if !typ.Valid() {
		return "", dataErr(doc.ID, "type", fmt.Errorf("%w: %q", ErrUnknownType, typ))
	}
	return typ, nil
}

func projectRecord(doc docstore.Document, typ model.TransactionType) (model.TransactionRecord, error) {
	category := strings.TrimSpace(doc.String("category"))
	if category == "" {
		return model.TransactionRecord{}, dataErr(doc.ID, "category", ErrMissingCategory)
	}

	raw, _ := doc.Value("amount")
	amount, err := ParseAmount(raw)
	if err != nil {
		return model.TransactionRecord{}, dataErr(doc.ID, "amount", err)
	}

	date, err := parseDate(doc.String("date"))
	if err != nil {
		return model.TransactionRecord{}, dataErr(doc.ID, "date", err)
	}

	month := doc.String("month")
	if month == "" && !date.IsZero() {
		month = date.Format("2006-01")
	}

	return model.TransactionRecord{
		ID:       doc.ID,
		Category: category,
		Title:    doc.String("title"),
		Amount:   amount,
		Type:     typ,
		Month:    month,
		Date:     date,
	}, nil
}

// ParseAmount coerces a stored amount to a decimal. JSON numbers and numeric
// strings are accepted; a lone comma is read as the decimal separator.
func ParseAmount(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("%w: missing", ErrNonNumericAmount)
	case json.Number:
		return parseAmountString(x.String())
	case string:
		return parseAmountString(x)
	case float64:
		return decimal.NewFromFloat(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case decimal.Decimal:
		return x, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %T", ErrNonNumericAmount, v)
	}
}

func parseAmountString(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrNonNumericAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNonNumericAmount, s)
	}
	return d, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty means no date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}
