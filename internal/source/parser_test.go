package source

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSeed(t *testing.T, dir, rel, body string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFile_JSONL(t *testing.T) {
	dir := t.TempDir()
	path := writeSeed(t, dir, "trans.jsonl", strings.Join([]string{
		`{"_id":"t1","type":"expenditure","category":"Food","amount":12.50,"date":"2024-05-06"}`,
		`not json`,
		``,
		`# comment`,
		`{"type":"income","category":"Pay","amount":"1000"}`,
	}, "\n"))

	res := ParseFile(DiscoveredFile{Path: path, Collection: "trans", Format: FormatJSONL})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("Entries = %d, want 2", len(res.Entries))
	}
	if res.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", res.ParseErrors)
	}

	first := res.Entries[0]
	if first.ID != "t1" {
		t.Errorf("ID = %q, want t1", first.ID)
	}
	if _, ok := first.Data[IDField]; ok {
		t.Error("_id should be stripped from data")
	}
	if got := first.Data["amount"]; got != json.Number("12.50") {
		t.Errorf("amount = %#v, want json.Number(12.50)", got)
	}
	if res.Entries[1].ID != "" {
		t.Errorf("second ID = %q, want empty", res.Entries[1].ID)
	}
}

func TestParseFile_YAMLList(t *testing.T) {
	dir := t.TempDir()
	path := writeSeed(t, dir, "budget.yaml", `
- _id: b1
  title: Groceries
  amount: 300
  currAmount: 120
  startDate: 2024-05-01
  categories: [Food, Drinks]
- just a string
`)

	res := ParseFile(DiscoveredFile{Path: path, Collection: "budget", Format: FormatYAML})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Entries) != 1 || res.ParseErrors != 1 {
		t.Fatalf("Entries = %d, ParseErrors = %d, want 1 and 1", len(res.Entries), res.ParseErrors)
	}
	e := res.Entries[0]
	if e.ID != "b1" {
		t.Errorf("ID = %q, want b1", e.ID)
	}
	if e.Data["startDate"] != "2024-05-01" {
		t.Errorf("startDate = %#v, want 2024-05-01", e.Data["startDate"])
	}
	cats, ok := e.Data["categories"].([]any)
	if !ok || len(cats) != 2 {
		t.Errorf("categories = %#v, want two items", e.Data["categories"])
	}
}

func TestParseFile_YAMLMapping(t *testing.T) {
	dir := t.TempDir()
	path := writeSeed(t, dir, "expense_categories.yml", `
food:
  title: Food
  color: "#F66A73"
  checked: true
rent:
  title: Rent
`)

	res := ParseFile(DiscoveredFile{Path: path, Collection: "expense_categories", Format: FormatYAML})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("Entries = %d, want 2", len(res.Entries))
	}
	if res.Entries[0].ID != "food" || res.Entries[1].ID != "rent" {
		t.Errorf("IDs = %q, %q, want food, rent", res.Entries[0].ID, res.Entries[1].ID)
	}
	if res.Entries[0].Data["checked"] != true {
		t.Errorf("checked = %#v, want true", res.Entries[0].Data["checked"])
	}
}

func TestParseFile_YAMLSkipsNonJSONValues(t *testing.T) {
	dir := t.TempDir()
	path := writeSeed(t, dir, "trans.yaml", `
- {_id: a, category: Food, amount: 10}
- {_id: b, category: Food, amount: .nan}
- {_id: c, category: Rent, amount: -.inf}
`)

	res := ParseFile(DiscoveredFile{Path: path, Collection: "trans", Format: FormatYAML})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Entries) != 1 || res.ParseErrors != 2 {
		t.Fatalf("Entries = %d, ParseErrors = %d, want 1 and 2", len(res.Entries), res.ParseErrors)
	}
	if res.Entries[0].ID != "a" {
		t.Errorf("ID = %q, want a", res.Entries[0].ID)
	}
}

func TestParseFile_YAMLBadRoot(t *testing.T) {
	dir := t.TempDir()
	path := writeSeed(t, dir, "trans.yaml", "42\n")
	res := ParseFile(DiscoveredFile{Path: path, Collection: "trans", Format: FormatYAML})
	if res.Err == nil {
		t.Fatal("expected error for scalar root")
	}
}

func TestParseFile_Missing(t *testing.T) {
	res := ParseFile(DiscoveredFile{Path: filepath.Join(t.TempDir(), "nope.jsonl"), Format: FormatJSONL})
	if res.Err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writeSeed(t, dir, "trans.yaml", "[]")
	writeSeed(t, dir, "trans/2024-05.jsonl", "")
	writeSeed(t, dir, "expense_categories.yml", "{}")
	writeSeed(t, dir, "notes.txt", "")
	writeSeed(t, dir, "bad-name.yaml", "[]")
	writeSeed(t, dir, ".git/config.yaml", "[]")

	files, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("files = %d, want 3: %+v", len(files), files)
	}
	for _, f := range files {
		if f.Collection != "trans" && f.Collection != "expense_categories" {
			t.Errorf("unexpected collection %q for %s", f.Collection, f.Path)
		}
	}
	if n := CountCollections(files); n != 2 {
		t.Errorf("CountCollections = %d, want 2", n)
	}

	missing, err := ScanDir(filepath.Join(dir, "absent"))
	if err != nil || missing != nil {
		t.Errorf("ScanDir(absent) = %v, %v, want nil, nil", missing, err)
	}

	single, err := ScanDir(filepath.Join(dir, "trans.yaml"))
	if err != nil || len(single) != 1 || single[0].Collection != "trans" {
		t.Errorf("ScanDir(file) = %+v, %v", single, err)
	}
}
