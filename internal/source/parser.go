// Package source discovers and parses seed files that populate the document store.
package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/theirongolddev/fintrack/internal/docstore"
)

// ParseFile reads a seed file into store entries.
//
// JSONL files hold one JSON object per line; malformed lines are counted and
// skipped. YAML files hold either a list of objects or a mapping from document
// id to object. In both formats an "_id" key sets the document id; entries
// without one get a generated id on import.
func ParseFile(df DiscoveredFile) ParseResult {
	res := ParseResult{File: df}

	data, err := os.ReadFile(df.Path)
	if err != nil {
		res.Err = err
		return res
	}

	switch df.Format {
	case FormatJSONL:
		res.Entries, res.ParseErrors = parseJSONL(data)
	case FormatYAML:
		res.Entries, res.ParseErrors, res.Err = parseYAML(data)
	default:
		res.Err = fmt.Errorf("unsupported format %q", df.Format)
	}
	return res
}

func parseJSONL(data []byte) ([]docstore.Entry, int) {
	var (
		entries     []docstore.Entry
		parseErrors int
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil || obj == nil {
			parseErrors++
			continue
		}
		entries = append(entries, toEntry("", obj))
	}
	if scanner.Err() != nil {
		parseErrors++
	}
	return entries, parseErrors
}

func parseYAML(data []byte) ([]docstore.Entry, int, error) {
	var root any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, 0, fmt.Errorf("parsing yaml: %w", err)
	}

	var (
		entries     []docstore.Entry
		parseErrors int
	)

	switch v := root.(type) {
	case nil:
		return nil, 0, nil
	case []any:
		for _, item := range v {
			obj, ok := normalize(item).(map[string]any)
			if !ok || !encodable(obj) {
				parseErrors++
				continue
			}
			entries = append(entries, toEntry("", obj))
		}
	case map[string]any:
		ids := make([]string, 0, len(v))
		for id := range v {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			obj, ok := normalize(v[id]).(map[string]any)
			if !ok || !encodable(obj) {
				parseErrors++
				continue
			}
			entries = append(entries, toEntry(id, obj))
		}
	default:
		return nil, 0, fmt.Errorf("yaml root must be a list or mapping, got %T", root)
	}
	return entries, parseErrors, nil
}

func toEntry(id string, obj map[string]any) docstore.Entry {
	if raw, ok := obj[IDField]; ok {
		if s := fmt.Sprint(raw); s != "" {
			id = s
		}
		delete(obj, IDField)
	}
	return docstore.Entry{ID: id, Data: obj}
}

// encodable reports whether obj can be stored as JSON. YAML accepts values
// such as .nan and .inf that JSON has no encoding for.
func encodable(obj map[string]any) bool {
	_, err := json.Marshal(obj)
	return err == nil
}

// normalize converts YAML-decoded values into JSON-friendly ones.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalize(val)
		}
		return out
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	default:
		return v
	}
}
