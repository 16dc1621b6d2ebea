package source

import "github.com/theirongolddev/fintrack/internal/docstore"

// Format is the encoding of a seed file.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSONL Format = "jsonl"
)

// IDField is the reserved key holding a document id in seed files. It is
// stripped from the stored data.
const IDField = "_id"

// DiscoveredFile is a seed file found during directory scanning.
type DiscoveredFile struct {
	Path       string
	Collection string // from the file name, or the parent directory for nested files
	Format     Format
}

// ParseResult holds the output of parsing a single seed file.
type ParseResult struct {
	File        DiscoveredFile
	Entries     []docstore.Entry
	ParseErrors int // lines or items skipped as malformed
	Err         error
}
