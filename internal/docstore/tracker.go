package docstore

import (
	"context"
	"fmt"
)

// FileInfo records the state of an imported seed file.
type FileInfo struct {
	MtimeNs   int64
	SizeBytes int64
}

// TrackedFiles returns the state recorded for every previously imported file.
func (s *Store) TrackedFiles(ctx context.Context) (map[string]FileInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT file_path, mtime_ns, size_bytes FROM file_tracker")
	if err != nil {
		return nil, fmt.Errorf("querying file tracker: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]FileInfo)
	for rows.Next() {
		var path string
		var fi FileInfo
		if err := rows.Scan(&path, &fi.MtimeNs, &fi.SizeBytes); err != nil {
			return nil, err
		}
		result[path] = fi
	}
	return result, rows.Err()
}

// TrackFile records that path was imported at the given state.
func (s *Store) TrackFile(ctx context.Context, path string, fi FileInfo) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO file_tracker (file_path, mtime_ns, size_bytes) VALUES (?, ?, ?)",
		path, fi.MtimeNs, fi.SizeBytes,
	)
	if err != nil {
		return fmt.Errorf("tracking %s: %w", path, err)
	}
	return nil
}
