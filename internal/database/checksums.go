package database

import (
	"context"
	"database/sql"
	"time"
)

func upsertChecksum(ctx context.Context, q querier, fc FileChecksum) error {
	checked := fc.CheckedAt
	if checked.IsZero() {
		checked = time.Now()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO file_checksums (path, checksum, size, checked_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum = excluded.checksum,
			size = excluded.size,
			checked_at = excluded.checked_at
	`, fc.Path, fc.Checksum, fc.Size, checked.Unix())
	return err
}

// GetFileChecksums returns every recorded checksum keyed by path.
func (d *Database) GetFileChecksums(ctx context.Context) (map[string]FileChecksum, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_checksums", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, "SELECT path, checksum, size, checked_at FROM file_checksums")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]FileChecksum)
	for rows.Next() {
		var fc FileChecksum
		var checked int64
		if err = rows.Scan(&fc.Path, &fc.Checksum, &fc.Size, &checked); err != nil {
			return nil, err
		}
		fc.CheckedAt = time.Unix(checked, 0)
		out[fc.Path] = fc
	}
	err = rows.Err()
	return out, err
}

// UpsertFileChecksum records the checksum of one file.
func (d *Database) UpsertFileChecksum(ctx context.Context, fc FileChecksum) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_checksum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = upsertChecksum(ctx, d.db, fc)
	return err
}

// DeleteFileChecksum forgets the checksum of one file.
func (d *Database) DeleteFileChecksum(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_checksum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM file_checksums WHERE path = ?", path)
	return err
}
