package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cadventory/internal/metrics"
)

const modelColumns = `id, short_name, primary_file, file_path, library_name, title, author,
	override_info, is_selected, is_processed, is_included, thumbnail IS NOT NULL AND length(thumbnail) > 0,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModel(row rowScanner, withThumb bool) (*Model, error) {
	var m Model
	var selected, processed, included, hasThumb int
	var created, updated int64
	dest := []any{
		&m.ID, &m.ShortName, &m.PrimaryFile, &m.FilePath, &m.LibraryName, &m.Title, &m.Author,
		&m.OverrideInfo, &selected, &processed, &included, &hasThumb, &created, &updated,
	}
	if withThumb {
		dest = append(dest, &m.Thumbnail)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	m.IsSelected = selected != 0
	m.IsProcessed = processed != 0
	m.IsIncluded = included != 0
	m.HasThumbnail = hasThumb != 0
	m.CreatedAt = time.Unix(created, 0)
	m.UpdatedAt = time.Unix(updated, 0)
	return &m, nil
}

func insertModel(ctx context.Context, q querier, m *Model) error {
	if m.ID == 0 {
		return ErrInvalidID
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO models (id, short_name, primary_file, file_path, library_name, title, author,
			override_info, thumbnail, is_selected, is_processed, is_included)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, m.ID, m.ShortName, m.PrimaryFile, m.FilePath, m.LibraryName, m.Title, m.Author,
		m.OverrideInfo, thumbArg(m.Thumbnail), boolToInt(m.IsSelected), boolToInt(m.IsProcessed), boolToInt(m.IsIncluded))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrModelExists
	}
	return nil
}

func saveModel(ctx context.Context, q querier, m *Model) error {
	if m.ID == 0 {
		return ErrInvalidID
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO models (id, short_name, primary_file, file_path, library_name, title, author,
			override_info, thumbnail, is_selected, is_processed, is_included)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			short_name = excluded.short_name,
			primary_file = excluded.primary_file,
			file_path = excluded.file_path,
			library_name = excluded.library_name,
			title = excluded.title,
			author = excluded.author,
			override_info = excluded.override_info,
			thumbnail = excluded.thumbnail,
			is_selected = excluded.is_selected,
			is_processed = excluded.is_processed,
			is_included = excluded.is_included,
			updated_at = strftime('%s', 'now')
	`, m.ID, m.ShortName, m.PrimaryFile, m.FilePath, m.LibraryName, m.Title, m.Author,
		m.OverrideInfo, thumbArg(m.Thumbnail), boolToInt(m.IsSelected), boolToInt(m.IsProcessed), boolToInt(m.IsIncluded))
	return err
}

// thumbArg stores an empty thumbnail as NULL.
func thumbArg(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// InsertModel adds a new model. It fails with ErrModelExists if the id is
// already present.
func (d *Database) InsertModel(ctx context.Context, m *Model) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_model", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = insertModel(ctx, d.db, m)
	return err
}

// UpdateModel overwrites every stored field of an existing model.
func (d *Database) UpdateModel(ctx context.Context, m *Model) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_model", start, err) }()

	if m.ID == 0 {
		err = ErrInvalidID
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, `
		UPDATE models SET
			short_name = ?, primary_file = ?, file_path = ?, library_name = ?, title = ?, author = ?,
			override_info = ?, thumbnail = ?, is_selected = ?, is_processed = ?, is_included = ?,
			updated_at = strftime('%s', 'now')
		WHERE id = ?
	`, m.ShortName, m.PrimaryFile, m.FilePath, m.LibraryName, m.Title, m.Author,
		m.OverrideInfo, thumbArg(m.Thumbnail), boolToInt(m.IsSelected), boolToInt(m.IsProcessed), boolToInt(m.IsIncluded),
		m.ID)
	if err != nil {
		return err
	}
	err = requireAffected(res)
	return err
}

// SaveModel inserts the model or overwrites every field of the existing one.
func (d *Database) SaveModel(ctx context.Context, m *Model) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_model", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = saveModel(ctx, d.db, m)
	return err
}

// GetModel returns the model with the given id, thumbnail included.
func (d *Database) GetModel(ctx context.Context, id int64) (*Model, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_model", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m *Model
	row := d.db.QueryRowContext(ctx, "SELECT "+modelColumns+", thumbnail FROM models WHERE id = ?", id)
	m, err = scanModel(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetModelByFilePath returns the model last recorded at path.
func (d *Database) GetModelByFilePath(ctx context.Context, path string) (*Model, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_model_by_path", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m *Model
	row := d.db.QueryRowContext(ctx,
		"SELECT "+modelColumns+", thumbnail FROM models WHERE file_path = ? ORDER BY updated_at DESC LIMIT 1", path)
	m, err = scanModel(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ModelExists reports whether a model with the id is stored.
func (d *Database) ModelExists(ctx context.Context, id int64) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("model_exists", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var exists bool
	err = d.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM models WHERE id = ?)", id).Scan(&exists)
	return exists, err
}

// DeleteModel removes a model together with its objects and tags.
func (d *Database) DeleteModel(ctx context.Context, id int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_model", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, "DELETE FROM models WHERE id = ?", id)
	if err != nil {
		return err
	}
	err = requireAffected(res)
	return err
}

func filterClause(f ModelFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(col string, v *bool) {
		if v != nil {
			conds = append(conds, col+" = ?")
			args = append(args, boolToInt(*v))
		}
	}
	add("is_processed", f.Processed)
	add("is_selected", f.Selected)
	add("is_included", f.Included)
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListModels returns the models matching f ordered by short name.
func (d *Database) ListModels(ctx context.Context, f ModelFilter) ([]Model, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_models", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cols := modelColumns
	if f.WithThumbnails {
		cols += ", thumbnail"
	}
	where, args := filterClause(f)
	query := "SELECT " + cols + " FROM models" + where + " ORDER BY short_name COLLATE NOCASE, id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		var m *Model
		m, err = scanModel(rows, f.WithThumbnails)
		if err != nil {
			return nil, err
		}
		models = append(models, *m)
	}
	err = rows.Err()
	return models, err
}

// CountModels returns the number of models matching f.
func (d *Database) CountModels(ctx context.Context, f ModelFilter) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_models", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	where, args := filterClause(f)
	var n int
	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM models"+where, args...).Scan(&n)
	return n, err
}

// GetThumbnail returns the stored thumbnail bytes of a model. A model
// without a thumbnail yields ErrNotFound.
func (d *Database) GetThumbnail(ctx context.Context, id int64) ([]byte, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_thumbnail", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var thumb []byte
	err = d.db.QueryRowContext(ctx, "SELECT thumbnail FROM models WHERE id = ?", id).Scan(&thumb)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(thumb) == 0) {
		err = ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return thumb, nil
}

// CatalogStats summarizes the store for the metrics collector.
func (d *Database) CatalogStats(ctx context.Context) (metrics.Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("catalog_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s metrics.Stats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(is_processed), 0),
			COALESCE(SUM(CASE WHEN thumbnail IS NOT NULL AND length(thumbnail) > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(is_selected), 0),
			(SELECT COUNT(DISTINCT tag) FROM tags)
		FROM models
	`).Scan(&s.Models, &s.Processed, &s.WithThumbnail, &s.Selected, &s.Tags)
	return s, err
}
