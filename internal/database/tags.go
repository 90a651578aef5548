package database

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"
)

func normalizeTag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", ErrEmptyTag
	}
	return tag, nil
}

func requireModel(ctx context.Context, q querier, modelID int64) error {
	var exists bool
	if err := q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM models WHERE id = ?)", modelID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// AddTag attaches tag to a model. Adding a tag twice is a no-op; tags
// compare case-insensitively.
func (d *Database) AddTag(ctx context.Context, modelID int64, tag string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("add_tag", start, err) }()

	tag, err = normalizeTag(tag)
	if err != nil {
		return err
	}

	err = d.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := requireModel(ctx, tx, modelID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tags (model_id, tag) VALUES (?, ?)
			ON CONFLICT(model_id, tag) DO NOTHING
		`, modelID, tag)
		return err
	})
	return err
}

// RemoveTag detaches tag from a model.
func (d *Database) RemoveTag(ctx context.Context, modelID int64, tag string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("remove_tag", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, "DELETE FROM tags WHERE model_id = ? AND tag = ?", modelID, strings.TrimSpace(tag))
	if err != nil {
		return err
	}
	err = requireAffected(res)
	return err
}

// GetModelTags returns the tags of a model sorted alphabetically.
func (d *Database) GetModelTags(ctx context.Context, modelID int64) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_model_tags", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, "SELECT tag FROM tags WHERE model_id = ? ORDER BY tag COLLATE NOCASE", modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err = rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	err = rows.Err()
	return tags, err
}

// SetModelTags replaces the tags of a model with tags in one transaction.
// Blank entries are dropped.
func (d *Database) SetModelTags(ctx context.Context, modelID int64, tags []string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_model_tags", start, err) }()

	err = d.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := requireModel(ctx, tx, modelID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE model_id = ?", modelID); err != nil {
			return err
		}
		for _, tag := range tags {
			tag, err := normalizeTag(tag)
			if err != nil {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO tags (model_id, tag) VALUES (?, ?)
				ON CONFLICT(model_id, tag) DO NOTHING
			`, modelID, tag); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// GetAllTags returns every tag with its model count, most used first.
func (d *Database) GetAllTags(ctx context.Context) ([]TagCount, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_all_tags", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, `
		SELECT tag, COUNT(*) FROM tags
		GROUP BY tag COLLATE NOCASE
		ORDER BY COUNT(*) DESC, tag COLLATE NOCASE
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []TagCount{}
	for rows.Next() {
		var tc TagCount
		if err = rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		tags = append(tags, tc)
	}
	err = rows.Err()
	return tags, err
}

// GetModelsByTag returns the models carrying tag, without thumbnails.
func (d *Database) GetModelsByTag(ctx context.Context, tag string) ([]Model, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_models_by_tag", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, `
		SELECT `+modelColumns+` FROM models
		WHERE id IN (SELECT model_id FROM tags WHERE tag = ?)
		ORDER BY short_name COLLATE NOCASE, id
	`, strings.TrimSpace(tag))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		var m *Model
		if m, err = scanModel(rows, false); err != nil {
			return nil, err
		}
		models = append(models, *m)
	}
	err = rows.Err()
	return models, err
}

// GetTagsForModels returns the tags of every tagged model keyed by model id.
func (d *Database) GetTagsForModels(ctx context.Context) (map[int64][]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_tags_for_models", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, "SELECT model_id, tag FROM tags")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]string)
	for rows.Next() {
		var id int64
		var tag string
		if err = rows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		out[id] = append(out[id], tag)
	}
	for _, tags := range out {
		sort.Strings(tags)
	}
	err = rows.Err()
	return out, err
}
