package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// checkParent verifies that parentID is either RootParent or an object of
// modelID.
func checkParent(ctx context.Context, q querier, modelID, parentID int64) error {
	if parentID == RootParent {
		return nil
	}
	var owner int64
	err := q.QueryRowContext(ctx, "SELECT model_id FROM objects WHERE object_id = ?", parentID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidParent
	}
	if err != nil {
		return err
	}
	if owner != modelID {
		return ErrInvalidParent
	}
	return nil
}

// wouldCycle reports whether making parentID the parent of objectID closes a
// loop, i.e. objectID is parentID or one of its ancestors.
func wouldCycle(ctx context.Context, q querier, objectID, parentID int64) (bool, error) {
	if parentID == RootParent {
		return false, nil
	}
	if parentID == objectID {
		return true, nil
	}
	var found bool
	err := q.QueryRowContext(ctx, `
		WITH RECURSIVE ancestors(id) AS (
			SELECT ?
			UNION
			SELECT o.parent_object_id FROM objects o
			JOIN ancestors a ON o.object_id = a.id
			WHERE o.parent_object_id != -1
		)
		SELECT EXISTS(SELECT 1 FROM ancestors WHERE id = ?)
	`, parentID, objectID).Scan(&found)
	return found, err
}

func insertObject(ctx context.Context, q querier, o *Object) error {
	if o.ModelID == 0 {
		return ErrInvalidID
	}
	if err := checkParent(ctx, q, o.ModelID, o.ParentObjectID); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO objects (model_id, name, parent_object_id, is_selected)
		VALUES (?, ?, ?, ?)
	`, o.ModelID, o.Name, o.ParentObjectID, boolToInt(o.IsSelected))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ObjectID = id
	return nil
}

func setParent(ctx context.Context, q querier, objectID, parentID int64) error {
	var modelID int64
	err := q.QueryRowContext(ctx, "SELECT model_id FROM objects WHERE object_id = ?", objectID).Scan(&modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := checkParent(ctx, q, modelID, parentID); err != nil {
		return err
	}
	cycle, err := wouldCycle(ctx, q, objectID, parentID)
	if err != nil {
		return err
	}
	if cycle {
		return ErrParentCycle
	}
	_, err = q.ExecContext(ctx, "UPDATE objects SET parent_object_id = ? WHERE object_id = ?", parentID, objectID)
	return err
}

func setObjectSelected(ctx context.Context, q querier, objectID int64, selected bool) error {
	res, err := q.ExecContext(ctx, "UPDATE objects SET is_selected = ? WHERE object_id = ?", boolToInt(selected), objectID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func deleteObjectsForModel(ctx context.Context, q querier, modelID int64) (int64, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM objects WHERE model_id = ?", modelID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertObject stores o and sets its ObjectID. The parent, if any, must
// exist and belong to the same model.
func (d *Database) InsertObject(ctx context.Context, o *Object) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_object", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = insertObject(ctx, d.db, o)
	return err
}

// UpdateObject rewrites the name, selection and parent of an existing
// object. The model it belongs to cannot change.
func (d *Database) UpdateObject(ctx context.Context, o Object) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_object", start, err) }()

	err = d.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := setParent(ctx, tx, o.ObjectID, o.ParentObjectID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "UPDATE objects SET name = ?, is_selected = ? WHERE object_id = ?",
			o.Name, boolToInt(o.IsSelected), o.ObjectID)
		return err
	})
	return err
}

// UpdateObjectParent re-parents an object. It fails with ErrInvalidParent if
// the new parent is missing or in another model and with ErrParentCycle if
// the object is the new parent or one of its ancestors.
func (d *Database) UpdateObjectParent(ctx context.Context, objectID, parentID int64) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_object_parent", start, err) }()

	err = d.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return setParent(ctx, tx, objectID, parentID)
	})
	return err
}

// SetObjectSelected flags or unflags an object.
func (d *Database) SetObjectSelected(ctx context.Context, objectID int64, selected bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_object_selected", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = setObjectSelected(ctx, d.db, objectID, selected)
	return err
}

// DeleteObjectsForModel removes every object of a model and returns how many
// were deleted.
func (d *Database) DeleteObjectsForModel(ctx context.Context, modelID int64) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_objects", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int64
	n, err = deleteObjectsForModel(ctx, d.db, modelID)
	return n, err
}

// GetObjectsForModel returns the objects of a model in insertion order.
func (d *Database) GetObjectsForModel(ctx context.Context, modelID int64) ([]Object, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_objects", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, `
		SELECT object_id, model_id, name, parent_object_id, is_selected
		FROM objects WHERE model_id = ? ORDER BY object_id
	`, modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		var o Object
		var selected int
		if err = rows.Scan(&o.ObjectID, &o.ModelID, &o.Name, &o.ParentObjectID, &selected); err != nil {
			return nil, err
		}
		o.IsSelected = selected != 0
		objects = append(objects, o)
	}
	err = rows.Err()
	return objects, err
}

// ReplaceObjects atomically swaps the objects of a model for objs and
// returns them with their new ids. Every object in objs must be a root or
// reference an object earlier in objs by its position, encoded as
// -(index+2); this keeps freshly created hierarchies expressible without ids.
func (d *Database) ReplaceObjects(ctx context.Context, modelID int64, objs []Object) ([]Object, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("replace_objects", start, err) }()

	out := make([]Object, len(objs))
	err = d.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := deleteObjectsForModel(ctx, tx, modelID); err != nil {
			return err
		}
		for i, o := range objs {
			o.ModelID = modelID
			if o.ParentObjectID < RootParent {
				ref := int(-o.ParentObjectID - 2)
				if ref >= i {
					return ErrInvalidParent
				}
				o.ParentObjectID = out[ref].ObjectID
			}
			if err := insertObject(ctx, tx, &o); err != nil {
				return err
			}
			out[i] = o
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParentRef encodes a reference to the object at index i of a ReplaceObjects
// argument.
func ParentRef(i int) int64 {
	return -int64(i) - 2
}
