package database

// Batch methods run inside the batch transaction and are not guarded by the
// store mutex; a Batch must not be shared between goroutines.

// SaveModel inserts or fully overwrites a model.
func (b *Batch) SaveModel(m *Model) error {
	return saveModel(b.ctx, b.tx, m)
}

// SetModelSelected flags or unflags a model for reports.
func (b *Batch) SetModelSelected(id int64, selected bool) error {
	res, err := b.tx.ExecContext(b.ctx, "UPDATE models SET is_selected = ? WHERE id = ?", boolToInt(selected), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetModelIncluded includes or excludes a model from processing.
func (b *Batch) SetModelIncluded(id int64, included bool) error {
	res, err := b.tx.ExecContext(b.ctx, "UPDATE models SET is_included = ? WHERE id = ?", boolToInt(included), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetObjectSelected flags or unflags an object.
func (b *Batch) SetObjectSelected(objectID int64, selected bool) error {
	return setObjectSelected(b.ctx, b.tx, objectID, selected)
}

// InsertObject stores o and sets its ObjectID.
func (b *Batch) InsertObject(o *Object) error {
	return insertObject(b.ctx, b.tx, o)
}

// DeleteObjectsForModel removes every object of a model.
func (b *Batch) DeleteObjectsForModel(modelID int64) (int64, error) {
	return deleteObjectsForModel(b.ctx, b.tx, modelID)
}

// UpsertFileChecksum records the checksum of one file.
func (b *Batch) UpsertFileChecksum(fc FileChecksum) error {
	return upsertChecksum(b.ctx, b.tx, fc)
}

// DeleteFileChecksum forgets the checksum of one file.
func (b *Batch) DeleteFileChecksum(path string) error {
	_, err := b.tx.ExecContext(b.ctx, "DELETE FROM file_checksums WHERE path = ?", path)
	return err
}
