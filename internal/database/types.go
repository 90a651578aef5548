package database

import (
	"errors"
	"time"
)

// RootParent marks an object without a parent.
const RootParent int64 = -1

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidID is returned for the reserved model id 0.
	ErrInvalidID = errors.New("invalid model id")
	// ErrModelExists is returned by InsertModel when the id is taken.
	ErrModelExists = errors.New("model already exists")
	// ErrInvalidParent is returned when an object's parent is missing or
	// belongs to a different model.
	ErrInvalidParent = errors.New("invalid parent object")
	// ErrParentCycle is returned when re-parenting would create a cycle.
	ErrParentCycle = errors.New("object parent cycle")
	// ErrEmptyTag is returned for blank tag names.
	ErrEmptyTag = errors.New("tag must not be empty")
)

// Model is one distinct geometry file content in a library.
type Model struct {
	ID           int64     `json:"id"`
	ShortName    string    `json:"shortName"`
	PrimaryFile  string    `json:"primaryFile"`
	FilePath     string    `json:"filePath"`
	LibraryName  string    `json:"libraryName"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	OverrideInfo string    `json:"overrideInfo,omitempty"`
	Thumbnail    []byte    `json:"-"`
	IsSelected   bool      `json:"isSelected"`
	IsProcessed  bool      `json:"isProcessed"`
	IsIncluded   bool      `json:"isIncluded"`
	HasThumbnail bool      `json:"hasThumbnail"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Object is a named object inside a model.
type Object struct {
	ObjectID       int64  `json:"objectId"`
	ModelID        int64  `json:"modelId"`
	Name           string `json:"name"`
	ParentObjectID int64  `json:"parentObjectId"`
	IsSelected     bool   `json:"isSelected"`
}

// IsRoot reports whether the object has no parent.
func (o Object) IsRoot() bool {
	return o.ParentObjectID == RootParent
}

// TagCount is a tag with the number of models carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ModelFilter narrows ListModels and CountModels. Nil fields match anything.
type ModelFilter struct {
	Processed *bool
	Selected  *bool
	Included  *bool
	// WithThumbnails loads thumbnail bytes; otherwise only HasThumbnail is set.
	WithThumbnails bool
	Limit          int
	Offset         int
}

// Bool returns a pointer to b, for ModelFilter literals.
func Bool(b bool) *bool {
	return &b
}

// FileChecksum is the last recorded digest of a library file.
type FileChecksum struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	CheckedAt time.Time `json:"checkedAt"`
}
