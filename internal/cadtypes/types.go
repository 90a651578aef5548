package cadtypes

import "strings"

// Category is the classification of a library file.
type Category string

const (
	// CategoryGeometry covers the native format and third-party CAD formats.
	CategoryGeometry Category = "geometry"
	// CategoryImage covers image files.
	CategoryImage Category = "images"
	// CategoryDocument covers documents.
	CategoryDocument Category = "documents"
	// CategoryData covers structured data files.
	CategoryData Category = "data"
	// CategoryOther is anything not on an allow-list.
	CategoryOther Category = "other"
)

// NativeExtension is the extension of the toolkit's own geometry database.
const NativeExtension = ".g"

// GeometryExtensions lists the native format followed by third-party CAD and
// mesh formats.
var GeometryExtensions = []string{
	NativeExtension,
	".3dm", ".3ds", ".3mf", ".amf", ".asc", ".brep", ".catpart", ".catproduct",
	".dae", ".dgn", ".dwg", ".dxf", ".f3d", ".fbx", ".fcstd", ".glb", ".gltf",
	".iam", ".ifc", ".iges", ".igs", ".ipt", ".jt", ".lwo", ".max", ".nas",
	".nastran", ".obj", ".off", ".par", ".ply", ".prt", ".psm", ".rib", ".sab",
	".sat", ".scad", ".skp", ".sldasm", ".sldprt", ".step", ".stl", ".stp",
	".vrml", ".wrl", ".x3d", ".x_b", ".x_t", ".xgl", ".zae",
}

// ImageExtensions lists supported image formats.
var ImageExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp", ".svg",
	".pix", ".bw", ".ppm", ".pgm", ".pbm", ".tga", ".ico",
}

// DocumentExtensions lists supported document formats.
var DocumentExtensions = []string{
	".pdf", ".doc", ".docx", ".odt", ".rtf", ".txt", ".md", ".html", ".htm",
	".ppt", ".pptx", ".odp", ".tex", ".ps", ".eps",
}

// DataExtensions lists supported data formats.
var DataExtensions = []string{
	".csv", ".tsv", ".json", ".xml", ".yaml", ".yml", ".xls", ".xlsx", ".ods",
	".dat", ".db", ".sqlite", ".h5", ".hdf5",
}

// MimeTypes maps preview image extensions to their MIME types.
var MimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

var categoryIndex = buildCategoryIndex()

func buildCategoryIndex() map[string]Category {
	idx := make(map[string]Category)
	add := func(c Category, exts []string) {
		for _, e := range exts {
			if _, ok := idx[e]; !ok {
				idx[e] = c
			}
		}
	}
	add(CategoryGeometry, GeometryExtensions)
	add(CategoryImage, ImageExtensions)
	add(CategoryDocument, DocumentExtensions)
	add(CategoryData, DataExtensions)
	return idx
}

// NormalizeExt lower-cases an extension and makes sure it has a leading dot.
// The empty string stays empty.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// Classify returns the category for an extension. The extension is
// normalized first.
func Classify(ext string) Category {
	if c, ok := categoryIndex[NormalizeExt(ext)]; ok {
		return c
	}
	return CategoryOther
}

// Extensions returns the allow-list for a category, or nil for
// CategoryOther and unknown categories.
func Extensions(c Category) []string {
	switch c {
	case CategoryGeometry:
		return GeometryExtensions
	case CategoryImage:
		return ImageExtensions
	case CategoryDocument:
		return DocumentExtensions
	case CategoryData:
		return DataExtensions
	}
	return nil
}

// ParseCategory maps a user-supplied name ("geometry", "images", "docs", ...)
// onto a Category.
func ParseCategory(name string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "geometry", "geo":
		return CategoryGeometry, true
	case "images", "image", "img":
		return CategoryImage, true
	case "documents", "document", "docs", "doc":
		return CategoryDocument, true
	case "data":
		return CategoryData, true
	}
	return CategoryOther, false
}

// GetMimeType returns the MIME type for a preview extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[NormalizeExt(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsNative reports whether ext is the toolkit's native geometry format.
func IsNative(ext string) bool {
	return NormalizeExt(ext) == NativeExtension
}
