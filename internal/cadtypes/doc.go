// Package cadtypes holds the fixed extension allow-lists cadventory uses to
// classify files in a library.
//
// Like the rest of the foundation packages it has no dependencies beyond the
// standard library and may be imported from anywhere without cycles.
//
// # Categories
//
//	cadtypes.CategoryGeometry  // native .g databases plus third-party CAD formats
//	cadtypes.CategoryImage     // raster and vector images
//	cadtypes.CategoryDocument  // manuals, drawings, notes
//	cadtypes.CategoryData      // tabular and structured data
//	cadtypes.CategoryOther     // everything else
//
// The allow-lists are ordered slices rather than sets: callers that query an
// index category by category get results grouped in allow-list order.
//
//	ext := cadtypes.NormalizeExt(filepath.Ext(name))
//	switch cadtypes.Classify(ext) {
//	case cadtypes.CategoryGeometry:
//	    // ...
//	}
package cadtypes
