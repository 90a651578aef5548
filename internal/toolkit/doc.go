// Package toolkit runs the external geometry toolkit (BRL-CAD's mged and rt
// by default) as bounded-time subprocesses.
//
// Runner is the low-level seam: one command, one timeout, typed failures.
// ExecRunner starts each command in its own process group and kills the
// whole group when the timeout expires, so helpers forked by the toolkit
// cannot keep the call alive.
//
// Toolkit layers the operations cadventory needs on top of a Runner:
//
//	Title         print the database title
//	TopObjects    list top-level objects
//	Tree          list the members of a combination
//	ObjectExists  exit status 0 when the object exists
//	Render        raytrace one object to an image file
//
// Command lines are templates so other toolkits, or other versions of
// BRL-CAD, can be plugged in through configuration. Placeholders are
// {mged}, {rt}, {file}, {object}, {output} and {size}, substituted in one
// pass.
package toolkit
