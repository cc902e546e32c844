// Package arrayfile implements a hierarchical, growable, array-oriented file.
//
// A file holds a tree of groups. Groups hold datasets: 1-D or 2-D arrays of a
// primitive or compound dtype that can be resized along both axes, carry
// string attributes, and bind their axes to dimension scales living in the
// same file. Unwritten cells hold a per-kind sentinel (see Sentinel).
//
// Files are loaded whole on Open and written back through a temporary file
// on Close. A sidecar "<path>.lock" file, held with flock, keeps a second
// writer out; WaitAvailable polls that lock before opening.
package arrayfile
