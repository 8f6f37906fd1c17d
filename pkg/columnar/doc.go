// Package columnar decodes BSON documents straight into fixed-width column
// buffers owned by the caller.
//
// # Overview
//
// A Set describes the destination layout of one query: an ordered list of
// columns sharing a row capacity. Each Column binds a field name (or dotted
// path) and a semantic Type to two caller-owned buffers:
//
//   - storage: NumRows fixed-width slots, numbers in host byte order
//   - mask: NumRows bytes, 1 when the row's value is absent or invalid, 0 otherwise
//
// The decode routine for a column is chosen from a static table when the
// column is bound, so DecodeRow never switches on the type per row.
//
// # Usage Example
//
//	set, _ := columnar.New(2, 1000)
//	aStore, aMask, _ := columnar.AllocColumn(columnar.TypeInt32, 0, 1000)
//	bStore, bMask, _ := columnar.AllocColumn(columnar.TypeString, 16, 1000)
//	_ = set.SetColumn(0, "a", columnar.TypeInt32, 0, aStore, aMask)
//	_ = set.SetColumn(1, "user.name", columnar.TypeString, 16, bStore, bMask)
//
//	failed := set.DecodeRow(doc, 0)
//
// # Truncation
//
// Text, binary, sub-document and array columns copy at most their declared
// width and zero-fill the remainder. Longer source values are truncated and
// still count as loaded. Numeric narrowing is plain bit truncation.
//
// # Thread Safety
//
// A Set is not safe for concurrent use. Concurrent queries need separate Sets
// bound to separate buffers.
package columnar
