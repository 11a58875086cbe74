// Package metaobject provides reflective navigation over arbitrary object graphs
// through a uniform property path syntax.
//
// A path separates nesting levels with dots and addresses slice, array or map
// elements with a bracketed index:
//
//	delegate.boundSQL.sql
//	items[2].name
//	attrs[color]
//
// Values are wrapped according to their shape:
//   - structs: fields (exported and unexported), GetX/IsX getter and SetX setter methods
//   - slices and arrays: integer indices
//   - maps: the raw index token converted to the key type
//
// Writes through an unset intermediate property create a default instance of the
// property's declared type (auto-vivification) via a pluggable ObjectFactory.
//
// Type metadata is built once per reflect.Type and kept in a MetadataCache.
// DefaultCache is shared by every MetaObject unless WithMetadataCache is supplied.
//
// Common usage pattern:
//
//	meta, err := metaobject.ForObject(&handler)
//	if err != nil {
//		// handle error
//	}
//
//	sql, err := meta.GetValue("delegate.boundSQL.sql")
//	err = meta.SetValue("delegate.boundSQL.sql", rewritten)
//
// Values must be passed by pointer to be writable. A struct passed by value is
// copied, so reads work but writes never reach the caller's copy.
package metaobject
