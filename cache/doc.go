// Package cache serves control get-state requests from a region the DSP
// keeps up to date, avoiding a round trip to the adapter.
//
// The region is a packed sequence of entries. Each entry starts with an
// info word (control type, entry size in 32-bit words, control index)
// followed by a payload whose layout depends only on the control type.
//
// Only the values listed in the attribute table are cached. Anything else
// misses and must be fetched from the DSP. After a successful set-state the
// confirmed value from the response is written back with [Cache.Sync].
package cache
