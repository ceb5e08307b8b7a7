// Package keys defines the fixed-width key codec shared by every
// collection stored in one journal database.
//
// A key is 16 bytes: [keyspace u64 BE][sequence id u64 BE]. Big-endian
// field encoding makes byte-lexicographic order equal the logical order
// (keyspace first, then id), so all keys of one keyspace form a contiguous
// range under ascending iteration.
//
// The codec also provides the Pebble comparer that carries this order into
// the store. The comparer is part of the on-disk protocol: a database
// written with it cannot be opened under Pebble's default comparator, and
// vice versa.
package keys
