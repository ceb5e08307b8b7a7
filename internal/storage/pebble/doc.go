// Package pebblestore wraps a Pebble database behind the narrow surface
// the journal needs: durable point put/delete, copying get, ascending
// bounded iteration, and compaction hints.
//
// The wrapper owns two policies the callers must not re-decide per call:
// the fsync mode applied to every committed batch, and the comparer the
// database was opened with. Collections that share a database share one
// *DB handle and therefore one durability policy and one key order.
package pebblestore
