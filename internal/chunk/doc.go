// Package chunk implements the chunk collection co-located with a journal
// in the same store.
//
// Chunks live in their own keyspace (keys.Chunk), so they share the
// database, comparer, and durability policy with the journal while staying
// invisible to its recovery scan. Unlike queue entries, chunks are
// addressed individually by id and carry a crc32c checksum so reads detect
// external corruption.
package chunk
