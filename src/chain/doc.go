// Package chain implements the content store, the action log and the chain
// resolver of the record store.
//
// Entries are immutable payloads addressed by the BLAKE3 hash of their bytes.
// Actions (Create, Update, Delete) are addressed by the SHA256 hash of their
// canonical JSON body and point to entries and to earlier actions by hash. The
// result is a DAG: every Update carries the hash of the Create that started
// its record (the origin) and the hash of the action it was based on (the
// previous action). Two Updates based on the same previous action form a
// fork.
//
// The Log is the only way actions enter a Store. It checks that every
// referenced hash is already present and that the references obey the chain
// rules, then assigns the action a topological index. A missing reference is
// reported as a KeyNotFound StoreErr, which is recoverable: the missing item
// may arrive later from another peer. A reference that resolves to the wrong
// kind of action is reported as Malformed.
//
// The Resolver turns the flat log back into records: original and latest
// entries, the ordered list of revisions, and the deletes (tombstones) that
// target an action.
package chain
