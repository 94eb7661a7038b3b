// Package store persists collections as key-value annotations.
//
// A collection is stored the way an image server keeps it: one collection
// annotation (namespace "ome/collection") holding the name, version and
// leaf count, linked to every image of the collection, and one node
// annotation (namespace "ome/collection/nodes") per leaf, attached to the
// leaf's image. Node annotations hold the leaf's flat record encoded by
// [EncodeRecord] and are tagged with the owning collection's id, so one
// image can belong to several collections.
//
// # Backends
//
// [Store] is implemented by:
//
//   - [Memory]: in-process maps, for tests and ephemeral servers
//   - [File]: one JSON document per key in a hashed directory layout
//   - [SQLite]: a local database file (modernc.org/sqlite, no cgo)
//   - [Redis]: a Redis server (go-redis), keys under a prefix
//   - [Mongo]: a MongoDB database (mongo-driver)
//
// [Open] selects a backend by name and instruments it with the hooks from
// the observability package.
//
// # Transfer
//
// [Transfer] uploads a tree, downloads it back and deletes it:
//
//	tr := store.NewTransfer(s, logger, 8)
//	id, err := tr.Upload(ctx, wrapper)
//	back, err := tr.Download(ctx, id)
//
// Values come back as strings, and the codec reads any value containing a
// comma as a list. Upload refuses such values (see [CheckSeparators]) so a
// stored collection always downloads. Sibling order is not stored; see
// [collection.Unflatten].
package store
