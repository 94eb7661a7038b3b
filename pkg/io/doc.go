// Package io provides JSON import and export for OME collection documents
// and their flat record lists.
//
// # Overview
//
// Two formats are supported. The tree document is the {"ome": {...}}
// envelope described in [collection]. The record list is a JSON array of
// flat records as produced by [collection.Flatten]:
//
//	[
//	  {"path": "raw", "omero:image_id": 1},
//	  {"path": "labels/seg", "omero:image_id": 2, "label.source": "raw"}
//	]
//
// # Import
//
// Use [ImportJSON] to read a document from a file path, or [ReadJSON] to
// read from any io.Reader:
//
//	w, err := io.ImportJSON("collection.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Input is validated in two passes. An embedded JSON Schema checks the
// document shape (objects where objects belong, strings where strings
// belong) and reports failures as SCHEMA_VIOLATION with rule "document"
// and the offending location as field, e.g. ome.nodes[0].name. Typed
// decoding then applies every collection rule. [ReadRecords] and
// [ImportRecords] do the same for record lists, leaving path and
// attribute rules to [collection.Unflatten].
//
// # Export
//
// [WriteJSON], [ExportJSON], [WriteRecords] and [ExportRecords] write
// indented JSON. Exported documents re-import identically.
//
// # Concurrency
//
// All functions are safe for concurrent use. The embedded schemas are
// compiled once, on first use.
package io
