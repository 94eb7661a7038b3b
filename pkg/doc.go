// Package pkg provides the libraries behind the omecollection tool.
//
// # Overview
//
// An OME collection groups multiscale images into a named tree: collections
// hold other nodes, multiscale leaves describe one image each. Image servers
// cannot store such a tree directly, so it is flattened into one record per
// image and attached to the images as key-value annotations. The pkg
// directory is organized as:
//
//  1. [collection] - The tree model, its rules, and the tree/record transform
//  2. [io] - JSON import and export with schema checks
//  3. [store] - Annotation backends and the upload/download transfer
//  4. [render] - Graphviz drawings of a collection
//  5. [config], [errors], [observability], [buildinfo] - Shared plumbing
//
// # Data Flow
//
//	{"ome": {...}} document
//	         ↓
//	    [io] package (schema check + decode)
//	         ↓
//	    [collection] package (validated tree ⇄ flat records)
//	         ↓
//	    [store] package (collection + node annotations)
//
// # Quick Start
//
//	import (
//	    ocio "github.com/matzehuels/omecollection/pkg/io"
//	    "github.com/matzehuels/omecollection/pkg/store"
//	)
//
//	w, _ := ocio.ImportJSON("experiment.json")
//	s, _ := store.Open(ctx, store.Options{Backend: store.BackendSQLite, DSN: "store.db"})
//	defer s.Close()
//
//	tr := store.NewTransfer(s, logger, store.DefaultConcurrency)
//	id, _ := tr.Upload(ctx, w)
//	back, _ := tr.Download(ctx, id)
//
// [collection]: github.com/matzehuels/omecollection/pkg/collection
// [io]: github.com/matzehuels/omecollection/pkg/io
// [store]: github.com/matzehuels/omecollection/pkg/store
// [render]: github.com/matzehuels/omecollection/pkg/render
// [config]: github.com/matzehuels/omecollection/pkg/config
// [errors]: github.com/matzehuels/omecollection/pkg/errors
// [observability]: github.com/matzehuels/omecollection/pkg/observability
// [buildinfo]: github.com/matzehuels/omecollection/pkg/buildinfo
package pkg
