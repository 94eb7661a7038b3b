// Package collection models OME collections: trees of microscopy image
// nodes, and their flat, path-addressed record form.
//
// # Overview
//
// A collection tree groups multiscale images (leaves) into nested
// collections. Leaves carry [Attributes]: the image identity, an optional
// category/origin classification, and for derived images the names of the
// leaves they were computed from. The tree is exchanged as JSON:
//
//	{"ome": {
//	  "version": "0.x",
//	  "type": "collection",
//	  "name": "cells",
//	  "nodes": [
//	    {"type": "multiscale", "name": "raw", "attributes": {"omero:image_id": 1}},
//	    {"type": "collection", "name": "labels", "nodes": [
//	      {"type": "multiscale", "name": "seg",
//	       "attributes": {"omero:image_id": 2, "label": {"source": "raw"}}}
//	    ]}
//	  ]
//	}}
//
// # Validation
//
// Every rule is enforced when a node is constructed, by the New* functions
// and by JSON decoding, never later. Violations are reported as
// SCHEMA_VIOLATION errors from [github.com/matzehuels/omecollection/pkg/errors]
// whose Rule names what broke:
//
//   - nodes_path: a collection sets both nodes and path, or neither
//   - discriminator: the node type is not collection or multiscale
//   - identity: a leaf has no image id
//   - name, unique_name: a name is empty, contains '/', or repeats among siblings
//   - category, origin, source: the attribute coupling below is broken
//
// Once category or origin is present, category must be intensities or
// annotations, origin must be raw/processed for intensities and
// masks/tracks/shapes/points for annotations, raw intensities must not name
// a source and every other origin must.
//
// # Flat records
//
// [Flatten] walks the tree depth-first and emits one [Record] per leaf:
//
//	{"path": "raw", "omero:image_id": 1}
//	{"path": "labels/seg", "omero:image_id": 2, "label.source": "raw"}
//
// [Unflatten] reverses this for an unordered record set, synthesizing the
// ancestor collections implied by each path. Flattening the result yields
// the same record set. Records carry no ordering field, so siblings come
// back in first-seen order after sorting by depth.
//
// # Concurrency
//
// Everything in this package is synchronous and free of shared state.
// Trees are not mutated after construction, so they may be read
// concurrently.
package collection
