package collection

import (
	"slices"
	"sort"
	"strings"

	cerrors "github.com/matzehuels/omecollection/pkg/errors"
)

// Unflatten rebuilds a tree named name from an unordered set of records.
//
// Records are processed by ascending path depth, ties in input order.
// Ancestor collections are created the first time a descendant needs them,
// and siblings keep the order in which they were first seen. Records carry
// no ordering field, so the original sibling order is not recoverable in
// general; only the set of leaves and their attributes round-trips.
//
// Any malformed path or attribute payload aborts the whole call with a
// SCHEMA_VIOLATION; no partial tree is returned.
func Unflatten(records []Record, name, version string) (*Wrapper, error) {
	sorted := slices.Clone(records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Depth() < sorted[j].Depth()
	})

	var (
		roots       []Node
		collections = map[string]*CollectionNode{}
		leaves      = map[string]bool{}
	)
	attach := func(parent string, n Node) {
		if parent == "" {
			roots = append(roots, n)
			return
		}
		coll := collections[parent]
		coll.Nodes = append(coll.Nodes, n)
	}

	for _, rec := range sorted {
		path, parts, err := recordPath(rec)
		if err != nil {
			return nil, err
		}
		if leaves[path] {
			return nil, pathViolation(path, "duplicate record path")
		}
		if _, ok := collections[path]; ok {
			return nil, pathViolation(path, "path is both a leaf and a collection")
		}

		for depth := 1; depth < len(parts); depth++ {
			prefix := strings.Join(parts[:depth], "/")
			if leaves[prefix] {
				return nil, pathViolation(path, "ancestor "+prefix+" is a leaf")
			}
			if _, ok := collections[prefix]; ok {
				continue
			}
			coll := &CollectionNode{Name: parts[depth-1], Nodes: []Node{}}
			collections[prefix] = coll
			attach(strings.Join(parts[:depth-1], "/"), coll)
		}

		leaf, err := leafFromRecord(parts[len(parts)-1], rec)
		if err != nil {
			return nil, cerrors.AtPath(err, path)
		}
		leaves[path] = true
		attach(strings.Join(parts[:len(parts)-1], "/"), leaf)
	}

	root, err := NewCollection(name, version, roots)
	if err != nil {
		return nil, err
	}
	return root.Wrap(), nil
}

// recordPath validates the record's path and splits it into segments.
func recordPath(rec Record) (string, []string, error) {
	v, ok := rec[KeyPath]
	if !ok {
		return "", nil, cerrors.Violation(cerrors.RulePath, KeyPath, "record has no path")
	}
	path, ok := v.(string)
	if !ok {
		return "", nil, cerrors.Violation(cerrors.RulePath, KeyPath, "record path must be a string, got %T", v)
	}
	if path == "" {
		return "", nil, cerrors.Violation(cerrors.RulePath, KeyPath, "record path must not be empty")
	}
	parts := strings.Split(path, "/")
	if slices.Contains(parts, "") {
		return "", nil, pathViolation(path, "path has an empty segment")
	}
	return path, parts, nil
}

func pathViolation(path, msg string) error {
	return cerrors.AtPath(cerrors.Violation(cerrors.RulePath, KeyPath, "%s", msg), path)
}

// leafFromRecord builds a leaf from every record field except the reserved ones.
func leafFromRecord(name string, rec Record) (*MultiscaleNode, error) {
	attrs := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == KeyPath || k == KeyStorePath {
			continue
		}
		attrs[k] = v
	}
	parsed, err := ParseAttributes(attrs)
	if err != nil {
		return nil, err
	}
	leaf, err := NewMultiscaleNode(name, parsed)
	if err != nil {
		return nil, err
	}
	if sp, ok := rec[KeyStorePath].(string); ok {
		leaf.Path = sp
	}
	return leaf, nil
}
