package collection

import (
	"encoding/json"
	"errors"
	"strings"

	cerrors "github.com/matzehuels/omecollection/pkg/errors"
)

// DefaultVersion is the schema version assumed when none is given.
const DefaultVersion = "0.x"

// OMECollection is the root of a collection tree.
type OMECollection struct {
	Version    string
	Name       string
	Nodes      []Node
	Attributes map[string]any
}

// Wrapper is the {"ome": {...}} envelope used on disk and on the wire.
type Wrapper struct {
	OME *OMECollection
}

// NewCollection returns a validated root collection. An empty version
// defaults to [DefaultVersion]; nodes may be empty but top-level names must
// be unique.
func NewCollection(name, version string, nodes []Node) (*OMECollection, error) {
	if name == "" {
		return nil, cerrors.Violation(cerrors.RuleName, "name", "collection name must not be empty")
	}
	if err := checkSiblings(nodes); err != nil {
		return nil, err
	}
	if version == "" {
		version = DefaultVersion
	}
	if nodes == nil {
		nodes = []Node{}
	}
	return &OMECollection{Version: version, Name: name, Nodes: nodes}, nil
}

// Wrap returns c in its envelope.
func (c *OMECollection) Wrap() *Wrapper { return &Wrapper{OME: c} }

// IntensityNodes returns the top-level leaves that are not labels.
// It does not descend into collections.
func (c *OMECollection) IntensityNodes() []*MultiscaleNode {
	var out []*MultiscaleNode
	for _, n := range c.Nodes {
		if m, ok := n.(*MultiscaleNode); ok && !m.IsLabel() {
			out = append(out, m)
		}
	}
	return out
}

// LabelNodes returns the top-level label leaves.
// It does not descend into collections.
func (c *OMECollection) LabelNodes() []*MultiscaleNode {
	var out []*MultiscaleNode
	for _, n := range c.Nodes {
		if m, ok := n.(*MultiscaleNode); ok && m.IsLabel() {
			out = append(out, m)
		}
	}
	return out
}

// NodeByName returns the top-level leaf called name, or nil.
func (c *OMECollection) NodeByName(name string) *MultiscaleNode {
	for _, n := range c.Nodes {
		if m, ok := n.(*MultiscaleNode); ok && m.Name == name {
			return m
		}
	}
	return nil
}

// SkipCollection may be returned by a [WalkFunc] visiting a collection to
// skip its children.
var SkipCollection = errors.New("skip this collection")

// WalkFunc is called for every node with its slash-joined path.
type WalkFunc func(path string, n Node) error

// Walk visits nodes depth-first, parents before children, siblings in order.
func Walk(nodes []Node, fn WalkFunc) error {
	return walk(nodes, "", fn)
}

func walk(nodes []Node, prefix string, fn WalkFunc) error {
	for _, n := range nodes {
		path := joinPath(prefix, n.NodeName())
		err := fn(path, n)
		switch n := n.(type) {
		case *CollectionNode:
			if errors.Is(err, SkipCollection) {
				continue
			}
			if err != nil {
				return err
			}
			if err := walk(n.Nodes, path, fn); err != nil {
				return err
			}
		case *MultiscaleNode:
			if err != nil && !errors.Is(err, SkipCollection) {
				return err
			}
		}
	}
	return nil
}

// Walk visits every node of the tree. See [Walk].
func (c *OMECollection) Walk(fn WalkFunc) error {
	return Walk(c.Nodes, fn)
}

// Leaf is a multiscale node together with its path in the tree.
type Leaf struct {
	Path string
	Node *MultiscaleNode
}

// Leaves returns every leaf in depth-first order.
func (c *OMECollection) Leaves() []Leaf {
	var out []Leaf
	_ = c.Walk(func(path string, n Node) error {
		if m, ok := n.(*MultiscaleNode); ok {
			out = append(out, Leaf{Path: path, Node: m})
		}
		return nil
	})
	return out
}

// Lookup returns the node at path, or nil.
func (c *OMECollection) Lookup(path string) Node {
	nodes := c.Nodes
	parts := strings.Split(path, "/")
	for i, part := range parts {
		var next Node
		for _, n := range nodes {
			if n.NodeName() == part {
				next = n
				break
			}
		}
		if next == nil {
			return nil
		}
		if i == len(parts)-1 {
			return next
		}
		coll, ok := next.(*CollectionNode)
		if !ok {
			return nil
		}
		nodes = coll.Nodes
	}
	return nil
}

// ResolveSources resolves the source references of the leaf at path.
//
// A reference containing '/' is a root-relative path. A bare name is looked
// up among the leaf's siblings, then at the top level, then anywhere in the
// tree if exactly one leaf has that name. References that cannot be
// resolved are returned in unresolved.
func (c *OMECollection) ResolveSources(path string) (resolved []Leaf, unresolved []string) {
	leaf, ok := c.Lookup(path).(*MultiscaleNode)
	if !ok || leaf.Attributes == nil {
		return nil, nil
	}
	parent := ""
	if i := strings.LastIndex(path, "/"); i >= 0 {
		parent = path[:i]
	}

	var leaves []Leaf
	for _, ref := range leaf.Attributes.References() {
		if l, ok := c.resolve(ref, parent, &leaves); ok {
			resolved = append(resolved, l)
		} else {
			unresolved = append(unresolved, ref)
		}
	}
	return resolved, unresolved
}

func (c *OMECollection) resolve(ref, parent string, leaves *[]Leaf) (Leaf, bool) {
	leafAt := func(p string) (Leaf, bool) {
		if m, ok := c.Lookup(p).(*MultiscaleNode); ok {
			return Leaf{Path: p, Node: m}, true
		}
		return Leaf{}, false
	}

	if strings.Contains(ref, "/") {
		return leafAt(strings.Trim(ref, "/"))
	}
	if l, ok := leafAt(joinPath(parent, ref)); ok {
		return l, true
	}
	if l, ok := leafAt(ref); ok {
		return l, true
	}

	if *leaves == nil {
		*leaves = c.Leaves()
	}
	var match Leaf
	count := 0
	for _, l := range *leaves {
		if l.Node.Name == ref {
			match = l
			count++
		}
	}
	return match, count == 1
}

// CheckSources verifies that every source reference in the tree resolves
// to a leaf. It reports all unresolved references, joined.
func (c *OMECollection) CheckSources() error {
	var errs []error
	for _, l := range c.Leaves() {
		_, unresolved := c.ResolveSources(l.Path)
		for _, ref := range unresolved {
			errs = append(errs, cerrors.AtPath(
				cerrors.Violation(cerrors.RuleSource, "source", "source %q does not match any leaf", ref), l.Path))
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// JSON
// =============================================================================

type rawCollection struct {
	Version    *string         `json:"version"`
	Type       Kind            `json:"type"`
	Name       string          `json:"name"`
	Nodes      json.RawMessage `json:"nodes"`
	Attributes json.RawMessage `json:"attributes"`
}

// UnmarshalJSON decodes and validates a root collection.
func (c *OMECollection) UnmarshalJSON(data []byte) error {
	var raw rawCollection
	if err := json.Unmarshal(data, &raw); err != nil {
		return malformed("ome", err)
	}
	if raw.Type != "" && raw.Type != KindCollection {
		return cerrors.Violation(cerrors.RuleDiscriminator, "type", "root type must be %s, got %q", KindCollection, raw.Type)
	}
	if !present(raw.Nodes) {
		return cerrors.Violation(cerrors.RuleNodesPath, "nodes", "root collection requires nodes")
	}

	nodes, err := decodeNodes(raw.Nodes, "")
	if err != nil {
		return err
	}
	version := ""
	if raw.Version != nil {
		version = *raw.Version
	}
	root, err := NewCollection(raw.Name, version, nodes)
	if err != nil {
		return err
	}
	if present(raw.Attributes) {
		if err := decodeJSON(raw.Attributes, &root.Attributes); err != nil {
			return malformed("attributes", err)
		}
	}
	*c = *root
	return nil
}

type collectionJSON struct {
	Version    string         `json:"version"`
	Type       Kind           `json:"type"`
	Name       string         `json:"name"`
	Nodes      []Node         `json:"nodes"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// MarshalJSON writes the root collection in its tree form.
func (c *OMECollection) MarshalJSON() ([]byte, error) {
	nodes := c.Nodes
	if nodes == nil {
		nodes = []Node{}
	}
	return json.Marshal(collectionJSON{
		Version:    c.Version,
		Type:       KindCollection,
		Name:       c.Name,
		Nodes:      nodes,
		Attributes: c.Attributes,
	})
}

type wrapperJSON struct {
	OME json.RawMessage `json:"ome"`
}

// UnmarshalJSON decodes and validates a {"ome": {...}} document.
func (w *Wrapper) UnmarshalJSON(data []byte) error {
	var raw wrapperJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return malformed("document", err)
	}
	if !present(raw.OME) {
		return cerrors.Violation(cerrors.RuleDocument, "ome", "document has no ome collection")
	}
	root := &OMECollection{}
	if err := root.UnmarshalJSON(raw.OME); err != nil {
		return err
	}
	w.OME = root
	return nil
}

// MarshalJSON writes the envelope.
func (w *Wrapper) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		OME *OMECollection `json:"ome"`
	}{w.OME})
}
