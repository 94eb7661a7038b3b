package collection

import (
	"encoding/json"
	"strings"

	cerrors "github.com/matzehuels/omecollection/pkg/errors"
)

// Kind is the discriminator tag of a node.
type Kind string

// Node kinds.
const (
	KindCollection Kind = "collection"
	KindMultiscale Kind = "multiscale"
)

// Node is an element of the collection tree: a *CollectionNode or a
// *MultiscaleNode. The set is closed; traversals type-switch on the
// concrete type.
type Node interface {
	NodeName() string
	Kind() Kind
	// IsCollection reports whether the node groups other nodes.
	IsCollection() bool

	sealed()
}

// CollectionNode groups child nodes, or references a sub-tree stored
// elsewhere through Path. Exactly one of Nodes and Path is set: Nodes is
// non-nil (possibly empty) for inline groups, Path is non-empty for
// references.
type CollectionNode struct {
	Name       string
	Nodes      []Node
	Path       string
	Attributes map[string]any
}

// MultiscaleNode is a leaf describing one image.
type MultiscaleNode struct {
	Name       string
	Path       string // external storage location, optional
	Attributes *Attributes
}

func (n *CollectionNode) NodeName() string { return n.Name }
func (n *CollectionNode) Kind() Kind { return KindCollection }
func (n *CollectionNode) IsCollection() bool { return true }
func (n *CollectionNode) sealed() {}

func (n *MultiscaleNode) NodeName() string { return n.Name }
func (n *MultiscaleNode) Kind() Kind { return KindMultiscale }
func (n *MultiscaleNode) IsCollection() bool { return false }
func (n *MultiscaleNode) sealed() {}

// IsReference reports whether the collection points at an external sub-tree.
func (n *CollectionNode) IsReference() bool { return n.Path != "" }

// IsLabel reports whether the leaf is a derived annotation image.
func (n *MultiscaleNode) IsLabel() bool {
	return n.Attributes != nil && n.Attributes.IsLabel()
}

// Sources returns the names the label was computed from; empty for
// intensity leaves.
func (n *MultiscaleNode) Sources() []string {
	if n.Attributes == nil {
		return []string{}
	}
	return n.Attributes.Sources()
}

// NewMultiscaleNode returns a validated leaf.
func NewMultiscaleNode(name string, attrs *Attributes) (*MultiscaleNode, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if attrs == nil {
		return nil, cerrors.Violation(cerrors.RuleIdentity, "attributes", "multiscale node %q requires attributes", name)
	}
	if err := attrs.Validate(); err != nil {
		return nil, err
	}
	return &MultiscaleNode{Name: name, Attributes: attrs}, nil
}

// WithPath returns a copy of the leaf pointing at an external storage location.
func (n *MultiscaleNode) WithPath(path string) *MultiscaleNode {
	cp := *n
	cp.Path = path
	return &cp
}

// NewCollectionNode returns a validated inline collection. A nil nodes
// slice is an empty group, not a missing one.
func NewCollectionNode(name string, nodes []Node) (*CollectionNode, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := checkSiblings(nodes); err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []Node{}
	}
	return &CollectionNode{Name: name, Nodes: nodes}, nil
}

// NewCollectionRef returns a collection that references a sub-tree stored at path.
func NewCollectionRef(name, path string) (*CollectionNode, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, cerrors.Violation(cerrors.RuleNodesPath, "path", "collection %q must set either nodes or path", name)
	}
	return &CollectionNode{Name: name, Path: path}, nil
}

// checkName rejects names that cannot serve as path segments.
func checkName(name string) error {
	if name == "" {
		return cerrors.Violation(cerrors.RuleName, "name", "node name must not be empty")
	}
	if strings.Contains(name, "/") {
		return cerrors.Violation(cerrors.RuleName, "name", "node name %q must not contain '/'", name)
	}
	return nil
}

// checkSiblings enforces unique names among siblings.
func checkSiblings(nodes []Node) error {
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n == nil {
			return cerrors.Violation(cerrors.RuleDocument, "nodes", "nil node")
		}
		if seen[n.NodeName()] {
			return cerrors.Violation(cerrors.RuleUniqueName, "name", "duplicate sibling name %q", n.NodeName())
		}
		seen[n.NodeName()] = true
	}
	return nil
}

// =============================================================================
// JSON
// =============================================================================

type rawNode struct {
	Type       Kind            `json:"type"`
	Name       string          `json:"name"`
	Path       *string         `json:"path"`
	Nodes      json.RawMessage `json:"nodes"`
	Attributes json.RawMessage `json:"attributes"`
}

// present reports whether a raw field was given a non-null value.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// DecodeNode decodes and validates a node and its descendants from JSON.
func DecodeNode(data []byte) (Node, error) {
	return decodeNode(data, "")
}

// NodeFromMap builds a node from an untyped mapping, as produced by
// decoding arbitrary JSON or YAML.
func NodeFromMap(m map[string]any) (Node, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, malformed("node", err)
	}
	return DecodeNode(data)
}

func decodeNode(data []byte, parent string) (Node, error) {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, cerrors.AtPath(malformed("node", err), parent)
	}
	path := joinPath(parent, raw.Name)

	var (
		n   Node
		err error
	)
	switch raw.Type {
	case KindCollection:
		n, err = decodeCollectionNode(raw, path)
	case KindMultiscale:
		n, err = decodeMultiscaleNode(raw)
	case "":
		err = cerrors.Violation(cerrors.RuleDiscriminator, "type", "node type is required")
	default:
		err = cerrors.Violation(cerrors.RuleDiscriminator, "type",
			"node type must be %s or %s, got %q", KindCollection, KindMultiscale, raw.Type)
	}
	if err != nil {
		return nil, cerrors.AtPath(err, path)
	}
	return n, nil
}

func decodeCollectionNode(raw rawNode, path string) (*CollectionNode, error) {
	hasNodes, hasPath := present(raw.Nodes), raw.Path != nil
	switch {
	case hasNodes && hasPath:
		return nil, cerrors.Violation(cerrors.RuleNodesPath, "nodes", "collection cannot have both nodes and path")
	case !hasNodes && !hasPath:
		return nil, cerrors.Violation(cerrors.RuleNodesPath, "nodes", "collection must have either nodes or path")
	}

	var (
		n   *CollectionNode
		err error
	)
	if hasPath {
		n, err = NewCollectionRef(raw.Name, *raw.Path)
	} else {
		var children []Node
		if children, err = decodeNodes(raw.Nodes, path); err != nil {
			return nil, err
		}
		n, err = NewCollectionNode(raw.Name, children)
	}
	if err != nil {
		return nil, err
	}

	if present(raw.Attributes) {
		if err := decodeJSON(raw.Attributes, &n.Attributes); err != nil {
			return nil, malformed("attributes", err)
		}
	}
	return n, nil
}

func decodeMultiscaleNode(raw rawNode) (*MultiscaleNode, error) {
	if present(raw.Nodes) {
		return nil, cerrors.Violation(cerrors.RuleDiscriminator, "nodes", "multiscale node cannot have child nodes")
	}
	var attrs *Attributes
	if present(raw.Attributes) {
		attrs = &Attributes{}
		if err := attrs.UnmarshalJSON(raw.Attributes); err != nil {
			return nil, err
		}
	}
	n, err := NewMultiscaleNode(raw.Name, attrs)
	if err != nil {
		return nil, err
	}
	if raw.Path != nil {
		n.Path = *raw.Path
	}
	return n, nil
}

// decodeNodes decodes a JSON array of nodes whose parent sits at path.
func decodeNodes(data json.RawMessage, path string) ([]Node, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, malformed("nodes", err)
	}
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		n, err := decodeNode(item, path)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := checkSiblings(nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

type collectionNodeJSON struct {
	Type       Kind           `json:"type"`
	Name       string         `json:"name"`
	Nodes      *[]Node        `json:"nodes,omitempty"`
	Path       string         `json:"path,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// MarshalJSON writes the collection in its tagged tree form.
func (n *CollectionNode) MarshalJSON() ([]byte, error) {
	out := collectionNodeJSON{
		Type:       KindCollection,
		Name:       n.Name,
		Path:       n.Path,
		Attributes: n.Attributes,
	}
	if n.Path == "" {
		nodes := n.Nodes
		if nodes == nil {
			nodes = []Node{}
		}
		out.Nodes = &nodes
	}
	return json.Marshal(out)
}

type multiscaleNodeJSON struct {
	Type       Kind        `json:"type"`
	Name       string      `json:"name"`
	Path       string      `json:"path,omitempty"`
	Attributes *Attributes `json:"attributes,omitempty"`
}

// MarshalJSON writes the leaf in its tagged tree form.
func (n *MultiscaleNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(multiscaleNodeJSON{
		Type:       KindMultiscale,
		Name:       n.Name,
		Path:       n.Path,
		Attributes: n.Attributes,
	})
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}
