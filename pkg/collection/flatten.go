package collection

import "strings"

// Reserved record keys.
const (
	// KeyPath holds the slash-joined location of the leaf in the tree.
	KeyPath = "path"
	// KeyStorePath holds a leaf's external storage location, if any.
	KeyStorePath = "store_path"
)

// Record is the flat, path-addressed form of one leaf: its attributes under
// their external (dotted) keys plus the reserved "path" key.
type Record map[string]any

// Path returns the record's path, or "" if it is missing or not a string.
func (r Record) Path() string {
	s, _ := r[KeyPath].(string)
	return s
}

// Depth returns the number of '/' separators in the record's path.
func (r Record) Depth() int {
	return strings.Count(r.Path(), "/")
}

// ImageID returns the record's image id and the key it was found under,
// trying each accepted spelling in turn. The result is false if the first
// key found does not hold an integer, or no key is present.
func (r Record) ImageID() (int64, string, bool) {
	for style := IDStyleOMERO; style <= IDStyleBare; style++ {
		key := style.ImageIDKey()
		if v, found := r[key]; found {
			id, ok := toInt64(v)
			return id, key, ok
		}
	}
	return 0, "", false
}

// Flatten returns one record per leaf of w, in depth-first order.
func Flatten(w *Wrapper) []Record {
	return w.OME.Flatten()
}

// Flatten returns one record per leaf, in depth-first order with siblings
// left to right. Collections contribute only their name as a path segment.
func (c *OMECollection) Flatten() []Record {
	leaves := c.Leaves()
	out := make([]Record, 0, len(leaves))
	for _, l := range leaves {
		out = append(out, l.Node.Record(l.Path))
	}
	return out
}

// Record returns the flat record of the leaf located at path.
func (n *MultiscaleNode) Record(path string) Record {
	var r Record
	if n.Attributes != nil {
		r = n.Attributes.Map()
	} else {
		r = Record{}
	}
	if n.Path != "" {
		r[KeyStorePath] = n.Path
	}
	r[KeyPath] = path
	return r
}
