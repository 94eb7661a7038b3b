package collection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	cerrors "github.com/matzehuels/omecollection/pkg/errors"
)

// Category classifies a leaf as raw/processed intensities or derived annotations.
type Category string

// Categories.
const (
	CategoryIntensities Category = "intensities"
	CategoryAnnotations Category = "annotations"
)

// Origin says how a leaf's data came to be. Legal origins depend on the category.
type Origin string

// Origins.
const (
	OriginRaw       Origin = "raw"
	OriginProcessed Origin = "processed"
	OriginMasks     Origin = "masks"
	OriginTracks    Origin = "tracks"
	OriginShapes    Origin = "shapes"
	OriginPoints    Origin = "points"
)

var originsByCategory = map[Category][]Origin{
	CategoryIntensities: {OriginRaw, OriginProcessed},
	CategoryAnnotations: {OriginMasks, OriginTracks, OriginShapes, OriginPoints},
}

// Attribute keys with fixed meaning.
const (
	keyCategory    = "category"
	keyOrigin      = "origin"
	keySource      = "source"
	keyDescription = "description"
	keyLabel       = "label"
	keyLabelPrefix = "label."
	keyLabelSource = "label.source"
)

// IDStyle records how the identity keys were spelled, so they are written
// back the way they were read.
type IDStyle int

const (
	// IDStyleOMERO spells identities "omero:image_id" / "omero:dataset_id".
	IDStyleOMERO IDStyle = iota
	// IDStyleNested spells them "omero.image_id", i.e. {"omero": {"image_id": ...}}.
	IDStyleNested
	// IDStyleBare spells them "image_id" / "dataset_id".
	IDStyleBare
)

var idKeys = [...]struct {
	image, dataset string
}{
	IDStyleOMERO:  {"omero:image_id", "omero:dataset_id"},
	IDStyleNested: {"omero.image_id", "omero.dataset_id"},
	IDStyleBare:   {"image_id", "dataset_id"},
}

// ImageIDKey returns the record key holding the image id in this style.
func (s IDStyle) ImageIDKey() string { return idKeys[s.valid()].image }

// DatasetIDKey returns the record key holding the dataset id in this style.
func (s IDStyle) DatasetIDKey() string { return idKeys[s.valid()].dataset }

func (s IDStyle) valid() IDStyle {
	if s < IDStyleOMERO || s > IDStyleBare {
		return IDStyleOMERO
	}
	return s
}

// IsImageIDKey reports whether key is one of the image id aliases.
func IsImageIDKey(key string) bool {
	for _, k := range idKeys {
		if k.image == key {
			return true
		}
	}
	return false
}

// SourceRef is a source field as it was written: a single name or a list.
// Names are bare leaf names or slash-joined paths.
type SourceRef struct {
	Names []string
	List  bool // written as a list, even if it has one element
}

// Source returns a SourceRef for names. A single name is written as a
// scalar, anything else as a list.
func Source(names ...string) *SourceRef {
	return &SourceRef{Names: slices.Clone(names), List: len(names) != 1}
}

func (s *SourceRef) value() any {
	if !s.List && len(s.Names) == 1 {
		return s.Names[0]
	}
	return slices.Clone(s.Names)
}

func parseSourceRef(field string, v any) (*SourceRef, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &SourceRef{Names: []string{x}}, nil
	}
	names, ok := toStrings(v)
	if !ok {
		return nil, cerrors.Violation(cerrors.RuleSource, field, "source must be a string or a list of strings, got %T", v)
	}
	return &SourceRef{Names: names, List: true}, nil
}

// Label marks a leaf as a derived annotation image.
type Label struct {
	Source *SourceRef
	Extra  map[string]any // unrecognized "label.*" keys, without the prefix
}

// Attributes is the metadata payload of a multiscale leaf.
//
// Known fields are typed; everything else is kept in Extra under its
// dotted record key and written back unchanged.
type Attributes struct {
	ImageID   int64
	DatasetID *int64
	IDStyle   IDStyle

	Category    Category
	Origin      Origin
	Source      *SourceRef
	Description string

	Label *Label
	Extra map[string]any

	imageIDSet bool // an id key was present when parsed
}

// ParseAttributes builds validated Attributes from an untyped mapping.
// Nested objects are accepted and treated like their dotted record keys.
func ParseAttributes(m map[string]any) (*Attributes, error) {
	flat := flattenKeys(m)
	for _, k := range []string{KeyPath, KeyStorePath} {
		if _, ok := flat[k]; ok {
			return nil, cerrors.Violation(cerrors.RuleDocument, k, "%q is a reserved record key", k)
		}
	}
	a := &Attributes{}

	if err := a.takeIdentity(flat); err != nil {
		return nil, err
	}
	if err := a.takeSchemaFields(flat); err != nil {
		return nil, err
	}
	if err := a.takeLabel(flat); err != nil {
		return nil, err
	}
	if len(flat) > 0 {
		a.Extra = flat
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// takeIdentity consumes the image and dataset id keys from flat.
func (a *Attributes) takeIdentity(flat map[string]any) error {
	found := false
	for style := IDStyleOMERO; style <= IDStyleBare; style++ {
		key := style.ImageIDKey()
		v, ok := flat[key]
		if !ok {
			continue
		}
		delete(flat, key)
		id, ok := toInt64(v)
		if !ok {
			return cerrors.Violation(cerrors.RuleIdentity, key, "image id must be an integer, got %v", v)
		}
		if found && id != a.ImageID {
			return cerrors.Violation(cerrors.RuleIdentity, key, "conflicting image ids %d and %d", a.ImageID, id)
		}
		if !found {
			a.ImageID, a.IDStyle, found = id, style, true
			a.imageIDSet = true
		}
	}

	for style := IDStyleOMERO; style <= IDStyleBare; style++ {
		key := style.DatasetIDKey()
		v, ok := flat[key]
		if !ok {
			continue
		}
		delete(flat, key)
		if v == nil {
			continue
		}
		id, ok := toInt64(v)
		if !ok {
			return cerrors.Violation(cerrors.RuleIdentity, key, "dataset id must be an integer, got %v", v)
		}
		a.DatasetID = &id
	}
	return nil
}

func (a *Attributes) takeSchemaFields(flat map[string]any) error {
	if v, ok := flat[keyCategory]; ok {
		delete(flat, keyCategory)
		s, ok := v.(string)
		if !ok && v != nil {
			return cerrors.Violation(cerrors.RuleCategory, keyCategory, "category must be a string, got %T", v)
		}
		a.Category = Category(s)
	}
	if v, ok := flat[keyOrigin]; ok {
		delete(flat, keyOrigin)
		s, ok := v.(string)
		if !ok && v != nil {
			return cerrors.Violation(cerrors.RuleOrigin, keyOrigin, "origin must be a string, got %T", v)
		}
		a.Origin = Origin(s)
	}
	if v, ok := flat[keySource]; ok {
		delete(flat, keySource)
		src, err := parseSourceRef(keySource, v)
		if err != nil {
			return err
		}
		a.Source = src
	}
	if v, ok := flat[keyDescription]; ok {
		delete(flat, keyDescription)
		switch s := v.(type) {
		case nil:
		case string:
			a.Description = s
		default:
			return cerrors.Violation(cerrors.RuleDocument, keyDescription, "description must be a string, got %T", v)
		}
	}
	return nil
}

// takeLabel consumes "label" and "label.*" keys. Any of them marks the leaf
// as a label, except an explicit null or false marker.
func (a *Attributes) takeLabel(flat map[string]any) error {
	var label *Label
	if v, ok := flat[keyLabel]; ok {
		delete(flat, keyLabel)
		switch x := v.(type) {
		case nil:
		case bool:
			if x {
				label = &Label{}
			}
		case string:
			if x == "true" {
				label = &Label{}
			}
		case map[string]any:
			// Only the empty object reaches here; non-empty ones were flattened.
			label = &Label{}
		default:
			return cerrors.Violation(cerrors.RuleDocument, keyLabel, "label must be an object, got %T", v)
		}
	}

	for k, v := range flat {
		if len(k) <= len(keyLabelPrefix) || k[:len(keyLabelPrefix)] != keyLabelPrefix {
			continue
		}
		delete(flat, k)
		if label == nil {
			label = &Label{}
		}
		if k == keyLabelSource {
			src, err := parseSourceRef(keyLabelSource, v)
			if err != nil {
				return err
			}
			label.Source = src
			continue
		}
		if label.Extra == nil {
			label.Extra = map[string]any{}
		}
		label.Extra[k[len(keyLabelPrefix):]] = v
	}
	a.Label = label
	return nil
}

// Validate checks the category/origin/source coupling, then identity.
//
// The coupling is only enforced once category or origin is present, in this
// order: category must be known, origin must be legal for the category, and
// a source must be absent for raw intensities and present for every other
// origin.
func (a *Attributes) Validate() error {
	if err := a.validateCoupling(); err != nil {
		return err
	}
	switch {
	case a.ImageID < 0, a.ImageID == 0 && a.imageIDSet:
		return cerrors.Violation(cerrors.RuleIdentity, a.IDStyle.ImageIDKey(), "image id must be positive, got %d", a.ImageID)
	case a.ImageID == 0:
		return cerrors.Violation(cerrors.RuleIdentity, a.IDStyle.ImageIDKey(), "image id is required")
	}
	return nil
}

func (a *Attributes) validateCoupling() error {
	if a.Category == "" && a.Origin == "" {
		return nil
	}

	allowed, ok := originsByCategory[a.Category]
	if !ok {
		if a.Category == "" {
			return cerrors.Violation(cerrors.RuleCategory, keyCategory, "category is required when origin is set")
		}
		return cerrors.Violation(cerrors.RuleCategory, keyCategory,
			"category must be %s or %s, got %q", CategoryIntensities, CategoryAnnotations, a.Category)
	}
	if !slices.Contains(allowed, a.Origin) {
		return cerrors.Violation(cerrors.RuleOrigin, keyOrigin,
			"%s must have origin %s, got %q", a.Category, joinOrigins(allowed), a.Origin)
	}

	hasSource := a.Source != nil || (a.Label != nil && a.Label.Source != nil)
	derived := a.Origin != OriginRaw
	if derived && !hasSource {
		return cerrors.Violation(cerrors.RuleSource, keySource, "source is required for origin %q", a.Origin)
	}
	if !derived && hasSource {
		return cerrors.Violation(cerrors.RuleSource, keySource, "raw intensities must not have a source")
	}
	return nil
}

func joinOrigins(origins []Origin) string {
	var b bytes.Buffer
	for i, o := range origins {
		switch {
		case i == 0:
		case i == len(origins)-1:
			b.WriteString(" or ")
		default:
			b.WriteString(", ")
		}
		b.WriteString(string(o))
	}
	return b.String()
}

// IsLabel reports whether the label marker is present. The category alone
// does not make a leaf a label.
func (a *Attributes) IsLabel() bool {
	return a.Label != nil
}

// Sources returns the names in label.source, or an empty slice when the
// leaf is not a label or its label has no source.
func (a *Attributes) Sources() []string {
	if a.Label == nil || a.Label.Source == nil {
		return []string{}
	}
	return slices.Clone(a.Label.Source.Names)
}

// References returns every source name the leaf was derived from,
// including processed intensities. label.source takes precedence over
// the top-level source field.
func (a *Attributes) References() []string {
	switch {
	case a.Label != nil && a.Label.Source != nil:
		return slices.Clone(a.Label.Source.Names)
	case a.Source != nil:
		return slices.Clone(a.Source.Names)
	}
	return []string{}
}

// Map returns the attributes as a flat record fragment: dotted keys, unset
// fields omitted, a sourceless label written as "label": true.
func (a *Attributes) Map() map[string]any {
	out := make(map[string]any, len(a.Extra)+4)
	for k, v := range a.Extra {
		out[k] = v
	}

	out[a.IDStyle.ImageIDKey()] = a.ImageID
	if a.DatasetID != nil {
		out[a.IDStyle.DatasetIDKey()] = *a.DatasetID
	}
	if a.Category != "" {
		out[keyCategory] = string(a.Category)
	}
	if a.Origin != "" {
		out[keyOrigin] = string(a.Origin)
	}
	if a.Source != nil {
		out[keySource] = a.Source.value()
	}
	if a.Description != "" {
		out[keyDescription] = a.Description
	}
	if a.Label != nil {
		written := false
		if a.Label.Source != nil {
			out[keyLabelSource] = a.Label.Source.value()
			written = true
		}
		for k, v := range a.Label.Extra {
			out[keyLabelPrefix+k] = v
			written = true
		}
		if !written {
			out[keyLabel] = true
		}
	}
	return out
}

// MarshalJSON writes the nested tree form of the attributes.
func (a *Attributes) MarshalJSON() ([]byte, error) {
	nested := nestKeys(a.Map())
	if marker, ok := nested[keyLabel].(bool); ok && marker {
		nested[keyLabel] = map[string]any{}
	}
	return json.Marshal(nested)
}

// UnmarshalJSON decodes and validates attributes from their tree form.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := decodeJSON(data, &m); err != nil {
		return malformed("attributes", err)
	}
	if m == nil {
		return cerrors.Violation(cerrors.RuleIdentity, "attributes", "attributes must be an object")
	}
	parsed, err := ParseAttributes(m)
	if err != nil {
		return err
	}
	*a = *parsed
	return nil
}

// decodeJSON decodes with json.Number so integer ids survive untouched.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func malformed(field string, err error) error {
	return &cerrors.Error{
		Code:    cerrors.ErrCodeSchemaViolation,
		Rule:    cerrors.RuleDocument,
		Field:   field,
		Message: fmt.Sprintf("malformed %s", field),
		Cause:   err,
	}
}
