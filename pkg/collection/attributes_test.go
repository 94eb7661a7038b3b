package collection

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	cerrors "github.com/matzehuels/omecollection/pkg/errors"
)

func TestParseAttributesCoupling(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]any
		rule  cerrors.Rule // empty means valid
	}{
		{
			name:  "identity only",
			attrs: map[string]any{"image_id": 1},
		},
		{
			name:  "raw intensities",
			attrs: map[string]any{"omero:image_id": 1, "category": "intensities", "origin": "raw"},
		},
		{
			name:  "processed intensities with source list",
			attrs: map[string]any{"omero:image_id": 1, "category": "intensities", "origin": "processed", "source": []any{"raw"}},
		},
		{
			name:  "masks with label source",
			attrs: map[string]any{"omero:image_id": 2, "category": "annotations", "origin": "masks", "label": map[string]any{"source": "raw"}},
		},
		{
			name:  "unknown category",
			attrs: map[string]any{"omero:image_id": 1, "category": "pixels", "origin": "raw"},
			rule:  cerrors.RuleCategory,
		},
		{
			name:  "origin without category",
			attrs: map[string]any{"omero:image_id": 1, "origin": "raw"},
			rule:  cerrors.RuleCategory,
		},
		{
			name:  "intensities with annotation origin",
			attrs: map[string]any{"omero:image_id": 1, "category": "intensities", "origin": "masks"},
			rule:  cerrors.RuleOrigin,
		},
		{
			name:  "annotations with intensity origin",
			attrs: map[string]any{"omero:image_id": 1, "category": "annotations", "origin": "raw"},
			rule:  cerrors.RuleOrigin,
		},
		{
			name:  "masks with null source",
			attrs: map[string]any{"omero:image_id": 1, "category": "annotations", "origin": "masks", "source": nil},
			rule:  cerrors.RuleSource,
		},
		{
			name:  "raw with source",
			attrs: map[string]any{"omero:image_id": 1, "category": "intensities", "origin": "raw", "source": "x"},
			rule:  cerrors.RuleSource,
		},
		{
			name:  "source of wrong type",
			attrs: map[string]any{"omero:image_id": 1, "source": 3},
			rule:  cerrors.RuleSource,
		},
		{
			name:  "coupling checked before identity",
			attrs: map[string]any{"category": "intensities", "origin": "masks"},
			rule:  cerrors.RuleOrigin,
		},
		{
			name:  "missing image id",
			attrs: map[string]any{"category": "intensities", "origin": "raw"},
			rule:  cerrors.RuleIdentity,
		},
		{
			name:  "non-integer image id",
			attrs: map[string]any{"omero:image_id": "abc"},
			rule:  cerrors.RuleIdentity,
		},
		{
			name:  "conflicting image ids",
			attrs: map[string]any{"omero:image_id": 1, "image_id": 2},
			rule:  cerrors.RuleIdentity,
		},
		{
			name:  "path is reserved",
			attrs: map[string]any{"image_id": 1, "path": "s3://bucket/raw.zarr"},
			rule:  cerrors.RuleDocument,
		},
		{
			name:  "store_path is reserved",
			attrs: map[string]any{"image_id": 1, "store_path": "x"},
			rule:  cerrors.RuleDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAttributes(tt.attrs)
			if tt.rule == "" {
				if err != nil {
					t.Fatalf("ParseAttributes() error = %v", err)
				}
				return
			}
			if !cerrors.IsSchemaViolation(err) {
				t.Fatalf("ParseAttributes() error = %v, want SCHEMA_VIOLATION", err)
			}
			if got := cerrors.GetRule(err); got != tt.rule {
				t.Errorf("rule = %v, want %v (%v)", got, tt.rule, err)
			}
		})
	}
}

func TestParseAttributesIdentity(t *testing.T) {
	tests := []struct {
		name    string
		attrs   map[string]any
		id      int64
		style   IDStyle
		dataset int64
	}{
		{"colon", map[string]any{"omero:image_id": 7, "omero:dataset_id": 3}, 7, IDStyleOMERO, 3},
		{"nested", map[string]any{"omero": map[string]any{"image_id": 8, "dataset_id": 4}}, 8, IDStyleNested, 4},
		{"dotted", map[string]any{"omero.image_id": "9"}, 9, IDStyleNested, 0},
		{"bare", map[string]any{"image_id": json.Number("10"), "dataset_id": 5.0}, 10, IDStyleBare, 5},
		{"same id twice", map[string]any{"omero:image_id": 11, "image_id": "11"}, 11, IDStyleOMERO, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAttributes(tt.attrs)
			if err != nil {
				t.Fatalf("ParseAttributes() error = %v", err)
			}
			if a.ImageID != tt.id {
				t.Errorf("ImageID = %d, want %d", a.ImageID, tt.id)
			}
			if a.IDStyle != tt.style {
				t.Errorf("IDStyle = %v, want %v", a.IDStyle, tt.style)
			}
			var dataset int64
			if a.DatasetID != nil {
				dataset = *a.DatasetID
			}
			if dataset != tt.dataset {
				t.Errorf("DatasetID = %d, want %d", dataset, tt.dataset)
			}
			if len(a.Extra) != 0 {
				t.Errorf("Extra = %v, want empty", a.Extra)
			}
		})
	}
}

func TestSources(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]any
		label bool
		want  []string
	}{
		{
			name:  "scalar label source",
			attrs: map[string]any{"image_id": 2, "label": map[string]any{"source": "raw"}},
			label: true,
			want:  []string{"raw"},
		},
		{
			name:  "list label source",
			attrs: map[string]any{"image_id": 2, "label.source": []any{"raw", "other"}},
			label: true,
			want:  []string{"raw", "other"},
		},
		{
			name:  "label without source",
			attrs: map[string]any{"image_id": 2, "label": map[string]any{}},
			label: true,
			want:  []string{},
		},
		{
			name:  "annotations category without marker",
			attrs: map[string]any{"image_id": 2, "category": "annotations", "origin": "masks", "source": "raw"},
			want:  []string{},
		},
		{
			name:  "marker with top-level source only",
			attrs: map[string]any{"image_id": 2, "label": map[string]any{}, "source": "raw"},
			label: true,
			want:  []string{},
		},
		{
			name:  "processed intensities are not labels",
			attrs: map[string]any{"image_id": 2, "category": "intensities", "origin": "processed", "source": "raw"},
			want:  []string{},
		},
		{
			name:  "plain intensity",
			attrs: map[string]any{"image_id": 1},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAttributes(tt.attrs)
			if err != nil {
				t.Fatalf("ParseAttributes() error = %v", err)
			}
			if a.IsLabel() != tt.label {
				t.Errorf("IsLabel() = %v, want %v", a.IsLabel(), tt.label)
			}
			if got := a.Sources(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sources() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestAttributesMapPreservesUnknownKeys(t *testing.T) {
	a, err := ParseAttributes(map[string]any{
		"omero:image_id": 4,
		"channel":        "dapi",
		"meta":           map[string]any{"scale": 2},
		"label":          map[string]any{"source": []any{"raw"}, "colour": "red"},
	})
	if err != nil {
		t.Fatalf("ParseAttributes() error = %v", err)
	}

	want := map[string]any{
		"omero:image_id": int64(4),
		"channel":        "dapi",
		"meta.scale":     2,
		"label.source":   []string{"raw"},
		"label.colour":   "red",
	}
	if got := a.Map(); !reflect.DeepEqual(got, want) {
		t.Errorf("Map() = %#v, want %#v", got, want)
	}
}

func TestAttributesLabelMarker(t *testing.T) {
	a, err := ParseAttributes(map[string]any{"image_id": 1, "label": map[string]any{}})
	if err != nil {
		t.Fatalf("ParseAttributes() error = %v", err)
	}
	if got := a.Map()["label"]; got != true {
		t.Errorf(`Map()["label"] = %v, want true`, got)
	}

	// The record form parses back into a label.
	back, err := ParseAttributes(a.Map())
	if err != nil {
		t.Fatalf("ParseAttributes(Map()) error = %v", err)
	}
	if !back.IsLabel() {
		t.Error("label marker lost after record round trip")
	}

	// A null marker is not a label.
	plain, err := ParseAttributes(map[string]any{"image_id": 1, "label": nil})
	if err != nil {
		t.Fatalf("ParseAttributes() error = %v", err)
	}
	if plain.IsLabel() {
		t.Error("null label should not mark a label")
	}
}

func TestAttributesJSON(t *testing.T) {
	var a Attributes
	in := `{"omero": {"image_id": 3}, "label": {}, "note": "x"}`
	if err := json.Unmarshal([]byte(in), &a); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}

	out, err := json.Marshal(&a)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	want := `{"label":{},"note":"x","omero":{"image_id":3}}`
	if string(out) != want {
		t.Errorf("Marshal = %s, want %s", out, want)
	}
}

func TestReferencesIncludeTopLevelSource(t *testing.T) {
	a, err := ParseAttributes(map[string]any{"image_id": 2, "category": "annotations", "origin": "masks", "source": "raw"})
	if err != nil {
		t.Fatalf("ParseAttributes() error = %v", err)
	}
	if got, want := a.References(), []string{"raw"}; !reflect.DeepEqual(got, want) {
		t.Errorf("References() = %v, want %v", got, want)
	}
}

func TestImageIDMessages(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]any
		want  string
	}{
		{"missing", map[string]any{"category": "intensities", "origin": "raw"}, "image id is required"},
		{"zero", map[string]any{"image_id": 0}, "image id must be positive"},
		{"negative", map[string]any{"omero:image_id": -5}, "image id must be positive"},
		{"zero string", map[string]any{"omero.image_id": "0"}, "image id must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAttributes(tt.attrs)
			if got := cerrors.GetRule(err); got != cerrors.RuleIdentity {
				t.Fatalf("rule = %v, want %v (%v)", got, cerrors.RuleIdentity, err)
			}
			if got := cerrors.UserMessage(err); !strings.Contains(got, tt.want) {
				t.Errorf("message = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestReservedKeyMessage(t *testing.T) {
	for _, key := range []string{KeyPath, KeyStorePath} {
		_, err := ParseAttributes(map[string]any{"image_id": 1, key: "x"})
		if err == nil {
			t.Fatalf("%s: ParseAttributes() error = nil, want reserved key violation", key)
		}
		if got := cerrors.UserMessage(err); !strings.Contains(got, "reserved") || !strings.Contains(got, key) {
			t.Errorf("%s: message = %q, want a reserved key error naming it", key, got)
		}
	}

	// A leaf document cannot smuggle a storage location through its attributes.
	_, err := DecodeNode([]byte(`{"type":"multiscale","name":"raw","attributes":{"image_id":1,"path":"s3://bucket/raw.zarr"}}`))
	if got := cerrors.GetRule(err); got != cerrors.RuleDocument {
		t.Errorf("decode rule = %v, want %v (%v)", got, cerrors.RuleDocument, err)
	}
}

func TestAttributesValidateProgrammatic(t *testing.T) {
	a := &Attributes{ImageID: 5, Category: CategoryAnnotations, Origin: OriginTracks, Source: Source("raw")}
	if err := a.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if got := a.Map()["source"]; got != "raw" {
		t.Errorf(`Map()["source"] = %v, want "raw"`, got)
	}

	a = &Attributes{Category: CategoryIntensities, Origin: OriginRaw}
	if err := a.Validate(); cerrors.GetRule(err) != cerrors.RuleIdentity {
		t.Errorf("Validate() error = %v, want identity violation", err)
	}

	a = &Attributes{ImageID: -1}
	if err := a.Validate(); err == nil || !strings.Contains(cerrors.UserMessage(err), "must be positive") {
		t.Errorf("Validate() error = %v, want a positive id violation", err)
	}
}

func TestNestKeys(t *testing.T) {
	got := nestKeys(map[string]any{
		"a":     1,
		"a.b":   2,
		"c.d":   3,
		"c.e.f": 4,
		"x..y":  5,
	})
	want := map[string]any{
		"a":    1,
		"a.b":  2,
		"c":    map[string]any{"d": 3, "e": map[string]any{"f": 4}},
		"x..y": 5,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("nestKeys() = %#v, want %#v", got, want)
	}
}
