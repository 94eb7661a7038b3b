package collection

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"

	cerrors "github.com/matzehuels/omecollection/pkg/errors"
)

const sourcesJSON = `{"ome": {
	"name": "sources",
	"nodes": [
		{"type": "multiscale", "name": "raw", "attributes": {"image_id": 1, "category": "intensities", "origin": "raw"}},
		{"type": "multiscale", "name": "smooth", "attributes": {"image_id": 2, "category": "intensities", "origin": "processed", "source": "raw"}},
		{"type": "collection", "name": "labels", "nodes": [
			{"type": "multiscale", "name": "seg", "attributes": {"image_id": 3, "label": {"source": "raw"}}},
			{"type": "multiscale", "name": "raw", "attributes": {"image_id": 4}},
			{"type": "multiscale", "name": "local", "attributes": {"image_id": 5, "label": {"source": "raw"}}}
		]},
		{"type": "multiscale", "name": "both", "attributes": {"image_id": 6, "label": {"source": ["raw", "smooth"]}}},
		{"type": "multiscale", "name": "bypath", "attributes": {"image_id": 7, "label": {"source": "/labels/seg"}}},
		{"type": "multiscale", "name": "anywhere", "attributes": {"image_id": 8, "label": {"source": "local"}}}
	]
}}`

func TestTopLevelAccessors(t *testing.T) {
	c := mustDecode(t, sourcesJSON).OME

	var intensities []string
	for _, n := range c.IntensityNodes() {
		intensities = append(intensities, n.Name)
	}
	if want := []string{"raw", "smooth"}; !slices.Equal(intensities, want) {
		t.Errorf("IntensityNodes() = %v, want %v", intensities, want)
	}

	var labels []string
	for _, n := range c.LabelNodes() {
		labels = append(labels, n.Name)
	}
	if want := []string{"both", "bypath", "anywhere"}; !slices.Equal(labels, want) {
		t.Errorf("LabelNodes() = %v, want %v", labels, want)
	}

	if n := c.NodeByName("smooth"); n == nil || n.Attributes.ImageID != 2 {
		t.Errorf("NodeByName(smooth) = %v", n)
	}
	if n := c.NodeByName("labels"); n != nil {
		t.Errorf("NodeByName(labels) = %v, want nil for a collection", n)
	}
	if n := c.NodeByName("seg"); n != nil {
		t.Errorf("NodeByName(seg) = %v, want nil for a nested leaf", n)
	}
}

func TestAnnotationsCategoryIsNotALabel(t *testing.T) {
	c := mustDecode(t, `{"ome": {"name": "masks", "nodes": [
		{"type": "multiscale", "name": "mask", "attributes": {"image_id": 2, "category": "annotations", "origin": "masks", "source": "raw"}}
	]}}`).OME

	if got := len(c.LabelNodes()); got != 0 {
		t.Errorf("len(LabelNodes()) = %d, want 0", got)
	}
	if got := len(c.IntensityNodes()); got != 1 {
		t.Errorf("len(IntensityNodes()) = %d, want 1", got)
	}

	mask := c.NodeByName("mask")
	if mask == nil {
		t.Fatal("NodeByName(mask) = nil")
	}
	if mask.IsLabel() {
		t.Error("mask IsLabel() = true, want false")
	}
	if got := mask.Sources(); len(got) != 0 {
		t.Errorf("mask Sources() = %v, want empty", got)
	}
}

func TestLookup(t *testing.T) {
	c := mustDecode(t, sourcesJSON).OME

	tests := []struct {
		path string
		want string // node name, empty for nil
	}{
		{"raw", "raw"},
		{"labels", "labels"},
		{"labels/seg", "seg"},
		{"labels/seg/x", ""},
		{"raw/x", ""},
		{"missing", ""},
		{"", ""},
	}
	for _, tt := range tests {
		n := c.Lookup(tt.path)
		got := ""
		if n != nil {
			got = n.NodeName()
		}
		if got != tt.want {
			t.Errorf("Lookup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestWalkSkipCollection(t *testing.T) {
	c := mustDecode(t, sourcesJSON).OME

	var visited []string
	err := c.Walk(func(path string, n Node) error {
		visited = append(visited, path)
		if n.IsCollection() {
			return SkipCollection
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	want := []string{"raw", "smooth", "labels", "both", "bypath", "anywhere"}
	if !slices.Equal(visited, want) {
		t.Errorf("visited = %v, want %v", visited, want)
	}
}

func TestResolveSources(t *testing.T) {
	c := mustDecode(t, sourcesJSON).OME

	tests := []struct {
		path       string
		resolved   []string
		unresolved []string
	}{
		{"raw", nil, nil},
		{"smooth", []string{"raw"}, nil},
		{"labels/local", []string{"labels/raw"}, nil}, // sibling wins over root
		{"labels/seg", []string{"labels/raw"}, nil},
		{"both", []string{"raw", "smooth"}, nil},
		{"bypath", []string{"labels/seg"}, nil},
		{"anywhere", []string{"labels/local"}, nil},
		{"labels", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resolved, unresolved := c.ResolveSources(tt.path)
			var got []string
			for _, l := range resolved {
				got = append(got, l.Path)
			}
			if !slices.Equal(got, tt.resolved) {
				t.Errorf("resolved = %v, want %v", got, tt.resolved)
			}
			if !slices.Equal(unresolved, tt.unresolved) {
				t.Errorf("unresolved = %v, want %v", unresolved, tt.unresolved)
			}
		})
	}
}

func TestCheckSources(t *testing.T) {
	if err := mustDecode(t, sourcesJSON).OME.CheckSources(); err != nil {
		t.Errorf("CheckSources() error = %v", err)
	}

	w, err := Unflatten([]Record{
		{"path": "raw", "image_id": 1},
		{"path": "a/seg", "image_id": 2, "label.source": "ghost"},
		{"path": "b/seg", "image_id": 3, "label.source": []any{"raw", "nowhere"}},
		{"path": "dup", "image_id": 4, "label.source": "seg"}, // ambiguous
	}, "x", "")
	if err != nil {
		t.Fatalf("Unflatten() error = %v", err)
	}
	err = w.OME.CheckSources()
	if cerrors.GetRule(err) != cerrors.RuleSource {
		t.Fatalf("CheckSources() error = %v, want source violation", err)
	}
	for _, want := range []string{"ghost", "nowhere", `"seg"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("CheckSources() error %q does not mention %s", err, want)
		}
	}
}

func TestWrapperDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
		rule cerrors.Rule
	}{
		{"missing ome", `{}`, cerrors.RuleDocument},
		{"null ome", `{"ome": null}`, cerrors.RuleDocument},
		{"root of wrong type", `{"ome": {"type": "multiscale", "name": "x", "nodes": []}}`, cerrors.RuleDiscriminator},
		{"root without nodes", `{"ome": {"name": "x"}}`, cerrors.RuleNodesPath},
		{"root without name", `{"ome": {"nodes": []}}`, cerrors.RuleName},
		{"duplicate top-level names", `{"ome": {"name": "x", "nodes": [
			{"type": "collection", "name": "a", "nodes": []},
			{"type": "multiscale", "name": "a", "attributes": {"image_id": 1}}
		]}}`, cerrors.RuleUniqueName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w Wrapper
			err := json.Unmarshal([]byte(tt.json), &w)
			if err == nil {
				t.Fatal("Unmarshal() succeeded, want error")
			}
			if got := cerrors.GetRule(err); got != tt.rule {
				t.Errorf("rule = %v, want %v (%v)", got, tt.rule, err)
			}
		})
	}
}

func TestWrapperDefaults(t *testing.T) {
	w := mustDecode(t, `{"ome": {"name": "x", "nodes": [], "attributes": {"owner": "lab"}}}`)
	if w.OME.Version != DefaultVersion {
		t.Errorf("Version = %q, want %q", w.OME.Version, DefaultVersion)
	}
	if w.OME.Attributes["owner"] != "lab" {
		t.Errorf("Attributes = %v", w.OME.Attributes)
	}

	out, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	want := `{"ome":{"version":"0.x","type":"collection","name":"x","nodes":[],"attributes":{"owner":"lab"}}}`
	if string(out) != want {
		t.Errorf("Marshal = %s, want %s", out, want)
	}
}

func TestWrapperJSONRoundTrip(t *testing.T) {
	w := mustDecode(t, richJSON)
	out, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	back := mustDecode(t, string(out))

	if back.OME.Version != "0.2" || back.OME.Name != "experiment" {
		t.Errorf("root = %q/%q", back.OME.Name, back.OME.Version)
	}
	if empty, ok := back.OME.Lookup("labels/empty").(*CollectionNode); !ok || empty.Nodes == nil {
		t.Errorf("empty collection lost: %#v", back.OME.Lookup("labels/empty"))
	}

	first, second := Flatten(w), Flatten(back)
	if len(first) != len(second) {
		t.Fatalf("leaf count %d != %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.Path() != b.Path() {
			t.Errorf("leaf %d path %q != %q", i, a.Path(), b.Path())
		}
		if len(a) != len(b) {
			t.Errorf("leaf %s has %d keys after round trip, want %d", a.Path(), len(b), len(a))
		}
	}
}

func TestNewCollection(t *testing.T) {
	leaf, _ := NewMultiscaleNode("raw", &Attributes{ImageID: 1})
	c, err := NewCollection("x", "", []Node{leaf})
	if err != nil {
		t.Fatalf("NewCollection() error = %v", err)
	}
	if c.Version != DefaultVersion {
		t.Errorf("Version = %q", c.Version)
	}
	if c.Wrap().OME != c {
		t.Error("Wrap() does not point at the collection")
	}

	if _, err := NewCollection("x", "", []Node{leaf, leaf}); cerrors.GetRule(err) != cerrors.RuleUniqueName {
		t.Errorf("duplicate error = %v, want unique_name violation", err)
	}
	if _, err := NewCollection("x", "", []Node{nil}); cerrors.GetRule(err) != cerrors.RuleDocument {
		t.Errorf("nil node error = %v, want document violation", err)
	}
}
