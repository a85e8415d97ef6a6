package strata

import (
	"errors"
	"testing"
)

func validArrayMetadata() ArrayMetadata {
	return ArrayMetadata{
		ZarrFormat: 3,
		NodeType:   "array",
		Shape:      []uint64{100, 100},
		DataType:   Float64,
		ChunkGrid: ChunkGrid{
			Name:          "regular",
			Configuration: ChunkGridConfig{ChunkShape: []uint64{10, 10}},
		},
		ChunkKeyEncoding: ChunkKeyEncoding{Name: "default"},
		FillValue:        0.0,
		Codecs:           DefaultCodecs(),
	}
}

// -----------------------------------------------------------------------------
// Array metadata validation
// -----------------------------------------------------------------------------

func TestValidateArrayMetadata_Valid(t *testing.T) {
	m := validArrayMetadata()
	if err := validateArrayMetadata(&m); err != nil {
		t.Errorf("valid metadata rejected: %v", err)
	}
}

func TestValidateArrayMetadata_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ArrayMetadata)
	}{
		{"wrong format", func(m *ArrayMetadata) { m.ZarrFormat = 2 }},
		{"wrong node type", func(m *ArrayMetadata) { m.NodeType = "group" }},
		{"empty shape", func(m *ArrayMetadata) { m.Shape = nil }},
		{"unknown data type", func(m *ArrayMetadata) { m.DataType = "complex128" }},
		{"unknown grid", func(m *ArrayMetadata) { m.ChunkGrid.Name = "rectilinear" }},
		{"rank mismatch", func(m *ArrayMetadata) {
			m.ChunkGrid.Configuration.ChunkShape = []uint64{10}
		}},
		{"zero chunk dimension", func(m *ArrayMetadata) {
			m.ChunkGrid.Configuration.ChunkShape = []uint64{10, 0}
		}},
		{"unknown key encoding", func(m *ArrayMetadata) { m.ChunkKeyEncoding.Name = "custom" }},
		{"bad separator", func(m *ArrayMetadata) {
			m.ChunkKeyEncoding.Configuration.Separator = "-"
		}},
		{"no codecs", func(m *ArrayMetadata) { m.Codecs = nil }},
	}

	for _, tt := range tests {
		m := validArrayMetadata()
		tt.mutate(&m)
		if err := validateArrayMetadata(&m); !errors.Is(err, ErrMetadataInvalid) {
			t.Errorf("%s: expected ErrMetadataInvalid, got: %v", tt.name, err)
		}
	}
}

func TestValidateGroupMetadata(t *testing.T) {
	m := GroupMetadata{ZarrFormat: 3, NodeType: "group"}
	if err := validateGroupMetadata(&m); err != nil {
		t.Errorf("valid metadata rejected: %v", err)
	}

	bad := GroupMetadata{ZarrFormat: 3, NodeType: "array"}
	if err := validateGroupMetadata(&bad); !errors.Is(err, ErrMetadataInvalid) {
		t.Errorf("expected ErrMetadataInvalid, got: %v", err)
	}
}

// -----------------------------------------------------------------------------
// JSON round trip
// -----------------------------------------------------------------------------

func TestArrayMetadata_JSONRoundTrip(t *testing.T) {
	m := validArrayMetadata()
	m.Attributes = map[string]any{"units": "kelvin"}
	m.Codecs = []CodecConfig{
		{Name: "bytes", Configuration: map[string]any{"endian": "little"}},
		{Name: "blosc", Configuration: map[string]any{"cname": "zstd", "clevel": float64(3)}},
	}

	data, err := jsonAPI.Marshal(&m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var back ArrayMetadata
	if err := jsonAPI.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if err := validateArrayMetadata(&back); err != nil {
		t.Fatalf("round-tripped metadata invalid: %v", err)
	}
	if back.DataType != m.DataType || len(back.Codecs) != 2 {
		t.Error("round trip lost fields")
	}
	if back.Attributes["units"] != "kelvin" {
		t.Error("round trip lost attributes")
	}
	if _, err := NewCodecPipelineFromMetadata(back.Codecs); err != nil {
		t.Errorf("round-tripped codec configs unusable: %v", err)
	}
}

// -----------------------------------------------------------------------------
// Node paths
// -----------------------------------------------------------------------------

func TestNormalizeNodePath(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"", ""},
		{"/", ""},
		{"a", "a"},
		{"/a/b", "a/b"},
		{"a/b/", "a/b"},
	}
	for _, tt := range tests {
		got, err := normalizeNodePath(tt.in)
		if err != nil {
			t.Errorf("%q: %v", tt.in, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("%q: got %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

func TestNormalizeNodePath_Invalid(t *testing.T) {
	for _, p := range []string{"..", "a/../b", "a//b", "a/./b"} {
		if _, err := normalizeNodePath(p); !errors.Is(err, ErrInvalidNodePath) {
			t.Errorf("%q: expected ErrInvalidNodePath, got: %v", p, err)
		}
	}
}

func TestMetadataKey(t *testing.T) {
	if got := metadataKey("", metadataFile); got != "zarr.json" {
		t.Errorf("root: got %q", got)
	}
	if got := metadataKey("a/b", metadataFile); got != "a/b/zarr.json" {
		t.Errorf("nested: got %q", got)
	}
}

func TestParseDataType(t *testing.T) {
	d, err := ParseDataType("float32")
	if err != nil || d != Float32 {
		t.Errorf("got %q, %v", d, err)
	}
	if _, err := ParseDataType("decimal"); err == nil {
		t.Error("expected error for unknown data type")
	}
}
