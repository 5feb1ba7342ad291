package atlas

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/janelia-flyem/cardiowave/cardio"
)

func TestGridOfInvertsBlockRows(t *testing.T) {
	g := Box(2, 2, 2, 2).Geometry()
	if g.NZ != 4 {
		t.Fatalf("expected nz = mx*my = 4, got %d", g.NZ)
	}
	tests := []struct {
		ax, ay int32
		expect cardio.Point3d
	}{
		{0, 0, cardio.Point3d{0, 0, 2}},
		{1, 1, cardio.Point3d{1, 1, 2}},
		{3, 0, cardio.Point3d{1, 0, 3}},
		{0, 3, cardio.Point3d{0, 1, 0}},
		{2, 2, cardio.Point3d{0, 0, 1}},
	}
	for _, tc := range tests {
		got := g.GridOf(tc.ax, tc.ay)
		if got != tc.expect {
			t.Errorf("atlas (%d,%d): expected grid %s, got %s", tc.ax, tc.ay, tc.expect, got)
		}
		ax, ay := g.AtlasOf(got)
		if ax != tc.ax || ay != tc.ay {
			t.Errorf("grid %s: expected atlas (%d,%d), got (%d,%d)", got, tc.ax, tc.ay, ax, ay)
		}
	}
}

func TestLoadRecordsInStorageOrder(t *testing.T) {
	hole := cardio.Point3d{1, 1, 1}
	ds := Synthesize(3, 2, 2, 1, func(p cardio.Point3d) bool { return p != hole })
	records, geom, err := Load(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if geom.Size() != (cardio.Point3d{3, 2, 2}) {
		t.Fatalf("bad geometry: %s", geom)
	}
	if len(records) != 11 {
		t.Fatalf("expected 11 active records, got %d", len(records))
	}
	prev := -1
	for _, rec := range records {
		if rec.Grid == hole {
			t.Errorf("inactive voxel %s was returned", hole)
		}
		lin := geom.AtlasLinear(rec.Texel[0], rec.Texel[1])
		if lin <= prev {
			t.Errorf("records not in atlas storage order: %d after %d", lin, prev)
		}
		prev = lin
		if !rec.InDomain || rec.Value != 1 {
			t.Errorf("expected in-domain record with value 1, got %+v", rec)
		}
	}
}

func TestLoadUsesValues(t *testing.T) {
	ds := Box(2, 1, 1, 1)
	ds.Values = []float32{0.25, 0.75}
	records, _, err := Load(ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].Value != 0.25 || records[1].Value != 0.75 {
		t.Errorf("expected values from dataset, got %v and %v", records[0].Value, records[1].Value)
	}
}

func TestCheckMalformed(t *testing.T) {
	tests := []struct {
		field  string
		garble func(ds *Dataset)
	}{
		{"nx", func(ds *Dataset) { ds.NX = 0 }},
		{"fullHeight", func(ds *Dataset) { ds.FullHeight = -1 }},
		{"fullTexelIndex", func(ds *Dataset) { ds.FullTexelIndex = ds.FullTexelIndex[:len(ds.FullTexelIndex)-1] }},
		{"values", func(ds *Dataset) { ds.Values = []float32{1} }},
		{"length", func(ds *Dataset) { ds.Length = -2 }},
		{"nx", func(ds *Dataset) { ds.NX = math.MaxInt32 + 1 }},
		{"my", func(ds *Dataset) { ds.MX, ds.MY = 1<<16, 1<<16 }},
		{"fullWidth", func(ds *Dataset) { ds.NX = 4 }},
		{"fullHeight", func(ds *Dataset) { ds.MY = 3 }},
	}
	for _, test := range tests {
		ds := Box(2, 2, 2, 1)
		test.garble(ds)
		_, _, err := Load(ds)
		var malformed *cardio.MalformedDatasetError
		if !errors.As(err, &malformed) {
			t.Errorf("%s: expected MalformedDatasetError, got %v", test.field, err)
			continue
		}
		if malformed.Field != test.field {
			t.Errorf("expected field %q, got %q", test.field, malformed.Field)
		}
	}

	// grid dimensions far larger than the atlas must not reach allocation
	huge := `{"nx": 2147483648, "ny": 2147483648, "mx": 1, "my": 1, "fullWidth": 1, "fullHeight": 1,
		"fullTexelIndex": [0,0,1,1]}`
	if _, err := Decode(strings.NewReader(huge)); err == nil {
		t.Errorf("expected error for grid dimensions beyond int32")
	}
	narrow := `{"nx": 4, "ny": 1, "mx": 2, "my": 1, "fullWidth": 2, "fullHeight": 1,
		"fullTexelIndex": [0,0,1,1, 1,0,1,1]}`
	if _, err := Decode(strings.NewReader(narrow)); err == nil {
		t.Errorf("expected error for atlas narrower than nx*mx")
	}

	ds := Box(2, 2, 1, 1)
	ds.FullTexelIndex[0] = 9
	if err := ds.Check(); err == nil {
		t.Errorf("expected error for texel outside the atlas")
	}
}

func TestDecodeJSON(t *testing.T) {
	good := `{"nx": 2, "ny": 1, "mx": 1, "my": 1, "fullWidth": 2, "fullHeight": 1,
		"fullTexelIndex": [0,0,1,1, 1,0,1,0], "threshold": 0.5, "length": 1.5}`
	ds, err := Decode(strings.NewReader(good))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Threshold != 0.5 || ds.Length != 1.5 || ds.NumTexels() != 2 {
		t.Errorf("bad decoded dataset: %+v", ds)
	}
	if tx := ds.Texel(1); tx.Valid || !tx.InDomain || tx.X != 1 {
		t.Errorf("bad texel 1: %+v", tx)
	}

	bad := []string{
		`{"nx": 2}`,
		`{"nx": 0, "ny": 1, "mx": 1, "my": 1, "fullWidth": 1, "fullHeight": 1, "fullTexelIndex": [0,0,1,1]}`,
		`{"nx": 1, "ny": 1, "mx": 1, "my": 1, "fullWidth": 1, "fullHeight": 1, "fullTexelIndex": ["a",0,1,1]}`,
		`{"nx": 1, "ny": 1, "mx": 1, "my": 1, "fullWidth": 2, "fullHeight": 1, "fullTexelIndex": [0,0,1,1]}`,
		`not json`,
	}
	for _, str := range bad {
		_, err := Decode(strings.NewReader(str))
		var malformed *cardio.MalformedDatasetError
		if !errors.As(err, &malformed) {
			t.Errorf("expected MalformedDatasetError for %s, got %v", str, err)
		}
	}
}

func TestFileFormats(t *testing.T) {
	ds := Synthesize(3, 3, 2, 2, func(p cardio.Point3d) bool { return p[0] != 2 })
	ds.Threshold = 0.1
	ds.Length = 4

	dir := t.TempDir()
	for _, name := range []string{"heart.json", "heart.msgp"} {
		path := filepath.Join(dir, name)
		if err := ds.WriteFile(path); err != nil {
			t.Fatalf("unable to write %s: %v", name, err)
		}
		got, err := ReadFile(path)
		if err != nil {
			t.Fatalf("unable to read %s: %v", name, err)
		}
		if !reflect.DeepEqual(got, ds) {
			t.Errorf("%s: read dataset differs from written one", name)
		}
	}

	if _, err := DecodeMsgpack(bytes.NewReader([]byte{0x01})); err == nil {
		t.Errorf("expected error decoding garbage msgpack")
	}
}
