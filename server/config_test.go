package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/janelia-flyem/cardiowave/atlas"
	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/engine"
)

func writeConfig(t *testing.T, dir, text string) string {
	t.Helper()
	filename := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(filename, []byte(text), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return filename
}

func TestLoadConfig(t *testing.T) {
	defer ResetConfig()
	dir := t.TempDir()
	filename := writeConfig(t, dir, `
[server]
httpAddress = "localhost:9100"
note = "test server"

[domain]
dataset = "tissue.json"

[simulation]
steps_per_frame = 5
frame_interval = "50ms"
kernel = "serial"
pace = [1.0, 2.0, 3.0, 1.5]

[model]
dt = 0.05

[snapshots]
engine = "memory"
compression = "zstd"

[kafka]
servers = ["localhost:9092"]
`)
	if err := LoadConfig(filename); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if HTTPAddress() != "localhost:9100" || Note() != "test server" {
		t.Errorf("server settings not loaded: %q %q", HTTPAddress(), Note())
	}
	if DatasetPath() != filepath.Join(dir, "tissue.json") {
		t.Errorf("expected dataset relative to config, got %q", DatasetPath())
	}
	if StepsPerFrame() != 5 || FrameInterval().Milliseconds() != 50 {
		t.Errorf("simulation settings not loaded: %d %s", StepsPerFrame(), FrameInterval())
	}
	if Kernel().Name() != "serial" {
		t.Errorf("expected serial kernel, got %s", Kernel().Name())
	}
	if x, y, z, r, found := InitialPace(); !found || x != 1 || y != 2 || z != 3 || r != 1.5 {
		t.Errorf("unexpected initial pace (%g,%g,%g) r %g found %t", x, y, z, r, found)
	}
	params := ModelParams()
	if params.Dt != 0.05 {
		t.Errorf("expected dt 0.05, got %g", params.Dt)
	}
	expected := engine.DefaultParams()
	if params.Una != expected.Una || params.GridResolution != expected.GridResolution {
		t.Errorf("expected unset model parameters to keep defaults")
	}
	if SnapshotCompression() != cardio.Zstd || SnapshotStoreConfig().Engine != "memory" {
		t.Errorf("snapshot settings not loaded")
	}
	if !KafkaAvailable() {
		t.Errorf("expected kafka servers")
	}
	if ConfigLocation() != filename {
		t.Errorf("expected config location %q, got %q", filename, ConfigLocation())
	}
}

func TestBadConfig(t *testing.T) {
	defer ResetConfig()
	bad := []string{
		"[simulation]\nsteps_per_frame = 0\n",
		"[simulation]\nkernel = \"gpu\"\n",
		"[simulation]\nframe_interval = \"soon\"\n",
		"[simulation]\npace = [1.0, 2.0]\n",
		"[domain]\ndemo_size = [4, 4]\n",
		"[model]\ndt = -1.0\n",
		"[snapshots]\ncompression = \"lzma\"\n",
		"not toml at all = = =",
	}
	for _, text := range bad {
		filename := writeConfig(t, t.TempDir(), text)
		if err := LoadConfig(filename); err == nil {
			t.Errorf("expected error for config %q", text)
		}
	}
	if err := LoadConfig(""); err == nil {
		t.Errorf("expected error without config file")
	}
	if StepsPerFrame() != DefaultStepsPerFrame {
		t.Errorf("bad config should not replace current one")
	}
}

func TestLoadDomain(t *testing.T) {
	defer ResetConfig()
	ResetConfig()
	tc.Domain.DemoSize = []int{4, 3, 2, 1}
	dom, params, err := LoadDomain(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dom.Len() != 4*3*2 {
		t.Errorf("expected %d demo cells, got %d", 4*3*2, dom.Len())
	}
	if params.DomainLength != engine.DefaultParams().DomainLength {
		t.Errorf("expected default domain length, got %g", params.DomainLength)
	}

	ds := atlas.Box(3, 3, 1, 1)
	ds.Length = 4
	filename := filepath.Join(t.TempDir(), "tissue.json")
	if err := ds.WriteFile(filename); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc.Domain.Dataset = filename
	dom, params, err = LoadDomain(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dom.Len() != 9 || params.DomainLength != 4 {
		t.Errorf("expected 9 cells with length 4, got %d cells with length %g", dom.Len(), params.DomainLength)
	}

	tc.Domain.Dataset = filepath.Join(t.TempDir(), "missing.json")
	if _, _, err := LoadDomain(nil); err == nil {
		t.Errorf("expected error for missing dataset")
	}
}

func TestInitialize(t *testing.T) {
	defer ResetConfig()
	ResetConfig()
	tc.Domain.DemoSize = []int{4, 4, 2, 2}
	tc.Simulation.Pace = []float64{2, 2, 2, 1}
	tc.Cache.FrameMB = 1
	s, err := Initialize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()
	states, err := s.Engine().ReadState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var excited int
	for _, st := range states {
		if st.U == 1 {
			excited++
		}
	}
	if excited != 7 {
		t.Errorf("expected initial pacing of 7 cells, got %d", excited)
	}
	if s.Snapshots().String() != "memory store" {
		t.Errorf("expected memory snapshot store, got %s", s.Snapshots())
	}
}
