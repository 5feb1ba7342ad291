package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/engine"
	"github.com/janelia-flyem/cardiowave/storage"
)

const (
	// DefaultWebAddress is the default URL of the cardiowave web server
	DefaultWebAddress = "localhost:8000"

	// DefaultStepsPerFrame is the number of integration steps between frames.
	DefaultStepsPerFrame = 10

	// DefaultFrameInterval is the wall time between frames.
	DefaultFrameInterval = 33 * time.Millisecond

	// DefaultFrameCacheMB is the size of the rendered frame cache.
	DefaultFrameCacheMB = 128
)

var (
	// DefaultHost is the default most understandable alias for this server.
	DefaultHost = "localhost"

	// the parsed TOML configuration data
	tc = defaultConfig()

	// the TOML config file location
	tcLocation string
)

func init() {
	if host, err := os.Hostname(); err == nil && host != "" {
		DefaultHost = host
	}
}

type tomlConfig struct {
	Server     serverConfig
	Auth       authConfig
	Logging    cardio.LogConfig
	Domain     domainConfig
	Simulation simulationConfig
	Model      engine.Params
	Colormap   colormapConfig
	Snapshots  cardio.Config
	Cache      cacheConfig
	Kafka      storage.KafkaConfig
	Export     exportConfig
}

type serverConfig struct {
	HTTPAddress    string   `toml:"httpAddress"`
	Host           string   `toml:"host"`
	Note           string   `toml:"note"`
	MaxConnections int      `toml:"max_connections"`
	CorsDomains    []string `toml:"cors_domains"`
	ShutdownDelay  int      `toml:"shutdown_delay"`
}

// domainConfig picks the tissue: a dataset file or, without one, a synthetic box.
type domainConfig struct {
	Dataset string `toml:"dataset"`

	// DemoSize is nx, ny, mx, my of the synthetic box.
	DemoSize []int `toml:"demo_size"`
}

type simulationConfig struct {
	StepsPerFrame int    `toml:"steps_per_frame"`
	FrameInterval string `toml:"frame_interval"`
	Kernel        string `toml:"kernel"`
	Workers       int    `toml:"workers"`
	StartPaused   bool   `toml:"start_paused"`

	// Pace is an optional initial stimulus as x, y, z, radius in grid units.
	Pace []float64 `toml:"pace"`
}

type colormapConfig struct {
	Default string `toml:"default"`
}

type cacheConfig struct {
	FrameMB int `toml:"frame_mb"`
}

type exportConfig struct {
	Bucket string `toml:"bucket"`
}

func defaultConfig() tomlConfig {
	return tomlConfig{
		Server: serverConfig{
			HTTPAddress:   DefaultWebAddress,
			ShutdownDelay: 5,
		},
		Domain: domainConfig{DemoSize: []int{32, 32, 4, 4}},
		Simulation: simulationConfig{
			StepsPerFrame: DefaultStepsPerFrame,
			FrameInterval: DefaultFrameInterval.String(),
			Kernel:        "pool",
		},
		Model:     engine.DefaultParams(),
		Colormap:  colormapConfig{Default: "jet"},
		Snapshots: cardio.Config{"engine": "memory"},
		Cache:     cacheConfig{FrameMB: DefaultFrameCacheMB},
	}
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *tomlConfig) convertPathsToAbsolute(configPath string) error {
	var err error
	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = cardio.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path")
		}
	}

	// [domain].dataset
	if c.Domain.Dataset != "" {
		c.Domain.Dataset, err = cardio.ConvertToAbsolute(c.Domain.Dataset, configDir)
		if err != nil {
			return fmt.Errorf("error converting dataset setting to absolute path")
		}
	}

	// [auth].auth_file
	if c.Auth.AuthFile != "" {
		c.Auth.AuthFile, err = cardio.ConvertToAbsolute(c.Auth.AuthFile, configDir)
		if err != nil {
			return fmt.Errorf("error converting auth_file setting to absolute path")
		}
	}

	// [snapshots].path
	if p, found := c.Snapshots["path"]; found {
		path, ok := p.(string)
		if !ok {
			return fmt.Errorf("don't understand path setting for snapshots: %v", p)
		}
		if c.Snapshots["path"], err = cardio.ConvertToAbsolute(path, configDir); err != nil {
			return fmt.Errorf("error converting snapshots.path to absolute path: %q", path)
		}
	}
	return nil
}

// Check returns an error for settings that cannot be used.
func (c *tomlConfig) Check() error {
	if c.Simulation.StepsPerFrame < 1 {
		return fmt.Errorf("steps_per_frame must be at least 1, got %d", c.Simulation.StepsPerFrame)
	}
	if _, err := time.ParseDuration(c.Simulation.FrameInterval); err != nil {
		return fmt.Errorf("bad frame_interval %q: %v", c.Simulation.FrameInterval, err)
	}
	switch c.Simulation.Kernel {
	case "serial", "pool":
	default:
		return fmt.Errorf("unknown kernel %q, expected \"serial\" or \"pool\"", c.Simulation.Kernel)
	}
	if c.Domain.Dataset == "" && len(c.Domain.DemoSize) != 4 {
		return fmt.Errorf("demo_size needs 4 values (nx, ny, mx, my), got %v", c.Domain.DemoSize)
	}
	if n := len(c.Simulation.Pace); n != 0 && n != 4 {
		return fmt.Errorf("pace needs 4 values (x, y, z, radius), got %v", c.Simulation.Pace)
	}
	if _, err := cardio.ParseCompression(c.snapshotCompression()); err != nil {
		return err
	}
	return c.Model.Check()
}

func (c *tomlConfig) snapshotCompression() string {
	s, _, _ := c.Snapshots.GetString("compression")
	return s
}

// LoadConfig loads cardiowave server configuration from a TOML file.  Settings absent from
// the file keep their defaults.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("no server TOML configuration file provided")
	}
	config := defaultConfig()
	if _, err := toml.DecodeFile(filename, &config); err != nil {
		return fmt.Errorf("could not decode TOML config: %v", err)
	}
	if err := config.convertPathsToAbsolute(filename); err != nil {
		return fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	if err := config.Check(); err != nil {
		return fmt.Errorf("bad configuration in %s: %v", filename, err)
	}
	tc = config
	tcLocation = filename
	cardio.Infof("Loaded configuration from %s\n", filename)
	return nil
}

// ResetConfig restores the default configuration.
func ResetConfig() {
	tc = defaultConfig()
	tcLocation = ""
}

func ConfigLocation() string {
	return tcLocation
}

// Host returns the most understandable host alias + any port.
func Host() string {
	host := tc.Server.Host
	if host == "" {
		host = DefaultHost
	}
	parts := strings.Split(tc.Server.HTTPAddress, ":")
	if len(parts) > 1 {
		host = host + ":" + parts[len(parts)-1]
	}
	return host
}

func Note() string {
	return tc.Server.Note
}

func HTTPAddress() string {
	return tc.Server.HTTPAddress
}

// SetHTTPAddress overrides the configured web address if addr is not empty.
func SetHTTPAddress(addr string) {
	if addr != "" {
		tc.Server.HTTPAddress = addr
	}
}

func MaxConnections() int {
	return tc.Server.MaxConnections
}

func CorsDomains() []string {
	return tc.Server.CorsDomains
}

func ShutdownDelay() time.Duration {
	return time.Duration(tc.Server.ShutdownDelay) * time.Second
}

func LogConfig() *cardio.LogConfig {
	return &tc.Logging
}

func DatasetPath() string {
	return tc.Domain.Dataset
}

// DemoSize returns nx, ny, mx, my of the synthetic domain used without a dataset.
func DemoSize() (nx, ny, mx, my int) {
	d := tc.Domain.DemoSize
	return d[0], d[1], d[2], d[3]
}

func StepsPerFrame() int {
	return tc.Simulation.StepsPerFrame
}

func FrameInterval() time.Duration {
	d, err := time.ParseDuration(tc.Simulation.FrameInterval)
	if err != nil {
		return DefaultFrameInterval
	}
	return d
}

// Kernel returns the configured grid kernel.
func Kernel() engine.GridKernel {
	if tc.Simulation.Kernel == "serial" {
		return engine.SerialKernel{}
	}
	return engine.NewPoolKernel(tc.Simulation.Workers)
}

func StartPaused() bool {
	return tc.Simulation.StartPaused
}

// InitialPace returns the configured initial stimulus, if any.
func InitialPace() (x, y, z, radius float64, found bool) {
	p := tc.Simulation.Pace
	if len(p) != 4 {
		return
	}
	return p[0], p[1], p[2], p[3], true
}

func ModelParams() engine.Params {
	return tc.Model
}

func DefaultColormap() string {
	return tc.Colormap.Default
}

// SnapshotStoreConfig returns the store configuration for snapshots.
func SnapshotStoreConfig() cardio.StoreConfig {
	name, _, _ := tc.Snapshots.GetString("engine")
	if name == "" {
		name = "memory"
	}
	return cardio.StoreConfig{Config: tc.Snapshots, Engine: name}
}

func SnapshotCompression() cardio.Compression {
	compress, err := cardio.ParseCompression(tc.snapshotCompression())
	if err != nil {
		return cardio.Snappy
	}
	return compress
}

// FrameCacheSize returns the number of bytes reserved for rendered frames.
func FrameCacheSize() int {
	return tc.Cache.FrameMB * cardio.Mega
}

func KafkaConfig() storage.KafkaConfig {
	return tc.Kafka
}

// KafkaAvailable returns true if kafka servers are configured.
func KafkaAvailable() bool {
	return len(tc.Kafka.Servers) != 0
}

func ExportBucket() string {
	return tc.Export.Bucket
}
