package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"github.com/janelia-flyem/cardiowave/atlas"
	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/colormap"
	"github.com/janelia-flyem/cardiowave/domain"
	"github.com/janelia-flyem/cardiowave/engine"
	"github.com/janelia-flyem/cardiowave/storage"
)

// Service ties a running engine to its frame loop, snapshot store and frame cache.
type Service struct {
	engine    *engine.Engine
	loop      *Loop
	snapshots storage.Store
	frames    *FrameCache
	compress  cardio.Compression
	bucket    string
}

// NewService returns a service for an initialized engine using the current configuration
// for the frame loop, frame cache, snapshot compression and export bucket.  The loop is
// not started.
func NewService(eng *engine.Engine, store storage.Store) *Service {
	return &Service{
		engine:    eng,
		loop:      NewLoop(eng, StepsPerFrame(), FrameInterval()),
		snapshots: store,
		frames:    NewFrameCache(FrameCacheSize()),
		compress:  SnapshotCompression(),
		bucket:    ExportBucket(),
	}
}

func (s *Service) Engine() *engine.Engine {
	return s.engine
}

func (s *Service) Loop() *Loop {
	return s.loop
}

func (s *Service) Snapshots() storage.Store {
	return s.snapshots
}

// Frame returns the RGBA frame of the current state under the named ramp along with its
// step.  An empty or unknown ramp name uses the default ramp.
func (s *Service) Frame(rampName string) ([]byte, uint64, error) {
	ramp := colormap.RampOrDefault(rampName)
	gen := s.frames.Generation()
	step := s.engine.Steps()
	if frame, found := s.frames.Get(ramp.Name, gen, step); found {
		return frame, step, nil
	}
	voltages, step, err := s.engine.ReadVoltage(nil)
	if err != nil {
		return nil, 0, err
	}
	frame := ramp.RGBA(voltages)
	s.frames.Set(ramp.Name, gen, step, frame)
	return frame, step, nil
}

// Pace stimulates the engine and notifies frame subscribers.
func (s *Service) Pace(x, y, z, radius float64) (int, error) {
	paced, err := s.engine.PaceAt(x, y, z, radius)
	if err != nil {
		return 0, err
	}
	s.changed()
	storage.LogActivityToKafka(map[string]interface{}{
		"Action": "pace",
		"Step":   s.engine.Steps(),
		"Site":   []float64{x, y, z},
		"Radius": radius,
		"Paced":  paced,
		"Time":   time.Now().Unix(),
	})
	return paced, nil
}

// Step advances the engine outside the frame loop and notifies frame subscribers.
func (s *Service) Step(n int) error {
	if err := s.engine.StepN(n); err != nil {
		return err
	}
	s.loop.Notify(s.engine.Steps())
	return nil
}

// SaveSnapshot stores the current state and returns its header.
func (s *Service) SaveSnapshot() (*storage.SnapshotHeader, error) {
	snap, err := storage.Capture(s.engine)
	if err != nil {
		return nil, err
	}
	if err := storage.SaveSnapshot(s.snapshots, snap, s.compress); err != nil {
		return nil, err
	}
	storage.LogActivityToKafka(map[string]interface{}{
		"Action":   "snapshot",
		"Snapshot": snap.ID,
		"Step":     snap.Step,
		"Time":     time.Now().Unix(),
	})
	return &snap.SnapshotHeader, nil
}

// RestoreSnapshot replaces the current state with a stored snapshot.
func (s *Service) RestoreSnapshot(id string) (*storage.SnapshotHeader, error) {
	snap, err := storage.LoadSnapshot(s.snapshots, id)
	if err != nil {
		return nil, err
	}
	if err := snap.Apply(s.engine); err != nil {
		return nil, err
	}
	s.changed()
	storage.LogActivityToKafka(map[string]interface{}{
		"Action":   "restore",
		"Snapshot": snap.ID,
		"Step":     snap.Step,
		"Time":     time.Now().Unix(),
	})
	return &snap.SnapshotHeader, nil
}

// changed is called after state changes that do not advance the step.
func (s *Service) changed() {
	s.frames.Invalidate()
	s.loop.Notify(s.engine.Steps())
}

// Close stops the frame loop and releases the snapshot store.
func (s *Service) Close() error {
	s.loop.Stop()
	if s.snapshots != nil {
		return s.snapshots.Close()
	}
	return nil
}

// LoadDomain builds the configured domain: the dataset file if given, else a synthetic
// box of DemoSize.  A dataset edge length overrides the configured domain length.
func LoadDomain(d domain.Dispatcher) (*domain.Domain, engine.Params, error) {
	params := ModelParams()
	var ds *atlas.Dataset
	if path := DatasetPath(); path != "" {
		var err error
		if ds, err = atlas.ReadFile(path); err != nil {
			return nil, params, err
		}
		cardio.Infof("Read dataset %s\n", path)
	} else {
		nx, ny, mx, my := DemoSize()
		ds = atlas.Box(nx, ny, mx, my)
		cardio.Infof("No dataset configured, using %d x %d x %d demo box\n", nx, ny, mx*my)
	}
	if ds.Length > 0 {
		params.DomainLength = ds.Length
	}
	dom, err := domain.FromDataset(ds, d)
	if err != nil {
		return nil, params, err
	}
	return dom, params, nil
}

// Initialize creates the service described by the loaded configuration: the domain,
// engine, snapshot store, default color ramp, kafka activity and initial pacing.
func Initialize() (*Service, error) {
	tc.Logging.SetLogger()
	cardio.Infof("Using %d of %d logical CPUs for cardiowave.\n", cardio.NumCPU, runtime.NumCPU())

	kernel := Kernel()
	dom, params, err := LoadDomain(kernel)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(dom, params, kernel)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStore(SnapshotStoreConfig())
	if err != nil {
		return nil, fmt.Errorf("unable to open snapshot store: %v", err)
	}
	if name := DefaultColormap(); name != "" && !colormap.SetDefaultRamp(name) {
		cardio.Warningf("Unknown default colormap %q, keeping %q\n", name, colormap.DefaultRamp().Name)
	}
	if err := KafkaConfig().Initialize(Host()); err != nil {
		cardio.Errorf("Unable to initialize kafka activity logging: %v\n", err)
	}
	if err := loadAuthFile(); err != nil {
		store.Close()
		return nil, err
	}

	s := NewService(eng, store)
	storage.LogActivityToKafka(map[string]interface{}{
		"Action":   "load",
		"Dataset":  DatasetPath(),
		"Geometry": dom.Geometry().String(),
		"Cells":    dom.Len(),
		"Time":     time.Now().Unix(),
	})
	if x, y, z, radius, found := InitialPace(); found {
		paced, err := s.Pace(x, y, z, radius)
		if err != nil {
			s.Close()
			return nil, err
		}
		cardio.Infof("Initial pacing at (%g, %g, %g) radius %g stimulated %d cells\n", x, y, z, radius, paced)
	}
	return s, nil
}

// Serve runs the frame loop and the HTTP API until interrupted, then shuts down after
// waiting up to ShutdownDelay for requests in flight.
func Serve(s *Service) error {
	listener, err := net.Listen("tcp", HTTPAddress())
	if err != nil {
		return err
	}
	if maxConn := MaxConnections(); maxConn > 0 {
		listener = netutil.LimitListener(listener, maxConn)
		cardio.Infof("Limiting web server to %d simultaneous connections\n", maxConn)
	}
	srv := &http.Server{Handler: s.Handler()}

	if StartPaused() {
		s.loop.Pause()
	}
	s.loop.Start()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		sig := <-sigs
		cardio.Infof("Stop signal %s captured, shutting down in up to %s\n", sig, ShutdownDelay())
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownDelay())
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			cardio.Errorf("Error shutting down web server: %v\n", err)
		}
	}()

	cardio.Infof("Web server listening at %s ...\n", HTTPAddress())
	err = srv.Serve(listener)
	if err == http.ErrServerClosed {
		<-stopped
		err = nil
	}
	if cerr := s.Close(); cerr != nil {
		cardio.Errorf("Error closing snapshot store: %v\n", cerr)
	}
	storage.KafkaShutdown()
	return err
}
