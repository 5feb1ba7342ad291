package engine

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/janelia-flyem/cardiowave/atlas"
	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/domain"
)

func makeEngine(t *testing.T, ds *atlas.Dataset, kernel GridKernel) *Engine {
	t.Helper()
	dom, err := domain.FromDataset(ds, kernel)
	if err != nil {
		t.Fatalf("unable to build domain: %v", err)
	}
	e, err := New(dom, DefaultParams(), kernel)
	if err != nil {
		t.Fatalf("unable to create engine: %v", err)
	}
	return e
}

func voltageAt(t *testing.T, e *Engine, states []State, p cardio.Point3d) float64 {
	t.Helper()
	i, found := e.CompactIndexOf(p)
	if !found {
		t.Fatalf("voxel %s is not active", p)
	}
	return states[i].U
}

func TestUninitialized(t *testing.T) {
	var e Engine
	var uninit *cardio.UninitializedEngineError
	if err := e.Step(); !errors.As(err, &uninit) {
		t.Errorf("expected UninitializedEngineError on step, got %v", err)
	}
	if err := e.StepN(3); !errors.As(err, &uninit) {
		t.Errorf("expected UninitializedEngineError on step n, got %v", err)
	}
	if _, err := e.PaceAt(0, 0, 0, 1); !errors.As(err, &uninit) {
		t.Errorf("expected UninitializedEngineError on pace, got %v", err)
	}
	if _, err := e.ReadState(); !errors.As(err, &uninit) {
		t.Errorf("expected UninitializedEngineError on read, got %v", err)
	}
	if err := e.Restore(0, nil); !errors.As(err, &uninit) {
		t.Errorf("expected UninitializedEngineError on restore, got %v", err)
	}
	if _, found := e.CompactIndexOf(cardio.Point3d{}); found {
		t.Errorf("uninitialized engine should not find any voxel")
	}
	if e.Initialized() {
		t.Errorf("zero engine reports itself initialized")
	}
}

func TestInitializeRejectsBadInput(t *testing.T) {
	dom, err := domain.FromDataset(atlas.Box(2, 2, 1, 1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	params := DefaultParams()
	params.Dt = 0
	if _, err := New(dom, params, nil); err == nil {
		t.Errorf("expected error for zero dt")
	}
	if _, err := New(nil, DefaultParams(), nil); err == nil {
		t.Errorf("expected error for missing domain")
	}
	e, err := New(dom, DefaultParams(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Kernel().Name() != "serial" {
		t.Errorf("expected serial kernel by default, got %s", e.Kernel().Name())
	}
}

// Resting cells see a small transient from the slow inward current before settling,
// but it must never approach the sodium threshold.
func TestRestingStability(t *testing.T) {
	e := makeEngine(t, atlas.Box(4, 4, 2, 2), nil)
	una := e.Params().Una
	var peak float64
	var peakStep int
	for step := 1; step <= 1000; step++ {
		if err := e.Step(); err != nil {
			t.Fatalf("unexpected error at step %d: %v", step, err)
		}
		states, err := e.ReadState()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, s := range states {
			if u := math.Abs(s.U); u > peak {
				peak, peakStep = u, step
			}
		}
	}
	if peak >= una {
		t.Fatalf("resting tissue reached |U| = %g at step %d, at or above threshold %g", peak, peakStep, una)
	}
	states, err := e.ReadState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, s := range states {
		if math.Abs(s.U) >= 1e-3 {
			t.Fatalf("cell %d drifted from rest: U = %g after 1000 steps", i, s.U)
		}
	}
	if e.Steps() != 1000 {
		t.Errorf("expected 1000 steps, got %d", e.Steps())
	}
}

func TestZeroFluxUniformity(t *testing.T) {
	ds := atlas.Synthesize(5, 4, 3, 1, func(p cardio.Point3d) bool {
		return p != cardio.Point3d{2, 2, 1} && p[0]+p[1] != 7
	})
	e := makeEngine(t, ds, nil)
	uniform := State{U: 0.2, V: 0.5, W: 0.5, D: 0.1}
	states := make([]State, e.Domain().Len())
	for i := range states {
		states[i] = uniform
	}
	if err := e.Restore(0, states); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for step := 0; step < 20; step++ {
		if err := e.Step(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		states, _ = e.ReadState()
		for i := range states {
			if states[i] != states[0] {
				t.Fatalf("step %d: cell %d state %+v differs from cell 0 %+v", step+1, i, states[i], states[0])
			}
		}
	}
}

func TestPaceAt(t *testing.T) {
	e := makeEngine(t, atlas.Box(4, 4, 2, 2), nil)
	before, _ := e.ReadState()
	paced, err := e.PaceAt(2, 2, 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paced != 7 {
		t.Errorf("expected 7 cells within radius 1 of interior voxel, got %d", paced)
	}
	once, _ := e.ReadState()
	if _, err := e.PaceAt(2, 2, 2, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, _ := e.ReadState()
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("pacing the same site twice changed the state")
	}
	for i := range once {
		if once[i].V != before[i].V || once[i].W != before[i].W || once[i].D != before[i].D {
			t.Fatalf("pacing modified gating variables of cell %d", i)
		}
		p := e.Domain().GridCoordinateOf(i)
		inside := p.DistanceSq(2, 2, 2) <= 1
		if inside != (once[i].U == 1) {
			t.Errorf("cell %s paced %t, expected %t", p, once[i].U == 1, inside)
		}
	}

	paced, err = e.PaceAt(40, 40, 40, 2)
	if err != nil || paced != 0 {
		t.Errorf("expected no cells paced outside domain, got %d, %v", paced, err)
	}
	if e.Steps() != 0 {
		t.Errorf("pacing should not advance the step count")
	}
}

// The paced center of a 4x4x4 cube holds a plateau and excitation spreads to the
// rest of the cube.
func TestCubeScenario(t *testing.T) {
	e := makeEngine(t, atlas.Box(4, 4, 2, 2), nil)
	if _, err := e.PaceAt(2, 2, 2, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	center := cardio.Point3d{2, 2, 2}
	neighbor := cardio.Point3d{1, 2, 2}
	corner := cardio.Point3d{0, 0, 0}

	var plateau int
	var decayed, neighborExcited, cornerExcited bool
	params := e.Params()
	for step := 1; step <= 100; step++ {
		if err := e.Step(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		states, _ := e.ReadState()
		if err := CheckInvariants(states); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		u := voltageAt(t, e, states, center)
		if u < 0.5 {
			decayed = true
		}
		if !decayed && u > 0.9 {
			plateau++
		}
		if step <= 50 && voltageAt(t, e, states, neighbor) > params.Una {
			neighborExcited = true
		}
		if voltageAt(t, e, states, corner) > params.Una {
			cornerExcited = true
		}
	}
	if plateau < 5 {
		t.Errorf("expected center plateau of at least 5 steps above 0.9, got %d", plateau)
	}
	if !neighborExcited {
		t.Errorf("orthogonal neighbor never exceeded u_na within 50 steps")
	}
	if !cornerExcited {
		t.Errorf("excitation never reached the far corner")
	}
}

func TestPropagation(t *testing.T) {
	e := makeEngine(t, atlas.Box(24, 3, 3, 1), nil)
	if _, err := e.PaceAt(0, 1, 1, 1.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	una := e.Params().Una
	probes := []int32{6, 12, 18, 23}
	arrival := make(map[int32]int)
	for step := 1; step <= 300; step++ {
		if err := e.Step(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		states, _ := e.ReadState()
		if step == 10 {
			if u := voltageAt(t, e, states, cardio.Point3d{23, 1, 1}); u > 0.1 {
				t.Errorf("far end excited too early: U = %g at step 10", u)
			}
		}
		for _, x := range probes {
			if _, done := arrival[x]; !done && voltageAt(t, e, states, cardio.Point3d{x, 1, 1}) > una {
				arrival[x] = step
			}
		}
	}
	for i, x := range probes {
		if _, done := arrival[x]; !done {
			t.Fatalf("wave never reached x = %d", x)
		}
		if i > 0 && arrival[x] <= arrival[probes[i-1]] {
			t.Errorf("wave reached x = %d at step %d, not after x = %d at step %d",
				x, arrival[x], probes[i-1], arrival[probes[i-1]])
		}
	}
	if arrival[12] > 150 {
		t.Errorf("wave too slow: reached x = 12 at step %d", arrival[12])
	}
}

func TestClampInvariant(t *testing.T) {
	e := makeEngine(t, atlas.Box(6, 5, 2, 2), nil)
	rng := rand.New(rand.NewSource(42))
	states := make([]State, e.Domain().Len())
	for i := range states {
		states[i] = State{U: rng.Float64(), V: rng.Float64(), W: rng.Float64(), D: rng.Float64()}
	}
	if err := e.Restore(7, states); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Steps() != 7 {
		t.Errorf("restore should set step count to 7, got %d", e.Steps())
	}
	for step := 0; step < 200; step++ {
		if err := e.Step(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cur, _ := e.ReadState()
		if err := CheckInvariants(cur); err != nil {
			t.Fatalf("step %d: %v", step+1, err)
		}
	}
}

func TestRestore(t *testing.T) {
	e := makeEngine(t, atlas.Box(2, 2, 1, 1), nil)
	if err := e.Restore(0, make([]State, 3)); err == nil {
		t.Errorf("expected error restoring wrong number of cells")
	}
	bad := []State{{U: math.NaN()}, {}, {}, {}}
	if err := e.Restore(0, bad); err == nil {
		t.Errorf("expected error restoring NaN")
	}
	wild := []State{{U: 2, V: -1, W: 0.5, D: 3}, {}, {}, {}}
	if err := e.Restore(3, wild); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	states, _ := e.ReadState()
	if states[0] != (State{U: 1, V: 0, W: 0.5, D: 1}) {
		t.Errorf("restore did not clamp: %+v", states[0])
	}
	if err := CheckInvariants(wild); err == nil {
		t.Errorf("expected invariant violation for unclamped state")
	}
}

func TestKernelsAgree(t *testing.T) {
	pool := NewPoolKernel(4)
	pool.ChunkSize = 3
	kernels := []GridKernel{SerialKernel{}, pool, NewPoolKernel(0)}
	var reference []State
	for _, kernel := range kernels {
		e := makeEngine(t, atlas.Box(5, 5, 2, 2), kernel)
		if _, err := e.PaceAt(1, 1, 1, 1.5); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := e.StepN(60); err != nil {
			t.Fatalf("%s: unexpected error: %v", kernel.Name(), err)
		}
		states, _ := e.ReadState()
		if reference == nil {
			reference = states
		} else if !reflect.DeepEqual(states, reference) {
			t.Errorf("%s kernel result differs from serial kernel", kernel.Name())
		}
	}
}

func TestPoolKernelPanic(t *testing.T) {
	k := NewPoolKernel(2)
	err := k.Dispatch(10, func(lo, hi int) {
		if lo == 0 {
			panic("bad cell")
		}
	})
	if err == nil {
		t.Errorf("expected error from panicking chunk")
	}
	var covered int
	if err := k.Dispatch(0, func(lo, hi int) { covered++ }); err != nil || covered != 0 {
		t.Errorf("empty dispatch should not run, got %d chunks, %v", covered, err)
	}
}

func TestDegenerateDomain(t *testing.T) {
	ds := atlas.Synthesize(3, 3, 1, 1, func(cardio.Point3d) bool { return false })
	e := makeEngine(t, ds, nil)
	if err := e.StepN(5); err != nil {
		t.Errorf("stepping a degenerate domain should be a no-op, got %v", err)
	}
	states, err := e.ReadState()
	if err != nil || len(states) != 0 {
		t.Errorf("expected empty state, got %d cells, %v", len(states), err)
	}
	var degenerate *cardio.DegenerateDomainError
	if !errors.As(e.Domain().Check(), &degenerate) {
		t.Errorf("expected degenerate domain error")
	}
}

func TestReadVoltage(t *testing.T) {
	e := makeEngine(t, atlas.Box(3, 2, 1, 1), nil)
	if _, err := e.PaceAt(0, 0, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, step, err := e.ReadVoltage(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(u) != 6 || step != 0 || u[0] != 1 || u[1] != 0 {
		t.Errorf("bad voltages %v at step %d", u, step)
	}
}
