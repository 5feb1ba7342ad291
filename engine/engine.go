/*
	Package engine integrates the Bueno-Orovio minimal ventricular model over a sparse
	domain with explicit Euler steps and injects pacing stimuli.

	An Engine holds two state buffers indexed by compact index.  Each step reads the current
	buffer, writes the next one through a GridKernel and swaps them.  Stepping, pacing and
	reading are serialized by the engine so a caller never observes a half-written step.
*/
package engine

import (
	"fmt"
	"math"
	"sync"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/domain"
)

// Engine is the reaction-diffusion integrator for one domain.  The zero value is an
// uninitialized engine; Initialize or New make it ready.
type Engine struct {
	mu sync.Mutex

	dom    *domain.Domain
	params Params
	kernel GridKernel

	cur, next []State
	steps     uint64
}

// New returns an engine initialized with the domain, parameters and kernel.
func New(dom *domain.Domain, params Params, kernel GridKernel) (*Engine, error) {
	e := new(Engine)
	if err := e.Initialize(dom, params, kernel); err != nil {
		return nil, err
	}
	return e, nil
}

// Initialize allocates both state buffers at rest for the domain.  A nil kernel runs
// serially.  Re-initializing an engine discards its state and resets the step count.
func (e *Engine) Initialize(dom *domain.Domain, params Params, kernel GridKernel) error {
	if dom == nil {
		return fmt.Errorf("cannot initialize simulation engine without a domain")
	}
	if err := params.Check(); err != nil {
		return err
	}
	if kernel == nil {
		kernel = SerialKernel{}
	}
	if err := dom.Check(); err != nil {
		cardio.Warningf("Stepping will have no effect: %v\n", err)
	}

	n := dom.Len()
	cur := make([]State, n)
	for i := range cur {
		cur[i] = RestingState
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.dom = dom
	e.params = params
	e.kernel = kernel
	e.cur = cur
	e.next = make([]State, n)
	e.steps = 0

	cardio.Infof("Initialized engine with %d active cells, dx %g, %s kernel, %s of state\n",
		n, params.Dx(), kernel.Name(), humanize.Bytes(uint64(2*size.Of(e.cur))))
	return nil
}

// Initialized returns true if the engine has a domain loaded.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dom != nil
}

// Domain returns the loaded domain or nil.
func (e *Engine) Domain() *domain.Domain {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dom
}

// Params returns the parameters the engine was initialized with.
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// Kernel returns the grid kernel used for stepping.
func (e *Engine) Kernel() GridKernel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kernel
}

// Steps returns the number of steps taken since initialization or the last restore.
func (e *Engine) Steps() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps
}

// Step advances the simulation by one time step.  Stepping a domain with no active cells
// does nothing.
func (e *Engine) Step() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dom == nil {
		return &cardio.UninitializedEngineError{Op: "step"}
	}
	return e.step()
}

// StepN advances the simulation by count sequential steps.
func (e *Engine) StepN(count int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dom == nil {
		return &cardio.UninitializedEngineError{Op: "step"}
	}
	for i := 0; i < count; i++ {
		if err := e.step(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) step() error {
	n := len(e.cur)
	if n == 0 {
		return nil
	}
	dx := e.params.Dx()
	invDx2 := 1 / (dx * dx)
	adj := e.dom.Adjacency()
	cur, next, p := e.cur, e.next, &e.params
	err := e.kernel.Dispatch(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			next[i] = p.update(cur, &adj[i], i, invDx2)
		}
	})
	if err != nil {
		return fmt.Errorf("step %d: %w", e.steps+1, err)
	}
	e.cur, e.next = e.next, e.cur
	e.steps++
	return nil
}

// PaceAt sets U to 1 for every active cell within radius of the grid position (x, y, z).
// V, W and D are left alone.  It returns the number of cells paced, which may be zero.
func (e *Engine) PaceAt(x, y, z, radius float64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dom == nil {
		return 0, &cardio.UninitializedEngineError{Op: "pace"}
	}
	if radius < 0 || math.IsNaN(radius) {
		return 0, nil
	}
	r2 := radius * radius
	var paced int
	for i := range e.cur {
		if e.dom.GridCoordinateOf(i).DistanceSq(x, y, z) <= r2 {
			e.cur[i].U = 1
			paced++
		}
	}
	cardio.Debugf("Paced %d cells within %g of (%g,%g,%g) at step %d\n", paced, radius, x, y, z, e.steps)
	return paced, nil
}

// ReadState returns a copy of the current state buffer indexed by compact index.
func (e *Engine) ReadState() ([]State, error) {
	states, _, err := e.ReadStateWithStep()
	return states, err
}

// ReadStateWithStep is ReadState that also returns the step the states belong to.
func (e *Engine) ReadStateWithStep() ([]State, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dom == nil {
		return nil, 0, &cardio.UninitializedEngineError{Op: "read state"}
	}
	states := make([]State, len(e.cur))
	copy(states, e.cur)
	return states, e.steps, nil
}

// ReadVoltage copies U of every cell into dst, growing it if needed, and returns it
// along with the step the voltages belong to.
func (e *Engine) ReadVoltage(dst []float64) ([]float64, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dom == nil {
		return dst, 0, &cardio.UninitializedEngineError{Op: "read state"}
	}
	if cap(dst) < len(e.cur) {
		dst = make([]float64, len(e.cur))
	}
	dst = dst[:len(e.cur)]
	for i, s := range e.cur {
		dst[i] = s.U
	}
	return dst, e.steps, nil
}

// Restore replaces the current state, e.g. from a snapshot, and sets the step count.
// Values are clamped to [0, 1]; NaN is rejected.
func (e *Engine) Restore(steps uint64, states []State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dom == nil {
		return &cardio.UninitializedEngineError{Op: "restore state"}
	}
	if len(states) != len(e.cur) {
		return fmt.Errorf("cannot restore %d cell states into domain with %d active cells", len(states), len(e.cur))
	}
	for i, s := range states {
		if math.IsNaN(s.U) || math.IsNaN(s.V) || math.IsNaN(s.W) || math.IsNaN(s.D) {
			return fmt.Errorf("cannot restore state: cell %d is not a number", i)
		}
	}
	for i, s := range states {
		e.cur[i] = State{U: clamp(s.U), V: clamp(s.V), W: clamp(s.W), D: clamp(s.D)}
	}
	e.steps = steps
	return nil
}

// CompactIndexOf returns the compact index of a grid coordinate, or false if the voxel is
// inactive or no domain is loaded.
func (e *Engine) CompactIndexOf(p cardio.Point3d) (int, bool) {
	dom := e.Domain()
	if dom == nil {
		return 0, false
	}
	return dom.CompactIndexOf(p)
}

// GridCoordinateOf returns the grid coordinate of compact index i.
func (e *Engine) GridCoordinateOf(i int) (cardio.Point3d, error) {
	dom := e.Domain()
	if dom == nil {
		return cardio.Point3d{}, &cardio.UninitializedEngineError{Op: "look up grid coordinate"}
	}
	if i < 0 || i >= dom.Len() {
		return cardio.Point3d{}, fmt.Errorf("compact index %d is outside [0,%d)", i, dom.Len())
	}
	return dom.GridCoordinateOf(i), nil
}

// CheckInvariants returns an error describing the first state outside [0, 1] or NaN.
func CheckInvariants(states []State) error {
	for i, s := range states {
		vals := [4]float64{s.U, s.V, s.W, s.D}
		for j, v := range vals {
			if !(v >= 0 && v <= 1) {
				return fmt.Errorf("cell %d variable %c = %g is outside [0,1]", i, "UVWD"[j], v)
			}
		}
	}
	return nil
}
