package server

import (
	"sync"
	"time"

	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/engine"
)

// Loop advances an engine by a fixed number of steps on every frame tick and notifies
// subscribers of each new frame.  Pacing and reads go straight to the engine, whose
// lock orders them between frames.
type Loop struct {
	eng           *engine.Engine
	stepsPerFrame int
	interval      time.Duration

	mu      sync.Mutex
	paused  bool
	stop    chan struct{}
	done    chan struct{}
	subs    map[chan uint64]struct{}
	lastErr error
}

// NewLoop returns a stopped loop for the engine.
func NewLoop(eng *engine.Engine, stepsPerFrame int, interval time.Duration) *Loop {
	if stepsPerFrame < 1 {
		stepsPerFrame = 1
	}
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Loop{
		eng:           eng,
		stepsPerFrame: stepsPerFrame,
		interval:      interval,
		subs:          make(map[chan uint64]struct{}),
	}
}

// StepsPerFrame returns the number of integration steps per frame.
func (l *Loop) StepsPerFrame() int {
	return l.stepsPerFrame
}

// Start launches the frame goroutine.  Starting a started loop does nothing.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		return
	}
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(l.stop, l.done)
	cardio.Infof("Started frame loop: %d steps every %s\n", l.stepsPerFrame, l.interval)
}

// Stop halts the frame goroutine and waits for it to exit.
func (l *Loop) Stop() {
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.stop, l.done = nil, nil
	l.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Pause keeps the loop ticking without stepping the engine.
func (l *Loop) Pause() {
	l.mu.Lock()
	l.paused = true
	l.mu.Unlock()
}

// Resume undoes Pause and clears any error that paused the loop.
func (l *Loop) Resume() {
	l.mu.Lock()
	l.paused = false
	l.lastErr = nil
	l.mu.Unlock()
}

// Paused returns true if frames are not being stepped.
func (l *Loop) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// Running returns true if the loop is started and not paused.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stop != nil && !l.paused
}

// Err returns the step error that last paused the loop, if any.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Subscribe returns a channel receiving the step of every new frame and a function that
// cancels the subscription.  A slow subscriber misses frames rather than blocking the loop.
func (l *Loop) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()
	return ch, func() {
		l.mu.Lock()
		delete(l.subs, ch)
		l.mu.Unlock()
	}
}

// Notify sends the step to all subscribers.  It is called after every frame and after
// out-of-band changes like pacing or restores.
func (l *Loop) Notify(step uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs {
		select {
		case ch <- step:
		default:
			// replace the undelivered frame with the newer one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- step:
			default:
			}
		}
	}
}

// Frame steps the engine once by StepsPerFrame and notifies subscribers.  A step error
// pauses the loop.
func (l *Loop) Frame() error {
	if err := l.eng.StepN(l.stepsPerFrame); err != nil {
		l.mu.Lock()
		l.paused = true
		l.lastErr = err
		l.mu.Unlock()
		cardio.Errorf("Pausing frame loop: %v\n", err)
		return err
	}
	l.Notify(l.eng.Steps())
	return nil
}

func (l *Loop) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if l.Paused() {
				continue
			}
			start := time.Now()
			if err := l.Frame(); err != nil {
				continue
			}
			if elapsed := time.Since(start); elapsed > l.interval {
				cardio.Debugf("Slow frame: %d steps took %s, frame interval %s\n", l.stepsPerFrame, elapsed, l.interval)
			}
		}
	}
}
