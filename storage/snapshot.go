package storage

//go:generate msgp -io=false -tests=false -file=snapshot.go -o=snapshot_gen.go

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/twinj/uuid"

	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/engine"
)

// snapshotPrefix begins every snapshot key.
const snapshotPrefix = "snapshot/"

// bytesPerCell is the size of one cell state in a snapshot payload: U, V, W, D as float32.
const bytesPerCell = 16

// SnapshotHeader describes a snapshot without its state payload.
type SnapshotHeader struct {
	ID         string `msg:"id" json:"id"`
	Step       uint64 `msg:"step" json:"step"`
	Time       int64  `msg:"time" json:"time"`
	N          int    `msg:"n" json:"n"`
	ParamsJSON []byte `msg:"params" json:"-"`
}

// Created returns the time the snapshot was taken.
func (h *SnapshotHeader) Created() time.Time {
	return time.Unix(0, h.Time)
}

// Snapshot is the full simulation state at one step.
type Snapshot struct {
	SnapshotHeader
	Params engine.Params
	States []engine.State
}

// NewSnapshotID returns a fresh random snapshot ID.
func NewSnapshotID() string {
	return uuid.NewV4().String()
}

// Capture takes a snapshot of the engine's current state.
func Capture(e *engine.Engine) (*Snapshot, error) {
	states, step, err := e.ReadStateWithStep()
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		SnapshotHeader: SnapshotHeader{
			ID:   NewSnapshotID(),
			Step: step,
			Time: time.Now().UnixNano(),
			N:    len(states),
		},
		Params: e.Params(),
		States: states,
	}, nil
}

// Apply restores the snapshot into an engine loaded with a matching domain and the
// same model parameters the snapshot was taken with.
func (s *Snapshot) Apply(e *engine.Engine) error {
	if e.Initialized() {
		current := e.Params()
		if current.DomainLength != s.Params.DomainLength || current.GridResolution != s.Params.GridResolution {
			return fmt.Errorf("snapshot %s has grid spacing %g/%g, engine uses %g/%g", s.ID,
				s.Params.DomainLength, s.Params.GridResolution, current.DomainLength, current.GridResolution)
		}
		if current != s.Params {
			return fmt.Errorf("snapshot %s was taken with different model parameters", s.ID)
		}
	}
	if err := e.Restore(s.Step, s.States); err != nil {
		return fmt.Errorf("snapshot %s: %w", s.ID, err)
	}
	return nil
}

// Encode serializes the snapshot as a msgpack header followed by the state payload,
// compressed and checksummed.
func (s *Snapshot) Encode(compress cardio.Compression) ([]byte, error) {
	params, err := json.Marshal(s.Params)
	if err != nil {
		return nil, err
	}
	s.N = len(s.States)
	header := s.SnapshotHeader
	header.ParamsJSON = params
	buf, err := header.MarshalMsg(nil)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, bytesPerCell*len(s.States))
	for i, st := range s.States {
		off := i * bytesPerCell
		binary.LittleEndian.PutUint32(payload[off:], math.Float32bits(float32(st.U)))
		binary.LittleEndian.PutUint32(payload[off+4:], math.Float32bits(float32(st.V)))
		binary.LittleEndian.PutUint32(payload[off+8:], math.Float32bits(float32(st.W)))
		binary.LittleEndian.PutUint32(payload[off+12:], math.Float32bits(float32(st.D)))
	}
	serialized, err := cardio.SerializeData(payload, compress, cardio.CRC32)
	if err != nil {
		return nil, err
	}
	return append(buf, serialized...), nil
}

// DecodeSnapshotHeader reads only the header of an encoded snapshot.
func DecodeSnapshotHeader(data []byte) (*SnapshotHeader, []byte, error) {
	header := new(SnapshotHeader)
	rest, err := header.UnmarshalMsg(data)
	if err != nil {
		return nil, nil, fmt.Errorf("bad snapshot header: %v", err)
	}
	return header, rest, nil
}

// DecodeSnapshot reverses Encode.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	header, rest, err := DecodeSnapshotHeader(data)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{SnapshotHeader: *header}
	if err := json.Unmarshal(header.ParamsJSON, &s.Params); err != nil {
		return nil, fmt.Errorf("bad parameters in snapshot %s: %v", header.ID, err)
	}
	payload, _, err := cardio.DeserializeData(rest, true)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %v", header.ID, err)
	}
	if len(payload) != bytesPerCell*header.N {
		return nil, fmt.Errorf("snapshot %s has %d payload bytes, expected %d cells", header.ID, len(payload), header.N)
	}
	s.States = make([]engine.State, header.N)
	for i := range s.States {
		off := i * bytesPerCell
		s.States[i] = engine.State{
			U: float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))),
			V: float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off+4:]))),
			W: float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off+8:]))),
			D: float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[off+12:]))),
		}
	}
	return s, nil
}

func snapshotKey(id string) []byte {
	return []byte(snapshotPrefix + id)
}

// SaveSnapshot stores an encoded snapshot under its ID.
func SaveSnapshot(store Store, s *Snapshot, compress cardio.Compression) error {
	data, err := s.Encode(compress)
	if err != nil {
		return err
	}
	if err := store.Put(snapshotKey(s.ID), data); err != nil {
		return err
	}
	cardio.Infof("Saved snapshot %s of step %d (%d cells, %d bytes) to %s\n", s.ID, s.Step, s.N, len(data), store)
	return nil
}

// ErrSnapshotNotFound is returned when no snapshot has the requested ID.
var ErrSnapshotNotFound = fmt.Errorf("snapshot not found")

// LoadSnapshot retrieves and decodes a snapshot.
func LoadSnapshot(store Store, id string) (*Snapshot, error) {
	data, err := store.Get(snapshotKey(id))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return DecodeSnapshot(data)
}

// DeleteSnapshot removes a snapshot.
func DeleteSnapshot(store Store, id string) error {
	return store.Delete(snapshotKey(id))
}

// ListSnapshots returns the headers of all stored snapshots ordered by step.
func ListSnapshots(store Store) ([]SnapshotHeader, error) {
	keys, err := store.Keys([]byte(snapshotPrefix))
	if err != nil {
		return nil, err
	}
	headers := make([]SnapshotHeader, 0, len(keys))
	for _, key := range keys {
		data, err := store.Get(key)
		if err != nil {
			return nil, err
		}
		if data == nil {
			continue
		}
		header, _, err := DecodeSnapshotHeader(data)
		if err != nil {
			return nil, fmt.Errorf("key %q: %v", bytes.TrimPrefix(key, []byte(snapshotPrefix)), err)
		}
		header.ParamsJSON = nil
		headers = append(headers, *header)
	}
	sortHeaders(headers)
	return headers, nil
}

func sortHeaders(headers []SnapshotHeader) {
	sort.SliceStable(headers, func(i, j int) bool {
		if headers[i].Step != headers[j].Step {
			return headers[i].Step < headers[j].Step
		}
		return headers[i].Time < headers[j].Time
	})
}
