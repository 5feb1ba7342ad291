package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"
	"github.com/rs/cors"
	"github.com/zenazn/goji/web"
	"github.com/zenazn/goji/web/middleware"

	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/colormap"
	"github.com/janelia-flyem/cardiowave/engine"
	"github.com/janelia-flyem/cardiowave/export"
	"github.com/janelia-flyem/cardiowave/storage"
)

const (
	// WebAPIPath is the path prefix for all HTTP API calls.
	WebAPIPath = "/api/"

	// MaxManualSteps bounds the steps of one POST /api/step request.
	MaxManualSteps = 100000

	exportTimeout = 5 * time.Minute
)

const WebHelp = `
cardiowave HTTP API (all paths prefixed with /api/)

GET  server/info                  Version, step, cell count, geometry, memory and kernel.
GET  state[?full=true]            JSON {"step", "u": [...]} with v, w and d if full.
GET  frame[?ramp=name]            RGBA bytes per compact index for the current step.
GET  field[?ramp=name]            RGB bytes per voxel record.
GET  color?v=0.5                  {"r", "g", "b"} of a voltage under the default ramp.
GET  colormap                     Names of the color ramps and the default one.
POST colormap/<name>              Switch the default ramp.  Unknown names are ignored.
POST pace                         Body {"x", "y", "z", "radius"} in grid units.
POST step?n=K                     Step K times outside the frame loop.
POST loop/pause, loop/resume      Pause or resume the frame loop.
GET  index/<x>/<y>/<z>            Compact index of a grid voxel.
GET  coord/<i>                    Grid coordinate of a compact index.
GET  snapshots                    List stored snapshots.
POST snapshots                    Store the current state and return its id.
POST snapshots/<id>/restore       Restore a stored snapshot.
DELETE snapshots/<id>             Remove a stored snapshot.
GET  export/arrow                 Arrow IPC stream of the current state.
POST export                       Body {"key"} writes the Arrow stream to the export bucket.
GET  stream[?ramp=name]           Websocket pushing a frame per tick: uint64 step + RGBA.

POST requests need a JWT in the Authorization header when the server has a secret key.
`

// BadRequest writes an error message for a bad request and logs it.
func BadRequest(w http.ResponseWriter, r *http.Request, format interface{}, args ...interface{}) {
	httpError(w, r, http.StatusBadRequest, format, args...)
}

// Unauthorized writes an error message for a request lacking authorization.
func Unauthorized(w http.ResponseWriter, r *http.Request, format interface{}, args ...interface{}) {
	httpError(w, r, http.StatusUnauthorized, format, args...)
}

func httpError(w http.ResponseWriter, r *http.Request, status int, format interface{}, args ...interface{}) {
	var message string
	switch v := format.(type) {
	case string:
		message = fmt.Sprintf(v, args...)
	case error:
		message = v.Error()
	default:
		message = fmt.Sprintf("%v", v)
	}
	errorMsg := fmt.Sprintf("%s (%s).", message, r.URL.Path)
	cardio.Errorf("%s\n", errorMsg)
	http.Error(w, errorMsg, status)
}

// engineError writes an error returned by the engine or a store with a fitting status.
func engineError(w http.ResponseWriter, r *http.Request, err error) {
	var uninit *cardio.UninitializedEngineError
	switch {
	case errors.As(err, &uninit):
		httpError(w, r, http.StatusServiceUnavailable, err)
	case errors.Is(err, storage.ErrSnapshotNotFound):
		httpError(w, r, http.StatusNotFound, err)
	default:
		httpError(w, r, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		httpError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(jsonBytes)
}

// Handler returns the HTTP handler for the service API.
func (s *Service) Handler() http.Handler {
	mux := web.New()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	if domains := CorsDomains(); len(domains) != 0 {
		c := cors.New(cors.Options{
			AllowedOrigins:   domains,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "HEAD"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		})
		mux.Use(c.Handler)
	}

	mux.Get("/api/help", helpHandler)
	mux.Get("/api/server/info", s.serverInfoHandler)
	mux.Get("/api/state", s.stateHandler)
	mux.Get("/api/frame", s.frameHandler)
	mux.Get("/api/field", s.fieldHandler)
	mux.Get("/api/color", colorHandler)
	mux.Get("/api/colormap", colormapListHandler)
	mux.Post("/api/colormap/:name", authorized(colormapHandler))
	mux.Post("/api/pace", authorized(s.paceHandler))
	mux.Post("/api/step", authorized(s.stepHandler))
	mux.Post("/api/loop/pause", authorized(s.pauseHandler))
	mux.Post("/api/loop/resume", authorized(s.resumeHandler))
	mux.Get("/api/index/:x/:y/:z", s.indexHandler)
	mux.Get("/api/coord/:i", s.coordHandler)
	mux.Get("/api/snapshots", s.listSnapshotsHandler)
	mux.Post("/api/snapshots", authorized(s.saveSnapshotHandler))
	mux.Post("/api/snapshots/:id/restore", authorized(s.restoreSnapshotHandler))
	mux.Delete("/api/snapshots/:id", authorized(s.deleteSnapshotHandler))
	mux.Get("/api/export/arrow", s.arrowHandler)
	mux.Post("/api/export", authorized(s.exportHandler))
	mux.Get("/api/stream", s.streamHandler)
	mux.NotFound(notFoundHandler)
	return mux
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	errorMsg := fmt.Sprintf("Could not find the URL: %s", r.URL.Path)
	cardio.Infof("%s\n", errorMsg)
	http.Error(w, errorMsg, http.StatusNotFound)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, WebHelp)
}

func (s *Service) serverInfoHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"Version":        cardio.Version.String(),
		"Host":           Host(),
		"Note":           Note(),
		"Step":           s.engine.Steps(),
		"Loop running":   s.loop.Running(),
		"Steps/frame":    s.loop.StepsPerFrame(),
		"Colormaps":      colormap.Names(),
		"Colormap":       colormap.DefaultRamp().Name,
		"Store engines":  storage.EnginesAvailable(),
		"Cached frames":  s.frames.EntryCount(),
		"Frame hit rate": s.frames.HitRate(),
		"Auth required":  AuthRequired(),
	}
	if s.snapshots != nil {
		info["Snapshot store"] = s.snapshots.String()
	}
	if err := s.loop.Err(); err != nil {
		info["Loop error"] = err.Error()
	}
	if dom := s.engine.Domain(); dom != nil {
		params := s.engine.Params()
		info["Cells"] = dom.Len()
		info["Geometry"] = dom.Geometry().String()
		info["Boundary faces"] = dom.Boundary()
		info["dx"] = params.Dx()
		info["dt"] = params.Dt
		info["Kernel"] = s.engine.Kernel().Name()
		stateBytes := 2 * dom.Len() * size.Of(engine.State{})
		adjBytes := size.Of(dom.Adjacency())
		info["State memory"] = humanize.Bytes(uint64(stateBytes))
		info["Adjacency memory"] = humanize.Bytes(uint64(adjBytes))
	}
	writeJSON(w, r, info)
}

func (s *Service) stateHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	full := r.URL.Query().Get("full") == "true"
	if !full {
		voltages, step, err := s.engine.ReadVoltage(nil)
		if err != nil {
			engineError(w, r, err)
			return
		}
		writeJSON(w, r, map[string]interface{}{"step": step, "u": voltages})
		return
	}
	states, step, err := s.engine.ReadStateWithStep()
	if err != nil {
		engineError(w, r, err)
		return
	}
	n := len(states)
	u, v, wv, d := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, st := range states {
		u[i], v[i], wv[i], d[i] = st.U, st.V, st.W, st.D
	}
	writeJSON(w, r, map[string]interface{}{"step": step, "u": u, "v": v, "w": wv, "d": d})
}

func (s *Service) frameHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	frame, step, err := s.Frame(r.URL.Query().Get("ramp"))
	if err != nil {
		engineError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Step", strconv.FormatUint(step, 10))
	w.Write(frame)
}

func (s *Service) fieldHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	ramp := colormap.RampOrDefault(r.URL.Query().Get("ramp"))
	voltages, step, err := s.engine.ReadVoltage(nil)
	if err != nil {
		engineError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Step", strconv.FormatUint(step, 10))
	w.Write(ramp.FieldBytes(voltages, s.engine.Domain()))
}

func colorHandler(w http.ResponseWriter, r *http.Request) {
	str := r.URL.Query().Get("v")
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		BadRequest(w, r, "bad voltage %q: %v", str, err)
		return
	}
	rgb := colormap.MapVoltageToColor(v)
	writeJSON(w, r, map[string]float64{"r": rgb.R, "g": rgb.G, "b": rgb.B})
}

func colormapListHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]interface{}{
		"default": colormap.DefaultRamp().Name,
		"ramps":   colormap.Names(),
	})
}

func colormapHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	name := c.URLParams["name"]
	switched := colormap.SetDefaultRamp(name)
	writeJSON(w, r, map[string]interface{}{
		"default":  colormap.DefaultRamp().Name,
		"switched": switched,
	})
}

type paceRequest struct {
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Z      *float64 `json:"z"`
	Radius *float64 `json:"radius"`
}

func (s *Service) paceHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	var req paceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "unable to decode pace request: %v", err)
		return
	}
	if req.X == nil || req.Y == nil || req.Z == nil || req.Radius == nil {
		BadRequest(w, r, "pace request needs x, y, z and radius")
		return
	}
	paced, err := s.Pace(*req.X, *req.Y, *req.Z, *req.Radius)
	if err != nil {
		engineError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]interface{}{"paced": paced, "step": s.engine.Steps()})
}

func (s *Service) stepHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	n := 1
	if str := r.URL.Query().Get("n"); str != "" {
		var err error
		if n, err = strconv.Atoi(str); err != nil || n < 0 || n > MaxManualSteps {
			BadRequest(w, r, "n must be an integer in [0, %d], got %q", MaxManualSteps, str)
			return
		}
	}
	if err := s.Step(n); err != nil {
		engineError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]interface{}{"step": s.engine.Steps()})
}

func (s *Service) pauseHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	s.loop.Pause()
	writeJSON(w, r, map[string]interface{}{"running": s.loop.Running(), "step": s.engine.Steps()})
}

func (s *Service) resumeHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	s.loop.Resume()
	writeJSON(w, r, map[string]interface{}{"running": s.loop.Running(), "step": s.engine.Steps()})
}

func (s *Service) indexHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	var p cardio.Point3d
	for dim, key := range []string{"x", "y", "z"} {
		v, err := strconv.ParseInt(c.URLParams[key], 10, 32)
		if err != nil {
			BadRequest(w, r, "bad %s coordinate %q", key, c.URLParams[key])
			return
		}
		p[dim] = int32(v)
	}
	i, found := s.engine.CompactIndexOf(p)
	if !found {
		httpError(w, r, http.StatusNotFound, "voxel %s is not in the domain", p)
		return
	}
	writeJSON(w, r, map[string]int{"index": i})
}

func (s *Service) coordHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(c.URLParams["i"])
	if err != nil {
		BadRequest(w, r, "bad compact index %q", c.URLParams["i"])
		return
	}
	p, err := s.engine.GridCoordinateOf(i)
	if err != nil {
		var uninit *cardio.UninitializedEngineError
		if errors.As(err, &uninit) {
			engineError(w, r, err)
		} else {
			httpError(w, r, http.StatusNotFound, err)
		}
		return
	}
	writeJSON(w, r, map[string]int32{"x": p[0], "y": p[1], "z": p[2]})
}

func (s *Service) listSnapshotsHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	headers, err := storage.ListSnapshots(s.snapshots)
	if err != nil {
		engineError(w, r, err)
		return
	}
	type snapshotInfo struct {
		ID      string    `json:"id"`
		Step    uint64    `json:"step"`
		Cells   int       `json:"cells"`
		Created time.Time `json:"created"`
	}
	list := make([]snapshotInfo, len(headers))
	for i := range headers {
		h := &headers[i]
		list[i] = snapshotInfo{ID: h.ID, Step: h.Step, Cells: h.N, Created: h.Created()}
	}
	writeJSON(w, r, list)
}

func (s *Service) saveSnapshotHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	h, err := s.SaveSnapshot()
	if err != nil {
		engineError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]interface{}{"id": h.ID, "step": h.Step})
}

func (s *Service) restoreSnapshotHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	h, err := s.RestoreSnapshot(c.URLParams["id"])
	if err != nil {
		engineError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]interface{}{"id": h.ID, "step": h.Step})
}

func (s *Service) deleteSnapshotHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	id := c.URLParams["id"]
	if err := storage.DeleteSnapshot(s.snapshots, id); err != nil {
		engineError(w, r, err)
		return
	}
	writeJSON(w, r, map[string]string{"deleted": id})
}

func (s *Service) arrowHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	states, step, err := s.engine.ReadStateWithStep()
	if err != nil {
		engineError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteArrow(&buf, s.engine.Domain(), step, states); err != nil {
		engineError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apache.arrow.stream")
	w.Header().Set("X-Step", strconv.FormatUint(step, 10))
	w.Write(buf.Bytes())
}

// exportRequest names the key written within the configured export bucket.  A bucket
// may be given but must be the configured one.
type exportRequest struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (s *Service) exportHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, r, "unable to decode export request: %v", err)
			return
		}
	}
	if s.bucket == "" {
		BadRequest(w, r, "no export bucket configured")
		return
	}
	if req.Bucket != "" && req.Bucket != s.bucket {
		BadRequest(w, r, "exports may only be written to the configured bucket")
		return
	}
	req.Bucket = s.bucket
	if req.Key != "" {
		if err := export.CheckKey(req.Key); err != nil {
			BadRequest(w, r, err)
			return
		}
	}
	states, step, err := s.engine.ReadStateWithStep()
	if err != nil {
		engineError(w, r, err)
		return
	}
	if req.Key == "" {
		req.Key = fmt.Sprintf("state-%09d.arrow", step)
	}
	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()
	if err := export.ToURL(ctx, req.Bucket, req.Key, s.engine.Domain(), step, states); err != nil {
		engineError(w, r, err)
		return
	}
	storage.LogActivityToKafka(map[string]interface{}{
		"Action": "export",
		"Bucket": req.Bucket,
		"Key":    req.Key,
		"Step":   step,
		"Time":   time.Now().Unix(),
	})
	writeJSON(w, r, map[string]interface{}{"bucket": req.Bucket, "key": req.Key, "step": step})
}
