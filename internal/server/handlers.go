package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/jeongseonghan/ntn-linksim/internal/dsp"
	"github.com/jeongseonghan/ntn-linksim/internal/logging"
	"github.com/jeongseonghan/ntn-linksim/internal/observability"
	"github.com/jeongseonghan/ntn-linksim/internal/sim"
)

// maxBodyBytes caps request bodies on the JSON endpoints.
const maxBodyBytes = 1 << 20

// Handlers holds the HTTP API handlers.
type Handlers struct {
	wsHub       *WSHub
	log         logging.Logger
	metrics     *observability.SimCollector
	parallelism int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	sweepID string
}

// SweepRequest is the body of POST /api/sweep.
type SweepRequest struct {
	Type       string          `json:"type"`
	Values     []float64       `json:"values"`
	EnableComp bool            `json:"enable_comp"`
	Config     json.RawMessage `json:"config"`
}

// RunResponse is the body returned by POST /api/run.
type RunResponse struct {
	Config sim.Config `json:"config"`
	Result sim.Result `json:"result"`
}

// NewHandlers creates new API handlers. metrics may be nil.
func NewHandlers(log logging.Logger, metrics *observability.SimCollector, parallelism int) *Handlers {
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handlers{
		wsHub:       NewWSHub(log),
		log:         log,
		metrics:     metrics,
		parallelism: parallelism,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Hub returns the WebSocket hub sweep points are broadcast on.
func (h *Handlers) Hub() *WSHub {
	return h.wsHub
}

// Close cancels a running sweep and waits for it to stop.
func (h *Handlers) Close() {
	h.cancel()
	h.wg.Wait()
}

// Wait blocks until no background sweep is running.
func (h *Handlers) Wait() {
	h.wg.Wait()
}

func (h *Handlers) runner(opts ...sim.Option) *sim.Runner {
	base := []sim.Option{
		sim.WithLogger(h.log),
		sim.WithParallelism(h.parallelism),
	}
	if h.metrics != nil {
		base = append(base, sim.WithRecorder(h.metrics))
	}
	return sim.NewRunner(append(base, opts...)...)
}

// HandleWebSocket handles WebSocket upgrade requests.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "WebSocket upgrade error", logging.Err(err))
		return
	}

	h.wsHub.AddClient(conn)

	// Drain reads so close frames are processed.
	go func() {
		defer h.wsHub.RemoveClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// HandleRun runs one simulation. The body is a partial config laid over the
// defaults.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, log := logging.WithRequestLogger(r.Context(), h.log)

	cfg, err := decodeConfig(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("Parse request: %v", err), http.StatusBadRequest)
		return
	}

	res, err := h.runner(sim.WithLogger(log)).Run(ctx, cfg)
	if err != nil {
		log.Warn(ctx, "Run failed", logging.Err(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{Config: cfg, Result: res})
}

// HandleSweep starts a sweep in the background. Points and the final status
// are broadcast on the WebSocket hub.
func (h *Handlers) HandleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SweepRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Parse request: %v", err), http.StatusBadRequest)
		return
	}
	cfg := sim.DefaultConfig()
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			http.Error(w, fmt.Sprintf("Parse config: %v", err), http.StatusBadRequest)
			return
		}
	}
	if err := validateSweep(req, cfg); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		http.Error(w, "Sweep already running", http.StatusConflict)
		return
	}
	id := uuid.NewString()
	h.running = true
	h.sweepID = id
	h.wg.Add(1)
	h.mu.Unlock()

	go h.runSweep(id, req, cfg)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "running",
		"id":     id,
	})
}

func (h *Handlers) runSweep(id string, req SweepRequest, cfg sim.Config) {
	defer h.wg.Done()
	defer func() {
		h.mu.Lock()
		h.running = false
		h.sweepID = ""
		h.mu.Unlock()
	}()

	log := h.log.With(logging.String("sweep_id", id), logging.String("sweep", req.Type))
	log.Info(h.ctx, "Sweep started", logging.Int("points", len(req.Values)))

	r := h.runner(sim.WithLogger(log), sim.WithOnPoint(func(p sim.Point) {
		h.wsHub.BroadcastPoint(PointPayload{
			SweepID: id,
			Sweep:   p.Sweep,
			Index:   p.Index,
			Value:   p.Value,
			BER:     p.BER,
		})
	}))

	var err error
	switch req.Type {
	case sim.KindSNR:
		_, err = r.SweepSNR(h.ctx, cfg, req.Values)
	case sim.KindCFO:
		_, err = r.SweepCFO(h.ctx, cfg, req.Values, req.EnableComp)
	case sim.KindDelay:
		_, err = r.SweepDelay(h.ctx, cfg, req.Values, req.EnableComp)
	case sim.KindRicianK:
		_, err = r.SweepRicianK(h.ctx, cfg, req.Values)
	}

	if err != nil {
		log.Error(h.ctx, "Sweep failed", logging.Err(err))
		h.wsHub.BroadcastStatus(id, "error", err.Error())
		return
	}
	log.Info(h.ctx, "Sweep completed")
	h.wsHub.BroadcastStatus(id, "completed", "")
}

// HandleStatus reports whether a sweep is running.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	status := map[string]string{"status": "idle"}
	if h.running {
		status["status"] = "running"
		status["id"] = h.sweepID
	}
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, status)
}

// MetricsHandler serves the simulation metrics, or 404 when metrics are off.
func (h *Handlers) MetricsHandler() http.Handler {
	if h.metrics == nil {
		return http.NotFoundHandler()
	}
	return h.metrics.Handler()
}

// decodeConfig lays a JSON object over the defaults. An empty body yields the
// defaults.
func decodeConfig(body io.Reader) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if err := json.NewDecoder(body).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return sim.Config{}, err
	}
	return cfg, nil
}

func validateSweep(req SweepRequest, cfg sim.Config) error {
	switch req.Type {
	case sim.KindSNR, sim.KindCFO, sim.KindDelay, sim.KindRicianK:
	default:
		return fmt.Errorf("%w: unknown sweep type %q", dsp.ErrInvalidArgument, req.Type)
	}
	if len(req.Values) == 0 {
		return fmt.Errorf("%w: values must not be empty", dsp.ErrInvalidArgument)
	}
	return cfg.Validate()
}

func statusFor(err error) int {
	if errors.Is(err, dsp.ErrInvalidArgument) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
