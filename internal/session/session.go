// Package session owns the interaction state of one clustering session: the
// dataset, the centroids, the latest partition and the mode that decides which
// operator controls are enabled. All mutation goes through Controller.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"kmeansviz/internal/api"
	"kmeansviz/internal/core"
	"kmeansviz/internal/logger"
)

// Service is the algorithm service as the controller sees it. *client.Client
// satisfies it.
type Service interface {
	Initialize(ctx context.Context, sessionID string, req api.InitializeRequest) (*api.InitializeResponse, error)
	Step(ctx context.Context, sessionID string, req api.IterateRequest) (*api.StepResponse, error)
	Converge(ctx context.Context, sessionID string, req api.IterateRequest) (*api.ConvergeResponse, error)
	Reset(ctx context.Context, sessionID string) error
}

type requestKind string

const (
	kindInitialize requestKind = "initialize"
	kindStep       requestKind = "step"
	kindConverge   requestKind = "converge"
)

// Snapshot is a copy of the session state, safe to hand to renderers and handlers.
type Snapshot struct {
	SessionID  string           `json:"session_id,omitempty"`
	Mode       Mode             `json:"mode"`
	Target     int              `json:"target_clusters"`
	Method     string           `json:"init_method,omitempty"`
	Dataset    core.Dataset     `json:"data_points"`
	Centroids  core.CentroidSet `json:"centroids"`
	Partition  core.Partition   `json:"clusters"`
	Controls   Controls         `json:"controls"`
	Generation uint64           `json:"generation"`
	Iterations int              `json:"iterations"`
	Inertia    float64          `json:"inertia"`
	InFlight   []string         `json:"in_flight,omitempty"`
}

// HasDataset reports whether a dataset has been committed.
func (s Snapshot) HasDataset() bool {
	return s.Dataset != nil
}

// InFlightContains reports whether a request of the named kind was pending.
func (s Snapshot) InFlightContains(kind string) bool {
	for _, k := range s.InFlight {
		if k == kind {
			return true
		}
	}
	return false
}

// Controller is the single owner of session state. Service calls run outside
// the lock; their results are folded back in arrival order and discarded when
// the generation they were issued under is no longer current.
type Controller struct {
	mu  sync.Mutex
	svc Service
	log *slog.Logger

	sessionID   string
	mode        Mode
	target      int
	method      string
	dataset     core.Dataset
	centroids   core.CentroidSet
	partition   core.Partition
	pendingSeed bool
	iterations  int
	inertia     float64

	generation uint64
	inFlight   map[requestKind]bool
}

// New creates a controller in AwaitingInitialization with no dataset.
func New(svc Service) *Controller {
	return &Controller{
		svc:      svc,
		log:      logger.Component("session"),
		mode:     AwaitingInitialization,
		inFlight: make(map[requestKind]bool),
	}
}

// Initialize requests a new dataset with k target clusters. The previous
// session is replaced only when the service answers successfully.
func (c *Controller) Initialize(ctx context.Context, k int, method string) (string, error) {
	if k <= 0 {
		return "", ErrInvalidClusterCount
	}

	c.mu.Lock()
	if c.inFlight[kindInitialize] {
		c.mu.Unlock()
		return "", ErrInFlight
	}
	c.inFlight[kindInitialize] = true
	// The generation moves on commit only; a failed initialize must not
	// invalidate iterations already in flight.
	gen := c.generation
	c.mu.Unlock()

	sessionID := uuid.NewString()
	c.log.Debug("Requesting new dataset", "session_id", sessionID, "clusters", k, "method", method)

	resp, err := c.svc.Initialize(ctx, sessionID, api.InitializeRequest{NumClusters: k, InitMethod: method})

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, kindInitialize)

	if gen != c.generation {
		c.log.Info("Discarding stale initialize response", "session_id", sessionID)
		return "", ErrStale
	}
	if err != nil {
		c.log.Warn("Initialize failed", "error", err)
		return "", err
	}

	manual := method == api.MethodManual
	if !manual && len(resp.Centroids) != k {
		return "", fmt.Errorf("%w: expected %d centroids, got %d", ErrMalformedResponse, k, len(resp.Centroids))
	}

	c.sessionID = sessionID
	c.target = k
	c.method = method
	c.dataset = core.Dataset(resp.DataPoints).Clone()
	if c.dataset == nil {
		c.dataset = core.Dataset{}
	}
	c.partition = nil
	c.pendingSeed = false
	c.iterations = 0
	c.inertia = 0
	c.generation++

	c.log.Info("Session initialized", "session_id", sessionID, "points", len(c.dataset), "clusters", k, "method", method)

	if manual {
		c.centroids = core.CentroidSet{}
		c.mode = ManualPlacementArmed
		return NoticePlaceCentroids, nil
	}
	c.centroids = core.CentroidSet(resp.Centroids).Clone()
	c.mode = ReadyToIterate
	return "", nil
}

// Place appends a manually placed centroid. It never calls the service.
func (c *Controller) Place(p core.Point) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ManualPlacementArmed || len(c.centroids) >= c.target {
		return "", ErrNotArmed
	}

	c.centroids = append(c.centroids, p)
	c.pendingSeed = true
	c.log.Debug("Centroid placed", "point", p.String(), "placed", len(c.centroids), "target", c.target)

	if len(c.centroids) == c.target {
		c.mode = ReadyToIterate
		return NoticePlacementComplete, nil
	}
	return "", nil
}

// issue checks the iteration preconditions and marks kind as in flight.
func (c *Controller) issue(kind requestKind) (gen uint64, sessionID string, req api.IterateRequest, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ReadyToIterate {
		return 0, "", req, ErrControlDisabled
	}
	if c.inFlight[kind] {
		return 0, "", req, ErrInFlight
	}
	c.inFlight[kind] = true

	if c.pendingSeed {
		req.Centroids = c.centroids.Clone()
	}
	return c.generation, c.sessionID, req, nil
}

// settle clears the in-flight mark and decides whether a response may be applied.
// Must be called with the lock held.
func (c *Controller) settle(kind requestKind, gen uint64, err error) error {
	delete(c.inFlight, kind)
	if gen != c.generation || c.mode != ReadyToIterate {
		c.log.Info("Discarding stale response", "kind", string(kind), "mode", c.mode.String())
		return ErrStale
	}
	if err != nil {
		c.log.Warn("Iteration request failed", "kind", string(kind), "error", err)
		return err
	}
	return nil
}

func (c *Controller) checkShape(centroids []core.Point, clusters [][]core.Point) error {
	if len(centroids) != c.target {
		return fmt.Errorf("%w: expected %d centroids, got %d", ErrMalformedResponse, c.target, len(centroids))
	}
	if len(clusters) != 0 && len(clusters) != len(centroids) {
		return fmt.Errorf("%w: %d clusters for %d centroids", ErrMalformedResponse, len(clusters), len(centroids))
	}
	return nil
}

// Step runs one assignment/update round on the service.
func (c *Controller) Step(ctx context.Context) (string, error) {
	gen, sessionID, req, err := c.issue(kindStep)
	if err != nil {
		return "", err
	}

	resp, err := c.svc.Step(ctx, sessionID, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.settle(kindStep, gen, err); err != nil {
		return "", err
	}
	if err := c.checkShape(resp.Centroids, resp.Clusters); err != nil {
		return "", err
	}

	c.centroids = core.CentroidSet(resp.Centroids).Clone()
	c.partition = core.Partition(resp.Clusters).Clone()
	c.pendingSeed = false
	c.iterations++
	c.inertia = resp.Inertia

	if resp.Converged {
		c.mode = Converged
		c.log.Info("Converged after step", "session_id", sessionID, "iterations", c.iterations)
		return NoticeConverged, nil
	}
	return "", nil
}

// Converge runs the algorithm to completion on the service.
func (c *Controller) Converge(ctx context.Context) (string, error) {
	gen, sessionID, req, err := c.issue(kindConverge)
	if err != nil {
		return "", err
	}

	resp, err := c.svc.Converge(ctx, sessionID, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.settle(kindConverge, gen, err); err != nil {
		return "", err
	}
	if err := c.checkShape(resp.Centroids, resp.Clusters); err != nil {
		return "", err
	}

	c.centroids = core.CentroidSet(resp.Centroids).Clone()
	c.partition = core.Partition(resp.Clusters).Clone()
	c.pendingSeed = false
	c.iterations += resp.Iterations
	c.inertia = resp.Inertia
	c.mode = Converged

	c.log.Info("Converged", "session_id", sessionID, "iterations", c.iterations, "inertia", c.inertia)
	return NoticeConverged, nil
}

// Reset drops centroids and partition locally, then tells the service. The
// dataset survives. A failing service call is logged and otherwise ignored.
func (c *Controller) Reset(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.dataset == nil {
		c.mu.Unlock()
		return "", ErrNoSession
	}
	c.centroids = core.CentroidSet{}
	c.partition = nil
	c.pendingSeed = false
	c.iterations = 0
	c.inertia = 0
	c.mode = AwaitingInitialization
	c.generation++
	sessionID := c.sessionID
	c.mu.Unlock()

	if err := c.svc.Reset(ctx, sessionID); err != nil {
		c.log.Warn("Service reset failed, local state already cleared", "session_id", sessionID, "error", err)
	}
	return "", nil
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	controls := ControlsFor(c.mode, c.dataset != nil)
	if c.inFlight[kindInitialize] {
		controls.NewDataset = false
	}
	if c.inFlight[kindStep] {
		controls.Step = false
	}
	if c.inFlight[kindConverge] {
		controls.Converge = false
	}

	var inFlight []string
	for kind := range c.inFlight {
		inFlight = append(inFlight, string(kind))
	}
	sort.Strings(inFlight)

	return Snapshot{
		SessionID:  c.sessionID,
		Mode:       c.mode,
		Target:     c.target,
		Method:     c.method,
		Dataset:    c.dataset.Clone(),
		Centroids:  c.centroids.Clone(),
		Partition:  c.partition.Clone(),
		Controls:   controls,
		Generation: c.generation,
		Iterations: c.iterations,
		Inertia:    c.inertia,
		InFlight:   inFlight,
	}
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}
