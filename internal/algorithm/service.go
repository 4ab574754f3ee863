// Package algorithm is the reference algorithm service: it owns the dataset
// and centroids of the single active session and answers the initialize,
// step, converge and reset requests issued by the front end.
package algorithm

import (
	"errors"
	"fmt"
	"sync"

	"kmeansviz/internal/api"
	"kmeansviz/internal/core"
	"kmeansviz/internal/kmeans"
)

var (
	// ErrIncompleteCentroids mirrors the message the front end shows verbatim
	ErrIncompleteCentroids = errors.New("Not enough centroids placed manually")

	// ErrUnknownSession is returned when a request names a session other than the active one
	ErrUnknownSession = errors.New("unknown session")
)

// State holds the single clustering session served by this process
type State struct {
	mu        sync.Mutex
	engine    *kmeans.Engine
	sessionID string
	k         int
	data      core.Dataset
	centroids core.CentroidSet
}

// NewState creates an empty session state backed by the given engine
func NewState(engine *kmeans.Engine) *State {
	return &State{engine: engine}
}

// Initialize replaces the session with a freshly generated dataset
func (s *State) Initialize(sessionID string, req api.InitializeRequest) (api.InitializeResponse, error) {
	data := s.engine.GenerateDataset()
	centroids, err := s.engine.InitialCentroids(req.InitMethod, req.NumClusters, data)
	if err != nil {
		return api.InitializeResponse{}, err
	}

	s.mu.Lock()
	s.sessionID = sessionID
	s.k = req.NumClusters
	s.data = data
	s.centroids = centroids
	s.mu.Unlock()

	return api.InitializeResponse{
		DataPoints: data.Clone(),
		Centroids:  centroids.Clone(),
	}, nil
}

// Step runs one round on the current centroids
func (s *State) Step(sessionID string, req api.IterateRequest) (api.StepResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.prepare(sessionID, req); err != nil {
		return api.StepResponse{}, err
	}

	result, err := s.engine.Step(s.centroids, s.data)
	if err != nil {
		return api.StepResponse{}, err
	}
	s.centroids = result.Centroids

	return api.StepResponse{
		Centroids: result.Centroids.Clone(),
		Clusters:  result.Clusters.Clone(),
		Converged: result.Converged,
		Inertia:   result.Inertia,
	}, nil
}

// Converge runs rounds until the centroids stop moving
func (s *State) Converge(sessionID string, req api.IterateRequest) (api.ConvergeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.prepare(sessionID, req); err != nil {
		return api.ConvergeResponse{}, err
	}

	result, err := s.engine.Converge(s.centroids, s.data)
	if err != nil {
		return api.ConvergeResponse{}, err
	}
	s.centroids = result.Centroids

	return api.ConvergeResponse{
		Centroids:  result.Centroids.Clone(),
		Clusters:   result.Clusters.Clone(),
		Converged:  result.Converged,
		Iterations: result.Iterations,
		Inertia:    result.Inertia,
	}, nil
}

// Reset drops the centroids but keeps the dataset
func (s *State) Reset() {
	s.mu.Lock()
	s.centroids = nil
	s.mu.Unlock()
}

// prepare validates the session and adopts operator-placed seeds. Caller holds s.mu.
func (s *State) prepare(sessionID string, req api.IterateRequest) error {
	if s.sessionID != "" && sessionID != "" && sessionID != s.sessionID {
		return ErrUnknownSession
	}
	if len(req.Centroids) > 0 {
		if len(req.Centroids) != s.k {
			return fmt.Errorf("%w: got %d of %d", ErrIncompleteCentroids, len(req.Centroids), s.k)
		}
		s.centroids = core.CentroidSet(req.Centroids).Clone()
	}
	if s.data == nil || len(s.centroids) < s.k || s.k == 0 {
		return ErrIncompleteCentroids
	}
	return nil
}
