// Package api holds the wire types exchanged with the algorithm service.
package api

import (
	"fmt"

	"kmeansviz/internal/core"
)

// SessionHeader carries the front end's session identity on every request.
const SessionHeader = "X-Session-ID"

// Initialization methods understood by the algorithm service.
const (
	MethodRandom   = "random"
	MethodKMeansPP = "kmeans++"
	MethodManual   = "manual"
)

// Methods lists the recognized initialization methods in display order.
var Methods = []string{MethodRandom, MethodKMeansPP, MethodManual}

// InitializeRequest asks the service for a fresh dataset.
type InitializeRequest struct {
	NumClusters int    `json:"num_clusters"`
	InitMethod  string `json:"init_method"`
}

// InitializeResponse carries the dataset and, except for manual mode, the seed centroids.
type InitializeResponse struct {
	DataPoints []core.Point `json:"data_points"`
	Centroids  []core.Point `json:"centroids"`
	Error      string       `json:"error,omitempty"`
}

// IterateRequest is the body of step and converge calls. Centroids is set only
// when the operator placed seeds locally that the service has not seen yet.
type IterateRequest struct {
	Centroids []core.Point `json:"centroids,omitempty"`
}

// StepResponse is the result of a single assignment/update round.
type StepResponse struct {
	Centroids []core.Point   `json:"centroids"`
	Clusters  [][]core.Point `json:"clusters"`
	Converged bool           `json:"converged"`
	Inertia   float64        `json:"inertia"`
	Error     string         `json:"error,omitempty"`
}

// ConvergeResponse is the terminal state of a run to completion.
type ConvergeResponse struct {
	Centroids  []core.Point   `json:"centroids"`
	Clusters   [][]core.Point `json:"clusters"`
	Converged  bool           `json:"converged"`
	Iterations int            `json:"iterations"`
	Inertia    float64        `json:"inertia"`
	Error      string         `json:"error,omitempty"`
}

// ResetResponse acknowledges a reset.
type ResetResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the generic error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServiceError is an explicit error reported by the algorithm service. Its
// message is meant to be shown to the operator verbatim.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("algorithm service error (status %d): %s", e.StatusCode, e.Message)
}
