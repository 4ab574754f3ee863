package session

import (
	"errors"

	"kmeansviz/internal/api"
)

var (
	// ErrInvalidClusterCount is returned when Initialize is given k <= 0
	ErrInvalidClusterCount = errors.New("cluster count must be positive")

	// ErrNotArmed is returned for a placement click outside manual placement mode
	ErrNotArmed = errors.New("manual placement is not armed")

	// ErrControlDisabled is returned when an operation is invoked while its control is disabled
	ErrControlDisabled = errors.New("control is disabled in the current mode")

	// ErrInFlight is returned when a request of the same kind is still awaiting its response
	ErrInFlight = errors.New("a request of this kind is already in flight")

	// ErrStale is returned when a response arrived after the session moved on and was discarded
	ErrStale = errors.New("response discarded: session changed while request was in flight")

	// ErrNoSession is returned by Reset before any dataset exists
	ErrNoSession = errors.New("no dataset has been initialized")

	// ErrMalformedResponse is returned when a service response violates the session invariants
	ErrMalformedResponse = errors.New("malformed algorithm service response")
)

// Operator notices
const (
	NoticePlaceCentroids    = "Click on the plot to place centroids manually."
	NoticePlacementComplete = "Manual centroid placement complete."
	NoticeConverged         = "KMeans has converged."
	NoticeUnavailable       = "The algorithm service is unavailable. Please retry."
)

// Describe turns an error from a controller entry point into the text shown to
// the operator. Errors the operator should not hear about map to "".
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var svcErr *api.ServiceError
	switch {
	case errors.As(err, &svcErr):
		return svcErr.Message
	case errors.Is(err, ErrNotArmed),
		errors.Is(err, ErrStale),
		errors.Is(err, ErrInFlight),
		errors.Is(err, ErrControlDisabled):
		return ""
	case errors.Is(err, ErrNoSession):
		return "Generate a dataset first."
	case errors.Is(err, ErrInvalidClusterCount):
		return ErrInvalidClusterCount.Error()
	default:
		return NoticeUnavailable
	}
}
