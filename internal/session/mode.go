package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Mode is the interaction mode of a session. Exactly one is active at a time.
type Mode int

const (
	AwaitingInitialization Mode = iota
	ManualPlacementArmed
	ReadyToIterate
	Converged
)

var modeNames = map[Mode]string{
	AwaitingInitialization: "awaiting_initialization",
	ManualPlacementArmed:   "manual_placement_armed",
	ReadyToIterate:         "ready_to_iterate",
	Converged:              "converged",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

// MarshalJSON encodes the mode by name
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a mode name
func (m *Mode) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for mode, n := range modeNames {
		if n == name {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("unknown session mode %q", name)
}

// Controls says which operator affordances are enabled
type Controls struct {
	NewDataset     bool `json:"new_dataset"`
	Step           bool `json:"step"`
	Converge       bool `json:"converge"`
	Reset          bool `json:"reset"`
	PlaceCentroids bool `json:"place_centroids"`
}

// ControlsFor derives the enabled controls from the mode alone. Step and
// converge are only ever enabled in ReadyToIterate.
func ControlsFor(mode Mode, hasDataset bool) Controls {
	return Controls{
		NewDataset:     true,
		Step:           mode == ReadyToIterate,
		Converge:       mode == ReadyToIterate,
		Reset:          hasDataset,
		PlaceCentroids: mode == ManualPlacementArmed,
	}
}

// DefaultClusterCount is used when the operator's input cannot be parsed
const DefaultClusterCount = 3

// ParseClusterCount reads the operator's cluster count from its leading
// digits, so "5x" is 5 and "2.7" is 2. Empty, non-numeric and non-positive
// input silently falls back to DefaultClusterCount.
func ParseClusterCount(input string) int {
	input = strings.TrimPrefix(strings.TrimSpace(input), "+")
	end := strings.IndexFunc(input, func(r rune) bool { return r < '0' || r > '9' })
	if end >= 0 {
		input = input[:end]
	}

	n, err := strconv.Atoi(input)
	if err != nil || n <= 0 {
		return DefaultClusterCount
	}
	return n
}
