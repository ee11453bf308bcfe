package system

import (
	"encoding/json"
	"fmt"
)

// Status tracks where a managed service sits in its lifecycle.
type Status int32

const (
	StatusRegistered Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
	StatusStopped
	StatusFailed
)

// String returns the lowercase name used in logs and health payloads.
func (s Status) String() string {
	switch s {
	case StatusRegistered:
		return "registered"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusStopped:
		return "stopped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its string name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status from its string name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus maps a string name back to its Status.
func ParseStatus(name string) (Status, error) {
	switch name {
	case "registered":
		return StatusRegistered, nil
	case "starting":
		return StatusStarting, nil
	case "running":
		return StatusRunning, nil
	case "stopping":
		return StatusStopping, nil
	case "stopped":
		return StatusStopped, nil
	case "failed":
		return StatusFailed, nil
	default:
		return StatusRegistered, fmt.Errorf("unknown status %q", name)
	}
}

// IsTerminal reports whether the service has reached a resting state.
func (s Status) IsTerminal() bool {
	return s == StatusStopped || s == StatusFailed
}

// IsHealthy reports whether the service is serving.
func (s Status) IsHealthy() bool {
	return s == StatusRunning
}

// ValidTransitions defines the allowed lifecycle edges. Anything not listed
// is a programming error surfaced as a TransitionError.
var ValidTransitions = map[Status][]Status{
	StatusRegistered: {StatusStarting},
	StatusStarting:   {StatusRunning, StatusFailed},
	StatusRunning:    {StatusStopping, StatusFailed},
	StatusStopping:   {StatusStopped, StatusFailed},
	StatusStopped:    {StatusStarting},
	StatusFailed:     {StatusStarting},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, allowed := range ValidTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionError reports an attempted move along a missing lifecycle edge.
type TransitionError struct {
	Service string
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("service %s: invalid state transition: %s -> %s", e.Service, e.From, e.To)
}
