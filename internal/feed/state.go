package feed

import (
	"fmt"

	"github.com/bryan-buckman/headlines/internal/model"
)

// State is the load state of a feed session.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateLoaded
	StateError
)

var stateNames = map[State]string{
	StateEmpty:   "empty",
	StateLoading: "loading",
	StateLoaded:  "loaded",
	StateError:   "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is an immutable copy of a session's observable state.
//
// Page is the page being loaded while Loading, the last page applied while
// Loaded, and the page that failed while Error. An Error with Page > 0 keeps
// the items of every earlier page.
type Snapshot struct {
	SessionID    string          `json:"session_id,omitempty"`
	Generation   uint64          `json:"generation"`
	Filters      model.Filters   `json:"filters"`
	State        State           `json:"state"`
	Page         int             `json:"page"`
	Items        []model.Article `json:"items"`
	HasNext      bool            `json:"has_next"`
	Err          error           `json:"-"`
	ErrorMessage string          `json:"error,omitempty"`
}

// Exhausted reports whether the session has loaded its last page.
func (s Snapshot) Exhausted() bool {
	return s.State == StateLoaded && !s.HasNext
}

// CanRetry reports whether Retry would reload a failed page.
func (s Snapshot) CanRetry() bool {
	return s.State == StateError
}

// IsPaginationError reports whether a continuation page failed while earlier
// pages remain visible.
func (s Snapshot) IsPaginationError() bool {
	return s.State == StateError && s.Page > model.FirstPageIndex
}
