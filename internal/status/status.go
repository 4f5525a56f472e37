// Package status classifies remote session status values.
//
// The session API reports progress through two loosely specified string
// fields, status and status_enum. Neither is a closed set, so classification
// is token based: a value is terminal, running, or unknown.
//
// Key types:
//   - [Status] is a normalized session status token
//
// Unknown values are never terminal. Callers treat them as still running and
// keep polling.
package status

import "strings"

// Status is a session status token as reported by the remote API.
type Status string

// Terminal status values.
const (
	StatusCompleted  Status = "completed"
	StatusFinished   Status = "finished"
	StatusDone       Status = "done"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
	StatusBlocked    Status = "blocked"
	StatusComplete   Status = "complete"
	StatusTerminated Status = "terminated"
	StatusStopped    Status = "stopped"
)

// Running status values.
const (
	StatusRunning    Status = "running"
	StatusInProgress Status = "in_progress"
	StatusProcessing Status = "processing"
	StatusActive     Status = "active"
	StatusPending    Status = "pending"
	StatusStarted    Status = "started"
)

var terminalStatuses = map[Status]bool{
	StatusCompleted:  true,
	StatusFinished:   true,
	StatusDone:       true,
	StatusSuccess:    true,
	StatusFailed:     true,
	StatusError:      true,
	StatusCancelled:  true,
	StatusBlocked:    true,
	StatusComplete:   true,
	StatusTerminated: true,
	StatusStopped:    true,
}

var runningStatuses = map[Status]bool{
	StatusRunning:    true,
	StatusInProgress: true,
	StatusProcessing: true,
	StatusActive:     true,
	StatusPending:    true,
	StatusStarted:    true,
}

var failureStatuses = map[Status]bool{
	StatusFailed:     true,
	StatusError:      true,
	StatusCancelled:  true,
	StatusTerminated: true,
}

// Normalize lowercases and trims a raw status string.
func Normalize(raw string) Status {
	return Status(strings.ToLower(strings.TrimSpace(raw)))
}

// IsTerminal reports whether s is one of the terminal tokens.
func (s Status) IsTerminal() bool {
	return terminalStatuses[Normalize(string(s))]
}

// IsRunning reports whether s is one of the running tokens.
func (s Status) IsRunning() bool {
	return runningStatuses[Normalize(string(s))]
}

// IsFailure reports whether s is a terminal token that means the session did
// not finish its work.
func (s Status) IsFailure() bool {
	return failureStatuses[Normalize(string(s))]
}

// IsCompleted classifies a session from its status and status_enum fields.
//
// The status field is consulted first. A terminal token there returns true; a
// running token returns false without looking at statusEnum. Otherwise
// statusEnum gets the same treatment. Anything else is not completed.
func IsCompleted(status, statusEnum string) bool {
	for _, raw := range []string{status, statusEnum} {
		s := Normalize(raw)
		if s == "" {
			continue
		}
		if s.IsTerminal() {
			return true
		}
		if s.IsRunning() {
			return false
		}
	}
	return false
}

// IsFailure reports whether either field carries a failure token, checked in
// the same order as [IsCompleted].
func IsFailure(status, statusEnum string) bool {
	for _, raw := range []string{status, statusEnum} {
		s := Normalize(raw)
		if s == "" {
			continue
		}
		if s.IsTerminal() {
			return s.IsFailure()
		}
		if s.IsRunning() {
			return false
		}
	}
	return false
}
