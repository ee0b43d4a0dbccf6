package domain

import (
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle state reported for a pull request.
// GitHub's REST API reports merged pull requests as "closed".
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
	StateMerged State = "merged"
)

// GhostAuthor is the handle GitHub uses for pull requests whose author account no longer exists.
const GhostAuthor = "ghost"

// ErrInvalidPullRequest is returned by Validate when a required field is missing.
var ErrInvalidPullRequest = errors.New("invalid pull request")

// PullRequest holds the projected fields of a single fetched pull request.
// It is the core record entity of this application.
type PullRequest struct {
	ID           int64      `json:"id"`
	Number       int        `json:"number"`
	State        State      `json:"state"`
	CreatedAt    time.Time  `json:"created_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	MergedAt     *time.Time `json:"merged_at,omitempty"`
	URL          string     `json:"url"`
	Comments     int        `json:"comments"`
	Additions    int        `json:"additions"`
	ChangedFiles int        `json:"changed_files"`
	Author       string     `json:"author"`
}

// Validate reports whether the record carries the fields needed to key and aggregate it.
func (pr PullRequest) Validate() error {
	if pr.ID == 0 {
		return fmt.Errorf("%w: missing id (number %d)", ErrInvalidPullRequest, pr.Number)
	}
	if pr.CreatedAt.IsZero() {
		return fmt.Errorf("%w: id %d has no creation time", ErrInvalidPullRequest, pr.ID)
	}
	if pr.Comments < 0 || pr.Additions < 0 || pr.ChangedFiles < 0 {
		return fmt.Errorf("%w: id %d has a negative counter", ErrInvalidPullRequest, pr.ID)
	}
	return nil
}

// IsClosed reports whether the pull request is closed, merged ones included.
func (pr PullRequest) IsClosed() bool {
	return pr.State == StateClosed || pr.State == StateMerged
}

// Turnaround returns the time between creation and closing.
// The second return value is false when the pull request is not closed
// or has no close timestamp.
func (pr PullRequest) Turnaround() (time.Duration, bool) {
	if !pr.IsClosed() || pr.ClosedAt == nil {
		return 0, false
	}
	return pr.ClosedAt.Sub(pr.CreatedAt), true
}
