// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// AuthorCount is the number of pull requests opened by a single author.
type AuthorCount struct {
	Author string `json:"author"`
	Count  int    `json:"count"`
}

// TurnaroundStats summarizes time-to-close over the closed pull requests.
// HasData is false when no closed pull request had a close timestamp,
// in which case the durations are meaningless.
type TurnaroundStats struct {
	HasData bool          `json:"has_data"`
	Count   int           `json:"count"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Median  time.Duration `json:"median"`
	Mean    time.Duration `json:"mean"`
}

// Summary holds the statistics derived from a finished fetch.
type Summary struct {
	Total      int             `json:"total"`
	TopAuthors []AuthorCount   `json:"top_authors"`
	Turnaround TurnaroundStats `json:"turnaround"`
}
