// Package table holds the in-memory record table that fetch workers merge into.
package table

import (
	"sort"
	"sync"

	"github.com/naka-gawa/github-pr-stats/internal/domain"
)

// Table maps pull request IDs to their projected fields.
// Merge is safe for concurrent use; each page is applied under a single lock,
// so readers never observe a partially written record.
type Table struct {
	mu      sync.RWMutex
	records map[int64]domain.PullRequest
}

// New creates an empty table.
func New() *Table {
	return &Table{records: make(map[int64]domain.PullRequest)}
}

// Merge inserts or overwrites every pull request by ID and returns how many IDs were new.
func (t *Table) Merge(prs []domain.PullRequest) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	added := 0
	for _, pr := range prs {
		if _, ok := t.records[pr.ID]; !ok {
			added++
		}
		t.records[pr.ID] = pr
	}
	return added
}

// Len returns the number of distinct pull requests in the table.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Get returns the record stored for id.
func (t *Table) Get(id int64) (domain.PullRequest, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pr, ok := t.records[id]
	return pr, ok
}

// Snapshot returns a copy of all records sorted by ID.
func (t *Table) Snapshot() []domain.PullRequest {
	t.mu.RLock()
	out := make([]domain.PullRequest, 0, len(t.records))
	for _, pr := range t.records {
		out = append(out, pr)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}
