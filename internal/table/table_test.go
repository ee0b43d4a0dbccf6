package table

import (
	"sync"
	"testing"
	"time"

	"github.com/naka-gawa/github-pr-stats/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(from, to int64, author string) []domain.PullRequest {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prs := make([]domain.PullRequest, 0, to-from+1)
	for id := from; id <= to; id++ {
		prs = append(prs, domain.PullRequest{ID: id, Number: int(id), State: domain.StateClosed, CreatedAt: created, Author: author})
	}
	return prs
}

func TestTable_MergeIsIdempotent(t *testing.T) {
	tbl := New()
	p := page(1, 10, "alice")

	assert.Equal(t, 10, tbl.Merge(p))
	once := tbl.Snapshot()

	assert.Equal(t, 0, tbl.Merge(p))
	assert.Equal(t, 10, tbl.Len())
	assert.Equal(t, once, tbl.Snapshot())
}

func TestTable_MergeOverwritesByID(t *testing.T) {
	tbl := New()
	tbl.Merge(page(1, 1, "alice"))
	tbl.Merge(page(1, 1, "bob"))

	pr, ok := tbl.Get(1)
	require.True(t, ok)
	assert.Equal(t, "bob", pr.Author)

	_, ok = tbl.Get(2)
	assert.False(t, ok)
}

func TestTable_SnapshotIsSortedCopy(t *testing.T) {
	tbl := New()
	tbl.Merge(page(5, 7, "carol"))
	tbl.Merge(page(1, 2, "alice"))

	snap := tbl.Snapshot()
	require.Len(t, snap, 5)
	for i := 1; i < len(snap); i++ {
		assert.Less(t, snap[i-1].ID, snap[i].ID)
	}

	snap[0].Author = "mutated"
	pr, _ := tbl.Get(snap[0].ID)
	assert.Equal(t, "alice", pr.Author)
}

func TestTable_ConcurrentMerge(t *testing.T) {
	const (
		pages   = 50
		perPage = 20
	)
	tbl := New()

	var wg sync.WaitGroup
	for p := 0; p < pages; p++ {
		wg.Add(1)
		go func(p int64) {
			defer wg.Done()
			tbl.Merge(page(p*perPage+1, (p+1)*perPage, "worker"))
		}(int64(p))
	}
	wg.Wait()

	assert.Equal(t, pages*perPage, tbl.Len())
}
