package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-pr-stats/internal/domain"
	"github.com/naka-gawa/github-pr-stats/internal/gateway"
	"github.com/naka-gawa/github-pr-stats/internal/metrics"
)

var testRepo = domain.Repository{Owner: "any-org", Name: "any-repo"}

// mockPageFetcher is a mock implementation of the gateway.PageFetcher interface.
// It allows us to simulate the behavior of the GitHub gateway without making real API calls.
type mockPageFetcher struct {
	mock.Mock
}

func (m *mockPageFetcher) FetchPage(ctx context.Context, repo domain.Repository, state string, page, perPage int) (*gateway.Page, error) {
	args := m.Called(ctx, repo, state, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Page), args.Error(1)
}

// makePage builds a page of n closed pull requests with IDs page*1000+1..page*1000+n.
func makePage(number, n, lastPage int) *gateway.Page {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prs := make([]domain.PullRequest, 0, n)
	for i := 1; i <= n; i++ {
		closed := created.Add(time.Duration(i) * time.Hour)
		prs = append(prs, domain.PullRequest{
			ID:        int64(number*1000 + i),
			Number:    number*1000 + i,
			State:     domain.StateClosed,
			CreatedAt: created,
			ClosedAt:  &closed,
			Author:    "author",
		})
	}
	return &gateway.Page{Number: number, PullRequests: prs, LastPage: lastPage}
}

func newTestFetcher(pages gateway.PageFetcher) *PaginatedFetcher {
	return NewPaginatedFetcher(pages, metrics.NewRecorder(prometheus.NewRegistry()), zerolog.Nop())
}

func TestPagesToFetch(t *testing.T) {
	testCases := []struct {
		name     string
		maxPages int
		lastPage int
		expected int
	}{
		{name: "all pages", maxPages: AllPages, lastPage: 7, expected: 7},
		{name: "limit below last page", maxPages: 3, lastPage: 7, expected: 3},
		{name: "limit above last page", maxPages: 10, lastPage: 7, expected: 7},
		{name: "single page limit", maxPages: 1, lastPage: 7, expected: 1},
		{name: "zero limit", maxPages: 0, lastPage: 7, expected: 0},
		{name: "no pagination metadata", maxPages: AllPages, lastPage: 0, expected: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, PagesToFetch(tc.maxPages, tc.lastPage))
		})
	}
}

func TestPaginatedFetcher_Fetch(t *testing.T) {
	testCases := []struct {
		name             string
		maxPages         int
		estimate         bool
		setup            func(m *mockPageFetcher)
		expectedRecords  int
		expectedEnqueued int
		expectedLastPage int
		expectedEstimate int
	}{
		{
			name:     "happy path - three pages with two workers",
			maxPages: AllPages,
			estimate: true,
			setup: func(m *mockPageFetcher) {
				m.On("FetchPage", mock.Anything, testRepo, "closed", 1, 10).Return(makePage(1, 10, 3), nil).Once()
				m.On("FetchPage", mock.Anything, testRepo, "closed", 2, 10).Return(makePage(2, 10, 3), nil).Once()
				// Page 3 is requested twice: once by the estimate probe and once by a worker.
				m.On("FetchPage", mock.Anything, testRepo, "closed", 3, 10).Return(makePage(3, 4, 0), nil).Twice()
			},
			expectedRecords:  10 + 10 + 4,
			expectedEnqueued: 2,
			expectedLastPage: 3,
			expectedEstimate: 10*2 + 4,
		},
		{
			name:     "max pages 1 - only page 1 is fetched",
			maxPages: 1,
			setup: func(m *mockPageFetcher) {
				m.On("FetchPage", mock.Anything, testRepo, "closed", 1, 10).Return(makePage(1, 10, 50), nil).Once()
			},
			expectedRecords:  10,
			expectedEnqueued: 0,
			expectedLastPage: 50,
			expectedEstimate: 10,
		},
		{
			name:     "max pages limits the fan out",
			maxPages: 3,
			setup: func(m *mockPageFetcher) {
				m.On("FetchPage", mock.Anything, testRepo, "closed", 1, 10).Return(makePage(1, 10, 50), nil).Once()
				m.On("FetchPage", mock.Anything, testRepo, "closed", 2, 10).Return(makePage(2, 10, 50), nil).Once()
				m.On("FetchPage", mock.Anything, testRepo, "closed", 3, 10).Return(makePage(3, 10, 50), nil).Once()
			},
			expectedRecords:  30,
			expectedEnqueued: 2,
			expectedLastPage: 50,
			expectedEstimate: 10,
		},
		{
			name:     "empty collection - no last page link",
			maxPages: AllPages,
			estimate: true,
			setup: func(m *mockPageFetcher) {
				m.On("FetchPage", mock.Anything, testRepo, "closed", 1, 10).Return(&gateway.Page{Number: 1}, nil).Once()
			},
			expectedRecords:  0,
			expectedEnqueued: 0,
			expectedLastPage: 1,
			expectedEstimate: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			pages := new(mockPageFetcher)
			tc.setup(pages)
			fetcher := newTestFetcher(pages)

			// --- Act ---
			result, err := fetcher.Fetch(context.Background(), FetchOptions{
				Repository: testRepo,
				State:      "closed",
				MaxPages:   tc.maxPages,
				PerPage:    10,
				Workers:    2,
				Estimate:   tc.estimate,
			})

			// --- Assert ---
			require.NoError(t, err)
			assert.Equal(t, tc.expectedRecords, result.Table.Len())
			assert.Equal(t, tc.expectedEnqueued, result.Enqueued)
			assert.Equal(t, tc.expectedEnqueued+1, result.PagesFetched)
			assert.Equal(t, tc.expectedLastPage, result.LastPage)
			assert.Equal(t, tc.expectedEstimate, result.TotalEstimate)
			assert.Greater(t, result.Elapsed, time.Duration(0))
			assert.NotEmpty(t, result.SessionID)

			// No duplicates: every ID in the snapshot is distinct.
			seen := make(map[int64]bool)
			for _, pr := range result.Table.Snapshot() {
				assert.False(t, seen[pr.ID], "duplicate id %d", pr.ID)
				seen[pr.ID] = true
			}

			pages.AssertExpectations(t)
		})
	}
}

func TestPaginatedFetcher_Fetch_ManyPagesManyWorkers(t *testing.T) {
	const lastPage = 40
	pages := new(mockPageFetcher)
	for p := 1; p <= lastPage; p++ {
		pages.On("FetchPage", mock.Anything, testRepo, "all", p, 100).Return(makePage(p, 100, lastPage), nil).Once()
	}
	fetcher := newTestFetcher(pages)

	result, err := fetcher.Fetch(context.Background(), FetchOptions{
		Repository: testRepo,
		State:      "all",
		MaxPages:   AllPages,
		Workers:    8,
	})

	require.NoError(t, err)
	assert.Equal(t, lastPage*100, result.Table.Len())
	assert.Equal(t, lastPage-1, result.Enqueued)
	assert.Equal(t, lastPage, result.PagesFetched)
	pages.AssertExpectations(t)
}

func TestPaginatedFetcher_Fetch_FirstPageError(t *testing.T) {
	transportErr := &gateway.TransportError{Page: 1, StatusCode: 401, Err: errors.New("Bad credentials")}
	pages := new(mockPageFetcher)
	pages.On("FetchPage", mock.Anything, testRepo, "closed", 1, 100).Return(nil, transportErr).Once()
	fetcher := newTestFetcher(pages)

	result, err := fetcher.Fetch(context.Background(), FetchOptions{Repository: testRepo, State: "closed", MaxPages: AllPages})

	require.Error(t, err)
	assert.ErrorIs(t, err, transportErr)
	assert.Contains(t, err.Error(), "failed to fetch first page")
	assert.Equal(t, 0, result.Table.Len())
	pages.AssertExpectations(t)
}

func TestPaginatedFetcher_Fetch_ProbeError(t *testing.T) {
	transportErr := &gateway.TransportError{Page: 5, StatusCode: 502, Err: errors.New("bad gateway")}
	pages := new(mockPageFetcher)
	pages.On("FetchPage", mock.Anything, testRepo, "closed", 1, 100).Return(makePage(1, 100, 5), nil).Once()
	pages.On("FetchPage", mock.Anything, testRepo, "closed", 5, 100).Return(nil, transportErr).Once()
	fetcher := newTestFetcher(pages)

	result, err := fetcher.Fetch(context.Background(), FetchOptions{Repository: testRepo, State: "closed", MaxPages: AllPages, Estimate: true})

	var te *gateway.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 5, te.Page)
	assert.Equal(t, 100, result.Table.Len())
	pages.AssertExpectations(t)
}

func TestPaginatedFetcher_Fetch_WorkerErrorAbortsFetch(t *testing.T) {
	transportErr := &gateway.TransportError{Page: 2, StatusCode: 500, Err: errors.New("internal server error")}
	pages := new(mockPageFetcher)
	pages.On("FetchPage", mock.Anything, testRepo, "closed", 1, 10).Return(makePage(1, 10, 3), nil).Once()
	pages.On("FetchPage", mock.Anything, testRepo, "closed", 2, 10).Return(nil, transportErr).Once()
	// Page 3 blocks until the failure on page 2 cancels the shared context.
	// It may also never be requested if the cancellation wins the race.
	pages.On("FetchPage", mock.Anything, testRepo, "closed", 3, 10).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.Canceled).Maybe()
	fetcher := newTestFetcher(pages)

	result, err := fetcher.Fetch(context.Background(), FetchOptions{
		Repository: testRepo,
		State:      "closed",
		MaxPages:   AllPages,
		PerPage:    10,
		Workers:    2,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, transportErr)
	// Only page 1 was merged before the failure; completeness is not guaranteed on error.
	assert.Equal(t, 10, result.Table.Len())
	for _, pr := range result.Table.Snapshot() {
		assert.Less(t, pr.ID, int64(2000))
	}
	pages.AssertExpectations(t)
}

func TestPaginatedFetcher_Fetch_CancelledContext(t *testing.T) {
	pages := new(mockPageFetcher)
	pages.On("FetchPage", mock.Anything, testRepo, "closed", 1, 100).Return(nil, context.Canceled).Once()
	fetcher := newTestFetcher(pages)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fetcher.Fetch(ctx, FetchOptions{Repository: testRepo, State: "closed", MaxPages: AllPages})

	assert.ErrorIs(t, err, context.Canceled)
}
