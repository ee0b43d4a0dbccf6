// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-pr-stats/internal/domain"
	"github.com/naka-gawa/github-pr-stats/internal/gateway"
	"github.com/naka-gawa/github-pr-stats/internal/metrics"
	"github.com/naka-gawa/github-pr-stats/internal/queue"
	"github.com/naka-gawa/github-pr-stats/internal/table"
)

const (
	// AllPages is the MaxPages value that fetches every page.
	AllPages = -1
	// DefaultWorkers is the worker pool size used when none is configured.
	DefaultWorkers = 2
)

// FetchOptions configures a single fetch session.
type FetchOptions struct {
	Repository domain.Repository
	// State is the REST state filter: open, closed or all.
	State string
	// MaxPages caps the number of pages fetched, page 1 included. AllPages fetches everything.
	MaxPages int
	PerPage  int
	Workers  int
	// Estimate enables the last-page probe used to estimate the total number of pull requests.
	Estimate bool
}

// FetchResult is the outcome of a fetch session.
type FetchResult struct {
	SessionID string
	Table     *table.Table
	Elapsed   time.Duration
	// LastPage is the last page index reported by the API, 1 when pagination metadata was absent.
	LastPage int
	// Enqueued is the number of page tasks handed to the worker pool.
	Enqueued     int
	PagesFetched int
	// TotalEstimate approximates the collection size from the last page; it equals the
	// page-1 size when the probe is disabled or there is a single page.
	TotalEstimate int
}

// PaginatedFetcher fetches every page of a repository's pull requests with a pool of workers.
type PaginatedFetcher struct {
	pages    gateway.PageFetcher
	recorder *metrics.Recorder
	logger   zerolog.Logger
}

// NewPaginatedFetcher creates a new PaginatedFetcher instance.
func NewPaginatedFetcher(pages gateway.PageFetcher, recorder *metrics.Recorder, logger zerolog.Logger) *PaginatedFetcher {
	return &PaginatedFetcher{
		pages:    pages,
		recorder: recorder,
		logger:   logger.With().Str("component", "fetcher").Logger(),
	}
}

// PagesToFetch returns the highest page number to fetch given the page limit and the last page index.
func PagesToFetch(maxPages, lastPage int) int {
	if maxPages == AllPages {
		return lastPage
	}
	return min(maxPages, lastPage)
}

// Fetch fetches page 1, discovers the last page, and fans the remaining pages out to the workers.
//
// A failed request aborts the whole fetch: the remaining workers are cancelled and the error is
// returned together with the partial result. The partial table holds only the pages merged before
// the failure and must not be treated as complete.
func (f *PaginatedFetcher) Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error) {
	start := time.Now()
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.PerPage <= 0 || opts.PerPage > gateway.MaxPerPage {
		opts.PerPage = gateway.MaxPerPage
	}

	result := &FetchResult{
		SessionID: uuid.NewString(),
		Table:     table.New(),
	}
	logger := f.logger.With().
		Str("session", result.SessionID).
		Str("repository", opts.Repository.String()).
		Logger()

	// Page 1 is fetched eagerly so at least one page of data exists before fanning out.
	first, err := f.fetchAndMerge(ctx, opts, 1, result.Table)
	if err != nil {
		result.Elapsed = time.Since(start)
		return result, fmt.Errorf("failed to fetch first page: %w", err)
	}
	result.PagesFetched = 1

	result.LastPage = first.LastPage
	if result.LastPage < 1 {
		// rel="last" is absent on single-page collections and on the last page itself.
		logger.Debug().Msg("No last page link in pagination metadata, treating page 1 as the only page")
		result.LastPage = 1
	}

	result.TotalEstimate = len(first.PullRequests)
	if opts.Estimate && result.LastPage > 1 {
		last, err := f.pages.FetchPage(ctx, opts.Repository, opts.State, result.LastPage, opts.PerPage)
		if err != nil {
			result.Elapsed = time.Since(start)
			return result, fmt.Errorf("failed to probe last page: %w", err)
		}
		result.TotalEstimate = opts.PerPage*(result.LastPage-1) + len(last.PullRequests)
	}

	pagesToFetch := PagesToFetch(opts.MaxPages, result.LastPage)
	tasks := queue.New[int]()
	for page := 2; page <= pagesToFetch; page++ {
		if err := tasks.Push(page); err != nil {
			return result, err
		}
		result.Enqueued++
	}
	tasks.Close()
	f.recorder.SetEnqueued(result.Enqueued)

	logger.Info().
		Int("last_page", result.LastPage).
		Int("pages_to_fetch", pagesToFetch).
		Int("workers", opts.Workers).
		Int("total_estimate", result.TotalEstimate).
		Msg("Starting parallel page fetch")

	// Use an errgroup so the first failing worker cancels the rest.
	eg, egCtx := errgroup.WithContext(ctx)
	fetched := make([]int, opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		i := i
		eg.Go(func() error {
			n, err := f.worker(egCtx, i, opts, tasks, result.Table, logger)
			fetched[i] = n
			return err
		})
	}
	err = eg.Wait()

	for _, n := range fetched {
		result.PagesFetched += n
	}
	result.Elapsed = time.Since(start)
	if err != nil {
		logger.Error().
			Err(err).
			Int("pages_fetched", result.PagesFetched).
			Int("records", result.Table.Len()).
			Msg("Fetch aborted")
		return result, err
	}

	f.recorder.ObserveFetch(result.Elapsed)
	logger.Info().
		Int("pages", result.PagesFetched).
		Int("records", result.Table.Len()).
		Dur("duration", result.Elapsed).
		Msg("Fetch complete")
	return result, nil
}

// worker pops page numbers until the queue is drained and returns how many pages it merged.
func (f *PaginatedFetcher) worker(ctx context.Context, id int, opts FetchOptions, tasks *queue.Queue[int], records *table.Table, logger zerolog.Logger) (int, error) {
	processed := 0
	for {
		page, err := tasks.Pop(ctx)
		if errors.Is(err, queue.ErrClosed) {
			logger.Debug().Int("worker_id", id).Int("pages_processed", processed).Msg("Worker completed")
			return processed, nil
		}
		if err != nil {
			logger.Debug().Int("worker_id", id).Int("pages_processed", processed).Msg("Worker stopping (context cancelled)")
			return processed, err
		}
		// Pop hands out queued pages even after cancellation; skip them.
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		if _, err := f.fetchAndMerge(ctx, opts, page, records); err != nil {
			logger.Warn().Err(err).Int("worker_id", id).Int("page", page).Msg("Page fetch failed")
			return processed, err
		}
		processed++
	}
}

func (f *PaginatedFetcher) fetchAndMerge(ctx context.Context, opts FetchOptions, pageNum int, records *table.Table) (*gateway.Page, error) {
	start := time.Now()
	page, err := f.pages.FetchPage(ctx, opts.Repository, opts.State, pageNum, opts.PerPage)
	if err != nil {
		f.recorder.ObservePage(time.Since(start), 0, 0, err)
		return nil, err
	}
	merged := records.Merge(page.PullRequests)
	f.recorder.ObservePage(time.Since(start), merged, page.Skipped, nil)
	return page, nil
}
