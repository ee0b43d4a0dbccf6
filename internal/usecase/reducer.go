package usecase

import (
	"errors"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"github.com/naka-gawa/github-pr-stats/internal/domain"
)

// SummaryReducer derives summary statistics from a finished record table snapshot.
type SummaryReducer struct {
	logger zerolog.Logger
}

// NewSummaryReducer creates a new SummaryReducer instance.
func NewSummaryReducer(logger zerolog.Logger) *SummaryReducer {
	return &SummaryReducer{
		logger: logger.With().Str("component", "reducer").Logger(),
	}
}

// Summarize computes the total, the top n authors and turnaround statistics.
func (r *SummaryReducer) Summarize(records []domain.PullRequest, n int) domain.Summary {
	return domain.Summary{
		Total:      len(records),
		TopAuthors: r.TopAuthors(records, n),
		Turnaround: r.TurnaroundStats(r.TurnaroundDurations(records)),
	}
}

// TopAuthors ranks authors by descending pull request count and returns at most n of them.
// Authors with equal counts are ordered by handle.
func (r *SummaryReducer) TopAuthors(records []domain.PullRequest, n int) []domain.AuthorCount {
	counts := make(map[string]int)
	for _, pr := range records {
		counts[pr.Author]++
	}

	ranked := make([]domain.AuthorCount, 0, len(counts))
	for author, count := range counts {
		ranked = append(ranked, domain.AuthorCount{Author: author, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Author < ranked[j].Author
	})

	if n < 0 {
		n = 0
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// TurnaroundDurations returns closedAt - createdAt for every closed or merged pull request.
// Closed records without a close timestamp are skipped.
func (r *SummaryReducer) TurnaroundDurations(records []domain.PullRequest) []time.Duration {
	durations := make([]time.Duration, 0, len(records))
	for _, pr := range records {
		if !pr.IsClosed() {
			continue
		}
		d, ok := pr.Turnaround()
		if !ok {
			r.logger.Debug().Int64("id", pr.ID).Int("number", pr.Number).Msg("Closed pull request has no close timestamp, skipping")
			continue
		}
		durations = append(durations, d)
	}
	return durations
}

// TurnaroundStats computes min, max, median and mean over durations.
// An empty input yields HasData == false.
func (r *SummaryReducer) TurnaroundStats(durations []time.Duration) domain.TurnaroundStats {
	data := make(stats.Float64Data, len(durations))
	for i, d := range durations {
		data[i] = d.Seconds()
	}

	minimum, err := data.Min()
	if errors.Is(err, stats.ErrEmptyInput) {
		return domain.TurnaroundStats{}
	}
	maximum, _ := data.Max()
	median, _ := data.Median()
	mean, _ := data.Mean()

	return domain.TurnaroundStats{
		HasData: true,
		Count:   len(durations),
		Min:     seconds(minimum),
		Max:     seconds(maximum),
		Median:  seconds(median),
		Mean:    seconds(mean),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
