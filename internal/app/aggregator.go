package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vmanilo/paralimni/internal/adapter/metrics"
	"github.com/vmanilo/paralimni/internal/domain"
)

// Aggregator turns a subnet's recent texts into one mean sentiment score.
type Aggregator struct {
	searcher domain.TextSearcher
	scorer   domain.SentimentScorer
	metrics  *metrics.SentimentMetrics
}

func NewAggregator(searcher domain.TextSearcher, scorer domain.SentimentScorer, m *metrics.SentimentMetrics) *Aggregator {
	return &Aggregator{searcher: searcher, scorer: scorer, metrics: m}
}

// Aggregate scores every text concurrently (the scorer bounds real
// parallelism) and returns the arithmetic mean of the scores it got back.
// ok=false means there was nothing to average.
func (a *Aggregator) Aggregate(ctx context.Context, subnetID uint16) (float64, bool) {
	items, err := a.searcher.Search(ctx, subnetID)
	if err != nil {
		slog.ErrorContext(ctx, "Text search failed, treating as no texts", "netuid", subnetID, "error", err)
		items = nil
	}

	type outcome struct {
		score int
		ok    bool
	}
	results := make([]outcome, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Go(func() {
			score, ok := a.scorer.Score(ctx, subnetID, item.Text)
			results[i] = outcome{score: score, ok: ok}
		})
	}
	wg.Wait()

	sum, n := 0, 0
	for _, r := range results {
		if r.ok {
			sum += r.score
			n++
		}
	}

	if n == 0 {
		a.metrics.Aggregations.WithLabelValues("empty").Inc()
		slog.InfoContext(ctx, "No sentiment scores for subnet", "netuid", subnetID, "texts", len(items))
		return 0, false
	}

	a.metrics.Aggregations.WithLabelValues("scored").Inc()
	mean := float64(sum) / float64(n)
	slog.InfoContext(ctx, "Sentiment aggregated", "netuid", subnetID, "texts", len(items), "scored", n, "mean", mean)
	return mean, true
}
