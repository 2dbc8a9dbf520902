// Package chutes scores text sentiment with an OpenAI-compatible chat
// completion endpoint hosted on Chutes.
package chutes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	"github.com/vmanilo/paralimni/internal/adapter/metrics"
	"github.com/vmanilo/paralimni/internal/domain"
)

const promptTemplate = `Does this tweet relate to 'Bittensor netuid %d'?
If yes, estimate the sentiment of this tweet from -100 to +100.
Reply with the score only, without reasons, using + or - for positive and negative values,
in the format: 'score: value'

%s`

var scorePattern = regexp.MustCompile(`(?i)score\s*:?\s*(?:is)?\s*([+-]?\d+)`)

var errNoChoices = errors.New("completion returned no choices")

type Options struct {
	APIToken      string
	BaseURL       string
	Model         string
	MaxConcurrent int
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
}

// Scorer holds its own permit pool; at most MaxConcurrent completions are in flight.
type Scorer struct {
	client  *openai.Client
	opts    Options
	sem     *semaphore.Weighted
	metrics *metrics.SentimentMetrics
}

var _ domain.SentimentScorer = (*Scorer)(nil)

func NewScorer(opts Options, m *metrics.SentimentMetrics) (*Scorer, error) {
	if opts.APIToken == "" {
		return nil, errors.New("chutes API token is required")
	}
	if opts.MaxConcurrent < 1 {
		return nil, fmt.Errorf("chutes concurrency must be at least 1, got %d", opts.MaxConcurrent)
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}

	cfg := openai.DefaultConfig(opts.APIToken)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &Scorer{
		client:  openai.NewClientWithConfig(cfg),
		opts:    opts,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		metrics: m,
	}, nil
}

// Score asks the model for a sentiment score. Every failure is logged and
// reported as ok=false.
func (s *Scorer) Score(ctx context.Context, subnetID uint16, text string) (int, bool) {
	start := time.Now()
	defer func() { s.metrics.ScoreLatency.Observe(time.Since(start).Seconds()) }()

	score, err := s.score(ctx, subnetID, text)
	if err != nil {
		s.metrics.Scores.WithLabelValues("miss").Inc()
		slog.WarnContext(ctx, "Sentiment scoring failed", "netuid", subnetID, "error", err)
		return 0, false
	}

	s.metrics.Scores.WithLabelValues("ok").Inc()
	return score, true
}

func (s *Scorer) score(ctx context.Context, subnetID uint16, text string) (int, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("waiting for scorer permit: %w", err)
	}
	defer s.sem.Release(1)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.opts.Model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf(promptTemplate, subnetID, text),
		}},
		MaxTokens:   s.opts.MaxTokens,
		Temperature: requestTemperature(s.opts.Temperature),
	})
	if err != nil {
		return 0, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, errNoChoices
	}

	return ParseScore(resp.Choices[0].Message.Content)
}

// requestTemperature maps 0 to the smallest positive float32: go-openai omits
// a zero temperature and the endpoint would apply its own default.
func requestTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// ParseScore extracts the first "score: N" from a model reply. Values outside
// [-100, 100] are rejected.
func ParseScore(content string) (int, error) {
	m := scorePattern.FindStringSubmatch(content)
	if m == nil {
		return 0, fmt.Errorf("no score in reply %q", truncate(content, 80))
	}

	score, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("parse score %q: %w", m[1], err)
	}
	if score < domain.MinSentimentScore || score > domain.MaxSentimentScore {
		return 0, fmt.Errorf("score %d out of range", score)
	}
	return score, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
