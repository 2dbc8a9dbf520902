// Package datura searches recent tweets about a subnet through the Datura API.
package datura

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vmanilo/paralimni/internal/adapter/metrics"
	"github.com/vmanilo/paralimni/internal/domain"
)

const (
	searchPath      = "/twitter"
	dateLayout      = "2006-01-02"
	httpCallTimeout = 30 * time.Second
	maxErrorBody    = 512
)

type Options struct {
	APIKey    string
	BaseURL   string
	DaysRange int
	Limit     int
}

// searchRequest mirrors Datura's basic Twitter search. The quality filters
// keep low-engagement and unverified posts out of the sentiment sample.
type searchRequest struct {
	Query       string `json:"query"`
	Sort        string `json:"sort"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Lang        string `json:"lang"`
	MinRetweets int    `json:"min_retweets"`
	MinLikes    int    `json:"min_likes"`
	MinReplies  int    `json:"min_replies"`
	Verified    bool   `json:"verified"`
	IsQuote     bool   `json:"is_quote"`
	Count       int    `json:"count"`
}

type tweet struct {
	Text string `json:"text"`
}

type Client struct {
	opts    Options
	http    *http.Client
	clock   clockwork.Clock
	metrics *metrics.SentimentMetrics
}

var _ domain.TextSearcher = (*Client)(nil)

func NewClient(opts Options, clock clockwork.Clock, m *metrics.SentimentMetrics) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("datura API key is required")
	}
	if opts.BaseURL == "" {
		return nil, errors.New("datura base URL is required")
	}

	return &Client{
		opts:    opts,
		http:    &http.Client{Timeout: httpCallTimeout},
		clock:   clock,
		metrics: m,
	}, nil
}

// Search returns up to Limit tweet texts about the subnet from the last DaysRange days.
func (c *Client) Search(ctx context.Context, subnetID uint16) ([]domain.TextItem, error) {
	items, err := c.search(ctx, subnetID)
	if err != nil {
		c.metrics.Searches.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.Searches.WithLabelValues("ok").Inc()
	return items, nil
}

func (c *Client) search(ctx context.Context, subnetID uint16) ([]domain.TextItem, error) {
	now := c.clock.Now()
	body, err := json.Marshal(searchRequest{
		Query:       fmt.Sprintf("Bittensor netuid %d", subnetID),
		Sort:        "Top",
		StartDate:   now.AddDate(0, 0, -c.opts.DaysRange).Format(dateLayout),
		EndDate:     now.Format(dateLayout),
		Lang:        "en",
		MinRetweets: 5,
		MinLikes:    10,
		MinReplies:  2,
		Verified:    true,
		IsQuote:     false,
		Count:       c.opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + searchPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Authorization", c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("datura returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	tweets, err := decodeTweets(resp.Body)
	if err != nil {
		return nil, err
	}

	items := make([]domain.TextItem, 0, len(tweets))
	for _, t := range tweets {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		items = append(items, domain.TextItem{Text: t.Text})
	}
	if len(items) > c.opts.Limit {
		items = items[:c.opts.Limit]
	}
	return items, nil
}

// decodeTweets accepts a bare array or an object wrapping it in "data".
func decodeTweets(r io.Reader) ([]tweet, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Data []tweet `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode search response: %w", err)
		}
		return wrapped.Data, nil
	}

	var tweets []tweet
	if err := json.Unmarshal(raw, &tweets); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return tweets, nil
}
