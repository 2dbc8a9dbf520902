package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vmanilo/paralimni/internal/adapter/metrics"
	"github.com/vmanilo/paralimni/internal/domain"
)

const aliceHotkey = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

var errNotImplemented = errors.New("not implemented")

// --- Mock implementations ---

type setCall struct {
	key   string
	value int64
	ttl   time.Duration
	ctx   context.Context
}

type mockCache struct {
	getFn       func(ctx context.Context, key string) (int64, domain.CacheState, error)
	setFn       func(ctx context.Context, key string, value int64, ttl time.Duration) error
	setAbsentFn func(ctx context.Context, key string, ttl time.Duration) error

	mu         sync.Mutex
	sets       []setCall
	absentSets []setCall
}

func (m *mockCache) Get(ctx context.Context, key string) (int64, domain.CacheState, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return 0, domain.CacheMiss, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	m.mu.Lock()
	m.sets = append(m.sets, setCall{key: key, value: value, ttl: ttl, ctx: ctx})
	m.mu.Unlock()
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func (m *mockCache) SetAbsent(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	m.absentSets = append(m.absentSets, setCall{key: key, ttl: ttl, ctx: ctx})
	m.mu.Unlock()
	if m.setAbsentFn != nil {
		return m.setAbsentFn(ctx, key, ttl)
	}
	return nil
}

type mockLedger struct {
	fetchFn func(ctx context.Context, query domain.DividendQuery) (int64, bool, error)

	mu    sync.Mutex
	calls int
}

func (m *mockLedger) Fetch(ctx context.Context, query domain.DividendQuery) (int64, bool, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fetchFn != nil {
		return m.fetchFn(ctx, query)
	}
	return 0, false, errNotImplemented
}

func (m *mockLedger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockSearcher struct {
	searchFn func(ctx context.Context, subnetID uint16) ([]domain.TextItem, error)
}

func (m *mockSearcher) Search(ctx context.Context, subnetID uint16) ([]domain.TextItem, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, subnetID)
	}
	return nil, nil
}

type mockScorer struct {
	scoreFn func(ctx context.Context, subnetID uint16, text string) (int, bool)
}

func (m *mockScorer) Score(ctx context.Context, subnetID uint16, text string) (int, bool) {
	if m.scoreFn != nil {
		return m.scoreFn(ctx, subnetID, text)
	}
	return 0, false
}

type mockActuator struct {
	submitFn func(ctx context.Context, action domain.StakeAction) error

	mu      sync.Mutex
	actions []domain.StakeAction
}

func (m *mockActuator) Submit(ctx context.Context, action domain.StakeAction) error {
	m.mu.Lock()
	m.actions = append(m.actions, action)
	m.mu.Unlock()
	if m.submitFn != nil {
		return m.submitFn(ctx, action)
	}
	return nil
}

type mockAggregator struct {
	aggregateFn func(ctx context.Context, subnetID uint16) (float64, bool)
}

func (m *mockAggregator) Aggregate(ctx context.Context, subnetID uint16) (float64, bool) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, subnetID)
	}
	return 0, false
}

type mockQueue struct {
	enqueueFn func(ctx context.Context, job domain.TradeJob) error
	jobs      []domain.TradeJob
}

func (m *mockQueue) Enqueue(ctx context.Context, job domain.TradeJob) error {
	m.jobs = append(m.jobs, job)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, job)
	}
	return nil
}

type mockResolver struct {
	resolveFn func(ctx context.Context, query domain.DividendQuery) (domain.DividendResult, error)
}

func (m *mockResolver) Resolve(ctx context.Context, query domain.DividendQuery) (domain.DividendResult, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, query)
	}
	return domain.DividendResult{}, errNotImplemented
}

type mockUserRepo struct {
	createFn       func(ctx context.Context, email string) (*domain.User, error)
	isValidTokenFn func(ctx context.Context, token string) (bool, error)
}

func (m *mockUserRepo) Create(ctx context.Context, email string) (*domain.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, email)
	}
	return nil, errNotImplemented
}

func (m *mockUserRepo) IsValidToken(ctx context.Context, token string) (bool, error) {
	if m.isValidTokenFn != nil {
		return m.isValidTokenFn(ctx, token)
	}
	return false, nil
}

func newCacheMetrics() *metrics.CacheMetrics {
	return metrics.NewCacheMetrics(prometheus.NewRegistry())
}

func newSentimentMetrics() *metrics.SentimentMetrics {
	return metrics.NewSentimentMetrics(prometheus.NewRegistry())
}

func newJobMetrics() *metrics.JobMetrics {
	return metrics.NewJobMetrics(prometheus.NewRegistry())
}
