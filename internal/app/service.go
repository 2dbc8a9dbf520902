package app

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/vmanilo/paralimni/internal/domain"
	"github.com/vmanilo/paralimni/internal/platform/correlation"
)

type dividendResolver interface {
	Resolve(ctx context.Context, query domain.DividendQuery) (domain.DividendResult, error)
}

// Service is the application layer behind the HTTP API. It is the only
// component that combines the resolver, the trade queue and the user store.
type Service struct {
	resolver  dividendResolver
	jobs      domain.TradeJobQueue
	users     domain.UserRepository
	clock     clockwork.Clock
	testToken string
}

// NewService wires the use cases. testToken, when non-empty, is accepted as a
// bearer token without a user record (load testing).
func NewService(resolver dividendResolver, jobs domain.TradeJobQueue, users domain.UserRepository, clock clockwork.Clock, testToken string) *Service {
	return &Service{
		resolver:  resolver,
		jobs:      jobs,
		users:     users,
		clock:     clock,
		testToken: testToken,
	}
}

// GetDividend resolves the dividend and, when trade is set, first enqueues a
// fire-and-forget trade job. StakeTxTriggered reports whether the job was accepted.
func (s *Service) GetDividend(ctx context.Context, query domain.DividendQuery, trade bool) (*domain.DividendView, error) {
	triggered := false
	if trade {
		triggered = s.enqueueTrade(ctx, query)
	}

	res, err := s.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, domain.ErrDividendNotFound
	}

	return &domain.DividendView{
		Timestamp:        s.clock.Now().UTC(),
		SubnetID:         query.SubnetID,
		Hotkey:           query.Hotkey,
		Dividend:         res.Value,
		Cached:           res.FromCache(),
		StakeTxTriggered: triggered,
	}, nil
}

func (s *Service) enqueueTrade(ctx context.Context, query domain.DividendQuery) bool {
	corrID, _ := correlation.ID(ctx)
	job := domain.TradeJob{
		ID:            uuid.NewString(),
		SubnetID:      query.SubnetID,
		Hotkey:        query.Hotkey,
		CorrelationID: corrID,
		EnqueuedAt:    s.clock.Now().UTC(),
	}

	if err := s.jobs.Enqueue(ctx, job); err != nil {
		slog.WarnContext(ctx, "Failed to enqueue trade job", "netuid", query.SubnetID, "error", err)
		return false
	}

	slog.InfoContext(ctx, "Trade job enqueued", "job_id", job.ID, "netuid", query.SubnetID)
	return true
}

// Signup registers email and returns its new bearer token.
func (s *Service) Signup(ctx context.Context, email string) (string, error) {
	user, err := s.users.Create(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", fmt.Errorf("signup: %w", err)
	}
	return user.Token, nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	if s.testToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.testToken)) == 1 {
		return true, nil
	}

	ok, err := s.users.IsValidToken(ctx, token)
	if err != nil {
		return false, fmt.Errorf("token lookup: %w", err)
	}
	return ok, nil
}
