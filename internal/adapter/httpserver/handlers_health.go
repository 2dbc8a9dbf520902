package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vmanilo/paralimni/internal/platform/version"
)

const readinessProbeTimeout = 5 * time.Second

// HealthCheck probes one dependency. Optional dependencies (the Redis side
// cache, whose errors the resolver already treats as misses) only degrade
// readiness; a failing required one makes the instance unready.
type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool
}

type checkResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type readinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// handleReadiness probes every dependency in parallel under one deadline.
// Status is "ready", "degraded" (only optional checks failed, still 200) or
// "unhealthy" (503).
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	results := s.runHealthChecks(ctx)

	resp := readinessResponse{Status: "ready", Checks: results}
	code := http.StatusOK
	for _, hc := range s.healthChecks {
		if results[hc.Name].Status == "ok" {
			continue
		}
		if !hc.Optional {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			break
		}
		resp.Status = "degraded"
	}

	if err := c.JSON(code, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) runHealthChecks(ctx context.Context) map[string]checkResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]checkResult, len(s.healthChecks))
	)
	for _, hc := range s.healthChecks {
		wg.Go(func() {
			start := time.Now()
			err := hc.Check(ctx)

			res := checkResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = "failed"
				res.Error = err.Error()
			}

			mu.Lock()
			results[hc.Name] = res
			mu.Unlock()
		})
	}
	wg.Wait()
	return results
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
