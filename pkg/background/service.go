// Package background implements the background services component (spec
// §2 component 14): event cleanup, session/history retention, and an MCP
// server health monitor backing the cached tool snapshot that
// GET /api/v1/system/mcp-servers serves (spec §6). The orphan-session
// sweeper named alongside these in the same component row already lives in
// pkg/queue, next to the worker pool whose claimed sessions it recovers.
package background

import (
	"context"
	"log/slog"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

// MCPHealthSource is the subset of *mcpclient.Client the health monitor
// needs. Kept as a narrow interface so this package doesn't import
// pkg/mcpclient's transport/session machinery.
type MCPHealthSource interface {
	ListAllTools(ctx context.Context) (map[string][]*mcpsdk.Tool, error)
	FailedServers() map[string]string
}

// Service runs the periodic sweeps on a single ticker loop, the way the
// teacher's cleanup service does: one goroutine, one interval, each sweep
// independently logged and never allowed to stop the others.
type Service struct {
	store     store.Store
	config    *config.RetentionConfig
	mcpHealth MCPHealthSource

	cache  *ToolCache
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService builds a Service. mcpHealth may be nil, in which case the MCP
// health/tool-cache sweep is skipped entirely (no MCP servers configured).
func NewService(s store.Store, cfg *config.RetentionConfig, mcpHealth MCPHealthSource) *Service {
	return &Service{
		store:     s,
		config:    cfg,
		mcpHealth: mcpHealth,
		cache:     newToolCache(),
	}
}

// Cache returns the tool-cache snapshot the system/mcp-servers endpoint
// reads (spec §6: "cached; falls back to live query during the first
// ~15s" — callers that see a zero-value snapshot know to fall back).
func (s *Service) Cache() *ToolCache { return s.cache }

// Start is idempotent: calling it again while already running is a no-op.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx)
	slog.Info("background services started",
		"session_retention_days", s.config.SessionRetentionDays,
		"event_ttl", s.config.EventTTL,
		"cleanup_interval", s.config.CleanupInterval,
	)
}

// Stop blocks until the running sweep loop has exited. It is idempotent.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	slog.Info("background services stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.cleanupOldSessions()
	s.cleanupOrphanedEvents()
	s.refreshMCPHealth(ctx)
}

// cleanupOldSessions soft-deletes sessions older than
// SessionRetentionDays (spec §4.10 history retention). It runs against a
// detached context, like the teacher's sweeps, so a caller cancelling the
// request that happened to trigger this tick can't abort a deletion
// partway through.
func (s *Service) cleanupOldSessions() {
	age := time.Duration(s.config.SessionRetentionDays) * 24 * time.Hour
	cutoff := ids.NowMicros() - age.Microseconds()
	n, err := s.store.DeleteSessionsOlderThan(context.Background(), cutoff)
	if err != nil {
		slog.Error("session retention sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("session retention sweep deleted old sessions", "count", n)
	}
}

// cleanupOrphanedEvents deletes Event rows older than EventTTL, the safety
// net for per-session cleanup that was missed (spec §4.3 default 24h,
// generalized to the configured EventTTL).
func (s *Service) cleanupOrphanedEvents() {
	cutoff := ids.NowMicros() - s.config.EventTTL.Microseconds()
	n, err := s.store.DeleteEventsOlderThan(context.Background(), cutoff)
	if err != nil {
		slog.Error("event cleanup sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("event cleanup sweep deleted orphaned events", "count", n)
	}
}

// refreshMCPHealth refreshes the cached tool snapshot and logs any server
// that has failed to initialize, the monitor half of component 14. A
// failure here never aborts the other sweeps.
func (s *Service) refreshMCPHealth(ctx context.Context) {
	if s.mcpHealth == nil {
		return
	}
	tools, err := s.mcpHealth.ListAllTools(ctx)
	if err != nil {
		slog.Error("mcp health monitor: failed to list tools from every server", "error", err)
	} else {
		s.cache.set(tools)
	}
	for serverID, reason := range s.mcpHealth.FailedServers() {
		slog.Warn("mcp health monitor: server unhealthy", "server", serverID, "error", reason)
	}
}
