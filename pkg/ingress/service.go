// Package ingress implements the alert ingress service (spec §2 component
// 13): validates an incoming alert, applies queue admission control,
// resolves the chain to run it through, and persists a PENDING session —
// the only way a session enters the system (spec §4.13, scenarios S1/S2).
package ingress

import (
	"context"
	"fmt"

	"github.com/tarsy-project/tarsy-core/pkg/chain"
	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/hooks"
	"github.com/tarsy-project/tarsy-core/pkg/ids"
	"github.com/tarsy-project/tarsy-core/pkg/masking"
	"github.com/tarsy-project/tarsy-core/pkg/model"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

// SubmitAlertInput is one inbound POST /api/v1/alerts body (spec §6).
type SubmitAlertInput struct {
	AlertType string
	Runbook   string
	Data      string
	MCP       *model.MCPSelection
	Author    string
}

// Service is the alert ingress service. A *Service is safe for concurrent
// use; it holds no mutable state of its own beyond its collaborators.
type Service struct {
	store     store.Store
	chains    *config.ChainRegistry
	defaults  *config.Defaults
	queueCfg  *config.QueueConfig
	masker    *masking.Service
	dispatch  *hooks.Dispatcher
}

// NewService builds a Service. store, chains and defaults are required and
// NewService panics if any is nil, since none of them has a meaningful
// zero value to fall back to. queueCfg, masker and dispatch are optional:
// a nil queueCfg disables admission control, a nil masker skips masking,
// and a nil dispatch skips lifecycle event publication.
func NewService(
	s store.Store,
	chains *config.ChainRegistry,
	defaults *config.Defaults,
	queueCfg *config.QueueConfig,
	masker *masking.Service,
	dispatch *hooks.Dispatcher,
) *Service {
	if s == nil {
		panic("ingress: store is required")
	}
	if chains == nil {
		panic("ingress: chain registry is required")
	}
	if defaults == nil {
		panic("ingress: defaults are required")
	}
	return &Service{
		store:    s,
		chains:   chains,
		defaults: defaults,
		queueCfg: queueCfg,
		masker:   masker,
		dispatch: dispatch,
	}
}

// SubmitAlert validates and admits in, persisting a new PENDING session
// and publishing a session.created lifecycle event on success (spec §4.13,
// scenario S1). It returns *ValidationError for bad input and ErrQueueFull
// when admission control rejects the submission (scenario S2); GitHub
// runbook-repo fetching is out of scope (spec non-goal), so RunbookContent
// is always left empty in the stored snapshot.
func (s *Service) SubmitAlert(ctx context.Context, in SubmitAlertInput) (*model.Session, error) {
	if in.Data == "" {
		return nil, newValidationError("data", "alert data must not be empty")
	}

	alertType := in.AlertType
	if alertType == "" {
		alertType = s.defaults.AlertType
	}

	if err := s.checkAdmission(ctx); err != nil {
		return nil, err
	}

	chainID, err := s.chains.GetIDByAlertType(alertType)
	if err != nil {
		return nil, newValidationError("alert_type", fmt.Sprintf("no chain registered for alert type %q", alertType))
	}
	chainCfg, err := s.chains.Get(chainID)
	if err != nil {
		return nil, newValidationError("alert_type", fmt.Sprintf("no chain registered for alert type %q", alertType))
	}

	runbook := in.Runbook
	if runbook == "" {
		runbook = s.defaults.Runbook
	}

	alertData := in.Data
	if s.masker != nil {
		alertData = s.masker.MaskAlertData(alertData)
	}

	snapshotBytes, err := chain.EncodeSnapshot(&chain.Snapshot{
		Chain:     chainCfg,
		AlertData: alertData,
	})
	if err != nil {
		return nil, fmt.Errorf("ingress: encoding chain snapshot: %w", err)
	}

	session := &model.Session{
		SessionID:       ids.New(),
		AlertID:         ids.New(),
		AlertType:       alertType,
		AgentType:       "chain:" + chainID,
		ChainID:         chainID,
		ChainDefinition: snapshotBytes,
		Author:          in.Author,
		RunbookURL:      runbook,
		MCPSelection:    in.MCP,
		Status:          model.SessionPending,
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.dispatch.PublishSessionStatus(ctx, session.SessionID, model.SessionPending)

	return session, nil
}

// checkAdmission enforces spec §4.13 queue admission control: when
// MaxQueueSize is configured and non-zero, a submission that would put the
// pending queue at or over that size is rejected with ErrQueueFull
// (scenario S2) instead of being persisted.
func (s *Service) checkAdmission(ctx context.Context) error {
	if s.queueCfg == nil || s.queueCfg.MaxQueueSize <= 0 {
		return nil
	}
	pending, err := s.store.CountPendingSessions(ctx)
	if err != nil {
		return fmt.Errorf("ingress: counting pending sessions: %w", err)
	}
	if pending >= s.queueCfg.MaxQueueSize {
		return ErrQueueFull
	}
	return nil
}
