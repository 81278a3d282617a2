package services

import (
	"context"

	"duplex/contract"
	"duplex/domain"
	"duplex/domain/event"
	"duplex/runtime"
)

// ISyncService is the surface the transport layer depends on. It hides the
// engine internals behind the three moments of a connection's life.
type ISyncService interface {
	Connect(ctx context.Context, userID string, id domain.ConnectionID, sink contract.EventSink)
	Disconnect(ctx context.Context, id domain.ConnectionID)
	HandleEvent(ctx context.Context, id domain.ConnectionID, ev event.ClientEvent) error
}

type SyncService struct {
	orchestrator *runtime.Orchestrator
}

func NewSyncService(o *runtime.Orchestrator) *SyncService {
	return &SyncService{orchestrator: o}
}

func (s *SyncService) Connect(ctx context.Context, userID string, id domain.ConnectionID, sink contract.EventSink) {
	s.orchestrator.Connect(ctx, userID, id, sink)
}

func (s *SyncService) Disconnect(ctx context.Context, id domain.ConnectionID) {
	s.orchestrator.Disconnect(ctx, id)
}

func (s *SyncService) HandleEvent(ctx context.Context, id domain.ConnectionID, ev event.ClientEvent) error {
	return s.orchestrator.HandleEvent(ctx, id, ev)
}
