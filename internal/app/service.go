package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rwhssa/rwhs-basketball-livestream/internal/broadcast"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/domain"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/scores"
)

// Service orchestrates score updates between the store, the hub and the relay.
type Service struct {
	store *scores.Store
	hub   *broadcast.Hub
	relay domain.ScoreRelay
}

// NewService creates the application layer service.
// relay may be nil when the service runs as a single instance.
func NewService(store *scores.Store, hub *broadcast.Hub, relay domain.ScoreRelay) *Service {
	return &Service{
		store: store,
		hub:   hub,
		relay: relay,
	}
}

// SubmitScores accepts a snapshot from the trusted publisher and returns the
// accepted value. A malformed snapshot is rejected without touching any state.
func (s *Service) SubmitScores(ctx context.Context, submitted domain.ScoreSnapshot) (*domain.ScoreSnapshot, error) {
	snapshot, err := domain.NewScoreSnapshot(submitted.Phase, submitted.Scores)
	if err != nil {
		return nil, err
	}

	result, err := s.apply(snapshot)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Scores updated",
		"phase", snapshot.Phase,
		"games", len(snapshot.Scores),
		"delivered", result.Delivered,
		"dropped", result.Dropped,
	)

	if s.relay != nil {
		if err := s.relay.PublishScores(ctx, snapshot); err != nil {
			slog.WarnContext(ctx, "Failed to relay scores to other instances", "error", err)
		}
	}

	return snapshot, nil
}

// ApplyRemote applies a snapshot that another instance already accepted.
// It is not relayed again.
func (s *Service) ApplyRemote(snapshot *domain.ScoreSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: empty relay message", domain.ErrInvalidSnapshot)
	}
	accepted, err := domain.NewScoreSnapshot(snapshot.Phase, snapshot.Scores)
	if err != nil {
		return err
	}
	result, err := s.apply(accepted)
	if err != nil {
		return err
	}
	slog.Debug("Relayed scores applied", "phase", accepted.Phase, "delivered", result.Delivered)
	return nil
}

// CurrentScores returns the stored snapshot, or false before the first update.
func (s *Service) CurrentScores() (*domain.ScoreSnapshot, bool) {
	return s.store.Read()
}

// apply replaces the stored snapshot and only then publishes it.
func (s *Service) apply(snapshot *domain.ScoreSnapshot) (broadcast.PublishResult, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return broadcast.PublishResult{}, fmt.Errorf("failed to encode scores: %w", err)
	}
	version := s.store.Replace(snapshot)
	return s.hub.Publish(broadcast.Message{Version: version, Data: data}), nil
}
