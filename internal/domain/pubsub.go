package domain

import "context"

// ScoreRelay forwards accepted snapshots to other instances of the service.
type ScoreRelay interface {
	PublishScores(ctx context.Context, snapshot *ScoreSnapshot) error
}
