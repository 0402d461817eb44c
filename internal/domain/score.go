package domain

import (
	"fmt"
	"strings"
)

const maxPhaseLength = 64

// GameScores maps a participant (team or class) to its score in one game.
type GameScores map[string]int

// ScoreSnapshot is the full scoring state of the event at one instant.
// Values are never mutated after construction; an update replaces the whole snapshot.
type ScoreSnapshot struct {
	Phase  string                `json:"phase"`
	Scores map[string]GameScores `json:"scores"`
}

// NewScoreSnapshot validates the input and returns a deep copy of it, so later
// changes to the caller's maps cannot leak into the stored value.
func NewScoreSnapshot(phase string, scores map[string]GameScores) (*ScoreSnapshot, error) {
	s := ScoreSnapshot{Phase: phase, Scores: scores}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// Validate checks the structural shape of the snapshot. Business rules such as
// which games belong to which phase are not enforced.
func (s ScoreSnapshot) Validate() error {
	phase := strings.TrimSpace(s.Phase)
	if phase == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, ErrPhaseRequired)
	}
	if len(phase) > maxPhaseLength {
		return fmt.Errorf("%w: phase exceeds %d bytes", ErrInvalidSnapshot, maxPhaseLength)
	}
	if s.Scores == nil {
		return fmt.Errorf("%w: scores are required", ErrInvalidSnapshot)
	}
	for game, participants := range s.Scores {
		if strings.TrimSpace(game) == "" {
			return fmt.Errorf("%w: empty game id", ErrInvalidSnapshot)
		}
		if participants == nil {
			return fmt.Errorf("%w: game %q has no scores", ErrInvalidSnapshot, game)
		}
		for participant, score := range participants {
			if strings.TrimSpace(participant) == "" {
				return fmt.Errorf("%w: empty participant id in game %q", ErrInvalidSnapshot, game)
			}
			if score < 0 {
				return fmt.Errorf("%w: negative score %d for %q in game %q", ErrInvalidSnapshot, score, participant, game)
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s ScoreSnapshot) Clone() *ScoreSnapshot {
	scores := make(map[string]GameScores, len(s.Scores))
	for game, participants := range s.Scores {
		copied := make(GameScores, len(participants))
		for participant, score := range participants {
			copied[participant] = score
		}
		scores[game] = copied
	}
	return &ScoreSnapshot{Phase: strings.TrimSpace(s.Phase), Scores: scores}
}
