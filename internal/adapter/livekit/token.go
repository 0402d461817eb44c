// Package livekit issues LiveKit-compatible access tokens for camera, admin
// and output participants of a game phase room.
package livekit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rwhssa/rwhs-basketball-livestream/internal/domain"
)

type Config struct {
	APIKey     string
	APISecret  string
	URL        string
	TTL        time.Duration
	RoomPrefix string
}

// VideoGrant is the "video" claim LiveKit reads permissions from. Pointer
// fields so that explicit false values survive encoding.
type VideoGrant struct {
	Room                 string `json:"room,omitempty"`
	RoomJoin             *bool  `json:"roomJoin,omitempty"`
	RoomAdmin            *bool  `json:"roomAdmin,omitempty"`
	CanPublish           *bool  `json:"canPublish,omitempty"`
	CanSubscribe         *bool  `json:"canSubscribe,omitempty"`
	CanPublishData       *bool  `json:"canPublishData,omitempty"`
	CanUpdateOwnMetadata *bool  `json:"canUpdateOwnMetadata,omitempty"`
}

type Claims struct {
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs room grants with the LiveKit API key pair.
type Issuer struct {
	config Config
	clock  clockwork.Clock
}

func NewIssuer(config Config, clock clockwork.Clock) *Issuer {
	return &Issuer{config: config, clock: clock}
}

// Issue returns a grant for the phase room with permissions derived from
// requestedType. Unrecognized types get a token that can neither publish
// nor subscribe.
func (i *Issuer) Issue(_ context.Context, phase, requestedType string) (*domain.Grant, error) {
	phase = strings.TrimSpace(phase)
	if phase == "" {
		return nil, domain.ErrPhaseRequired
	}

	room := RoomName(i.config.RoomPrefix, phase)
	now := i.clock.Now()

	grant := GrantFor(domain.ParseRole(requestedType))
	grant.Room = room

	claims := Claims{
		Name:  fmt.Sprintf("%s-%s", requestedType, phase),
		Video: grant,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.config.APIKey,
			Subject:   fmt.Sprintf("%s-%s-%d", requestedType, phase, now.UnixMilli()),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.TTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.config.APISecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &domain.Grant{Token: token, Room: room, URL: i.config.URL}, nil
}

// RoomName maps a phase onto its room. Only "semi" and "final" have
// dedicated rooms.
func RoomName(prefix, phase string) string {
	switch phase {
	case "semi", "final":
		return prefix + "-" + phase
	default:
		return prefix + "-default"
	}
}

// GrantFor returns the permissions of a role, without the room.
func GrantFor(role domain.Role) *VideoGrant {
	switch role {
	case domain.RoleCamera:
		return &VideoGrant{
			RoomJoin:             boolPtr(true),
			CanPublish:           boolPtr(true),
			CanSubscribe:         boolPtr(true),
			CanPublishData:       boolPtr(true),
			CanUpdateOwnMetadata: boolPtr(true),
		}
	case domain.RoleAdmin:
		return &VideoGrant{
			RoomJoin:       boolPtr(true),
			RoomAdmin:      boolPtr(true),
			CanPublish:     boolPtr(false),
			CanSubscribe:   boolPtr(true),
			CanPublishData: boolPtr(true),
		}
	case domain.RoleOutput:
		return &VideoGrant{
			RoomJoin:       boolPtr(true),
			CanPublish:     boolPtr(false),
			CanSubscribe:   boolPtr(true),
			CanPublishData: boolPtr(true),
		}
	default:
		return &VideoGrant{
			CanPublish:     boolPtr(false),
			CanSubscribe:   boolPtr(false),
			CanPublishData: boolPtr(false),
		}
	}
}

func boolPtr(b bool) *bool { return &b }
