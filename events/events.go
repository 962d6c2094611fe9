// Package events carries the notifications other parts of the system react to:
// point lifecycle changes and login/logout.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Type string

const (
	PointCreated  Type = "point.created"
	PointUpdated  Type = "point.updated"
	PointApproved Type = "point.approved"
	PointRejected Type = "point.rejected"
	PointHidden   Type = "point.hidden"
	PointUnhidden Type = "point.unhidden"
	PointDeleted  Type = "point.deleted"
	PointRestored Type = "point.restored"
	PointPurged   Type = "point.purged"
	Login         Type = "auth.login"
	Logout        Type = "auth.logout"
)

type Event struct {
	Type    Type           `json:"type"`
	At      time.Time      `json:"at"`
	Actor   string         `json:"actor,omitempty"`
	PointID string         `json:"point_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Publisher is implemented by every event sink.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogPublisher only logs events. It is used when Redis is not configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.logger.Info("event",
		zap.String("type", string(e.Type)),
		zap.String("actor", e.Actor),
		zap.String("point_id", e.PointID),
	)
	return nil
}
