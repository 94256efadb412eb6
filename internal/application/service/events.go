package service

import (
	"context"

	"github.com/tapcards/tap/adapters/event"
)

type EventPublisher interface {
	PublishProfileEvent(ctx context.Context, payload event.ProfileEventPayload) error
}
