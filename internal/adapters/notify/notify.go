// Package notify fans out score changes to real-time consumers.
//
// Delivery is best effort: the recorder publishes after its transaction
// commits and never fails a recording because a consumer misbehaved.
package notify

import (
	"context"
	"fmt"

	"github.com/asaskevich/EventBus"

	"github.com/okian/tally/internal/domain/model"
)

// TopicScoreChanged carries model.ScoreChange payloads.
const TopicScoreChanged = "points.score_changed"

// Sink is the write side consumed by the recorder.
type Sink interface {
	// PublishScoreChange delivers one change to subscribers asynchronously.
	PublishScoreChange(ctx context.Context, change model.ScoreChange) error
}

// Bus implements Sink over an in-process EventBus.
type Bus struct {
	bus EventBus.Bus
}

// compile-time interface check.
var _ Sink = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{bus: EventBus.New()}
}

// PublishScoreChange delivers the change to all subscribers. Subscribers
// run asynchronously, so a slow consumer never blocks the recorder.
func (b *Bus) PublishScoreChange(ctx context.Context, change model.ScoreChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.bus.Publish(TopicScoreChanged, change)
	return nil
}

// SubscribeScoreChange registers an async handler for score changes.
func (b *Bus) SubscribeScoreChange(fn func(change model.ScoreChange)) error {
	if err := b.bus.SubscribeAsync(TopicScoreChanged, fn, false); err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicScoreChanged, err)
	}
	return nil
}

// UnsubscribeScoreChange removes a previously registered handler.
func (b *Bus) UnsubscribeScoreChange(fn func(change model.ScoreChange)) error {
	if err := b.bus.Unsubscribe(TopicScoreChanged, fn); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", TopicScoreChanged, err)
	}
	return nil
}

// WaitAsync blocks until all in-flight async deliveries finish. Used at
// shutdown and in tests.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}
