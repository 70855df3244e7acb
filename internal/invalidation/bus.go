package invalidation

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/harborview-health/clinic-scheduling/pkg/logging"
)

const busChannel = "clinicsched:invalidations"

// Bus fans mutation invalidations out to other staff sessions over Redis
// pub/sub. Slot data changes whenever any clinic staff books; without the bus,
// other sessions only notice at the next background refresh.
type Bus struct {
	rdb    *redis.Client
	origin string
	logger *logging.Logger
}

func NewBus(rdb *redis.Client, logger *logging.Logger) *Bus {
	if rdb == nil {
		panic("invalidation: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Bus{
		rdb:    rdb,
		origin: uuid.NewString(),
		logger: logger.Component("invalidation-bus"),
	}
}

// Origin returns this session's publisher id.
func (b *Bus) Origin() string { return b.origin }

// Publish sends m to all subscribed sessions, stamped with this session's
// origin id.
func (b *Bus) Publish(ctx context.Context, m Mutation) error {
	m.Origin = b.origin
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("invalidation: marshal mutation: %w", err)
	}
	if err := b.rdb.Publish(ctx, busChannel, payload).Err(); err != nil {
		return fmt.Errorf("invalidation: publish mutation: %w", err)
	}
	return nil
}

// Run subscribes to the invalidation channel and calls apply for every
// mutation published by other sessions, until ctx is done. Malformed payloads
// are logged and skipped.
func (b *Bus) Run(ctx context.Context, apply func(Mutation)) error {
	sub := b.rdb.Subscribe(ctx, busChannel)
	defer sub.Close()

	// wait for the subscription to be established before reporting ready
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("invalidation: subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m Mutation
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				b.logger.Warn("dropping malformed invalidation payload", "error", err)
				continue
			}
			if m.Origin == b.origin {
				continue
			}
			apply(m)
		}
	}
}
