package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/certanchor/certanchor"
)

// AnchorChannel is the redis channel carrying anchor completion events.
const AnchorChannel = "certanchor:anchors"

// SignalService fans anchor completion events out through redis, so callers
// can subscribe instead of polling the record status.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, event certanchor.AnchorEvent) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, AnchorChannel, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Subscribe delivers anchor events until ctx is cancelled. The returned
// close function must be called to release the underlying subscription.
func (s *SignalService) Subscribe(ctx context.Context) (<-chan certanchor.AnchorEvent, func() error) {
	sub := s.rdb.Subscribe(ctx, AnchorChannel)
	events := make(chan certanchor.AnchorEvent)

	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var event certanchor.AnchorEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, sub.Close
}
