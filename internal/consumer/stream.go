package consumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultClaimIdle is how long an entry stays pending before it is reclaimed
const DefaultClaimIdle = 60 * time.Second

// StreamConsumer reads JSON payloads from Redis Streams as part of a consumer
// group. Entries left pending longer than the claim idle time, including
// those this consumer never acked before a restart, are claimed and
// delivered again.
type StreamConsumer struct {
	client     *redis.Client
	consumerID string
	groupName  string
	claimIdle  time.Duration
}

// Message is one stream entry's "data" payload
type Message struct {
	ID        string
	StreamKey string
	Data      []byte
}

// NewStreamConsumer creates a new stream consumer
func NewStreamConsumer(client *redis.Client, consumerID, groupName string) *StreamConsumer {
	return &StreamConsumer{
		client:     client,
		consumerID: consumerID,
		groupName:  groupName,
		claimIdle:  DefaultClaimIdle,
	}
}

// WithClaimIdle overrides DefaultClaimIdle
func (c *StreamConsumer) WithClaimIdle(idle time.Duration) *StreamConsumer {
	c.claimIdle = idle
	return c
}

// ConsumeStream starts consuming from a stream and returns channels for messages and errors
func (c *StreamConsumer) ConsumeStream(ctx context.Context, streamKey string) (<-chan Message, <-chan error) {
	messageCh := make(chan Message, 100)
	errorCh := make(chan error, 10)

	err := c.client.XGroupCreateMkStream(ctx, streamKey, c.groupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		errorCh <- fmt.Errorf("failed to create consumer group: %w", err)
		close(messageCh)
		close(errorCh)
		return messageCh, errorCh
	}

	go func() {
		defer close(messageCh)
		defer close(errorCh)

		var lastClaim time.Time
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if time.Since(lastClaim) >= c.claimIdle {
				lastClaim = time.Now()
				if !c.reclaim(ctx, streamKey, messageCh, errorCh) {
					return
				}
			}

			streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    c.groupName,
				Consumer: c.consumerID,
				Streams:  []string{streamKey, ">"},
				Count:    10,
				Block:    1 * time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				c.sendError(ctx, errorCh, fmt.Errorf("error reading from stream: %w", err))
				time.Sleep(1 * time.Second)
				continue
			}

			for _, stream := range streams {
				for _, xmsg := range stream.Messages {
					if !c.deliver(ctx, streamKey, xmsg, messageCh, errorCh) {
						return
					}
				}
			}
		}
	}()

	return messageCh, errorCh
}

// reclaim claims entries idle in the group's pending list and delivers them.
// It returns false once ctx is done.
func (c *StreamConsumer) reclaim(ctx context.Context, streamKey string, messageCh chan<- Message, errorCh chan<- error) bool {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: streamKey,
		Group:  c.groupName,
		Idle:   c.claimIdle,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.sendError(ctx, errorCh, fmt.Errorf("failed to list pending messages: %w", err))
		return true
	}
	if len(pending) == 0 {
		return true
	}

	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}

	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   streamKey,
		Group:    c.groupName,
		Consumer: c.consumerID,
		MinIdle:  c.claimIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.sendError(ctx, errorCh, fmt.Errorf("failed to claim pending messages: %w", err))
		return true
	}

	for _, xmsg := range claimed {
		if !c.deliver(ctx, streamKey, xmsg, messageCh, errorCh) {
			return false
		}
	}
	return true
}

// deliver sends one entry to messageCh; it returns false once ctx is done
func (c *StreamConsumer) deliver(ctx context.Context, streamKey string, xmsg redis.XMessage, messageCh chan<- Message, errorCh chan<- error) bool {
	msg, err := ParseMessage(streamKey, xmsg)
	if err != nil {
		c.sendError(ctx, errorCh, fmt.Errorf("error parsing message %s: %w", xmsg.ID, err))
		// unparseable entries are acked so they are not redelivered
		_ = c.AckMessage(ctx, streamKey, xmsg.ID)
		return true
	}

	select {
	case messageCh <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *StreamConsumer) sendError(ctx context.Context, errorCh chan<- error, err error) {
	select {
	case errorCh <- err:
	case <-ctx.Done():
	default:
	}
}

// ParseMessage extracts the "data" field of a stream entry
func ParseMessage(streamKey string, xmsg redis.XMessage) (Message, error) {
	data, ok := xmsg.Values["data"].(string)
	if !ok {
		return Message{}, fmt.Errorf("missing 'data' field in message")
	}

	return Message{
		ID:        xmsg.ID,
		StreamKey: streamKey,
		Data:      []byte(data),
	}, nil
}

// AckMessage acknowledges a message as processed
func (c *StreamConsumer) AckMessage(ctx context.Context, streamKey, messageID string) error {
	return c.client.XAck(ctx, streamKey, c.groupName, messageID).Err()
}
