package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel carries booking-changed signals. The message has no payload beyond
// the fact that a refresh is needed.
const Channel = "bookings.changed"

type Publisher struct {
	client *redis.Client
}

func NewPublisher(redisAddr string) (*Publisher, error) {
	const op = "events.NewPublisher"

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Publisher{client: client}, nil
}

func (p *Publisher) BookingsChanged(ctx context.Context) error {
	const op = "events.Publisher.BookingsChanged"

	if err := p.client.Publish(ctx, Channel, "refresh").Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
}

func NewSubscriber(redisAddr string) (*Subscriber, error) {
	const op = "events.NewSubscriber"

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Subscriber{
		client: client,
		pubsub: client.Subscribe(context.Background(), Channel),
	}, nil
}

// Listen invokes onChange for every booking-changed signal until ctx is done.
// Runs in its own goroutine.
func (s *Subscriber) Listen(ctx context.Context, log *slog.Logger, onChange func(context.Context)) {
	go func() {
		ch := s.pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				log.Debug("booking change signal received", slog.String("channel", msg.Channel))
				onChange(ctx)
			}
		}
	}()
}

func (s *Subscriber) Close() error {
	if err := s.pubsub.Close(); err != nil {
		_ = s.client.Close()
		return err
	}

	return s.client.Close()
}
