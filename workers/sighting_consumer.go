// workers/sighting_consumer.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wildlife-challenge-service/services"
	"wildlife-challenge-service/utils"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// SightingRecorder applies an attributed sighting to a user's active challenge.
type SightingRecorder interface {
	RecordSighting(ctx context.Context, userID, animalName string) (services.ProgressResult, error)
}

// SightingEvent is published by the sightings service once a photo has been
// attributed to a species.
type SightingEvent struct {
	SightingID string    `json:"sighting_id"`
	UserID     string    `json:"user_id"`
	AnimalName string    `json:"animal_name"`
	ObservedAt time.Time `json:"observed_at"`
}

type SightingConsumerConfig struct {
	URL        string
	Exchange   string
	Queue      string
	BindingKey string
	Prefetch   int
}

type SightingConsumer struct {
	cfg      SightingConsumerConfig
	recorder SightingRecorder
	retry    time.Duration

	done chan struct{}
}

var errMalformedSighting = errors.New("malformed sighting event")

func NewSightingConsumer(cfg SightingConsumerConfig, recorder SightingRecorder) *SightingConsumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	return &SightingConsumer{
		cfg:      cfg,
		recorder: recorder,
		retry:    5 * time.Second,
		done:     make(chan struct{}),
	}
}

// Start consumes in the background until ctx is cancelled, reconnecting when
// the broker drops the channel.
func (w *SightingConsumer) Start(ctx context.Context) {
	utils.Logger.Info("[SightingConsumer] starting",
		zap.String("exchange", w.cfg.Exchange), zap.String("queue", w.cfg.Queue))
	go w.run(ctx)
}

// Done is closed once the consumer loop has exited.
func (w *SightingConsumer) Done() <-chan struct{} {
	return w.done
}

func (w *SightingConsumer) run(ctx context.Context) {
	defer close(w.done)
	for {
		if err := w.consume(ctx); err != nil {
			utils.Logger.Error("[SightingConsumer] consume loop failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			utils.Logger.Info("[SightingConsumer] stopped")
			return
		case <-time.After(w.retry):
		}
	}
}

func (w *SightingConsumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(w.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(w.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	queue, err := ch.QueueDeclare(w.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, w.cfg.BindingKey, w.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	if err := ch.Qos(w.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		queue.Name, // queue
		"",         // consumer
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.handleDelivery(ctx, msg)
		}
	}
}

// handleDelivery settles a single message: acked on success, dropped when it
// can never succeed, requeued when storage failed.
func (w *SightingConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	err := w.process(ctx, msg.Body)
	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			utils.Logger.Warn("[SightingConsumer] ack failed", zap.Error(ackErr))
		}
	case errors.Is(err, errMalformedSighting):
		utils.Logger.Warn("[SightingConsumer] rejecting message", zap.Error(err))
		_ = msg.Reject(false)
	default:
		utils.Logger.Error("[SightingConsumer] requeueing message", zap.Error(err))
		_ = msg.Nack(false, true)
	}
}

func (w *SightingConsumer) process(ctx context.Context, body []byte) error {
	var evt SightingEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("%w: %v", errMalformedSighting, err)
	}
	evt.UserID = strings.TrimSpace(evt.UserID)
	evt.AnimalName = strings.TrimSpace(evt.AnimalName)
	if evt.UserID == "" || evt.AnimalName == "" {
		return fmt.Errorf("%w: user_id and animal_name are required", errMalformedSighting)
	}

	result, err := w.recorder.RecordSighting(ctx, evt.UserID, evt.AnimalName)
	if err != nil {
		return err
	}

	utils.Logger.Debug("[SightingConsumer] sighting applied",
		zap.String("sighting_id", evt.SightingID),
		zap.String("user_id", evt.UserID),
		zap.String("animal", evt.AnimalName),
		zap.Bool("updated", result.Updated),
		zap.Bool("daily_complete", result.DailyComplete),
		zap.Bool("weekly_complete", result.WeeklyComplete))
	return nil
}
