package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gifts_radar/models"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// NewGiftEvent — сообщение о подарке, впервые замеченном радаром.
type NewGiftEvent struct {
	GiftID              string    `json:"gift_id"`
	Limited             bool      `json:"limited"`
	SoldOut             bool      `json:"sold_out"`
	Stars               int64     `json:"stars"`
	AvailabilityRemains int       `json:"availability_remains,omitempty"`
	AvailabilityTotal   int       `json:"availability_total,omitempty"`
	PassID              string    `json:"pass_id"`
	DetectedAt          time.Time `json:"detected_at"`
}

// messageWriter — часть kafka.Writer, которой пользуется Publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher отправляет события о новых подарках в Kafka.
type Publisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewPublisher(brokers []string, topic string) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	log.Info().Msgf("[EVENTS] Kafka %v, топик %s", brokers, topic)
	return &Publisher{writer: writer, now: time.Now}
}

// PublishNewGifts пишет по одному сообщению на подарок. Ключ — ID подарка,
// поэтому события одного подарка попадают в одну партицию.
func (p *Publisher) PublishNewGifts(ctx context.Context, passID string, gifts []models.Gift) error {
	if len(gifts) == 0 {
		return nil
	}
	now := p.now().UTC()
	msgs := make([]kafka.Message, 0, len(gifts))
	for _, g := range gifts {
		data, err := json.Marshal(NewGiftEvent{
			GiftID:              g.ID.String(),
			Limited:             g.Limited,
			SoldOut:             g.SoldOut,
			Stars:               g.Stars,
			AvailabilityRemains: g.AvailabilityRemains,
			AvailabilityTotal:   g.AvailabilityTotal,
			PassID:              passID,
			DetectedAt:          now,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(g.ID.String()), Value: data, Time: now})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write %d events: %w", len(msgs), err)
	}
	log.Debug().Msgf("[EVENTS] отправлено событий: %d", len(msgs))
	return nil
}

func (p *Publisher) Close() error { return p.writer.Close() }
