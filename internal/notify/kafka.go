package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/pkg/logger"
	kafka "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutcomeMessage is the payload published for every closed round.
type OutcomeMessage struct {
	RoundID    uint64           `json:"round_id"`
	Lot        string           `json:"lot"`
	Outcome    model.Outcome    `json:"outcome"`
	WinnerID   string           `json:"winner_id,omitempty"`
	WinnerName string           `json:"winner_name,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	At         time.Time        `json:"at"`
}

// KafkaNotifier publishes sold and expired outcomes keyed by round id.
// Other event types are ignored.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
}

func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic not configured")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	logger.Debug("kafka notifier initialized", "brokers", brokers, "topic", topic)
	return &KafkaNotifier{writer: w, topic: topic}, nil
}

func (k *KafkaNotifier) Name() string { return "kafka" }

func (k *KafkaNotifier) Handle(ctx context.Context, evt model.RoundEvent) error {
	if !evt.Type.IsOutcome() {
		return nil
	}
	data, err := json.Marshal(outcomeOf(evt))
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(evt.Round.RoundID, 10)),
		Value: data,
		Time:  evt.At,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

func outcomeOf(evt model.RoundEvent) OutcomeMessage {
	r := evt.Round
	return OutcomeMessage{
		RoundID:    r.RoundID,
		Lot:        r.Lot.Name,
		Outcome:    r.Outcome,
		WinnerID:   r.WinnerID,
		WinnerName: r.WinnerName,
		Price:      r.SettlePrice,
		At:         evt.At,
	}
}
