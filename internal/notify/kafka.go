package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event оборачивает уведомление для публикации в Kafka.
type Event struct {
	EventID    string       `json:"event_id"`
	EventType  string       `json:"event_type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Payload    Notification `json:"payload"`
}

// EventToast обозначает событие пользовательского уведомления.
const EventToast = "Toast"

// KafkaNotifier публикует уведомления в топик Kafka через внутренний буфер.
type KafkaNotifier struct {
	w       messageWriter
	logger  *zap.Logger
	inbox   chan kafka.Message
	closeCh chan struct{}
}

// NewKafkaNotifier создаёт уведомитель, пишущий в указанный топик.
func NewKafkaNotifier(brokers []string, topic string, buf int, logger *zap.Logger) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaNotifier(w, buf, logger)
}

func newKafkaNotifier(w messageWriter, buf int, logger *zap.Logger) *KafkaNotifier {
	if buf <= 0 {
		buf = 1
	}
	return &KafkaNotifier{
		w:       w,
		logger:  logger,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start запускает цикл отправки. После отмены контекста остаток буфера дописывается и writer закрывается.
func (k *KafkaNotifier) Start(ctx context.Context) {
	go func() {
		defer close(k.closeCh)
		for {
			select {
			case <-ctx.Done():
				k.drain()
				if err := k.w.Close(); err != nil {
					k.logger.Warn("close kafka writer", zap.Error(err))
				}
				return
			case m := <-k.inbox:
				k.write(m)
			}
		}
	}()
}

func (k *KafkaNotifier) drain() {
	for {
		select {
		case m := <-k.inbox:
			k.write(m)
		default:
			return
		}
	}
}

func (k *KafkaNotifier) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := k.w.WriteMessages(ctx, m); err != nil {
		k.logger.Error("publish notification", zap.Error(err), zap.String("key", string(m.Key)))
	}
}

// WaitClosed ждёт завершения цикла отправки.
func (k *KafkaNotifier) WaitClosed() { <-k.closeCh }

// Notify ставит уведомление в очередь. При переполненном буфере уведомление отбрасывается.
func (k *KafkaNotifier) Notify(_ context.Context, n Notification) {
	m, err := newMessage(n)
	if err != nil {
		k.logger.Error("marshal notification", zap.Error(err))
		return
	}

	select {
	case k.inbox <- m:
	default:
		k.logger.Warn("notification inbox full, dropping", zap.String("message", n.Message))
	}
}

func newMessage(n Notification) (kafka.Message, error) {
	value, err := json.Marshal(Event{
		EventID:    uuid.NewString(),
		EventType:  EventToast,
		OccurredAt: n.At,
		Payload:    n,
	})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(n.UserID),
		Value: value,
		Time:  n.At,
	}, nil
}
