package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/Shopify/sarama"

	"github.com/MikeMC777/ordenes-pagos/internal/order"
)

const (
	EventOrderPaid    = "order.paid"
	EventOrderShipped = "order.shipped"
)

// Event is the message consumed by the mailer.
type Event struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"order_id"`
	Recipient      Recipient `json:"recipient"`
	Total          string    `json:"total"`
	Items          int       `json:"items"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	At             time.Time `json:"at"`
}

type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafka bounds every broker round trip by timeout so a publish cannot
// outlive the caller's notification budget.
func NewKafka(brokers []string, topic string, timeout time.Duration) (*KafkaNotifier, error) {
	p, err := sarama.NewSyncProducer(brokers, producerConfig(timeout))
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaWithProducer(p, topic), nil
}

func producerConfig(timeout time.Duration) *sarama.Config {
	conf := sarama.NewConfig()
	conf.Producer.Return.Successes = true
	conf.Producer.Return.Errors = true
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Retry.Max = 3
	if timeout > 0 {
		conf.Producer.Timeout = timeout
		conf.Net.DialTimeout = timeout
		conf.Net.ReadTimeout = timeout
		conf.Net.WriteTimeout = timeout
		conf.Metadata.Timeout = timeout
	}
	return conf
}

func NewKafkaWithProducer(p sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: p, topic: topic}
}

func (k *KafkaNotifier) OrderPaid(ctx context.Context, o *order.Order, to Recipient) error {
	return k.push(ctx, Event{
		Type:      EventOrderPaid,
		OrderID:   o.ID,
		Recipient: to,
		Total:     o.TotalPrice.StringFixed(2),
		Items:     len(o.Items),
		At:        time.Now().UTC(),
	})
}

func (k *KafkaNotifier) OrderShipped(ctx context.Context, o *order.Order, to Recipient) error {
	return k.push(ctx, Event{
		Type:           EventOrderShipped,
		OrderID:        o.ID,
		Recipient:      to,
		Total:          o.TotalPrice.StringFixed(2),
		Items:          len(o.Items),
		TrackingNumber: o.TrackingNumber,
		At:             time.Now().UTC(),
	})
}

func (k *KafkaNotifier) push(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	type sent struct {
		partition int32
		offset    int64
		err       error
	}
	// buffered so an abandoned send can still finish and exit
	done := make(chan sent, 1)
	go func() {
		var r sent
		r.partition, r.offset, r.err = k.producer.SendMessage(&sarama.ProducerMessage{
			Topic: k.topic,
			Key:   sarama.StringEncoder(ev.OrderID),
			Value: sarama.ByteEncoder(value),
		})
		done <- r
	}()

	select {
	case <-ctx.Done():
		log.Printf("[notify] publish type=%s order=%s abandoned: %v", ev.Type, ev.OrderID, ctx.Err())
		return ctx.Err()
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("publish %s: %w", ev.Type, r.err)
		}
		log.Printf("[notify] published type=%s order=%s partition=%d offset=%d", ev.Type, ev.OrderID, r.partition, r.offset)
		return nil
	}
}

func (k *KafkaNotifier) Close() error { return k.producer.Close() }
