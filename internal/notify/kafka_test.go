package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/ordenes-pagos/internal/order"
)

func TestKafkaNotifier_OrderPaidPublishesEvent(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Type != EventOrderPaid || ev.OrderID != "o-1" || ev.Recipient.Email != "a@b.co" || ev.Total != "150.00" {
			return errors.New("unexpected event")
		}
		return nil
	})

	n := NewKafkaWithProducer(p, "order-notifications")
	o := &order.Order{ID: "o-1", TotalPrice: decimal.NewFromInt(150), Items: []order.Item{{}, {}}}
	require.NoError(t, n.OrderPaid(context.Background(), o, Recipient{Email: "a@b.co", Name: "A"}))
	require.NoError(t, n.Close())
}

func TestKafkaNotifier_SurfacesBrokerFailure(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	n := NewKafkaWithProducer(p, "order-notifications")
	err := n.OrderShipped(context.Background(), &order.Order{ID: "o-2", TrackingNumber: "T1"}, Recipient{Email: "x@y.z"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, n.Close())
}

// stalledProducer never hears back from the broker until released.
type stalledProducer struct {
	sarama.SyncProducer
	release chan struct{}
}

func (p *stalledProducer) SendMessage(*sarama.ProducerMessage) (int32, int64, error) {
	<-p.release
	return 0, 0, nil
}

func TestKafkaNotifier_StopsWaitingWhenContextEnds(t *testing.T) {
	p := &stalledProducer{release: make(chan struct{})}
	defer close(p.release)
	n := NewKafkaWithProducer(p, "order-notifications")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := n.OrderPaid(ctx, &order.Order{ID: "o-3"}, Recipient{Email: "a@b.co"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestProducerConfig_UsesNotifyTimeout(t *testing.T) {
	conf := producerConfig(3 * time.Second)
	assert.Equal(t, 3*time.Second, conf.Producer.Timeout)
	assert.Equal(t, 3*time.Second, conf.Net.DialTimeout)
	assert.Equal(t, 3*time.Second, conf.Net.ReadTimeout)
	assert.Equal(t, 3*time.Second, conf.Net.WriteTimeout)
	assert.Equal(t, sarama.WaitForAll, conf.Producer.RequiredAcks)
	require.NoError(t, conf.Validate())

	def := producerConfig(0)
	assert.Equal(t, sarama.NewConfig().Net.DialTimeout, def.Net.DialTimeout)
}

func TestLogNotifier_NeverFails(t *testing.T) {
	var n Notifier = LogNotifier{}
	assert.NoError(t, n.OrderPaid(context.Background(), &order.Order{ID: "o"}, Recipient{}))
	assert.NoError(t, n.OrderShipped(context.Background(), &order.Order{ID: "o"}, Recipient{}))
}
