package notification

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shop/backend/internal/domain/notification"
)

func TestKafkaSenderSend(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	sender := NewKafkaSenderWithProducer(producer, "shop.notifications", zap.NewNop())
	defer sender.Close()

	n := notification.New(notification.KindPaymentConfirmation, uuid.New(), uuid.New(), uuid.New())
	n.Amount = decimal.NewFromFloat(99.90)
	n.Currency = "BRL"

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "shop.notifications", msg.Topic)

		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, n.CustomerID.String(), string(key))

		value, err := msg.Value.Encode()
		require.NoError(t, err)
		var decoded notification.Notification
		require.NoError(t, json.Unmarshal(value, &decoded))
		assert.Equal(t, notification.KindPaymentConfirmation, decoded.Kind)
		assert.Equal(t, "BRL", decoded.Currency)
		return nil
	})

	require.NoError(t, sender.Send(context.Background(), n))
}

func TestKafkaSenderSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	sender := NewKafkaSenderWithProducer(producer, "shop.notifications", zap.NewNop())
	defer sender.Close()

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	n := notification.New(notification.KindPaymentFailed, uuid.New(), uuid.New(), uuid.New())
	assert.Error(t, sender.Send(context.Background(), n))
}

func TestLogSenderSend(t *testing.T) {
	sender := NewLogSender(zap.NewNop())
	defer sender.Close()

	n := notification.New(notification.KindRefundConfirmation, uuid.New(), uuid.New(), uuid.New())
	assert.NoError(t, sender.Send(context.Background(), n))
}
