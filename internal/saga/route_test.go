package saga

import (
	"encoding/json"
	"testing"

	"github.com/sakashimaa/go-saga-orders/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return body
}

func TestRoute_InventoryReservedRequestsPayment(t *testing.T) {
	items := []domain.OrderItem{
		{SKU: "A", Qty: 2, Price: 10},
		{SKU: "B", Qty: 1, Price: 30},
	}
	body := mustMarshal(t, domain.InventoryReservedPayload{ID: "o1", Items: items})

	cmd, err := Route(domain.TopicInventoryReserved, body)
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, domain.TopicPaymentRequest, cmd.Topic)

	payload, ok := cmd.Payload.(domain.PaymentRequestPayload)
	require.True(t, ok)
	assert.Equal(t, "o1", payload.OrderID)
	assert.Equal(t, items, payload.Items)
	require.NotNil(t, payload.Amount)
	assert.Equal(t, int64(50), *payload.Amount)
}

func TestRoute_ReservationFailedCancelsOrder(t *testing.T) {
	body := mustMarshal(t, domain.ReservationFailedPayload{ID: "o1", Reason: "insufficient_stock B"})

	cmd, err := Route(domain.TopicInventoryReservationFailed, body)
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, domain.TopicOrderCancel, cmd.Topic)
	assert.Equal(t, domain.OrderLifecyclePayload{ID: "o1", Reason: "insufficient_stock B"}, cmd.Payload)
}

func TestRoute_PaymentProcessedConfirmsOrder(t *testing.T) {
	body := mustMarshal(t, domain.PaymentResultPayload{
		Payment: domain.Payment{ID: "p1", OrderID: "o1", Amount: 50, Status: domain.PaymentStatusCompleted},
	})

	cmd, err := Route(domain.TopicPaymentProcessed, body)
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, domain.TopicOrderConfirmed, cmd.Topic)
	assert.Equal(t, domain.OrderLifecyclePayload{ID: "o1"}, cmd.Payload)
}

func TestRoute_PaymentFailedFailsOrder(t *testing.T) {
	body := mustMarshal(t, domain.PaymentResultPayload{
		Payment: domain.Payment{
			ID:      "p1",
			OrderID: "o1",
			Status:  domain.PaymentStatusFailed,
			Reason:  domain.ReasonInsufficientFunds,
		},
	})

	cmd, err := Route(domain.TopicPaymentFailed, body)
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, domain.TopicOrderFailedPayment, cmd.Topic)
	assert.Equal(t, domain.OrderLifecyclePayload{ID: "o1", Reason: domain.ReasonInsufficientFunds}, cmd.Payload)
}

func TestRoute_IgnoresEventsOutsideTheChoreography(t *testing.T) {
	for _, topic := range []string{
		domain.TopicOrderCreated,
		domain.TopicOrderConfirmed,
		domain.TopicOrderCancel,
		domain.TopicPaymentRequest,
	} {
		cmd, err := Route(topic, []byte(`{"id":"o1"}`))
		require.NoError(t, err)
		assert.Nil(t, cmd, topic)
	}
}

func TestRoute_MalformedBodyReturnsError(t *testing.T) {
	cmd, err := Route(domain.TopicInventoryReserved, []byte("not json"))
	assert.Error(t, err)
	assert.Nil(t, cmd)
}
