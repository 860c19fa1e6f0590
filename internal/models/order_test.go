package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeTotal(t *testing.T) {
	o := Order{Items: []OrderItem{
		{ProductID: "p1", Price: 150000, Quantity: 2},
		{ProductID: "p2", Price: 45000, Quantity: 1},
	}}
	assert.Equal(t, int64(345000), o.ComputeTotal())
}

func TestComputeTotalEmpty(t *testing.T) {
	o := Order{}
	assert.Equal(t, int64(0), o.ComputeTotal())
}

func TestOnPaymentVerified(t *testing.T) {
	now := time.Now()
	o := Order{Status: OrderStatusPending, PaymentStatus: PaymentStatusPending}

	o.OnPaymentVerified("REF-123", now)

	assert.Equal(t, PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, OrderStatusConfirmed, o.Status)
	assert.Equal(t, "REF-123", o.PaymentRefID)
	assert.Equal(t, now, *o.PaidAt)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusShipped.IsTerminal())
}

func TestValidOrderStatus(t *testing.T) {
	assert.True(t, ValidOrderStatus("shipped"))
	assert.True(t, ValidOrderStatus("cancelled"))
	assert.False(t, ValidOrderStatus("expédiée"))
	assert.False(t, ValidOrderStatus(""))
}

func TestValidPaymentMethod(t *testing.T) {
	assert.True(t, ValidPaymentMethod("online"))
	assert.True(t, ValidPaymentMethod("cash"))
	assert.False(t, ValidPaymentMethod("crypto"))
}
