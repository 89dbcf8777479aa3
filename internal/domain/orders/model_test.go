package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/core/apperror"
	"palmledger/internal/core/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to DeliveryStatus
		want     bool
	}{
		{DeliveryPending, DeliveryPartial, true},
		{DeliveryPending, DeliveryDelivered, true},
		{DeliveryPending, DeliveryCancelled, true},
		{DeliveryPartial, DeliveryPartial, true},
		{DeliveryPartial, DeliveryDelivered, true},
		{DeliveryPartial, DeliveryCancelled, true},
		{DeliveryPending, DeliveryPending, false},
		{DeliveryPartial, DeliveryPending, false},
		{DeliveryDelivered, DeliveryCancelled, false},
		{DeliveryDelivered, DeliveryPartial, false},
		{DeliveryCancelled, DeliveryPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestDeliveryStatus_Terminal(t *testing.T) {
	assert.True(t, DeliveryDelivered.IsTerminal())
	assert.True(t, DeliveryCancelled.IsTerminal())
	assert.False(t, DeliveryPartial.IsTerminal())
	assert.False(t, DeliveryStatus("SHIPPED").IsValid())
}

func TestRecompute_RoundsLineTotalsToCents(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{Description: "Palm oil", Quantity: types.MustMoney("10.125"), UnitPrice: types.MustMoney("1.25")},
		{Description: "Kernel", Quantity: types.MustMoney("2"), UnitPrice: types.MustMoney("3.10")},
	}}
	o.Recompute(types.MustMoney("5"))

	assert.Equal(t, "12.66", o.Items[0].LineTotal.StringFixed(2))
	assert.True(t, o.Items[0].LineTotal.Equal(types.MustMoney("12.66")))
	assert.True(t, o.TotalAmount.Equal(types.MustMoney("18.86")))
	assert.True(t, o.BalanceDue.Equal(types.MustMoney("13.86")))
}

func TestOrderItem_ValidateScale(t *testing.T) {
	it := OrderItem{Description: "Palm oil", Quantity: types.MustMoney("1.0005"), UnitPrice: types.MustMoney("2")}
	err := it.Validate(0)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	it = OrderItem{Description: "Palm oil", Quantity: types.MustMoney("1"), UnitPrice: types.MustMoney("2.001")}
	assert.True(t, apperror.HasCode(it.Validate(0), apperror.CodeValidation))

	it = OrderItem{Description: "Palm oil", Quantity: types.MustMoney("1.5"), UnitPrice: types.MustMoney("2.25")}
	assert.NoError(t, it.Validate(0))
}

func TestPayment_ValidateRejectsFractionalCents(t *testing.T) {
	p := Payment{Amount: types.MustMoney("0.001")}
	err := p.Validate()
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	p = Payment{Amount: types.MustMoney("0.01")}
	require.NoError(t, p.Validate())
	assert.Equal(t, PaymentCash, p.Method)
}
