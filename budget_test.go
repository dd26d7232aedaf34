package x402

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetManager_InvalidConfig(t *testing.T) {
	_, err := NewBudgetManager("not-a-number", nil)
	assert.Error(t, err)

	_, err = NewBudgetManager("-5", nil)
	assert.Error(t, err)

	_, err = NewBudgetManager("", &RateLimits{MaxAmountPerHour: "bogus"})
	assert.Error(t, err)
}

func TestBudgetManager_PerPaymentLimit(t *testing.T) {
	bm, err := NewBudgetManager("100000", nil)
	require.NoError(t, err)

	assert.NoError(t, bm.CanSpend(big.NewInt(100000), "mcp://tool/a"))
	assert.ErrorIs(t, bm.CanSpend(big.NewInt(100001), "mcp://tool/a"), ErrAmountExceedsLimit)
}

func TestBudgetManager_Unlimited(t *testing.T) {
	bm, err := NewBudgetManager("", nil)
	require.NoError(t, err)

	huge, _ := new(big.Int).SetString("1000000000000000000000", 10)
	assert.NoError(t, bm.CanSpend(huge, "mcp://tool/a"))
}

func TestBudgetManager_RateLimit(t *testing.T) {
	bm, err := NewBudgetManager("", &RateLimits{MaxPaymentsPerMinute: 2})
	require.NoError(t, err)

	amount := big.NewInt(100)

	require.NoError(t, bm.CanSpend(amount, "mcp://tool/a"))
	bm.RecordPayment(amount, "mcp://tool/a")
	require.NoError(t, bm.CanSpend(amount, "mcp://tool/a"))
	bm.RecordPayment(amount, "mcp://tool/a")

	assert.ErrorIs(t, bm.CanSpend(amount, "mcp://tool/a"), ErrRateLimitExceeded)
}

func TestBudgetManager_HourlyBudget(t *testing.T) {
	bm, err := NewBudgetManager("", &RateLimits{MaxAmountPerHour: "250"})
	require.NoError(t, err)

	require.NoError(t, bm.CanSpend(big.NewInt(200), "mcp://tool/a"))
	bm.RecordPayment(big.NewInt(200), "mcp://tool/a")

	assert.NoError(t, bm.CanSpend(big.NewInt(50), "mcp://tool/a"))
	assert.ErrorIs(t, bm.CanSpend(big.NewInt(51), "mcp://tool/a"), ErrBudgetExceeded)
}

func TestBudgetManager_Metrics(t *testing.T) {
	bm, err := NewBudgetManager("", &RateLimits{MaxPaymentsPerMinute: 10})
	require.NoError(t, err)

	bm.RecordPayment(big.NewInt(100), "mcp://tool/a")
	bm.RecordPayment(big.NewInt(250), "mcp://tool/b")

	metrics := bm.GetMetrics()
	assert.Equal(t, "350", metrics.TotalSpent)
	assert.Equal(t, "350", metrics.HourlySpent)
	assert.Equal(t, 2, metrics.PaymentCount)
	assert.Equal(t, 2, metrics.MinuteCount)
}

func TestPaymentRecorder(t *testing.T) {
	recorder := NewPaymentRecorder()

	var handled []PaymentEventType
	recorder.OnEvent(func(event PaymentEvent) {
		handled = append(handled, event.Type)
	})

	recorder.Record(PaymentEvent{Type: EventPaymentRequired, ToolName: "get_weather"})
	recorder.Record(PaymentEvent{Type: EventPaymentSettled, ToolName: "get_weather", TxHash: "0xabc"})

	events := recorder.Events()
	require.Len(t, events, 2)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, []PaymentEventType{EventPaymentRequired, EventPaymentSettled}, handled)

	settled := recorder.EventsByType(EventPaymentSettled)
	require.Len(t, settled, 1)
	assert.Equal(t, "0xabc", settled[0].TxHash)

	assert.Empty(t, recorder.EventsByType(EventPaymentFailed))
}
