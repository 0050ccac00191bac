package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"sei-bridge/pkg/errs"
	"sei-bridge/pkg/types"
)

func TestRecorders(t *testing.T) {
	m := New(nil)

	m.RecordTransition(types.StateAwaitingDepositAddress, types.StateAwaitingSourceTransfer)
	m.RecordTransition(types.StateAwaitingSourceTransfer, types.StateAwaitingConfirmation)
	require.Equal(t, 1.0, testutil.ToFloat64(m.workflowState.WithLabelValues(string(types.StateAwaitingConfirmation))))
	require.Equal(t, 0.0, testutil.ToFloat64(m.workflowState.WithLabelValues(string(types.StateAwaitingSourceTransfer))))

	m.RecordStepFailure("submit transfer", errs.ValidationFailed)
	m.RecordStepFailure("submit transfer", "")
	require.Equal(t, 1.0, testutil.ToFloat64(m.workflowFailuresTotal.WithLabelValues("submit transfer", "UNKNOWN")))

	m.RecordBalance("destination", types.BalanceSnapshot{
		Denom:      "uausdc",
		Amount:     decimal.RequireFromString("2.5"),
		ObservedAt: time.Unix(1700000000, 0),
	})
	require.Equal(t, 2.5, testutil.ToFloat64(m.balanceAmount.WithLabelValues("destination", "uausdc")))

	m.RecordBalanceReadFailure("source")
	m.RecordBalanceReadFailure("source")
	require.Equal(t, 2.0, testutil.ToFloat64(m.balanceReadFailuresTotal.WithLabelValues("source")))

	m.RecordBlockHeight(1234)
	require.Equal(t, 1234.0, testutil.ToFloat64(m.blockHeight))

	m.RecordSessionEvent(types.RoleSource, "connected")
	require.Equal(t, 1.0, testutil.ToFloat64(m.sessionEventsTotal.WithLabelValues("source", "connected")))
}

func TestHandler(t *testing.T) {
	m := New(nil)
	m.RecordBlockHeight(77)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "sei_bridge_source_block_height 77"), body)
	require.Contains(t, body, "go_goroutines")
}
