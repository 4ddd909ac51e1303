package collector

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, c *Collector, name string) []*dto.Metric {
	families, err := c.Registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() == name {
			return family.GetMetric()
		}
	}

	return nil
}

func TestCollector_UpdateAndIncrement(t *testing.T) {
	var initialized bool
	collectedValue := 3.0

	c := New()
	require.NoError(t, c.RegisterCollection(NewCollection("wallet",
		WithMetric(NewMetric("balance",
			WithType(Gauge),
			WithHelp("Balance per account."),
			WithLabels("account"),
			WithInitFunc(func() { initialized = true }),
		)),
		WithMetric(NewMetric("violations_total",
			WithType(Counter),
			WithHelp("Integrity violations."),
		)),
		WithMetric(NewMetric("accounts",
			WithType(Gauge),
			WithCollectFunc(func() (float64, []string) { return collectedValue, nil }),
		)),
	)))
	require.True(t, initialized)

	require.NoError(t, c.Update("wallet", "balance", 100, "0"))
	require.NoError(t, c.Update("wallet", "balance", 50, "0"))
	require.NoError(t, c.Update("wallet", "balance", 7, "1"))

	balances := gather(t, c, "wallet_balance")
	require.Len(t, balances, 2)
	require.Equal(t, "0", balances[0].GetLabel()[0].GetValue())
	require.Equal(t, 50.0, balances[0].GetGauge().GetValue())
	require.Equal(t, 7.0, balances[1].GetGauge().GetValue())

	require.NoError(t, c.Increment("wallet", "violations_total"))
	require.NoError(t, c.Update("wallet", "violations_total", 2))
	require.Equal(t, 3.0, gather(t, c, "wallet_violations_total")[0].GetCounter().GetValue())

	c.Collect()
	require.Equal(t, 3.0, gather(t, c, "wallet_accounts")[0].GetGauge().GetValue())
	collectedValue = 4
	c.Collect()
	require.Equal(t, 4.0, gather(t, c, "wallet_accounts")[0].GetGauge().GetValue())
}

func TestCollector_Errors(t *testing.T) {
	c := New()
	collection := NewCollection("wallet", WithMetric(NewMetric("balance", WithLabels("account"))))
	require.NoError(t, c.RegisterCollection(collection))
	require.Error(t, c.RegisterCollection(collection))

	require.ErrorIs(t, c.Update("wallet", "balance", 1), ErrLabelMismatch)
	require.ErrorIs(t, c.Increment("wallet", "balance", "0", "1"), ErrLabelMismatch)
	require.ErrorIs(t, c.Update("wallet", "unknown", 1), ErrUnknownMetric)
	require.ErrorIs(t, c.Increment("signer", "balance", "0"), ErrUnknownMetric)
}
