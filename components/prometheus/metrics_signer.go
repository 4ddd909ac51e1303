package prometheus

import (
	"context"
	"time"

	"github.com/iotaledger/iota-wallet/components/prometheus/collector"
	"github.com/iotaledger/iota-wallet/pkg/signing"
)

const (
	signerNamespace = "signer"

	registered         = "registered"
	ready              = "ready"
	ledgerSessionState = "ledger_session_state"

	statusTimeout = time.Second
)

var SignerMetrics = collector.NewCollection(signerNamespace,
	collector.WithMetric(collector.NewMetric(registered,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Number of signer types with an installed signer."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			return float64(len(deps.Registry.Types())), nil
		}),
	)),
	collector.WithMetric(collector.NewMetric(ready,
		collector.WithType(collector.Gauge),
		collector.WithHelp("Whether the signer used for new accounts is ready (1) or not (0)."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			return signerReady(), nil
		}),
	)),
	collector.WithMetric(collector.NewMetric(ledgerSessionState,
		collector.WithType(collector.Gauge),
		collector.WithHelp("State of the session with the Ledger device."),
		collector.WithCollectFunc(func() (metricValue float64, labelValues []string) {
			if deps.LedgerSigner == nil {
				return 0, nil
			}

			return float64(deps.LedgerSigner.State()), nil
		}),
	)),
)

func signerReady() float64 {
	signerType, err := signing.SignerTypeFromString(ParamsMetrics.ReadinessSigner)
	if err != nil {
		return 0
	}

	signer, err := deps.Registry.Signer(signerType)
	if err != nil {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	status, err := signer.Status(ctx)
	if err != nil || !status.IsReady() {
		return 0
	}

	return 1
}
