package prometheus

// The Prometheus component exports the metrics of the wallet and its signers.
// All metrics should be defined in metrics_namespace.go files with different namespace for each new collection.
// Metrics naming should follow the guidelines from: https://prometheus.io/docs/practices/naming/
// In short:
// 	all metrics should be in base units, do not mix units,
// 	add suffix describing the unit,
// 	use 'total' suffix for accumulating counter

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/iota-wallet/components/prometheus/collector"
	"github.com/iotaledger/iota-wallet/pkg/daemon"
	"github.com/iotaledger/iota-wallet/pkg/signing"
	"github.com/iotaledger/iota-wallet/pkg/signing/ledger"
	"github.com/iotaledger/iota-wallet/pkg/wallet"
)

func init() {
	Component = &app.Component{
		Name:     "Prometheus",
		DepsFunc: func(cDeps dependencies) { deps = cDeps },
		Params:   params,
		Run:      run,
		IsEnabled: func(container *dig.Container) bool {
			if err := container.Provide(createCollector); err != nil {
				panic(ierrors.Wrap(err, "failed to provide collector"))
			}

			return ParamsMetrics.Enabled
		},
	}
}

var (
	Component *app.Component
	deps      dependencies

	server *http.Server
)

type dependencies struct {
	dig.In

	Wallet       *wallet.Wallet
	Registry     *signing.Registry
	LedgerSigner *ledger.Signer `optional:"true"`

	Collector *collector.Collector
}

func run() error {
	Component.LogInfo("Starting Prometheus exporter ...")

	if ParamsMetrics.GoMetrics {
		deps.Collector.Registry.MustRegister(collectors.NewGoCollector())
	}
	if ParamsMetrics.ProcessMetrics {
		deps.Collector.Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	if err := registerMetrics(); err != nil {
		return err
	}

	return Component.Daemon().BackgroundWorker("Prometheus exporter", func(ctx context.Context) {
		Component.LogInfo("Starting Prometheus exporter ... done")

		engine := echo.New()
		engine.HideBanner = true
		engine.Use(middleware.Recover())

		engine.GET("/metrics", func(c echo.Context) error {
			deps.Collector.Collect()

			handler := promhttp.HandlerFor(
				deps.Collector.Registry,
				promhttp.HandlerOpts{
					EnableOpenMetrics: true,
				},
			)
			if ParamsMetrics.PromhttpMetrics {
				handler = promhttp.InstrumentMetricHandler(deps.Collector.Registry, handler)
			}
			handler.ServeHTTP(c.Response().Writer, c.Request())

			return nil
		})
		bindAddr := ParamsMetrics.BindAddress
		server = &http.Server{Addr: bindAddr, Handler: engine, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}

		go func() {
			Component.LogInfof("You can now access the Prometheus exporter using: http://%s/metrics", bindAddr)
			if err := server.ListenAndServe(); err != nil && !ierrors.Is(err, http.ErrServerClosed) {
				Component.LogErrorf("Stopping Prometheus exporter due to an error: %s", err)
			}
		}()

		<-ctx.Done()
		Component.LogInfo("Stopping Prometheus exporter ...")

		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := server.Shutdown(shutdownCtx); err != nil {
				Component.LogError(err.Error())
			}
			cancel()
		}
		Component.LogInfo("Stopping Prometheus exporter ... done")
	}, daemon.PriorityMetrics)
}

func createCollector() *collector.Collector {
	return collector.New()
}

func registerMetrics() error {
	for _, collection := range []*collector.Collection{WalletMetrics, SignerMetrics} {
		if err := deps.Collector.RegisterCollection(collection); err != nil {
			return ierrors.Wrapf(err, "failed to register %s metrics", collection.Name)
		}
	}

	return nil
}

func logUpdateError(err error) {
	if err != nil {
		Component.LogWarnf("Failed to update metric: %s", err)
	}
}
