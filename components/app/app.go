package app

import (
	"go.uber.org/dig"

	"github.com/iotaledger/hive.go/app"
	"github.com/iotaledger/hive.go/app/components/profiling"
	"github.com/iotaledger/hive.go/app/components/shutdown"
	"github.com/iotaledger/iota-wallet/components/prometheus"
	"github.com/iotaledger/iota-wallet/components/wallet"
)

var (
	// Name of the app.
	Name = "iota-wallet"

	// Version of the app.
	Version = "0.1.0"
)

// App creates the wallet application. The providers run before any component is provided, wallet.ProvideBackends
// supplies the key value store and the ledger connector this way.
func App(providers ...func(c *dig.Container) error) *app.App {
	InitComponent.Provide = func(c *dig.Container) error {
		for _, provide := range providers {
			if err := provide(c); err != nil {
				return err
			}
		}

		return nil
	}

	return app.New(Name, Version,
		app.WithInitComponent(InitComponent),
		app.WithComponents(
			shutdown.Component,
			profiling.Component,
			wallet.Component,
			prometheus.Component,
		),
	)
}

var InitComponent *app.InitComponent

func init() {
	InitComponent = &app.InitComponent{
		Component: &app.Component{
			Name: "App",
		},
		NonHiddenFlags: []string{
			"config",
			"help",
			"version",
		},
	}
}
