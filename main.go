package main

import (
	"github.com/iotaledger/iota-wallet/components/app"
)

func main() {
	app.App().Run()
}
