package daemon

// Please add the dependencies if you add your own priority here.
// Otherwise investigating deadlocks at shutdown is much more complicated.

const (
	PriorityWallet  = iota // no dependencies
	PriorityMetrics        // depends on Wallet
)
