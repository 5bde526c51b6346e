package metrics

// Prometheus metric namespaces
const (
	namespaceMachine = "tx_machine"
	namespaceTracker = "ritual_tracker"
)
