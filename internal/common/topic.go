package common

const (
	DepletionTopic       = "badge-depletion"
	ReconcileFailedTopic = "badge-reconcile-failed"
)
