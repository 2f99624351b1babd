package metrics

// Registry holds every metric the dispatcher and listener update. One
// instance is constructed at startup and shared by every worker goroutine;
// every field is independently safe for concurrent use.
type Registry struct {
	AccessorsInFlight Gauge
	CacheBytesInUse   Gauge

	RequestsTotal          Counter
	ExecutableSpawnsTotal  Counter
	CacheInstallsTotal     Counter
	AdmissionRejectsTotal  Counter

	RequestDuration *Summary
}

// NewRegistry constructs a Registry with its summary metric initialized.
func NewRegistry() *Registry {
	return &Registry{
		RequestDuration: NewSummary(),
	}
}
