package exec

import "time"

// Default execution parameters (spec §4.4, §5, §6.6).
const (
	DefaultMaxConcurrency       = 2
	DefaultNodeTimeout          = 90 * time.Second
	DefaultFlowTimeout          = 300 * time.Second
	DefaultGracePeriod          = 5 * time.Second
	DefaultEventQueueCapacity   = 200
	DefaultSubscriptionCapacity = 200

	// DefaultPersistBatchSize / DefaultPersistFlushInterval bound the
	// write-behind batching of event persistence (spec §6.5).
	DefaultPersistBatchSize     = 64
	DefaultPersistFlushInterval = 100 * time.Millisecond
)

// Options configures one execution (spec §6.1 create()'s options struct).
type Options struct {
	MaxConcurrency int
	NodeTimeout    time.Duration
	FlowTimeout    time.Duration
	GracePeriod    time.Duration
	Debug          bool
	Breakpoints    []string
	// Owner attributes the execution for listRootsFor (spec §6.5).
	Owner string
	// ExternalEvent carries the triggering event payload for a
	// child execution spawned from an emitted event (spec §4.4).
	ExternalEvent any
}

// withDefaults fills zero-valued fields with the spec's stated defaults.
func (o Options) withDefaults() Options {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.NodeTimeout <= 0 {
		o.NodeTimeout = DefaultNodeTimeout
	}
	if o.FlowTimeout <= 0 {
		o.FlowTimeout = DefaultFlowTimeout
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}
	return o
}
