// Package eventqueue implements the bounded, multi-producer/single-consumer
// queue used as the substrate for every subscription fan-out in ChainGraph
// (spec §4.2): execution event subscriptions and flow-mutation event
// subscriptions alike are each backed by one Queue. Publish never blocks —
// a full queue drops its oldest entry and counts the drop — because node
// execution must never stall on a slow subscriber.
package eventqueue
