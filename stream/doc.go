// Package stream implements MultiChannel, the one-producer/many-consumer
// streaming primitive wired between stream ports by the execution engine
// (spec §4.5). Each consumer owns an independent cursor so a slow reader
// never loses items; the producer is backpressured once the items the
// slowest consumer has not yet read reach the high-water mark.
package stream
