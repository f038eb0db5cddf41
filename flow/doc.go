// Package flow implements ChainGraph's node/port/edge data model and the
// value-transfer semantics the execution engine relies on (spec §3, §4.1,
// §4.3): typed ports with schema-based compatibility and coercion, edges
// connecting them, and the immutable Snapshot taken at execution-creation
// time that the engine schedules against.
package flow
