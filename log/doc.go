// Package log provides the structured logging interface the execution
// engine and store backends write to (ambient stack, carried from the
// teacher's own logging package regardless of the spec's feature
// non-goals). A DefaultLogger wraps the standard library; GologLogger
// adapts kataras/golog for structured, leveled output.
package log
