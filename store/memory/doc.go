// Package memory is an in-process store.Store backed by plain maps, used
// for tests and single-process deployments (grounded in the teacher's
// store/memory in-process checkpoint backend).
package memory
