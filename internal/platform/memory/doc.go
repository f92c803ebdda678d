// Package memory provides in-process implementations of the store
// interfaces. They back single-process deployments and tests; state is lost
// when the process exits.
//
// Every store copies values on the way in and out so callers can never
// mutate stored state by accident.
package memory
