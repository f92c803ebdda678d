// Package app assembles the pipeline from configuration. The server, the
// standalone worker and the operator CLI share it so every process selects
// the same queue, stores and engine for a given config.
package app
