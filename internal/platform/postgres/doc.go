// Package postgres provides PostgreSQL-backed implementations of the lease
// queue, its dead-letter sink, and the label and thumbnail stores. It also
// owns the schema, applied with goose from embedded SQL migrations.
package postgres
