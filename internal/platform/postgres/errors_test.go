package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/imglabel/internal/store"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: sql.ErrNoRows, want: store.ErrNotFound},
		{name: "unique", err: &pgconn.PgError{Code: uniqueViolationCode}, want: store.ErrDuplicate},
		{name: "foreign key", err: &pgconn.PgError{Code: foreignKeyViolationCode}, want: store.ErrInvalidEntity},
		{name: "check", err: &pgconn.PgError{Code: checkViolationCode}, want: store.ErrInvalidEntity},
		{name: "not null", err: &pgconn.PgError{Code: notNullViolationCode}, want: store.ErrInvalidEntity},
		{name: "serialization", err: &pgconn.PgError{Code: serializationFailureCode}, want: store.ErrUnavailable},
		{name: "deadlock", err: &pgconn.PgError{Code: deadlockDetectedCode}, want: store.ErrUnavailable},
		{name: "connection class", err: &pgconn.PgError{Code: "08006"}, want: store.ErrUnavailable},
		{name: "admin shutdown", err: &pgconn.PgError{Code: adminShutdownCode}, want: store.ErrUnavailable},
		{name: "wrapped", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: uniqueViolationCode}), want: store.ErrDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, MapError(tt.err), tt.want)
		})
	}

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, MapError(nil))
	})

	t.Run("unmapped passes through", func(t *testing.T) {
		t.Parallel()
		orig := errors.New("boom")
		assert.Same(t, orig, MapError(orig))

		syntax := &pgconn.PgError{Code: "42601"}
		assert.Equal(t, error(syntax), MapError(syntax))
	})

	t.Run("context cancellation is not retried as unavailable", func(t *testing.T) {
		t.Parallel()
		assert.NotErrorIs(t, MapError(context.Canceled), store.ErrUnavailable)
	})
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: uniqueViolationCode}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: checkViolationCode}))
	assert.False(t, IsUniqueViolation(errors.New("other")))
}
