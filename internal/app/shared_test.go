package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireSharedQueue(t *testing.T) {
	cfg := memoryConfig()

	err := RequireSharedQueue(cfg)
	require.ErrorIs(t, err, ErrProcessLocalBackend)
	assert.Contains(t, err.Error(), "queue.backend")

	cfg.Queue.Backend = "postgres"
	assert.NoError(t, RequireSharedQueue(cfg), "memory stores do not matter to queue commands")
}

func TestRequireSharedBackends(t *testing.T) {
	tests := []struct {
		name    string
		queue   string
		storage string
		objects string
		wantErr string
	}{
		{name: "all memory", queue: "memory", storage: "memory", objects: "memory",
			wantErr: "object_store.backend, queue.backend, storage.backend set to memory"},
		{name: "memory stores", queue: "sqs", storage: "memory", objects: "memory",
			wantErr: "object_store.backend, storage.backend set to memory"},
		{name: "memory object store", queue: "postgres", storage: "postgres", objects: "memory",
			wantErr: "object_store.backend set to memory"},
		{name: "all shared", queue: "sqs", storage: "postgres", objects: "s3"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := memoryConfig()
			cfg.Queue.Backend = tc.queue
			cfg.Storage.Backend = tc.storage
			cfg.ObjectStore.Backend = tc.objects

			err := RequireSharedBackends(cfg)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrProcessLocalBackend)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
