package app

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/phrazzld/imglabel/internal/config"
)

// ErrProcessLocalBackend is returned when a process that has to see another
// process's state is configured with an in-memory backend.
var ErrProcessLocalBackend = errors.New("in-memory backend is private to this process")

// RequireSharedQueue fails unless the queue lives outside the process. The
// operator CLI needs this to see the queue the server and workers use.
func RequireSharedQueue(cfg *config.Config) error {
	return requireShared(map[string]string{"queue.backend": cfg.Queue.Backend})
}

// RequireSharedBackends fails unless the queue, the result stores and the
// object store all live outside the process. A standalone worker needs all
// three: it reads uploads written by the server and writes results the server
// serves.
func RequireSharedBackends(cfg *config.Config) error {
	return requireShared(map[string]string{
		"queue.backend":        cfg.Queue.Backend,
		"storage.backend":      cfg.Storage.Backend,
		"object_store.backend": cfg.ObjectStore.Backend,
	})
}

func requireShared(backends map[string]string) error {
	var local []string
	for key, backend := range backends {
		if backend == "memory" {
			local = append(local, key)
		}
	}
	if len(local) == 0 {
		return nil
	}
	slices.Sort(local)
	return fmt.Errorf("%w: %s set to memory", ErrProcessLocalBackend, strings.Join(local, ", "))
}
