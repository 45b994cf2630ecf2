package runtime

import (
	"estate-live/contract"
	"estate-live/errors"
	"fmt"
	"sort"
	"sync"
)

// DuplicatePolicy decides what happens when a user announces itself on a second
// connection while a first one is still registered.
type DuplicatePolicy string

const (
	// KeepOldest ignores the second announce: the first connection stays the
	// unicast target until it disconnects.
	KeepOldest DuplicatePolicy = "keep_oldest"
	// ReplaceExisting points the user at the newest connection.
	ReplaceExisting DuplicatePolicy = "replace_existing"
)

func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", KeepOldest:
		return KeepOldest, nil
	case ReplaceExisting:
		return ReplaceExisting, nil
	}
	return "", fmt.Errorf("%w: %q", errors.ErrUnknownPolicy, s)
}

var _ contract.IRegistry = (*Registry)(nil)

// Registry maps a user identity to at most one live connection handle.
// Register, Resolve and Unregister are serialized by a single lock so that a
// disconnect never interleaves with a concurrent lookup of the same entry.
type Registry struct {
	mu       sync.RWMutex
	policy   DuplicatePolicy
	byUser   map[string]contract.ConnectionID // user -> handle
	byHandle map[contract.ConnectionID]string // handle -> user, disconnects carry no identity
}

func NewRegistry(policy DuplicatePolicy) *Registry {
	if policy == "" {
		policy = KeepOldest
	}
	return &Registry{
		policy:   policy,
		byUser:   make(map[string]contract.ConnectionID),
		byHandle: make(map[contract.ConnectionID]string),
	}
}

// Register stores the handle for the user and reports whether it did.
// Under KeepOldest an already registered user is left untouched.
func (r *Registry) Register(userID string, handle contract.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.byUser[userID]; ok {
		if r.policy == KeepOldest || current == handle {
			return false
		}
		delete(r.byHandle, current)
	}
	// A handle announcing a new identity gives up the previous one.
	if previous, ok := r.byHandle[handle]; ok && previous != userID {
		delete(r.byUser, previous)
	}
	r.byUser[userID] = handle
	r.byHandle[handle] = userID
	return true
}

func (r *Registry) Resolve(userID string) (contract.ConnectionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.byUser[userID]
	return handle, ok
}

// Unregister removes the entry owning the handle. Unknown handles are ignored:
// a connection that never announced can still disconnect.
func (r *Registry) Unregister(handle contract.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byHandle[handle]
	if !ok {
		return
	}
	delete(r.byHandle, handle)
	if r.byUser[userID] == handle {
		delete(r.byUser, userID)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Users returns the registered identities sorted, for stats and debugging.
func (r *Registry) Users() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		out = append(out, userID)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry) Policy() DuplicatePolicy {
	return r.policy
}
