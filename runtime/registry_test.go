package runtime

import (
	"estate-live/contract"
	"estate-live/errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newHandle() contract.ConnectionID {
	return contract.ConnectionID(uuid.NewString())
}

func TestRegistry_Register_And_Resolve(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(KeepOldest)
	userID := uuid.NewString()
	handle := newHandle()

	// Given no user is registered
	req.Zero(registry.Len())
	_, ok := registry.Resolve(userID)
	req.False(ok)

	// When the user announces itself
	stored := registry.Register(userID, handle)

	// Then it resolves to its handle
	req.True(stored)
	resolved, ok := registry.Resolve(userID)
	req.True(ok)
	req.Equal(handle, resolved)
	req.Equal([]string{userID}, registry.Users())
}

func TestRegistry_KeepOldest_Ignores_Second_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(KeepOldest)
	first, second := newHandle(), newHandle()

	// Given a user registered on a first connection
	req.True(registry.Register("42", first))

	// When the same user announces on a second connection
	stored := registry.Register("42", second)

	// Then the first connection stays the target
	req.False(stored)
	resolved, _ := registry.Resolve("42")
	req.Equal(first, resolved)

	// And the disconnect of the second one does not remove the entry
	registry.Unregister(second)
	resolved, ok := registry.Resolve("42")
	req.True(ok)
	req.Equal(first, resolved)
}

func TestRegistry_ReplaceExisting_Points_To_Newest_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(ReplaceExisting)
	first, second := newHandle(), newHandle()

	req.True(registry.Register("42", first))
	req.True(registry.Register("42", second))

	resolved, _ := registry.Resolve("42")
	req.Equal(second, resolved)
	req.Equal(1, registry.Len())

	// When the stale connection disconnects, the newest entry survives
	registry.Unregister(first)
	resolved, ok := registry.Resolve("42")
	req.True(ok)
	req.Equal(second, resolved)

	registry.Unregister(second)
	_, ok = registry.Resolve("42")
	req.False(ok)
}

func TestRegistry_Same_Handle_Announcing_Twice_Is_A_Noop(t *testing.T) {
	req := require.New(t)
	for _, policy := range []DuplicatePolicy{KeepOldest, ReplaceExisting} {
		registry := NewRegistry(policy)
		handle := newHandle()
		req.True(registry.Register("7", handle))
		req.False(registry.Register("7", handle))
		req.Equal(1, registry.Len())
	}
}

func TestRegistry_Handle_Switching_Identity_Releases_Previous_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(KeepOldest)
	handle := newHandle()

	req.True(registry.Register("alice", handle))
	req.True(registry.Register("bob", handle))

	_, ok := registry.Resolve("alice")
	req.False(ok)
	resolved, ok := registry.Resolve("bob")
	req.True(ok)
	req.Equal(handle, resolved)

	registry.Unregister(handle)
	req.Zero(registry.Len())
}

func TestRegistry_Unregister_Unknown_Handle_Is_A_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(KeepOldest)
	req.True(registry.Register("42", newHandle()))

	registry.Unregister(newHandle())

	req.Equal(1, registry.Len())
}

// Random announce/disconnect sequences: at most one entry per user, and a user
// resolves exactly when the model says it is registered.
func TestRegistry_Uniqueness_Over_Random_Sequences(t *testing.T) {
	req := require.New(t)
	users := []string{"u1", "u2", "u3", "u4"}
	handles := []contract.ConnectionID{"h1", "h2", "h3", "h4", "h5", "h6"}

	for _, policy := range []DuplicatePolicy{KeepOldest, ReplaceExisting} {
		rnd := rand.New(rand.NewSource(int64(len(policy))))
		registry := NewRegistry(policy)
		model := map[string]contract.ConnectionID{}

		for step := 0; step < 2000; step++ {
			handle := handles[rnd.Intn(len(handles))]
			if rnd.Intn(3) == 0 {
				registry.Unregister(handle)
				for u, h := range model {
					if h == handle {
						delete(model, u)
					}
				}
			} else {
				user := users[rnd.Intn(len(users))]
				registry.Register(user, handle)
				current, ok := model[user]
				if !ok || (policy == ReplaceExisting && current != handle) {
					for u, h := range model {
						if h == handle && u != user {
							delete(model, u)
						}
					}
					model[user] = handle
				}
			}

			req.Equal(len(model), registry.Len(), "policy %s step %d", policy, step)
			for _, u := range users {
				resolved, ok := registry.Resolve(u)
				expected, registered := model[u]
				req.Equal(registered, ok, "policy %s step %d user %s", policy, step, u)
				if registered {
					req.Equal(expected, resolved)
				}
			}
			seen := map[contract.ConnectionID]bool{}
			for _, u := range registry.Users() {
				h, _ := registry.Resolve(u)
				req.False(seen[h], "handle %s owned by two users", h)
				seen[h] = true
			}
		}
	}
}

func TestRegistry_Concurrent_Access(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(ReplaceExisting)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle := newHandle()
			userID := uuid.NewString()
			registry.Register(userID, handle)
			_, _ = registry.Resolve(userID)
			registry.Unregister(handle)
		}()
	}
	wg.Wait()

	req.Zero(registry.Len())
}

func TestParseDuplicatePolicy(t *testing.T) {
	req := require.New(t)

	policy, err := ParseDuplicatePolicy("")
	req.NoError(err)
	req.Equal(KeepOldest, policy)

	policy, err = ParseDuplicatePolicy("replace_existing")
	req.NoError(err)
	req.Equal(ReplaceExisting, policy)

	_, err = ParseDuplicatePolicy("newest")
	req.ErrorIs(err, errors.ErrUnknownPolicy)
}
