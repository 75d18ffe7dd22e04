package directory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var seedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSeededMemory(t *testing.T) {
	ctx := context.Background()
	m := NewSeededMemory(seedTime)

	u, found, err := m.UserByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, User{ID: 1, Name: "John Doe", Email: "john@example.com"}, u)

	_, found, err = m.UserByID(ctx, 999)
	require.NoError(t, err)
	require.False(t, found)

	all, err := m.SeatAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 9)
	require.Equal(t, "A-1-02", all[0].SeatID)
	require.Equal(t, "D-4-20", all[len(all)-1].SeatID)

	a, found, err := m.SeatAssignment(ctx, "A-1-08")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, SeatSold, a.Status)
	require.Equal(t, "Alice Johnson", a.UserName)
	require.Equal(t, seedTime.Add(-30*time.Minute), *a.ReservedAt)

	_, found, _ = m.SeatAssignment(ctx, "Z-9-99")
	require.False(t, found)

	byJohn, err := m.SeatAssignmentsByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, byJohn, 3)
	for _, a := range byJohn {
		require.Equal(t, SeatReserved, a.Status)
	}
}

func TestAddUserContinuesAfterSeed(t *testing.T) {
	ctx := context.Background()
	m := NewSeededMemory(seedTime)

	u, err := m.AddUser(ctx, CreateUserRequest{Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)
	require.Equal(t, 4, u.ID)

	got, found, err := m.UserByID(ctx, 4)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, u, got)
}

func TestAddUserRequiresNameAndEmail(t *testing.T) {
	m := NewMemory()
	for _, req := range []CreateUserRequest{
		{},
		{Name: "Bob"},
		{Email: "bob@example.com"},
		{Name: "  ", Email: "bob@example.com"},
	} {
		_, err := m.AddUser(context.Background(), req)
		require.ErrorIs(t, err, ErrInvalidUser, "%+v", req)
	}
}

func TestAddUserConcurrentIDsAreUnique(t *testing.T) {
	m := NewMemory()
	const n = 50
	ids := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := m.AddUser(context.Background(), CreateUserRequest{Name: "x", Email: "x@y"})
			if err == nil {
				ids <- u.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	require.Len(t, seen, n)
}

func TestUserCacheKey(t *testing.T) {
	require.Equal(t, "user:42", UserCacheKey(42))
}
