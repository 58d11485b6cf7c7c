package models

import (
	"sync"
	"testing"

	"github.com/aukilabs/raido/spatial"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	session := NewSession(42, "client-a")
	require.Equal(t, uint32(42), session.ID)
	require.Equal(t, "client-a", session.ClientID)
	require.False(t, session.StartedAt.IsZero())

	_, err := uuid.Parse(session.SessionUUID)
	require.NoError(t, err)
	require.NotEqual(t, session.SessionUUID, NewSession(42, "client-a").SessionUUID)
}

func TestSessionSnapshot(t *testing.T) {
	session := NewSession(1, "")
	require.Zero(t, session.Snapshot().Frame)

	session.SetSnapshot(Snapshot{
		Frame:        12,
		Viewpoint:    spatial.NewVector3f(1, 2, 3),
		HasViewpoint: true,
	})

	snapshot := session.Snapshot()
	require.Equal(t, uint32(12), snapshot.Frame)
	require.True(t, snapshot.HasViewpoint)

	info := session.Info()
	require.Equal(t, session.SessionUUID, info.SessionUUID)
	require.Equal(t, uint32(12), info.Snapshot.Frame)
}

func TestSessionSnapshotConcurrency(t *testing.T) {
	session := NewSession(1, "")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)

		go func(frame uint32) {
			defer wg.Done()
			session.SetSnapshot(Snapshot{Frame: frame})
		}(uint32(i))

		go func() {
			defer wg.Done()
			session.Snapshot()
		}()
	}
	wg.Wait()
}

func TestSessionStore(t *testing.T) {
	var store SessionStore
	require.Zero(t, store.Count())
	require.Empty(t, store.List())

	a := store.New("a")
	b := store.New("b")
	c := store.New("c")
	require.Equal(t, 3, store.Count())

	t.Run("get", func(t *testing.T) {
		session, ok := store.Get(b.ID)
		require.True(t, ok)
		require.Equal(t, b, session)

		_, ok = store.Get(42)
		require.False(t, ok)
	})

	t.Run("list is ordered by id", func(t *testing.T) {
		require.Equal(t, []*Session{a, b, c}, store.List())
	})

	t.Run("remove reuses the id", func(t *testing.T) {
		store.Remove(b)
		require.Equal(t, 2, store.Count())

		_, ok := store.Get(b.ID)
		require.False(t, ok)

		store.Remove(b)
		require.Equal(t, 2, store.Count())

		d := store.New("d")
		require.Equal(t, b.ID, d.ID)
		require.NotEqual(t, b.SessionUUID, d.SessionUUID)
	})
}
