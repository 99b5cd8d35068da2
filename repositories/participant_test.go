package repositories

import (
	"chat-relay/clock"
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func names(participants []domain.Participant) []string {
	return lo.Map(participants, func(p domain.Participant, _ int) string { return p.Name })
}

func TestParticipantRepository_Join(t *testing.T) {
	req := require.New(t)
	c := clock.Fake(epoch)
	repository := NewParticipantRepository(openDB(t), slog.Default(), c)

	// When ana joins
	participant, err := repository.Join("ana")
	req.NoError(err)
	req.Equal(domain.Participant{Name: "ana", LastSeen: epoch}, participant)

	// Then a second join with the same name is rejected
	_, err = repository.Join("ana")
	req.ErrorIs(err, errors.ErrAlreadyExists)

	// And another name is accepted
	_, err = repository.Join("bea")
	req.NoError(err)

	participants, err := repository.List()
	req.NoError(err)
	req.ElementsMatch([]string{"ana", "bea"}, names(participants))
}

func TestParticipantRepository_Join_Concurrent(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openDB(t), slog.Default(), clock.Fake(epoch))

	var wg sync.WaitGroup
	var succeeded, rejected atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repository.Join("ana")
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.ErrAlreadyExists == err:
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	req.Equal(int32(1), succeeded.Load())
	req.Equal(int32(9), rejected.Load())
}

func TestParticipantRepository_Heartbeat(t *testing.T) {
	req := require.New(t)
	c := clock.Fake(epoch)
	repository := NewParticipantRepository(openDB(t), slog.Default(), c)
	_, err := repository.Join("ana")
	req.NoError(err)

	// When time moves and ana heartbeats
	c.Advance(5 * time.Second)
	req.NoError(repository.Heartbeat("ana"))

	participant, err := repository.Get("ana")
	req.NoError(err)
	req.Equal(epoch.Add(5*time.Second), participant.LastSeen)
}

func TestParticipantRepository_Heartbeat_StrictlyIncreases(t *testing.T) {
	req := require.New(t)
	c := clock.Fake(epoch)
	repository := NewParticipantRepository(openDB(t), slog.Default(), c)
	_, err := repository.Join("ana")
	req.NoError(err)

	// Given a clock that does not move
	req.NoError(repository.Heartbeat("ana"))
	first, err := repository.Get("ana")
	req.NoError(err)
	req.True(first.LastSeen.After(epoch))

	// Given a clock that went backwards
	c.Advance(-time.Minute)
	req.NoError(repository.Heartbeat("ana"))
	second, err := repository.Get("ana")
	req.NoError(err)
	req.True(second.LastSeen.After(first.LastSeen))
}

func TestParticipantRepository_Heartbeat_Unknown(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openDB(t), slog.Default(), clock.Fake(epoch))

	req.ErrorIs(repository.Heartbeat("ghost"), errors.ErrNotFound)

	// Then nothing has been created
	participants, err := repository.List()
	req.NoError(err)
	req.Empty(participants)

	_, err = repository.Get("ghost")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestParticipantRepository_Stale(t *testing.T) {
	req := require.New(t)
	c := clock.Fake(epoch)
	repository := NewParticipantRepository(openDB(t), slog.Default(), c)

	_, err := repository.Join("old")
	req.NoError(err)
	c.Advance(10 * time.Second)
	_, err = repository.Join("fresh")
	req.NoError(err)

	// Strictly before the cutoff only
	stale, err := repository.Stale(epoch)
	req.NoError(err)
	req.Empty(stale)

	stale, err = repository.Stale(epoch.Add(time.Second))
	req.NoError(err)
	req.Equal([]string{"old"}, names(stale))
}

func TestParticipantRepository_EvictStaleBefore(t *testing.T) {
	req := require.New(t)
	c := clock.Fake(epoch)
	repository := NewParticipantRepository(openDB(t), slog.Default(), c)

	_, err := repository.Join("x")
	req.NoError(err)
	_, err = repository.Join("y")
	req.NoError(err)
	c.Advance(30 * time.Second)
	_, err = repository.Join("z")
	req.NoError(err)

	evicted, err := repository.EvictStaleBefore(c.Now().Add(-10 * time.Second))
	req.NoError(err)
	req.ElementsMatch([]string{"x", "y"}, evicted)

	participants, err := repository.List()
	req.NoError(err)
	req.Equal([]string{"z"}, names(participants))

	// Then the evicted name can join again
	_, err = repository.Join("x")
	req.NoError(err)
}

func TestParticipantRepository_Evict_KeepsRefreshedParticipant(t *testing.T) {
	req := require.New(t)
	c := clock.Fake(epoch)
	repository := NewParticipantRepository(openDB(t), slog.Default(), c)

	_, err := repository.Join("ana")
	req.NoError(err)
	_, err = repository.Join("bea")
	req.NoError(err)
	c.Advance(time.Minute)

	// Given a scan observing both as stale
	observed, err := repository.Stale(c.Now().Add(-10 * time.Second))
	req.NoError(err)
	req.Len(observed, 2)

	// When ana heartbeats between the scan and the delete
	req.NoError(repository.Heartbeat("ana"))

	// Then only bea is evicted
	evicted, err := repository.Evict(observed)
	req.NoError(err)
	req.Equal([]string{"bea"}, evicted)

	participant, err := repository.Get("ana")
	req.NoError(err)
	req.Equal(c.Now(), participant.LastSeen)
}

func TestParticipantRepository_Evict_InBatches(t *testing.T) {
	req := require.New(t)
	c := clock.Fake(epoch)
	repository := NewParticipantRepository(openDB(t), slog.Default(), c)
	repository.evictBatchSize = 2

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		_, err := repository.Join(name)
		req.NoError(err)
	}
	c.Advance(time.Minute)
	observed, err := repository.Stale(c.Now().Add(-10 * time.Second))
	req.NoError(err)
	req.Len(observed, 5)

	// A refresh in the middle batch only spares that participant
	req.NoError(repository.Heartbeat("c"))

	evicted, err := repository.Evict(observed)
	req.NoError(err)
	req.ElementsMatch([]string{"a", "b", "d", "e"}, evicted)

	participants, err := repository.List()
	req.NoError(err)
	req.Equal([]string{"c"}, names(participants))
}

func TestParticipantRepository_Evict_LargeBacklog(t *testing.T) {
	req := require.New(t)
	// A small memtable keeps Badger's per-transaction limit well below the backlog
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithMemTableSize(1 << 20).
		WithValueThreshold(1 << 10).
		WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	c := clock.Fake(epoch)
	repository := NewParticipantRepository(db, slog.Default(), c)
	const backlog = 3000
	for i := 0; i < backlog; i++ {
		_, err = repository.Join(fmt.Sprintf("p%04d", i))
		req.NoError(err)
	}
	c.Advance(time.Minute)

	evicted, err := repository.EvictStaleBefore(c.Now().Add(-10 * time.Second))
	req.NoError(err)
	req.Len(evicted, backlog)

	participants, err := repository.List()
	req.NoError(err)
	req.Empty(participants)
}

func TestParticipantRepository_Evict_AlreadyGone(t *testing.T) {
	req := require.New(t)
	repository := NewParticipantRepository(openDB(t), slog.Default(), clock.Fake(epoch))

	evicted, err := repository.Evict([]domain.Participant{{Name: "ghost", LastSeen: epoch}})
	req.NoError(err)
	req.Empty(evicted)

	evicted, err = repository.Evict(nil)
	req.NoError(err)
	req.Empty(evicted)
}

func TestParticipantRepository_StorageUnavailable(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	repository := NewParticipantRepository(db, slog.Default(), clock.Fake(epoch))
	req.NoError(db.Close())

	_, err = repository.Join("ana")
	req.ErrorIs(err, errors.ErrStorageUnavailable)

	_, err = repository.List()
	req.ErrorIs(err, errors.ErrStorageUnavailable)
}
