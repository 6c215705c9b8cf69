package dataset

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestSlot_ReusesUntilTTLExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var loads atomic.Int32
	slot := NewSlot("numbers", func(context.Context) (int, error) {
		return int(loads.Add(1)), nil
	}, WithTTL(time.Hour), WithClock(clock.Now), WithLogger(quietLogger()))

	v, err := slot.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, clock.Now(), slot.LoadedAt())

	clock.Advance(59 * time.Minute)
	v, err = slot.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(time.Minute)
	v, err = slot.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int32(2), loads.Load())
}

func TestSlot_Invalidate(t *testing.T) {
	var loads atomic.Int32
	slot := NewSlot("numbers", func(context.Context) (int, error) {
		return int(loads.Add(1)), nil
	}, WithLogger(quietLogger()))

	_, err := slot.Get(context.Background())
	require.NoError(t, err)
	slot.Invalidate()
	assert.True(t, slot.LoadedAt().IsZero())

	v, err := slot.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestSlot_InvalidateDuringLoadDiscardsResult(t *testing.T) {
	var loads atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	slot := NewSlot("numbers", func(context.Context) (int, error) {
		n := int(loads.Add(1))
		if n == 1 {
			close(started)
			<-release
		}
		return n, nil
	}, WithLogger(quietLogger()))

	first := make(chan int)
	go func() {
		v, err := slot.Get(context.Background())
		assert.NoError(t, err)
		first <- v
	}()

	<-started
	slot.Invalidate()
	close(release)
	assert.Equal(t, 1, <-first)
	assert.True(t, slot.LoadedAt().IsZero())

	v, err := slot.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int32(2), loads.Load())
}

func TestSlot_ErrorKeepsPreviousSnapshot(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	boom := errors.New("boom")
	fail := false
	slot := NewSlot("numbers", func(context.Context) (int, error) {
		if fail {
			return 0, boom
		}
		return 7, nil
	}, WithTTL(time.Minute), WithClock(clock.Now), WithLogger(quietLogger()))

	_, err := slot.Get(context.Background())
	require.NoError(t, err)

	fail = true
	clock.Advance(2 * time.Minute)
	_, err = slot.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, slot.LoadedAt().IsZero())
}

func TestSlot_ConcurrentMissesLoadOnce(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	slot := NewSlot("slow", func(context.Context) ([]int, error) {
		loads.Add(1)
		<-release
		return []int{1, 2, 3}, nil
	}, WithLogger(quietLogger()))

	const callers = 20
	var wg sync.WaitGroup
	results := make([][]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := slot.Get(context.Background())
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return loads.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, r := range results {
		assert.Equal(t, []int{1, 2, 3}, r)
	}
}

func TestDataset_LoadsExports(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Streaming_History_Audio_2024.json"), []byte(`[
		{"ts": "2024-01-01T00:00:00Z", "ms_played": 1000, "master_metadata_track_name": "Song", "master_metadata_album_artist_name": "A"}
	]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Playlist1.json"), []byte(`{
		"playlists": [{"name": "Mine", "items": [{"track": {"trackName": "Song", "artistName": "A"}}]}]
	}`), 0o644))

	ds := New(Config{DataDir: dir}, WithLogger(quietLogger()))

	events, err := ds.Events(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)

	lib, err := ds.Playlists(context.Background())
	require.NoError(t, err)
	assert.True(t, lib.TrackSet().Contains("Song", "A"))

	ds.Invalidate()
	events, err = ds.Events(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestDataset_WatcherInvalidatesOnNewExport(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`[
			{"ts": "2024-01-01T00:00:00Z", "ms_played": 1000, "master_metadata_track_name": "Song", "master_metadata_album_artist_name": "A"}
		]`), 0o644))
	}
	write("Streaming_History_Audio_2023.json")

	ds := New(Config{DataDir: dir}, WithLogger(quietLogger()))
	events, err := ds.Events(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ds.StartWatcher(ctx))

	write("Streaming_History_Audio_2024.json")

	assert.Eventually(t, func() bool {
		events, err := ds.Events(context.Background())
		return err == nil && len(events) == 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDataset_WatcherIgnoresUnrelatedFiles(t *testing.T) {
	ds := New(Config{DataDir: "data"}, WithLogger(quietLogger()))
	assert.True(t, ds.isHistoryFile("data/Streaming_History_Audio_2020.json"))
	assert.False(t, ds.isHistoryFile("data/notes.txt"))
	assert.False(t, ds.isHistoryFile("data/Streaming_History_Video_2020.json"))
}

func TestDataset_StartWatcherMissingDir(t *testing.T) {
	ds := New(Config{DataDir: filepath.Join(t.TempDir(), "absent")}, WithLogger(quietLogger()))
	assert.Error(t, ds.StartWatcher(context.Background()))
}
