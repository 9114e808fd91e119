package player_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radioteateonair/radiod/pkg/database/models"
	"github.com/radioteateonair/radiod/pkg/logging"
	"github.com/radioteateonair/radiod/pkg/player"
)

// fakeStream implements player.Stream with inspectable call counts
type fakeStream struct {
	mu         sync.Mutex
	startCalls int
	pauseCalls int
	closeCalls int
	startErr   error
	probeErr   error
	done       chan error
}

func newFakeStream() *fakeStream {
	return &fakeStream{done: make(chan error, 1)}
}

func (s *fakeStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCalls++
	return s.startErr
}

func (s *fakeStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseCalls++
	return nil
}

func (s *fakeStream) Probe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probeErr
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

func (s *fakeStream) Done() <-chan error { return s.done }

func (s *fakeStream) counts() (started, paused, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startCalls, s.pauseCalls, s.closeCalls
}

// fakeOpener implements player.StreamOpener. The first `failures` opens
// fail with a retryable network error; an optional gate blocks Open until
// released.
type fakeOpener struct {
	mu       sync.Mutex
	calls    int
	failures int
	gate     chan struct{}
	streams  []*fakeStream
}

func (o *fakeOpener) Open(ctx context.Context, url string) (player.Stream, error) {
	o.mu.Lock()
	o.calls++
	n := o.calls
	gate := o.gate
	o.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if n <= o.failures {
		return nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	}

	s := newFakeStream()
	o.mu.Lock()
	o.streams = append(o.streams, s)
	o.mu.Unlock()
	return s, nil
}

func (o *fakeOpener) openCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func (o *fakeOpener) lastStream() *fakeStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.streams) == 0 {
		return nil
	}
	return o.streams[len(o.streams)-1]
}

// fakeMetadata implements player.MetadataSource
type fakeMetadata struct {
	mu      sync.Mutex
	now     player.NowPlaying
	err     error
	fetches int
}

func (m *fakeMetadata) Fetch(ctx context.Context) (player.NowPlaying, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.err != nil {
		return player.NowPlaying{}, m.err
	}
	return m.now, nil
}

func (m *fakeMetadata) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// fakeNotifier records published snapshots
type fakeNotifier struct {
	mu        sync.Mutex
	published []player.NotificationSnapshot
	clears    int
}

func (n *fakeNotifier) Publish(snapshot player.NotificationSnapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, snapshot)
}

func (n *fakeNotifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clears++
}

func (n *fakeNotifier) last() (player.NotificationSnapshot, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.published) == 0 {
		return player.NotificationSnapshot{}, false
	}
	return n.published[len(n.published)-1], true
}

func (n *fakeNotifier) clearCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clears
}

// recordingRepo implements player.PlayerRepository in memory
type recordingRepo struct {
	mu      sync.Mutex
	plays   []*models.PlayRecord
	errors  []*models.PlayerError
	metrics []*models.PlayerMetric
}

func (r *recordingRepo) SavePlay(record *models.PlayRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plays = append(r.plays, record)
	return nil
}

func (r *recordingRepo) SaveError(playerError *models.PlayerError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, playerError)
	return nil
}

func (r *recordingRepo) SaveMetric(metric *models.PlayerMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, metric)
	return nil
}

func (r *recordingRepo) SaveLog(entry logging.LogEntry) error { return nil }

func (r *recordingRepo) RecentPlays(station string, limit int) ([]models.PlayRecord, error) {
	return nil, nil
}

func (r *recordingRepo) PruneBefore(cutoff time.Time) (int64, error) { return 0, nil }

func (r *recordingRepo) playCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.plays)
}

// drainEvents collects broadcast events for the given window
func drainEvents(sub *player.Subscription, window time.Duration) []player.Event {
	var events []player.Event
	deadline := time.After(window)
	for {
		select {
		case e := <-sub.Events:
			events = append(events, e)
		case <-deadline:
			return events
		}
	}
}

func countEvents(events []player.Event, want player.Event) int {
	n := 0
	for _, e := range events {
		if e == want {
			n++
		}
	}
	return n
}

type harness struct {
	coordinator *player.Coordinator
	opener      *fakeOpener
	metadata    *fakeMetadata
	notifier    *fakeNotifier
	repo        *recordingRepo
	sub         *player.Subscription
}

func testConfig(t *testing.T, mutate func(*player.RadioConfig)) player.ConfigProvider {
	t.Helper()

	cfg := &player.RadioConfig{}
	cfg.Stream.Station = "Test Station"
	cfg.Dispatch = player.DispatchConfig{DebounceMs: 1, PlayRetryMs: 10, PrepareWaitMs: 5}
	cfg.Retry = player.RetryConfig{BaseDelay: 15 * time.Millisecond, MaxDelay: 30 * time.Millisecond, Multiplier: 1.0}
	cfg.Metadata.PollSeconds = 1
	if mutate != nil {
		mutate(cfg)
	}

	provider, err := player.NewConfigManagerFromConfig(cfg)
	require.NoError(t, err)
	return provider
}

func newHarness(t *testing.T, opener *fakeOpener, mutate func(*player.RadioConfig)) *harness {
	t.Helper()

	config := testConfig(t, mutate)
	logger := logging.NewZapLoggerAtLevel("test", "error")
	repo := &recordingRepo{}
	metadata := &fakeMetadata{now: player.NowPlaying{Artist: "Test Station", Title: "In ascolto..."}}
	notifier := &fakeNotifier{}
	events := player.NewBroadcaster()

	coordinator := player.NewCoordinator(
		opener,
		metadata,
		notifier,
		events,
		player.NewBasicMetrics(repo, "Test Station"),
		player.NewBasicErrorHandler(config.GetRetryConfig(), logger, repo, "Test Station"),
		repo,
		logger,
		config,
	)
	t.Cleanup(coordinator.Close)

	return &harness{
		coordinator: coordinator,
		opener:      opener,
		metadata:    metadata,
		notifier:    notifier,
		repo:        repo,
		sub:         events.Subscribe(),
	}
}

func waitForPlaying(t *testing.T, c *player.Coordinator) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Status().IsPlaying
	}, 2*time.Second, 5*time.Millisecond, "coordinator never reached playing")
}

func TestPlay_StartsPlaybackAndBroadcastsOnce(t *testing.T) {
	h := newHarness(t, &fakeOpener{}, nil)

	h.coordinator.Dispatch(player.ActionPlay)
	waitForPlaying(t, h.coordinator)

	events := drainEvents(h.sub, 100*time.Millisecond)
	assert.Equal(t, 1, countEvents(events, player.AudioStarted))
	assert.Equal(t, 0, countEvents(events, player.AudioStopped))

	stream := h.opener.lastStream()
	require.NotNil(t, stream)
	started, _, _ := stream.counts()
	assert.Equal(t, 1, started)

	snapshot, ok := h.notifier.last()
	require.True(t, ok)
	assert.Equal(t, "playing", snapshot.StateLabel)
	assert.True(t, snapshot.Ongoing)
}

func TestDispatch_RapidCommandsWithinDebounceWindow(t *testing.T) {
	h := newHarness(t, &fakeOpener{}, func(cfg *player.RadioConfig) {
		cfg.Dispatch.DebounceMs = 200
	})

	// Play accepted; pause and stop fall inside the window and are dropped,
	// so the final state matches the first command
	h.coordinator.Dispatch(player.ActionPlay)
	h.coordinator.Dispatch(player.ActionPause)
	h.coordinator.Dispatch(player.ActionStop)

	waitForPlaying(t, h.coordinator)
	events := drainEvents(h.sub, 150*time.Millisecond)

	assert.Equal(t, 1, countEvents(events, player.AudioStarted))
	assert.Equal(t, 0, countEvents(events, player.AudioStopped))
	assert.True(t, h.coordinator.Status().IsPlaying)
}

func TestDispatch_TriplePlayYieldsOneTransition(t *testing.T) {
	h := newHarness(t, &fakeOpener{}, func(cfg *player.RadioConfig) {
		cfg.Dispatch.DebounceMs = 200
	})

	h.coordinator.Dispatch(player.ActionPlay)
	h.coordinator.Dispatch(player.ActionPlay)
	h.coordinator.Dispatch(player.ActionPlay)

	waitForPlaying(t, h.coordinator)
	events := drainEvents(h.sub, 150*time.Millisecond)

	assert.Equal(t, 1, countEvents(events, player.AudioStarted))
	stream := h.opener.lastStream()
	require.NotNil(t, stream)
	started, _, _ := stream.counts()
	assert.Equal(t, 1, started)
}

func TestPrefetch_IdempotentWhilePreparing(t *testing.T) {
	gate := make(chan struct{})
	opener := &fakeOpener{gate: gate}
	h := newHarness(t, opener, nil)

	h.coordinator.Prefetch()
	h.coordinator.Prefetch()
	h.coordinator.Prefetch()

	close(gate)
	require.Eventually(t, func() bool {
		return h.coordinator.Status().IsPrepared
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, opener.openCalls())
}

func TestPrefetch_NoOpWhenAlreadyPrepared(t *testing.T) {
	h := newHarness(t, &fakeOpener{}, nil)

	h.coordinator.Prefetch()
	require.Eventually(t, func() bool {
		return h.coordinator.Status().IsPrepared
	}, 2*time.Second, 5*time.Millisecond)

	h.coordinator.Prefetch()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.opener.openCalls())
}

func TestStop_PausesStreamAndBroadcastsOnce(t *testing.T) {
	h := newHarness(t, &fakeOpener{}, nil)

	h.coordinator.Dispatch(player.ActionPlay)
	waitForPlaying(t, h.coordinator)
	drainEvents(h.sub, 50*time.Millisecond)

	h.coordinator.Dispatch(player.ActionStop)
	time.Sleep(20 * time.Millisecond)
	// Second stop past the debounce window must not re-broadcast
	h.coordinator.Dispatch(player.ActionStop)

	events := drainEvents(h.sub, 100*time.Millisecond)
	assert.Equal(t, 1, countEvents(events, player.AudioStopped))

	status := h.coordinator.Status()
	assert.False(t, status.IsPlaying)
	assert.True(t, status.IsPrepared, "stream stays prepared for fast resume")

	stream := h.opener.lastStream()
	require.NotNil(t, stream)
	_, paused, closed := stream.counts()
	assert.Equal(t, 1, paused)
	assert.Zero(t, closed)
}

func TestPause_KeepsNotificationWithPausedLabel(t *testing.T) {
	h := newHarness(t, &fakeOpener{}, nil)

	h.coordinator.Dispatch(player.ActionPlay)
	waitForPlaying(t, h.coordinator)

	time.Sleep(10 * time.Millisecond)
	h.coordinator.Dispatch(player.ActionPause)

	require.Eventually(t, func() bool {
		snapshot, ok := h.notifier.last()
		return ok && snapshot.StateLabel == "paused"
	}, 2*time.Second, 5*time.Millisecond)

	snapshot, _ := h.notifier.last()
	assert.False(t, snapshot.Ongoing)
	assert.False(t, snapshot.ShowPause)
}

func TestClose_IsTerminal(t *testing.T) {
	h := newHarness(t, &fakeOpener{}, nil)

	h.coordinator.Dispatch(player.ActionPlay)
	waitForPlaying(t, h.coordinator)
	drainEvents(h.sub, 50*time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	h.coordinator.Dispatch(player.ActionClose)

	select {
	case <-h.coordinator.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator never closed")
	}

	events := drainEvents(h.sub, 50*time.Millisecond)
	assert.Equal(t, 1, countEvents(events, player.AudioStopped))
	assert.Equal(t, 1, h.notifier.clearCount())

	stream := h.opener.lastStream()
	require.NotNil(t, stream)
	_, _, closed := stream.counts()
	assert.Equal(t, 1, closed)

	// No later command has any observable effect
	opens := h.opener.openCalls()
	h.coordinator.Dispatch(player.ActionPlay)
	h.coordinator.Dispatch(player.ActionPrefetch)
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, opens, h.opener.openCalls())
	assert.Equal(t, "closed", h.coordinator.Status().State)
	assert.Empty(t, drainEvents(h.sub, 30*time.Millisecond))
}

func TestPlay_RecoversFromPreparationFailure(t *testing.T) {
	opener := &fakeOpener{failures: 2}
	h := newHarness(t, opener, nil)

	h.coordinator.Dispatch(player.ActionPlay)
	waitForPlaying(t, h.coordinator)

	assert.GreaterOrEqual(t, opener.openCalls(), 3)
	events := drainEvents(h.sub, 100*time.Millisecond)
	assert.Equal(t, 1, countEvents(events, player.AudioStarted))

	status := h.coordinator.Status()
	assert.NotEmpty(t, status.LastError)
	assert.GreaterOrEqual(t, status.ErrorCount, 2)
}

func TestPlay_RespectsRetryCeiling(t *testing.T) {
	opener := &fakeOpener{failures: 100}
	h := newHarness(t, opener, func(cfg *player.RadioConfig) {
		cfg.Retry.MaxRetries = 2
	})

	h.coordinator.Prefetch()

	require.Eventually(t, func() bool {
		return opener.openCalls() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	assert.LessOrEqual(t, opener.openCalls(), 3, "retries must stop at the ceiling")
	assert.False(t, h.coordinator.Status().IsPrepared)
}

func TestStreamDeath_SelfHealsWhilePlaying(t *testing.T) {
	h := newHarness(t, &fakeOpener{}, nil)

	h.coordinator.Dispatch(player.ActionPlay)
	waitForPlaying(t, h.coordinator)
	drainEvents(h.sub, 50*time.Millisecond)

	first := h.opener.lastStream()
	require.NotNil(t, first)
	first.done <- errors.New("stream ended")

	// A fresh stream is prepared and playback resumes on its own
	require.Eventually(t, func() bool {
		return h.opener.openCalls() >= 2 && h.coordinator.Status().IsPlaying
	}, 2*time.Second, 5*time.Millisecond)

	events := drainEvents(h.sub, 100*time.Millisecond)
	assert.Equal(t, 1, countEvents(events, player.AudioStopped))
	assert.Equal(t, 1, countEvents(events, player.AudioStarted))
}

func TestMetadata_AppliedOnlyWhilePlaying(t *testing.T) {
	h := newHarness(t, &fakeOpener{}, nil)
	h.metadata.mu.Lock()
	h.metadata.now = player.NowPlaying{Artist: "Artist X", Title: "Song Y"}
	h.metadata.mu.Unlock()

	// No polling before playback
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, h.metadata.fetchCount())

	h.coordinator.Dispatch(player.ActionPlay)
	waitForPlaying(t, h.coordinator)

	require.Eventually(t, func() bool {
		status := h.coordinator.Status()
		return status.Artist == "Artist X" && status.Title == "Song Y"
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, h.repo.playCount(), "changed metadata is persisted once")
}

func TestMetadata_PollingStopsAfterStop(t *testing.T) {
	h := newHarness(t, &fakeOpener{}, nil)

	h.coordinator.Dispatch(player.ActionPlay)
	waitForPlaying(t, h.coordinator)
	require.Eventually(t, func() bool {
		return h.metadata.fetchCount() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	h.coordinator.Dispatch(player.ActionStop)
	require.Eventually(t, func() bool {
		return !h.coordinator.Status().IsPlaying
	}, 2*time.Second, 5*time.Millisecond)

	// One tick may still be in flight; after that the count must freeze
	time.Sleep(1100 * time.Millisecond)
	frozen := h.metadata.fetchCount()
	time.Sleep(1100 * time.Millisecond)
	assert.Equal(t, frozen, h.metadata.fetchCount())
}

func TestMetadata_FailuresKeepLastText(t *testing.T) {
	h := newHarness(t, &fakeOpener{}, nil)
	h.metadata.mu.Lock()
	h.metadata.now = player.NowPlaying{Artist: "Artist X", Title: "Song Y"}
	h.metadata.mu.Unlock()

	h.coordinator.Dispatch(player.ActionPlay)
	waitForPlaying(t, h.coordinator)
	require.Eventually(t, func() bool {
		return h.coordinator.Status().Artist == "Artist X"
	}, 2*time.Second, 5*time.Millisecond)

	h.metadata.mu.Lock()
	h.metadata.err = errors.New("timeout")
	h.metadata.mu.Unlock()

	time.Sleep(1200 * time.Millisecond)
	status := h.coordinator.Status()
	assert.Equal(t, "Artist X", status.Artist)
	assert.Equal(t, "Song Y", status.Title)
}

func TestStatus_ReflectsLifecycle(t *testing.T) {
	gate := make(chan struct{})
	opener := &fakeOpener{gate: gate}
	h := newHarness(t, opener, nil)

	assert.Equal(t, "idle", h.coordinator.Status().State)

	h.coordinator.Prefetch()
	require.Eventually(t, func() bool {
		return h.coordinator.Status().State == "preparing"
	}, 2*time.Second, 5*time.Millisecond)

	close(gate)
	require.Eventually(t, func() bool {
		return h.coordinator.Status().State == "ready"
	}, 2*time.Second, 5*time.Millisecond)

	h.coordinator.Dispatch(player.ActionPlay)
	require.Eventually(t, func() bool {
		return h.coordinator.Status().State == "playing"
	}, 2*time.Second, 5*time.Millisecond)
}
