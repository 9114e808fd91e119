package player

import (
	"context"
	"sync"
	"time"

	"github.com/radioteateonair/radiod/pkg/logging"
)

// Coordinator drives the playback lifecycle for a single live station.
// It receives discrete commands, debounces bursts, owns the one live
// Stream, keeps the notification surface in sync after every transition,
// and announces start/stop flips through the broadcaster.
//
// All flag mutations happen under a single action lock so two dispatched
// actions can never interleave a transition.
type Coordinator struct {
	opener   StreamOpener
	metadata MetadataSource
	notifier Notifier
	events   *Broadcaster
	metrics  MetricsCollector
	errors   ErrorHandler
	repo     PlayerRepository
	logger   logging.Logger
	config   ConfigProvider

	mu sync.Mutex

	playing   bool
	preparing bool
	prepared  bool
	closed    bool

	stream Stream

	artist string
	title  string

	lastAction      time.Time
	playRequested   bool
	pollerActive    bool
	prepareAttempts int
	playStarted     time.Time
	errorCount      int
	lastError       string

	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewCoordinator creates a Coordinator with injected dependencies.
// The stream is not prepared until Dispatch receives a prefetch or play.
func NewCoordinator(
	opener StreamOpener,
	metadata MetadataSource,
	notifier Notifier,
	events *Broadcaster,
	metrics MetricsCollector,
	errorHandler ErrorHandler,
	repo PlayerRepository,
	logger logging.Logger,
	config ConfigProvider,
) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		opener:   opener,
		metadata: metadata,
		notifier: notifier,
		events:   events,
		metrics:  metrics,
		errors:   errorHandler,
		repo:     repo,
		logger:   logger.WithPipeline("coordinator"),
		config:   config,
		artist:   config.GetStreamConfig().Station,
		title:    "In ascolto...",
		ctx:      ctx,
		cancel:   cancel,
		doneCh:   make(chan struct{}),
	}
}

// Done is signalled once the coordinator has fully closed
func (c *Coordinator) Done() <-chan struct{} {
	return c.doneCh
}

// Events returns the lifecycle broadcaster
func (c *Coordinator) Events() *Broadcaster {
	return c.events
}

// Dispatch routes an incoming command. Commands other than prefetch are
// debounced: a command arriving within the debounce window of the last
// accepted one is silently dropped. Callers always get an acknowledgement
// regardless, matching the host's restart semantics.
func (c *Coordinator) Dispatch(action Action) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if action == ActionNone {
		action = ActionPrefetch
	}

	if action != ActionPrefetch {
		now := time.Now()
		window := time.Duration(c.config.GetDispatchConfig().DebounceMs) * time.Millisecond
		if now.Sub(c.lastAction) < window {
			c.mu.Unlock()
			c.logger.Debug("Command dropped by debounce", map[string]interface{}{
				"action": action.String(),
			})
			return
		}
		c.lastAction = now
	}
	c.mu.Unlock()

	c.logger.Debug("Dispatching command", map[string]interface{}{
		"action": action.String(),
	})

	switch action {
	case ActionPlay:
		c.mu.Lock()
		c.playRequested = true
		c.mu.Unlock()
		c.transitionToPlay()
	case ActionPause:
		c.transitionToStop(true)
	case ActionStop:
		c.transitionToStop(false)
	case ActionClose:
		c.transitionToClose()
	case ActionPrefetch:
		c.Prefetch()
	}
}

// Close tears the coordinator down immediately, bypassing the debounce.
// This is the host teardown path; command-driven closes go through
// Dispatch like any other action.
func (c *Coordinator) Close() {
	c.transitionToClose()
}

// Prefetch prepares the stream ahead of a play request. It is idempotent:
// a no-op while a preparation is pending or a prepared stream exists.
func (c *Coordinator) Prefetch() {
	c.mu.Lock()
	if c.closed || c.preparing || c.prepared {
		c.mu.Unlock()
		return
	}
	c.preparing = true
	old := c.stream
	c.stream = nil
	c.mu.Unlock()

	// A new prefetch first tears down any stale handle
	if old != nil {
		_ = old.Close()
	}

	go c.prepare()
}

// prepare runs the blocking stream open off the action path and publishes
// the outcome under the action lock.
func (c *Coordinator) prepare() {
	url := c.config.GetStreamConfig().URL
	start := time.Now()

	stream, err := c.opener.Open(c.ctx, url)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
		return
	}

	if err != nil {
		c.preparing = false
		c.prepared = false
		c.prepareAttempts++
		attempts := c.prepareAttempts
		c.recordFailureLocked(err)
		c.mu.Unlock()

		c.metrics.RecordError("prepare")

		retry, delay := c.errors.HandleError(err, "prepare")
		if !retry {
			return
		}
		if !c.errors.ShouldRetryAfterAttempts(attempts, err) {
			c.errors.LogError(CreateMaxRetriesError(err, attempts), "prepare")
			return
		}
		if delay <= 0 {
			delay = c.config.GetRetryConfig().BaseDelay
		}
		c.schedule(delay, c.Prefetch)
		return
	}

	c.preparing = false
	c.prepared = true
	c.prepareAttempts = 0
	c.stream = stream
	c.mu.Unlock()

	c.metrics.RecordPrepareTime(time.Since(start))
	c.logger.Info("Stream prepared", CreateContextFields(c.station(), url))

	go c.watchStream(stream)
}

// transitionToPlay starts playback if the stream is ready, otherwise
// triggers preparation and polls itself back until it is.
func (c *Coordinator) transitionToPlay() {
	c.mu.Lock()
	if c.closed || c.playing || !c.playRequested {
		c.mu.Unlock()
		return
	}

	dispatch := c.config.GetDispatchConfig()

	if c.preparing {
		c.mu.Unlock()
		c.schedule(time.Duration(dispatch.PrepareWaitMs)*time.Millisecond, c.transitionToPlay)
		return
	}

	if c.stream == nil {
		c.mu.Unlock()
		c.Prefetch()
		c.schedule(time.Duration(dispatch.PlayRetryMs)*time.Millisecond, c.transitionToPlay)
		return
	}

	if err := c.stream.Start(); err != nil {
		// Self-healing: drop the handle and prepare a fresh one
		c.prepared = false
		c.playing = false
		stream := c.stream
		c.stream = nil
		c.recordFailureLocked(err)
		c.mu.Unlock()

		if stream != nil {
			_ = stream.Close()
		}
		c.metrics.RecordError("start")
		c.errors.LogError(err, "start")
		c.Prefetch()
		c.schedule(time.Duration(dispatch.PlayRetryMs)*time.Millisecond, c.transitionToPlay)
		return
	}

	c.playing = true
	c.playStarted = time.Now()
	stream := c.stream
	snapshot := c.snapshotLocked(false)
	c.mu.Unlock()

	c.logger.Info("Playback started", CreateContextFields(c.station(), ""))

	c.startKeepalive(stream)
	c.startMetadataLoop()
	c.events.Emit(AudioStarted)
	c.notifier.Publish(snapshot)
}

// transitionToStop pauses the stream but keeps it prepared for fast
// resume. Pause and stop share this transition; paused only changes the
// notification label.
func (c *Coordinator) transitionToStop(paused bool) {
	c.mu.Lock()
	c.playRequested = false
	if c.closed || !c.playing {
		c.mu.Unlock()
		return
	}

	if c.stream != nil {
		if err := c.stream.Pause(); err != nil {
			c.logger.Warn("Pause failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	c.playing = false
	duration := time.Since(c.playStarted)
	snapshot := c.snapshotLocked(paused)
	c.mu.Unlock()

	c.logger.Info("Playback stopped", map[string]interface{}{
		"paused":   paused,
		"duration": FormatDuration(duration),
	})

	c.metrics.RecordPlaybackDuration(duration)
	c.events.Emit(AudioStopped)
	c.notifier.Publish(snapshot)
}

// transitionToClose is terminal: it releases everything, removes the
// notification, and stops the coordinator. No later command has any
// observable effect.
func (c *Coordinator) transitionToClose() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	wasPlaying := c.playing
	c.playing = false
	c.preparing = false
	c.prepared = false
	c.playRequested = false
	duration := time.Since(c.playStarted)
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	// Cancels metadata polling, keep-alive, and any in-flight preparation
	c.cancel()

	if stream != nil {
		_ = stream.Close()
	}

	if wasPlaying {
		c.metrics.RecordPlaybackDuration(duration)
		c.events.Emit(AudioStopped)
	}

	c.notifier.Clear()
	c.events.Close()
	c.logger.Info("Coordinator closed", CreateContextFields(c.station(), ""))
	close(c.doneCh)
}

// watchStream reacts to the stream ending on its own, which is abnormal
// for a live feed: drop the handle and prepare a fresh one immediately.
func (c *Coordinator) watchStream(stream Stream) {
	select {
	case err := <-stream.Done():
		c.handleStreamDeath(stream, err)
	case <-c.ctx.Done():
	}
}

// handleStreamDeath recovers from a stream that completed or went silent
func (c *Coordinator) handleStreamDeath(stream Stream, err error) {
	c.mu.Lock()
	if c.closed || c.stream != stream {
		c.mu.Unlock()
		return
	}

	wasPlaying := c.playing
	c.playing = false
	c.prepared = false
	c.stream = nil
	if err != nil {
		c.recordFailureLocked(err)
	}
	snapshot := c.snapshotLocked(false)
	c.mu.Unlock()

	_ = stream.Close()

	c.logger.Warn("Stream ended unexpectedly", map[string]interface{}{
		"was_playing": wasPlaying,
	})
	if err != nil {
		c.errors.LogError(err, "stream")
		c.metrics.RecordError("stream")
	}

	if wasPlaying {
		c.events.Emit(AudioStopped)
		c.notifier.Publish(snapshot)
	}

	c.Prefetch()

	if wasPlaying {
		// Keep the play request alive so playback resumes once prepared
		c.mu.Lock()
		resume := c.playRequested
		c.mu.Unlock()
		if resume {
			c.schedule(time.Duration(c.config.GetDispatchConfig().PlayRetryMs)*time.Millisecond, c.transitionToPlay)
		}
	}
}

// startKeepalive probes the stream while playing to detect silent death
func (c *Coordinator) startKeepalive(stream Stream) {
	interval := time.Duration(c.config.GetKeepaliveConfig().IntervalSeconds) * time.Second

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				alive := !c.closed && c.playing && c.stream == stream
				c.mu.Unlock()
				if !alive {
					return
				}

				if err := stream.Probe(); err != nil {
					c.handleStreamDeath(stream, err)
					return
				}
			}
		}
	}()
}

// startMetadataLoop begins now-playing polling. At most one loop runs;
// it exits within one tick of playback stopping.
func (c *Coordinator) startMetadataLoop() {
	c.mu.Lock()
	if c.pollerActive || c.closed {
		c.mu.Unlock()
		return
	}
	c.pollerActive = true
	c.mu.Unlock()

	go c.metadataLoop()
}

func (c *Coordinator) metadataLoop() {
	cfg := c.config.GetMetadataConfig()
	interval := time.Duration(cfg.PollSeconds) * time.Second
	fetchTimeout := time.Duration(cfg.ConnectTimeoutSeconds+cfg.ReadTimeoutSeconds) * time.Second

	defer func() {
		c.mu.Lock()
		c.pollerActive = false
		c.mu.Unlock()
	}()

	for {
		c.mu.Lock()
		if c.closed || !c.playing {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		c.pollMetadataOnce(fetchTimeout)

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// pollMetadataOnce fetches now-playing metadata and applies it if changed.
// Failures are swallowed; the display keeps the last successful text.
func (c *Coordinator) pollMetadataOnce(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	nowPlaying, err := c.metadata.Fetch(ctx)
	if err != nil {
		c.logger.Debug("Metadata fetch failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	c.mu.Lock()
	if c.closed || !c.playing {
		c.mu.Unlock()
		return
	}
	changed := nowPlaying.Artist != c.artist || nowPlaying.Title != c.title
	if changed {
		c.artist = nowPlaying.Artist
		c.title = nowPlaying.Title
	}
	snapshot := c.snapshotLocked(false)
	c.mu.Unlock()

	if !changed {
		return
	}

	c.notifier.Publish(snapshot)

	record := CreatePlayRecord(c.station(), nowPlaying.Artist, nowPlaying.Title)
	if err := c.repo.SavePlay(record); err != nil {
		c.logger.Warn("Failed to persist play record", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Status returns a point-in-time snapshot of the coordinator
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{
		State:       c.stateLocked().String(),
		IsPlaying:   c.playing,
		IsPreparing: c.preparing,
		IsPrepared:  c.prepared,
		Artist:      c.artist,
		Title:       c.title,
		ErrorCount:  c.errorCount,
		LastError:   c.lastError,
	}
	if c.playing {
		status.StartTime = c.playStarted
	}
	return status
}

// RefreshNotification recomputes and republishes the notification
func (c *Coordinator) RefreshNotification() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snapshot := c.snapshotLocked(false)
	c.mu.Unlock()

	c.notifier.Publish(snapshot)
}

func (c *Coordinator) stateLocked() State {
	switch {
	case c.closed:
		return StateClosed
	case c.playing:
		return StatePlaying
	case c.preparing:
		return StatePreparing
	case c.prepared:
		return StateReady
	default:
		return StateIdle
	}
}

func (c *Coordinator) snapshotLocked(paused bool) NotificationSnapshot {
	return BuildNotification(c.station(), c.artist, c.title, c.playing, paused)
}

func (c *Coordinator) recordFailureLocked(err error) {
	c.errorCount++
	c.lastError = err.Error()
}

func (c *Coordinator) station() string {
	return c.config.GetStreamConfig().Station
}

// schedule runs fn after the delay unless the coordinator closed first.
// The closed flag is re-checked inside every transition, so a late timer
// is always a no-op after teardown.
func (c *Coordinator) schedule(delay time.Duration, fn func()) {
	time.AfterFunc(delay, func() {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		fn()
	})
}
