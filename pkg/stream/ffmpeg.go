// Package stream prepares and plays a live audio stream through an
// ffmpeg decoder subprocess feeding an external PCM sink.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/radioteateonair/radiod/pkg/logging"
	"github.com/radioteateonair/radiod/pkg/player"
)

const (
	readChunkBytes = 4096
	maxStderrLines = 20

	// How long without decoded bytes before a probe declares the
	// stream silently dead
	defaultStaleAfter = 15 * time.Second
)

// Config configures the ffmpeg-backed stream opener
type Config struct {
	FFmpegBinary  string
	SampleRate    int
	Channels      int
	PrefetchBytes int
	CustomArgs    []string
	StaleAfter    time.Duration
}

// FFmpegOpener implements player.StreamOpener using an ffmpeg subprocess
type FFmpegOpener struct {
	cfg    Config
	sinks  SinkFactory
	logger logging.Logger
}

// NewFFmpegOpener creates a new FFmpegOpener
func NewFFmpegOpener(cfg Config, sinks SinkFactory, logger logging.Logger) *FFmpegOpener {
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = defaultStaleAfter
	}

	return &FFmpegOpener{
		cfg:    cfg,
		sinks:  sinks,
		logger: logger.WithPipeline("ffmpeg"),
	}
}

// Open spawns the decoder and blocks until the prefetch buffer is
// filled, so a later play starts with no startup latency. The returned
// stream is paused; audio only becomes audible after Start.
func (o *FFmpegOpener) Open(ctx context.Context, url string) (player.Stream, error) {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	args = append(args, o.cfg.CustomArgs...)
	args = append(args,
		"-i", url,
		"-f", "s16le",
		"-ar", strconv.Itoa(o.cfg.SampleRate),
		"-ac", strconv.Itoa(o.cfg.Channels),
		"pipe:1",
	)

	cmd := exec.Command(o.cfg.FFmpegBinary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", o.cfg.FFmpegBinary, err)
	}

	s := &ffmpegStream{
		cmd:        cmd,
		stdout:     stdout,
		sinks:      o.sinks,
		ring:       newRing(o.cfg.PrefetchBytes),
		staleAfter: o.cfg.StaleAfter,
		logger:     o.logger,
		done:       make(chan error, 1),
		lastData:   time.Now(),
	}

	go s.collectStderr(stderr)

	if err := s.prefetch(ctx, o.cfg.PrefetchBytes); err != nil {
		_ = s.Close()
		return nil, err
	}

	go s.readLoop()

	o.logger.Info("Stream buffered and ready", map[string]interface{}{
		"url":            url,
		"prefetch_bytes": o.cfg.PrefetchBytes,
	})

	return s, nil
}

// ffmpegStream implements player.Stream over a running decoder process
type ffmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	sinks  SinkFactory
	ring   *ring
	logger logging.Logger

	staleAfter time.Duration

	mu       sync.Mutex
	sink     Sink
	playing  bool
	closed   bool
	lastData time.Time

	stderrMu    sync.Mutex
	stderrLines []string

	done     chan error
	doneOnce sync.Once
}

// prefetch fills the ring buffer with the initial decoded audio.
// An early decoder exit surfaces here as a read error with the stderr
// tail attached.
func (s *ffmpegStream) prefetch(ctx context.Context, target int) error {
	buf := make([]byte, readChunkBytes)
	total := 0

	type readResult struct {
		n   int
		err error
	}

	for total < target {
		resultCh := make(chan readResult, 1)
		go func() {
			n, err := s.stdout.Read(buf)
			resultCh <- readResult{n, err}
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case result := <-resultCh:
			if result.n > 0 {
				s.ring.Write(buf[:result.n])
				total += result.n
				s.touch()
			}
			if result.err != nil {
				return fmt.Errorf("decoder ended during prefetch: %w%s", result.err, s.stderrTail())
			}
		}
	}

	return nil
}

// readLoop drains the decoder for the stream's whole life. While
// playing, bytes go to the sink; while paused they refresh the ring so
// a resume starts from recent audio.
func (s *ffmpegStream) readLoop() {
	buf := make([]byte, readChunkBytes)

	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			s.touch()
			s.deliver(buf[:n])
		}
		if err != nil {
			s.finish(fmt.Errorf("decoder stream ended: %w%s", err, s.stderrTail()))
			return
		}
	}
}

func (s *ffmpegStream) deliver(chunk []byte) {
	s.mu.Lock()
	sink := s.sink
	playing := s.playing
	s.mu.Unlock()

	if playing && sink != nil {
		if _, err := sink.Write(chunk); err != nil {
			s.logger.Warn("Sink write failed", map[string]interface{}{
				"error": err.Error(),
			})
			s.finish(fmt.Errorf("sink write: %w", err))
		}
		return
	}

	s.ring.Write(chunk)
}

// Start opens the sink and flushes the prefetched audio into it
func (s *ffmpegStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("stream is closed")
	}
	if s.playing {
		return nil
	}

	sink, err := s.sinks.New()
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}

	buffered := s.ring.Snapshot()
	s.ring.Reset()
	if len(buffered) > 0 {
		if _, err := sink.Write(buffered); err != nil {
			_ = sink.Close()
			return fmt.Errorf("flush prefetch buffer: %w", err)
		}
	}

	s.sink = sink
	s.playing = true
	return nil
}

// Pause stops audible output but keeps the decoder running so the
// stream stays prepared for fast resume
func (s *ffmpegStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.playing {
		return nil
	}

	s.playing = false
	sink := s.sink
	s.sink = nil

	if sink != nil {
		// Close is asynchronous-safe here: the read loop no longer
		// writes to this sink once playing is false
		go func() { _ = sink.Close() }()
	}
	return nil
}

// Probe checks that the decoder is alive and still producing bytes
func (s *ffmpegStream) Probe() error {
	s.mu.Lock()
	closed := s.closed
	last := s.lastData
	s.mu.Unlock()

	if closed {
		return fmt.Errorf("stream is closed")
	}
	if s.cmd.ProcessState != nil {
		return fmt.Errorf("decoder exited: %s", s.cmd.ProcessState)
	}
	if since := time.Since(last); since > s.staleAfter {
		return fmt.Errorf("no decoded audio for %s", since.Round(time.Second))
	}
	return nil
}

// Close releases the decoder and sink permanently
func (s *ffmpegStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.playing = false
	sink := s.sink
	s.sink = nil
	s.mu.Unlock()

	if sink != nil {
		_ = sink.Close()
	}

	_ = s.stdout.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()

	s.finish(nil)
	return nil
}

// Done reports the stream ending on its own
func (s *ffmpegStream) Done() <-chan error {
	return s.done
}

func (s *ffmpegStream) finish(err error) {
	s.doneOnce.Do(func() {
		if err != nil {
			s.done <- err
		}
		close(s.done)
	})
}

func (s *ffmpegStream) touch() {
	s.mu.Lock()
	s.lastData = time.Now()
	s.mu.Unlock()
}

// collectStderr keeps the last few decoder log lines for error context
func (s *ffmpegStream) collectStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		s.stderrMu.Lock()
		s.stderrLines = append(s.stderrLines, scanner.Text())
		if len(s.stderrLines) > maxStderrLines {
			s.stderrLines = s.stderrLines[1:]
		}
		s.stderrMu.Unlock()
	}
}

func (s *ffmpegStream) stderrTail() string {
	s.stderrMu.Lock()
	defer s.stderrMu.Unlock()

	if len(s.stderrLines) == 0 {
		return ""
	}
	return " (" + strings.Join(s.stderrLines, "; ") + ")"
}
