package stream

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

// Sink consumes decoded PCM and makes it audible
type Sink interface {
	io.WriteCloser
}

// SinkFactory opens a fresh sink for each playback session
type SinkFactory interface {
	New() (Sink, error)
}

// ExecSinkConfig configures the external PCM player process
type ExecSinkConfig struct {
	BinaryPath string
	SampleRate int
	Channels   int
	CustomArgs []string
}

// ExecSinkFactory launches an external player (aplay by default) and
// feeds PCM through its stdin
type ExecSinkFactory struct {
	cfg ExecSinkConfig
}

// NewExecSinkFactory creates a factory for exec-based sinks
func NewExecSinkFactory(cfg ExecSinkConfig) *ExecSinkFactory {
	return &ExecSinkFactory{cfg: cfg}
}

// New starts the player process
func (f *ExecSinkFactory) New() (Sink, error) {
	args := f.cfg.CustomArgs
	if len(args) == 0 {
		// Default arguments match aplay's raw PCM mode
		args = []string{
			"-q",
			"-t", "raw",
			"-f", "S16_LE",
			"-r", strconv.Itoa(f.cfg.SampleRate),
			"-c", strconv.Itoa(f.cfg.Channels),
		}
	}

	cmd := exec.Command(f.cfg.BinaryPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sink stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start sink %s: %w", f.cfg.BinaryPath, err)
	}

	return &execSink{cmd: cmd, stdin: stdin}, nil
}

type execSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func (s *execSink) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

// Close stops the player process. The stdin close lets the player drain
// what it already buffered before exiting.
func (s *execSink) Close() error {
	err := s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return err
}
