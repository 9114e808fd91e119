package player

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/radioteateonair/radiod/pkg/logging"
)

// NotificationSnapshot is the presentable rendering of the playback state.
// It is derived, never cached; every refresh recomputes it from scratch.
type NotificationSnapshot struct {
	Station    string    `json:"station"`
	Artist     string    `json:"artist"`
	Title      string    `json:"title"`
	StateLabel string    `json:"state"`
	ShowPause  bool      `json:"show_pause"`
	Ongoing    bool      `json:"ongoing"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BuildNotification computes the notification content for the given state.
// Pause and stop share one playback transition; only the label differs.
func BuildNotification(station, artist, title string, playing, paused bool) NotificationSnapshot {
	label := "stopped"
	if playing {
		label = "playing"
	} else if paused {
		label = "paused"
	}

	return NotificationSnapshot{
		Station:    station,
		Artist:     artist,
		Title:      title,
		StateLabel: label,
		ShowPause:  playing,
		Ongoing:    playing,
		UpdatedAt:  time.Now(),
	}
}

// LogNotifier publishes notification refreshes to the structured log
type LogNotifier struct {
	logger logging.Logger
}

// NewLogNotifier creates a Notifier backed by the structured log
func NewLogNotifier(logger logging.Logger) Notifier {
	return &LogNotifier{logger: logger.WithPipeline("notification")}
}

// Publish logs the current notification content
func (n *LogNotifier) Publish(snapshot NotificationSnapshot) {
	n.logger.Info("Notification refresh", map[string]interface{}{
		"artist":     snapshot.Artist,
		"title":      snapshot.Title,
		"state":      snapshot.StateLabel,
		"show_pause": snapshot.ShowPause,
		"ongoing":    snapshot.Ongoing,
	})
}

// Clear logs notification removal
func (n *LogNotifier) Clear() {
	n.logger.Info("Notification removed", nil)
}

// FileNotifier publishes the notification as a JSON now-playing file,
// written atomically so readers never see a partial document.
type FileNotifier struct {
	path   string
	logger logging.Logger
}

// NewFileNotifier creates a Notifier that maintains a now-playing file
func NewFileNotifier(path string, logger logging.Logger) Notifier {
	return &FileNotifier{
		path:   path,
		logger: logger.WithPipeline("notification"),
	}
}

// Publish writes the notification snapshot to the now-playing file
func (n *FileNotifier) Publish(snapshot NotificationSnapshot) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		n.logger.Warn("Failed to encode notification", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	tmp := n.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		n.logger.Warn("Failed to write notification file", map[string]interface{}{
			"path":  tmp,
			"error": err.Error(),
		})
		return
	}
	if err := os.Rename(tmp, n.path); err != nil {
		n.logger.Warn("Failed to replace notification file", map[string]interface{}{
			"path":  n.path,
			"error": err.Error(),
		})
	}
}

// Clear removes the now-playing file
func (n *FileNotifier) Clear() {
	if err := os.Remove(n.path); err != nil && !os.IsNotExist(err) {
		n.logger.Warn("Failed to remove notification file", map[string]interface{}{
			"path":  n.path,
			"error": err.Error(),
		})
	}
}

// MultiNotifier fans notification refreshes out to several surfaces
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier combines multiple notifiers into one
func NewMultiNotifier(notifiers ...Notifier) Notifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Publish forwards the snapshot to every surface
func (n *MultiNotifier) Publish(snapshot NotificationSnapshot) {
	for _, notifier := range n.notifiers {
		notifier.Publish(snapshot)
	}
}

// Clear forwards removal to every surface
func (n *MultiNotifier) Clear() {
	for _, notifier := range n.notifiers {
		notifier.Clear()
	}
}

// DefaultNowPlayingPath returns the default location of the now-playing file
func DefaultNowPlayingPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "radiod-nowplaying.json")
}
