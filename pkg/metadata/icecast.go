// Package metadata fetches now-playing information from an Icecast
// status endpoint.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/radioteateonair/radiod/pkg/player"
)

const maxBodyBytes = 64 * 1024

// IcecastConfig configures the status endpoint client
type IcecastConfig struct {
	URL            string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// Fallbacks shown when the composite field has no separator
	UnknownArtist string
	UnknownTitle  string
}

// IcecastSource implements player.MetadataSource against an Icecast
// status-json.xsl endpoint
type IcecastSource struct {
	cfg    IcecastConfig
	client *http.Client
}

// NewIcecastSource creates a new IcecastSource
func NewIcecastSource(cfg IcecastConfig) *IcecastSource {
	if cfg.UnknownArtist == "" {
		cfg.UnknownArtist = "Artista Sconosciuto"
	}
	if cfg.UnknownTitle == "" {
		cfg.UnknownTitle = "Titolo Sconosciuto"
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}

	return &IcecastSource{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
		},
	}
}

// icestats mirrors the subset of the Icecast status document we read.
// The source field is a raw message because Icecast returns an object
// for a single mountpoint and an array for several.
type icestatsDocument struct {
	Icestats struct {
		Source json.RawMessage `json:"source"`
	} `json:"icestats"`
}

type icecastSource struct {
	YpCurrentlyPlaying string `json:"yp_currently_playing"`
	Title              string `json:"title"`
}

// Fetch retrieves and parses the current now-playing text
func (s *IcecastSource) Fetch(ctx context.Context) (player.NowPlaying, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return player.NowPlaying{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := s.client.Do(req)
	if err != nil {
		return player.NowPlaying{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return player.NowPlaying{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return player.NowPlaying{}, fmt.Errorf("read body: %w", err)
	}

	var doc icestatsDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return player.NowPlaying{}, fmt.Errorf("parse json: %w", err)
	}

	composite, err := extractComposite(doc.Icestats.Source)
	if err != nil {
		return player.NowPlaying{}, err
	}

	return s.split(composite), nil
}

// extractComposite pulls the now-playing text out of the source field,
// preferring yp_currently_playing over title
func extractComposite(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("status document has no source")
	}

	var single icecastSource
	if err := json.Unmarshal(raw, &single); err == nil {
		if text := pick(single); text != "" {
			return text, nil
		}
		return "", fmt.Errorf("source has no now-playing field")
	}

	var many []icecastSource
	if err := json.Unmarshal(raw, &many); err != nil {
		return "", fmt.Errorf("parse source: %w", err)
	}
	for _, src := range many {
		if text := pick(src); text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("no source has a now-playing field")
}

func pick(src icecastSource) string {
	if src.YpCurrentlyPlaying != "" {
		return src.YpCurrentlyPlaying
	}
	return src.Title
}

// split divides an "Artist - Title" composite on the first " - "
// occurrence only. Missing parts get the unknown placeholders.
func (s *IcecastSource) split(composite string) player.NowPlaying {
	parts := strings.SplitN(composite, " - ", 2)

	nowPlaying := player.NowPlaying{
		Artist: s.cfg.UnknownArtist,
		Title:  s.cfg.UnknownTitle,
	}

	if artist := strings.TrimSpace(parts[0]); artist != "" {
		nowPlaying.Artist = artist
	}
	if len(parts) == 2 {
		if title := strings.TrimSpace(parts[1]); title != "" {
			nowPlaying.Title = title
		}
	}

	return nowPlaying
}
