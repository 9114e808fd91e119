package player

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/radioteateonair/radiod/pkg/database/models"
)

// ValidateURL checks that the given string is a well-formed http(s) URL
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL has no host")
	}

	return nil
}

// CreateContextFields creates a standard logging context for coordinator operations
func CreateContextFields(station, streamURL string) map[string]interface{} {
	fields := make(map[string]interface{})
	if station != "" {
		fields["station"] = station
	}
	if streamURL != "" {
		fields["url"] = streamURL
	}
	return fields
}

// CreateContextFieldsWithComponent creates a logging context including the component name
func CreateContextFieldsWithComponent(station, streamURL, component string) map[string]interface{} {
	fields := CreateContextFields(station, streamURL)
	if component != "" {
		fields["component"] = component
	}
	return fields
}

// FormatDuration renders a duration as mm:ss or hh:mm:ss
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// CreatePlayRecord builds a persistable now-playing record
func CreatePlayRecord(station, artist, title string) *models.PlayRecord {
	return &models.PlayRecord{
		ID:        uuid.New(),
		Station:   station,
		Artist:    artist,
		Title:     title,
		Timestamp: time.Now(),
	}
}

// CreatePlayerError builds a persistable error record
func CreatePlayerError(station, errorType, errorMsg, context string) *models.PlayerError {
	return &models.PlayerError{
		ID:        uuid.New(),
		Station:   station,
		ErrorType: errorType,
		ErrorMsg:  errorMsg,
		Context:   context,
		Timestamp: time.Now(),
	}
}

// CreatePlayerMetric builds a persistable metric record
func CreatePlayerMetric(station, metricType string, value float64) *models.PlayerMetric {
	return &models.PlayerMetric{
		ID:         uuid.New(),
		Station:    station,
		MetricType: metricType,
		Value:      value,
		Timestamp:  time.Now(),
	}
}
