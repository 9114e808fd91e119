package player

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// StreamConfig contains the audio stream endpoint configuration
type StreamConfig struct {
	Station       string   `yaml:"station" toml:"station" env:"RADIOD_STATION"`
	URL           string   `yaml:"url" toml:"url" env:"RADIOD_STREAM_URL"`
	FFmpegBinary  string   `yaml:"ffmpeg_binary" toml:"ffmpeg_binary" env:"RADIOD_FFMPEG_BINARY"`
	SampleRate    int      `yaml:"sample_rate" toml:"sample_rate" env:"RADIOD_SAMPLE_RATE"`
	Channels      int      `yaml:"channels" toml:"channels" env:"RADIOD_CHANNELS"`
	PrefetchBytes int      `yaml:"prefetch_bytes" toml:"prefetch_bytes" env:"RADIOD_PREFETCH_BYTES"`
	CustomArgs    []string `yaml:"custom_args" toml:"custom_args" env:"RADIOD_FFMPEG_CUSTOM_ARGS"`
}

// SinkConfig contains the PCM output player configuration
type SinkConfig struct {
	BinaryPath string   `yaml:"binary_path" toml:"binary_path" env:"RADIOD_SINK_BINARY"`
	CustomArgs []string `yaml:"custom_args" toml:"custom_args" env:"RADIOD_SINK_CUSTOM_ARGS"`
}

// DispatchConfig contains command dispatch timing configuration
type DispatchConfig struct {
	DebounceMs    int `yaml:"debounce_ms" toml:"debounce_ms" env:"RADIOD_DEBOUNCE_MS"`
	PlayRetryMs   int `yaml:"play_retry_ms" toml:"play_retry_ms" env:"RADIOD_PLAY_RETRY_MS"`
	PrepareWaitMs int `yaml:"prepare_wait_ms" toml:"prepare_wait_ms" env:"RADIOD_PREPARE_WAIT_MS"`
}

// MetadataConfig contains the now-playing metadata endpoint configuration
type MetadataConfig struct {
	URL                   string `yaml:"url" toml:"url" env:"RADIOD_METADATA_URL"`
	PollSeconds           int    `yaml:"poll_seconds" toml:"poll_seconds" env:"RADIOD_METADATA_POLL_SECONDS"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds" toml:"connect_timeout_seconds" env:"RADIOD_METADATA_CONNECT_TIMEOUT"`
	ReadTimeoutSeconds    int    `yaml:"read_timeout_seconds" toml:"read_timeout_seconds" env:"RADIOD_METADATA_READ_TIMEOUT"`
}

// KeepaliveConfig contains the stream liveness probe configuration
type KeepaliveConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" toml:"interval_seconds" env:"RADIOD_KEEPALIVE_SECONDS"`
}

// RetryConfig contains stream preparation retry configuration.
// MaxRetries of zero means retry forever, which matches the
// keep-trying-to-play-the-radio intent.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" toml:"max_retries" env:"RADIOD_MAX_RETRIES"`
	BaseDelay  time.Duration `yaml:"base_delay" toml:"base_delay" env:"RADIOD_BASE_DELAY"`
	MaxDelay   time.Duration `yaml:"max_delay" toml:"max_delay" env:"RADIOD_MAX_DELAY"`
	Multiplier float64       `yaml:"multiplier" toml:"multiplier" env:"RADIOD_RETRY_MULTIPLIER"`
}

// LoggerConfig contains logging configuration
type LoggerConfig struct {
	Level    string `yaml:"level" toml:"level" env:"RADIOD_LOG_LEVEL"`
	Format   string `yaml:"format" toml:"format" env:"RADIOD_LOG_FORMAT"`
	SaveToDB bool   `yaml:"save_to_db" toml:"save_to_db" env:"RADIOD_LOG_SAVE_DB"`
}

// HistoryConfig contains play-history persistence configuration
type HistoryConfig struct {
	RetentionDays int    `yaml:"retention_days" toml:"retention_days" env:"RADIOD_HISTORY_RETENTION_DAYS"`
	PruneSchedule string `yaml:"prune_schedule" toml:"prune_schedule" env:"RADIOD_HISTORY_PRUNE_SCHEDULE"`
}

// RadioConfig represents the complete configuration structure for YAML/TOML files
type RadioConfig struct {
	Stream    StreamConfig    `yaml:"stream" toml:"stream"`
	Sink      SinkConfig      `yaml:"sink" toml:"sink"`
	Dispatch  DispatchConfig  `yaml:"dispatch" toml:"dispatch"`
	Metadata  MetadataConfig  `yaml:"metadata" toml:"metadata"`
	Keepalive KeepaliveConfig `yaml:"keepalive" toml:"keepalive"`
	Retry     RetryConfig     `yaml:"retry" toml:"retry"`
	Logger    LoggerConfig    `yaml:"logger" toml:"logger"`
	History   HistoryConfig   `yaml:"history" toml:"history"`
}

// ConfigManager implements the ConfigProvider interface
type ConfigManager struct {
	stream    *StreamConfig
	sink      *SinkConfig
	dispatch  *DispatchConfig
	metadata  *MetadataConfig
	keepalive *KeepaliveConfig
	retry     *RetryConfig
	logger    *LoggerConfig
	history   *HistoryConfig
}

// NewConfigManager creates a new ConfigManager with configuration loaded from multiple sources
func NewConfigManager() (ConfigProvider, error) {
	manager := &ConfigManager{}

	// Try to load configuration in order of preference:
	// 1. YAML file (config/radiod.yaml)
	// 2. TOML file (config/radiod.toml)
	// 3. Environment variables (.env file)
	// 4. Default values

	config := &RadioConfig{}

	if err := manager.loadYAMLConfig(config); err != nil {
		if err := manager.loadTOMLConfig(config); err != nil {
			if err := manager.loadEnvConfig(config); err != nil {
				manager.setDefaults(config)
			}
		}
	}

	manager.apply(config)

	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return manager, nil
}

// NewConfigManagerFromConfig wraps an already-populated RadioConfig,
// filling in defaults for zero-valued fields. Used by tests and embedders.
func NewConfigManagerFromConfig(config *RadioConfig) (ConfigProvider, error) {
	manager := &ConfigManager{}
	manager.fillDefaults(config)
	manager.apply(config)

	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return manager, nil
}

func (cm *ConfigManager) apply(config *RadioConfig) {
	cm.stream = &config.Stream
	cm.sink = &config.Sink
	cm.dispatch = &config.Dispatch
	cm.metadata = &config.Metadata
	cm.keepalive = &config.Keepalive
	cm.retry = &config.Retry
	cm.logger = &config.Logger
	cm.history = &config.History
}

// loadYAMLConfig attempts to load configuration from YAML file
func (cm *ConfigManager) loadYAMLConfig(config *RadioConfig) error {
	yamlPath := filepath.Join("config", "radiod.yaml")
	if _, err := os.Stat(yamlPath); os.IsNotExist(err) {
		return fmt.Errorf("YAML config file not found: %s", yamlPath)
	}

	data, err := os.ReadFile(yamlPath)
	if err != nil {
		return fmt.Errorf("failed to read YAML config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	cm.fillDefaults(config)
	return nil
}

// loadTOMLConfig attempts to load configuration from TOML file
func (cm *ConfigManager) loadTOMLConfig(config *RadioConfig) error {
	tomlPath := filepath.Join("config", "radiod.toml")
	if _, err := os.Stat(tomlPath); os.IsNotExist(err) {
		return fmt.Errorf("TOML config file not found: %s", tomlPath)
	}

	if _, err := toml.DecodeFile(tomlPath, config); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cm.fillDefaults(config)
	return nil
}

// loadEnvConfig loads configuration from environment variables
func (cm *ConfigManager) loadEnvConfig(config *RadioConfig) error {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	config.Stream = StreamConfig{
		Station:       getEnvString("RADIOD_STATION", "Radio Teate OnAir"),
		URL:           getEnvString("RADIOD_STREAM_URL", "https://nr14.newradio.it:8663/radioteateonair"),
		FFmpegBinary:  getEnvString("RADIOD_FFMPEG_BINARY", "ffmpeg"),
		SampleRate:    getEnvInt("RADIOD_SAMPLE_RATE", 44100),
		Channels:      getEnvInt("RADIOD_CHANNELS", 2),
		PrefetchBytes: getEnvInt("RADIOD_PREFETCH_BYTES", 128*1024),
		CustomArgs:    getEnvStringSlice("RADIOD_FFMPEG_CUSTOM_ARGS", []string{"-reconnect", "1", "-reconnect_delay_max", "5"}),
	}

	config.Sink = SinkConfig{
		BinaryPath: getEnvString("RADIOD_SINK_BINARY", "aplay"),
		CustomArgs: getEnvStringSlice("RADIOD_SINK_CUSTOM_ARGS", nil),
	}

	config.Dispatch = DispatchConfig{
		DebounceMs:    getEnvInt("RADIOD_DEBOUNCE_MS", 300),
		PlayRetryMs:   getEnvInt("RADIOD_PLAY_RETRY_MS", 500),
		PrepareWaitMs: getEnvInt("RADIOD_PREPARE_WAIT_MS", 200),
	}

	config.Metadata = MetadataConfig{
		URL:                   getEnvString("RADIOD_METADATA_URL", "https://nr14.newradio.it:8663/status-json.xsl"),
		PollSeconds:           getEnvInt("RADIOD_METADATA_POLL_SECONDS", 5),
		ConnectTimeoutSeconds: getEnvInt("RADIOD_METADATA_CONNECT_TIMEOUT", 3),
		ReadTimeoutSeconds:    getEnvInt("RADIOD_METADATA_READ_TIMEOUT", 5),
	}

	config.Keepalive = KeepaliveConfig{
		IntervalSeconds: getEnvInt("RADIOD_KEEPALIVE_SECONDS", 10),
	}

	config.Retry = RetryConfig{
		MaxRetries: getEnvInt("RADIOD_MAX_RETRIES", 0),
		BaseDelay:  getEnvDuration("RADIOD_BASE_DELAY", 2*time.Second),
		MaxDelay:   getEnvDuration("RADIOD_MAX_DELAY", 30*time.Second),
		Multiplier: getEnvFloat("RADIOD_RETRY_MULTIPLIER", 1.0),
	}

	config.Logger = LoggerConfig{
		Level:    getEnvString("RADIOD_LOG_LEVEL", "info"),
		Format:   getEnvString("RADIOD_LOG_FORMAT", "json"),
		SaveToDB: getEnvBool("RADIOD_LOG_SAVE_DB", false),
	}

	config.History = HistoryConfig{
		RetentionDays: getEnvInt("RADIOD_HISTORY_RETENTION_DAYS", 30),
		PruneSchedule: getEnvString("RADIOD_HISTORY_PRUNE_SCHEDULE", "0 4 * * *"),
	}

	return nil
}

// setDefaults sets default configuration values
func (cm *ConfigManager) setDefaults(config *RadioConfig) {
	*config = RadioConfig{}
	cm.fillDefaults(config)
}

// fillDefaults fills zero-valued fields with defaults so partial config
// files remain usable.
func (cm *ConfigManager) fillDefaults(config *RadioConfig) {
	if config.Stream.Station == "" {
		config.Stream.Station = "Radio Teate OnAir"
	}
	if config.Stream.URL == "" {
		config.Stream.URL = "https://nr14.newradio.it:8663/radioteateonair"
	}
	if config.Stream.FFmpegBinary == "" {
		config.Stream.FFmpegBinary = "ffmpeg"
	}
	if config.Stream.SampleRate == 0 {
		config.Stream.SampleRate = 44100
	}
	if config.Stream.Channels == 0 {
		config.Stream.Channels = 2
	}
	if config.Stream.PrefetchBytes == 0 {
		config.Stream.PrefetchBytes = 128 * 1024
	}
	if config.Stream.CustomArgs == nil {
		config.Stream.CustomArgs = []string{"-reconnect", "1", "-reconnect_delay_max", "5"}
	}

	if config.Sink.BinaryPath == "" {
		config.Sink.BinaryPath = "aplay"
	}

	if config.Dispatch.DebounceMs == 0 {
		config.Dispatch.DebounceMs = 300
	}
	if config.Dispatch.PlayRetryMs == 0 {
		config.Dispatch.PlayRetryMs = 500
	}
	if config.Dispatch.PrepareWaitMs == 0 {
		config.Dispatch.PrepareWaitMs = 200
	}

	if config.Metadata.URL == "" {
		config.Metadata.URL = "https://nr14.newradio.it:8663/status-json.xsl"
	}
	if config.Metadata.PollSeconds == 0 {
		config.Metadata.PollSeconds = 5
	}
	if config.Metadata.ConnectTimeoutSeconds == 0 {
		config.Metadata.ConnectTimeoutSeconds = 3
	}
	if config.Metadata.ReadTimeoutSeconds == 0 {
		config.Metadata.ReadTimeoutSeconds = 5
	}

	if config.Keepalive.IntervalSeconds == 0 {
		config.Keepalive.IntervalSeconds = 10
	}

	if config.Retry.BaseDelay == 0 {
		config.Retry.BaseDelay = 2 * time.Second
	}
	if config.Retry.MaxDelay == 0 {
		config.Retry.MaxDelay = 30 * time.Second
	}
	if config.Retry.Multiplier == 0 {
		config.Retry.Multiplier = 1.0
	}

	if config.Logger.Level == "" {
		config.Logger.Level = "info"
	}
	if config.Logger.Format == "" {
		config.Logger.Format = "json"
	}

	if config.History.RetentionDays == 0 {
		config.History.RetentionDays = 30
	}
	if config.History.PruneSchedule == "" {
		config.History.PruneSchedule = "0 4 * * *"
	}
}

// GetStreamConfig returns the stream configuration
func (cm *ConfigManager) GetStreamConfig() *StreamConfig {
	return cm.stream
}

// GetSinkConfig returns the sink configuration
func (cm *ConfigManager) GetSinkConfig() *SinkConfig {
	return cm.sink
}

// GetDispatchConfig returns the dispatch configuration
func (cm *ConfigManager) GetDispatchConfig() *DispatchConfig {
	return cm.dispatch
}

// GetMetadataConfig returns the metadata configuration
func (cm *ConfigManager) GetMetadataConfig() *MetadataConfig {
	return cm.metadata
}

// GetKeepaliveConfig returns the keepalive configuration
func (cm *ConfigManager) GetKeepaliveConfig() *KeepaliveConfig {
	return cm.keepalive
}

// GetRetryConfig returns the retry configuration
func (cm *ConfigManager) GetRetryConfig() *RetryConfig {
	return cm.retry
}

// GetLoggerConfig returns the logger configuration
func (cm *ConfigManager) GetLoggerConfig() *LoggerConfig {
	return cm.logger
}

// GetHistoryConfig returns the history configuration
func (cm *ConfigManager) GetHistoryConfig() *HistoryConfig {
	return cm.history
}

// Validate validates the configuration values
func (cm *ConfigManager) Validate() error {
	if cm.stream.URL == "" {
		return fmt.Errorf("stream url cannot be empty")
	}
	if err := ValidateURL(cm.stream.URL); err != nil {
		return fmt.Errorf("invalid stream url: %w", err)
	}
	if cm.stream.FFmpegBinary == "" {
		return fmt.Errorf("stream ffmpeg_binary cannot be empty")
	}
	if cm.stream.SampleRate <= 0 {
		return fmt.Errorf("stream sample_rate must be positive, got %d", cm.stream.SampleRate)
	}
	if cm.stream.Channels <= 0 {
		return fmt.Errorf("stream channels must be positive, got %d", cm.stream.Channels)
	}
	if cm.stream.PrefetchBytes <= 0 {
		return fmt.Errorf("stream prefetch_bytes must be positive, got %d", cm.stream.PrefetchBytes)
	}

	if cm.sink.BinaryPath == "" {
		return fmt.Errorf("sink binary_path cannot be empty")
	}

	if cm.dispatch.DebounceMs < 0 {
		return fmt.Errorf("dispatch debounce_ms must be non-negative, got %d", cm.dispatch.DebounceMs)
	}
	if cm.dispatch.PlayRetryMs <= 0 {
		return fmt.Errorf("dispatch play_retry_ms must be positive, got %d", cm.dispatch.PlayRetryMs)
	}
	if cm.dispatch.PrepareWaitMs <= 0 {
		return fmt.Errorf("dispatch prepare_wait_ms must be positive, got %d", cm.dispatch.PrepareWaitMs)
	}

	if cm.metadata.URL == "" {
		return fmt.Errorf("metadata url cannot be empty")
	}
	if err := ValidateURL(cm.metadata.URL); err != nil {
		return fmt.Errorf("invalid metadata url: %w", err)
	}
	if cm.metadata.PollSeconds <= 0 {
		return fmt.Errorf("metadata poll_seconds must be positive, got %d", cm.metadata.PollSeconds)
	}
	if cm.metadata.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("metadata connect_timeout_seconds must be positive, got %d", cm.metadata.ConnectTimeoutSeconds)
	}
	if cm.metadata.ReadTimeoutSeconds <= 0 {
		return fmt.Errorf("metadata read_timeout_seconds must be positive, got %d", cm.metadata.ReadTimeoutSeconds)
	}

	if cm.keepalive.IntervalSeconds <= 0 {
		return fmt.Errorf("keepalive interval_seconds must be positive, got %d", cm.keepalive.IntervalSeconds)
	}

	if cm.retry.MaxRetries < 0 {
		return fmt.Errorf("retry max_retries must be non-negative, got %d", cm.retry.MaxRetries)
	}
	if cm.retry.BaseDelay <= 0 {
		return fmt.Errorf("retry base_delay must be positive, got %s", cm.retry.BaseDelay)
	}
	if cm.retry.MaxDelay < cm.retry.BaseDelay {
		return fmt.Errorf("retry max_delay must be >= base_delay, got %s < %s", cm.retry.MaxDelay, cm.retry.BaseDelay)
	}
	if cm.retry.Multiplier < 1.0 {
		return fmt.Errorf("retry multiplier must be >= 1.0, got %f", cm.retry.Multiplier)
	}

	if !isValidLogLevel(cm.logger.Level) {
		return fmt.Errorf("invalid logger level: %s (must be debug, info, warn, or error)", cm.logger.Level)
	}

	if cm.history.RetentionDays <= 0 {
		return fmt.Errorf("history retention_days must be positive, got %d", cm.history.RetentionDays)
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// Environment variable helpers

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
