package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server       ServerConfig       `toml:"server"`       // HTTP server settings
	Logging      LoggingConfig      `toml:"logging"`      // Application logging settings
	Storage      StorageConfig      `toml:"storage"`      // Data persistence settings
	Speechmatics SpeechmaticsConfig `toml:"speechmatics"` // Transcription provider settings
	Batch        BatchConfig        `toml:"batch"`        // Batch transcription pipeline settings
	Realtime     RealtimeConfig     `toml:"realtime"`     // Realtime transcription settings
	Capture      CaptureConfig      `toml:"capture"`      // Local audio capture settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout, recommended for streaming)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	MaxUploadMB        int      `toml:"max_upload_mb"`         // Maximum accepted audio upload size in megabytes
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type           string `toml:"type"`             // Storage backend type (currently only "sqlite" is supported)
	SQLiteBasePath string `toml:"sqlite_base_path"` // Directory for the SQLite database file
	MediaPath      string `toml:"media_path"`       // Directory for uploaded audio files
}

// SpeechmaticsConfig contains transcription provider settings
type SpeechmaticsConfig struct {
	APIKey         string `toml:"api_key"`          // Speechmatics API key. Falls back to SPEECHMATICS_API_KEY env var.
	BatchBaseURL   string `toml:"batch_base_url"`   // Batch API base URL. Defaults to https://asr.api.speechmatics.com
	RealtimeURL    string `toml:"realtime_url"`     // Realtime WebSocket endpoint. Defaults to wss://eu2.rt.speechmatics.com
	MPBaseURL      string `toml:"mp_base_url"`      // Management platform base URL for temporary key issuance
	OperatingPoint string `toml:"operating_point"`  // Accuracy mode: "standard" or "enhanced"
	TimeoutSeconds int    `toml:"timeout_seconds"`  // HTTP timeout for batch API requests in seconds
	TempKeyTTLSecs int    `toml:"temp_key_ttl_sec"` // TTL for realtime temporary keys in seconds
}

// BatchConfig contains batch transcription pipeline settings
type BatchConfig struct {
	Language        string `toml:"language"`          // Default transcription language (e.g., "en")
	PollIntervalSec int    `toml:"poll_interval_sec"` // Seconds between job status polls
	MaxPollAttempts int    `toml:"max_poll_attempts"` // Maximum status polls before giving up on a job
}

// RealtimeConfig contains realtime transcription settings
type RealtimeConfig struct {
	Language                 string  `toml:"language"`                     // Default transcription language (e.g., "en")
	MaxDelaySec              float64 `toml:"max_delay_sec"`                // Maximum latency before a final transcript is forced
	RemoveDisfluencies       bool    `toml:"remove_disfluencies"`          // Strip filler words from transcripts
	EndOfUtteranceSilenceSec float64 `toml:"end_of_utterance_silence_sec"` // Silence duration that ends an utterance (0 disables)
}

// CaptureConfig contains local audio capture settings
type CaptureConfig struct {
	FFmpegPath   string `toml:"ffmpeg_path"`   // Path to FFmpeg executable
	Input        string `toml:"input"`         // FFmpeg input (device, URL, or file path)
	InputFormat  string `toml:"input_format"`  // FFmpeg input format (e.g., "alsa", "avfoundation"; empty for auto-detect)
	SampleRate   int    `toml:"sample_rate"`   // Audio sample rate in Hz
	FrameSamples int    `toml:"frame_samples"` // Samples per frame handed to the stream
}

// Load loads configuration from the given TOML file
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback attempts to load configuration from the preferred path,
// then from the standard locations
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Location in configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			// File exists, try to load it
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 512
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be 'json' or 'console')", c.Logging.Format)
	}

	// Validate storage config
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLiteBasePath == "" {
		c.Storage.SQLiteBasePath = "data"
	}
	if c.Storage.MediaPath == "" {
		c.Storage.MediaPath = "data/media"
	}

	// Validate provider config. The API key may come from the environment.
	if c.Speechmatics.APIKey == "" {
		c.Speechmatics.APIKey = os.Getenv("SPEECHMATICS_API_KEY")
	}
	if c.Speechmatics.APIKey == "" {
		return fmt.Errorf("speechmatics API key is required (set api_key in config or SPEECHMATICS_API_KEY in the environment)")
	}
	if c.Speechmatics.OperatingPoint == "" {
		c.Speechmatics.OperatingPoint = "enhanced"
	}
	if c.Speechmatics.OperatingPoint != "standard" && c.Speechmatics.OperatingPoint != "enhanced" {
		return fmt.Errorf("invalid operating point: %s (must be 'standard' or 'enhanced')", c.Speechmatics.OperatingPoint)
	}
	if c.Speechmatics.RealtimeURL == "" {
		c.Speechmatics.RealtimeURL = "wss://eu2.rt.speechmatics.com"
	}
	if c.Speechmatics.TimeoutSeconds <= 0 {
		c.Speechmatics.TimeoutSeconds = 120
	}
	if c.Speechmatics.TempKeyTTLSecs <= 0 {
		c.Speechmatics.TempKeyTTLSecs = 3600
	}

	// Validate batch config
	if c.Batch.Language == "" {
		c.Batch.Language = "en"
	}
	if c.Batch.PollIntervalSec <= 0 {
		c.Batch.PollIntervalSec = 3
	}
	if c.Batch.MaxPollAttempts <= 0 {
		c.Batch.MaxPollAttempts = 100
	}

	// Validate realtime config
	if c.Realtime.Language == "" {
		c.Realtime.Language = "en"
	}
	if c.Realtime.MaxDelaySec <= 0 {
		c.Realtime.MaxDelaySec = 1.0
	}

	// Validate capture config
	if c.Capture.FFmpegPath == "" {
		c.Capture.FFmpegPath = "ffmpeg"
	}
	if c.Capture.SampleRate <= 0 {
		c.Capture.SampleRate = 16000
	}
	if c.Capture.FrameSamples <= 0 {
		c.Capture.FrameSamples = 4096
	}

	return nil
}
