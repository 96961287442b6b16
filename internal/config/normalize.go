package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProvider()
	c.normalizeStorage()
	c.normalizePipeline()
	c.normalizeRetention()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.Socket = strings.TrimSpace(c.Paths.Socket)
	if c.Paths.Socket != "" {
		if c.Paths.Socket, err = expandPath(c.Paths.Socket); err != nil {
			return fmt.Errorf("paths.socket: %w", err)
		}
	}
	c.Paths.WatchDir = strings.TrimSpace(c.Paths.WatchDir)
	if c.Paths.WatchDir != "" {
		if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
			return fmt.Errorf("paths.watch_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeProvider() {
	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)
	if c.Provider.APIKey == "" {
		if value, ok := os.LookupEnv("STORYREEL_PROVIDER_API_KEY"); ok {
			c.Provider.APIKey = strings.TrimSpace(value)
		}
	}
	c.Provider.BaseURL = strings.TrimSpace(c.Provider.BaseURL)
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = defaultProviderBaseURL
	}
	c.Provider.VoiceID = strings.TrimSpace(c.Provider.VoiceID)
	c.Provider.StyleID = strings.TrimSpace(c.Provider.StyleID)
	if c.Provider.RequestTimeout <= 0 {
		c.Provider.RequestTimeout = defaultProviderTimeout
	}
	if c.Provider.RequestsPerMinute < 0 {
		c.Provider.RequestsPerMinute = 0
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	if c.Storage.Endpoint == "" {
		c.Storage.Endpoint = defaultStorageEndpoint
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = defaultStorageBucket
	}
	c.Storage.AccessKey = strings.TrimSpace(c.Storage.AccessKey)
	if c.Storage.AccessKey == "" {
		if value, ok := os.LookupEnv("STORYREEL_STORAGE_ACCESS_KEY"); ok {
			c.Storage.AccessKey = strings.TrimSpace(value)
		}
	}
	c.Storage.SecretKey = strings.TrimSpace(c.Storage.SecretKey)
	if c.Storage.SecretKey == "" {
		if value, ok := os.LookupEnv("STORYREEL_STORAGE_SECRET_KEY"); ok {
			c.Storage.SecretKey = strings.TrimSpace(value)
		}
	}
	if c.Storage.URLExpiryHours <= 0 {
		c.Storage.URLExpiryHours = defaultURLExpiryHours
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.ImagePollInterval <= 0 {
		c.Pipeline.ImagePollInterval = defaultImagePollInterval
	}
	if c.Pipeline.VideoPollInterval <= 0 {
		c.Pipeline.VideoPollInterval = defaultVideoPollInterval
	}
	if c.Pipeline.PollMaxAttempts <= 0 {
		c.Pipeline.PollMaxAttempts = defaultPollMaxAttempts
	}
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = defaultBatchSize
	}
	if c.Pipeline.BatchDelaySeconds < 0 {
		c.Pipeline.BatchDelaySeconds = defaultBatchDelaySeconds
	}
	if c.Pipeline.MinNarrationBytes <= 0 {
		c.Pipeline.MinNarrationBytes = defaultMinNarrationBytes
	}
	if c.Pipeline.WatchPollInterval <= 0 {
		c.Pipeline.WatchPollInterval = defaultWatchPollInterval
	}
}

func (c *Config) normalizeRetention() {
	if c.Retention.SweepIntervalMinutes <= 0 {
		c.Retention.SweepIntervalMinutes = defaultSweepIntervalMinutes
	}
	if c.Retention.CompletedJobTTLHours <= 0 {
		c.Retention.CompletedJobTTLHours = defaultCompletedJobTTLHours
	}
	if c.Retention.FailedJobTTLHours <= 0 {
		c.Retention.FailedJobTTLHours = defaultFailedJobTTLHours
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
