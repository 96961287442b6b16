package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateProvider() error {
	if c.Provider.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/storyreel/config.toml"
		}
		return fmt.Errorf("provider.api_key is required. Set STORYREEL_PROVIDER_API_KEY or edit %s (create with 'storyreel config init')", defaultPath)
	}
	if c.Provider.BaseURL == "" {
		return errors.New("provider.base_url must be set")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Endpoint == "" {
		return errors.New("storage.endpoint must be set")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set")
	}
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		return errors.New("storage.access_key and storage.secret_key must be set (or the STORYREEL_STORAGE_* env vars)")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	return ensurePositiveMap(map[string]int{
		"pipeline.image_poll_interval": c.Pipeline.ImagePollInterval,
		"pipeline.video_poll_interval": c.Pipeline.VideoPollInterval,
		"pipeline.poll_max_attempts":   c.Pipeline.PollMaxAttempts,
		"pipeline.batch_size":          c.Pipeline.BatchSize,
	})
}

func (c *Config) validateRetention() error {
	return ensurePositiveMap(map[string]int{
		"retention.sweep_interval_minutes":  c.Retention.SweepIntervalMinutes,
		"retention.completed_job_ttl_hours": c.Retention.CompletedJobTTLHours,
		"retention.failed_job_ttl_hours":    c.Retention.FailedJobTTLHours,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
