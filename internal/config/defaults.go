package config

const (
	defaultDataDir          = "~/.local/share/storyreel"
	defaultLogDir           = "~/.local/share/storyreel/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60

	defaultProviderBaseURL   = "https://api.storyreel.dev"
	defaultProviderTimeout   = 300
	defaultRequestsPerMinute = 60

	defaultStorageEndpoint = "127.0.0.1:9000"
	defaultStorageBucket   = "storyreel"
	defaultURLExpiryHours  = 72

	defaultImagePollInterval = 10
	defaultVideoPollInterval = 30
	defaultPollMaxAttempts   = 720
	defaultBatchSize         = 3
	defaultBatchDelaySeconds = 1
	defaultMinNarrationBytes = 1024
	defaultWatchPollInterval = 5

	defaultSweepIntervalMinutes = 30
	defaultCompletedJobTTLHours = 24
	defaultFailedJobTTLHours    = 168

	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Provider: Provider{
			BaseURL:           defaultProviderBaseURL,
			RequestTimeout:    defaultProviderTimeout,
			RequestsPerMinute: defaultRequestsPerMinute,
		},
		Storage: Storage{
			Endpoint:       defaultStorageEndpoint,
			Bucket:         defaultStorageBucket,
			URLExpiryHours: defaultURLExpiryHours,
		},
		Pipeline: Pipeline{
			ImagePollInterval: defaultImagePollInterval,
			VideoPollInterval: defaultVideoPollInterval,
			PollMaxAttempts:   defaultPollMaxAttempts,
			BatchSize:         defaultBatchSize,
			BatchDelaySeconds: defaultBatchDelaySeconds,
			MinNarrationBytes: defaultMinNarrationBytes,
			WatchPollInterval: defaultWatchPollInterval,
		},
		Retention: Retention{
			SweepIntervalMinutes: defaultSweepIntervalMinutes,
			CompletedJobTTLHours: defaultCompletedJobTTLHours,
			FailedJobTTLHours:    defaultFailedJobTTLHours,
		},
		Notifications: Notifications{
			RequestTimeout:    defaultNotifyRequestTimeout,
			WorkflowCompleted: true,
			WorkflowFailed:    true,
			JobFailed:         true,
			Errors:            true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
