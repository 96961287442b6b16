package daemonrun

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"storyreel/internal/assets"
	"storyreel/internal/config"
	"storyreel/internal/daemon"
	"storyreel/internal/events"
	"storyreel/internal/imagery"
	"storyreel/internal/ipc"
	"storyreel/internal/jobs"
	"storyreel/internal/logging"
	"storyreel/internal/narration"
	"storyreel/internal/notifications"
	"storyreel/internal/provider"
	"storyreel/internal/store"
	"storyreel/internal/storyboard"
	"storyreel/internal/videogen"
	"storyreel/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the storyreel daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("storyreel-%s.log", runID))

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logProviderSnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update storyreel.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "storyreel-*.log", Exclude: []string{logPath}},
	)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open project store", logging.Error(err))
		return err
	}
	defer st.Close()

	client, err := provider.New(cfg.Provider.APIKey, cfg.Provider.BaseURL, providerOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("init provider client: %w", err)
	}

	storage, err := assets.NewMinioStorage(assets.MinioOptions{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
		URLExpiry: time.Duration(cfg.Storage.URLExpiryHours) * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}
	if err := storage.EnsureBucket(signalCtx); err != nil {
		logger.Warn("object storage bucket check failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "storage_bucket_check_failed"),
			logging.String(logging.FieldErrorHint, "verify storage endpoint and credentials"),
			logging.String(logging.FieldImpact, "uploads will fail until storage is reachable"),
		)
	}
	uploader := assets.NewUploader(storage)

	bus := events.New()
	notifier := notifications.NewService(cfg)
	forwarder := notifications.NewForwarder(cfg, st, notifier, logger)
	forwarder.Start(bus)
	defer forwarder.Stop()

	scheduler := jobs.NewScheduler(st, bus, logger, schedulerOptions(cfg))
	imageRunner := imagery.NewImageProcessor(st, logger, client, uploader)
	scheduler.Register(jobs.KindImageGeneration, imageRunner)
	scheduler.Register(jobs.KindCharacterImageGeneration, imageRunner)
	scheduler.Register(jobs.KindVideoGeneration, videogen.NewVideoProcessor(st, logger, client, uploader))

	manager := workflow.NewManager(st, bus, logger)
	registerSteps(manager, cfg, st, logger, client, uploader, storage, scheduler)

	d, err := daemon.New(cfg, st, logger, manager, scheduler, notifier, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and database access"),
			logging.String(logging.FieldImpact, "daemon may not process projects"),
		)
	}

	<-signalCtx.Done()
	logger.Info("storyreel daemon shutting down")
	return nil
}

func registerSteps(mgr *workflow.Manager, cfg *config.Config, st *store.Store, logger *slog.Logger,
	client *provider.Client, uploader *assets.Uploader, storage assets.ObjectStorage, scheduler *jobs.Scheduler) {
	if mgr == nil || cfg == nil {
		return
	}

	mgr.ConfigureSteps(workflow.StepSet{
		GenerateAudio:       narration.NewSynthesizer(cfg, st, logger, client, uploader, storage),
		ProcessAudio:        narration.NewImporter(cfg, st, logger, client, uploader, storage),
		GenerateScenes:      storyboard.NewPlanner(cfg, st, logger, client),
		ExtractCharacters:   imagery.NewCharacterExtractor(cfg, st, logger, client, uploader),
		GenerateImages:      imagery.NewIllustrator(cfg, st, logger, scheduler),
		GenerateThumbnail:   imagery.NewThumbnailer(cfg, st, logger, client, uploader),
		GenerateSoraPrompts: videogen.NewPromptComposer(cfg, st, logger, client),
		GenerateVideos:      videogen.NewAnimator(cfg, st, logger, scheduler),
	})
}

func providerOptions(cfg *config.Config) []provider.Option {
	opts := make([]provider.Option, 0, 2)
	if cfg.Provider.RequestTimeout > 0 {
		opts = append(opts, provider.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Provider.RequestTimeout) * time.Second,
		}))
	}
	if cfg.Provider.RequestsPerMinute > 0 {
		opts = append(opts, provider.WithRateLimit(cfg.Provider.RequestsPerMinute))
	}
	return opts
}

func schedulerOptions(cfg *config.Config) jobs.Options {
	return jobs.Options{
		BatchSize:     cfg.Pipeline.BatchSize,
		BatchDelay:    time.Duration(cfg.Pipeline.BatchDelaySeconds) * time.Second,
		SweepInterval: time.Duration(cfg.Retention.SweepIntervalMinutes) * time.Minute,
		CompletedTTL:  time.Duration(cfg.Retention.CompletedJobTTLHours) * time.Hour,
		FailedTTL:     time.Duration(cfg.Retention.FailedJobTTLHours) * time.Hour,
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "storyreel.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logProviderSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("provider snapshot",
		logging.String(logging.FieldEventType, "provider_snapshot"),
		logging.Bool("provider_key_present", strings.TrimSpace(cfg.Provider.APIKey) != ""),
		logging.String("provider_base_url", cfg.Provider.BaseURL),
		logging.String("default_voice", cfg.Provider.VoiceID),
		logging.String("default_style", cfg.Provider.StyleID),
		logging.String("storage_endpoint", cfg.Storage.Endpoint),
		logging.String("storage_bucket", cfg.Storage.Bucket),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}
