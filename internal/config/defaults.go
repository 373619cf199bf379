package config

const (
	defaultConfigPath = "~/.config/phototag/config.toml"
	defaultDataDir    = "~/.local/share/phototag"
	defaultLibraryDir = "~/Pictures/phototag"
	defaultLogDir     = "~/.local/share/phototag/logs"
	defaultDBName     = "phototag.db"

	defaultConcurrency         = 2
	defaultConfidenceThreshold = 0.3
	defaultMaxAttempts         = 3
	defaultLeaseSeconds        = 120
	defaultHeartbeatSeconds    = 30
	defaultPollIntervalSeconds = 5
	defaultPollJitter          = 0.2
	defaultErrorRetrySeconds   = 10
	defaultShutdownGraceSecs   = 15

	defaultDetectorProvider = DetectorHTTP
	defaultDetectorURL      = "http://127.0.0.1:8000/detect"
	defaultDetectorTimeout  = 60
	defaultGeminiModel      = "gemini-1.5-flash"

	defaultAPIBind        = "127.0.0.1:5000"
	defaultMaxUploadMB    = 32
	defaultReadTimeoutSec = 30

	defaultSweepIntervalSeconds = 300
	defaultOrphanGraceSeconds   = 60

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// DefaultNotificationChannel is the Redis pub/sub channel used when none is configured.
const DefaultNotificationChannel = "phototag:events"

// Supported store drivers.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// Supported detector providers.
const (
	DetectorHTTP   = "http"
	DetectorGemini = "gemini"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
		},
		Store: Store{
			Driver: StoreDriverSQLite,
		},
		Worker: Worker{
			Concurrency:         defaultConcurrency,
			ConfidenceThreshold: defaultConfidenceThreshold,
			MaxAttempts:         defaultMaxAttempts,
			LeaseSeconds:        defaultLeaseSeconds,
			HeartbeatSeconds:    defaultHeartbeatSeconds,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			PollJitter:          defaultPollJitter,
			ErrorRetrySeconds:   defaultErrorRetrySeconds,
			ShutdownGraceSecs:   defaultShutdownGraceSecs,
		},
		Detector: Detector{
			Provider:       defaultDetectorProvider,
			URL:            defaultDetectorURL,
			TimeoutSeconds: defaultDetectorTimeout,
			GeminiModel:    defaultGeminiModel,
		},
		API: API{
			Bind:           defaultAPIBind,
			MaxUploadMB:    defaultMaxUploadMB,
			ReadTimeoutSec: defaultReadTimeoutSec,
		},
		Notifications: Notifications{
			Channel: DefaultNotificationChannel,
		},
		Sweep: Sweep{
			IntervalSeconds:    defaultSweepIntervalSeconds,
			OrphanGraceSeconds: defaultOrphanGraceSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
