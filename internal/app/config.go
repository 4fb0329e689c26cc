package app

import "time"

// Config is the runtime configuration for the etpd server process, loaded
// entirely from ETP_* environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// DatabaseURL, when set, backs the session audit log with Postgres
	// instead of the in-memory store (internal/audit).
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// ReadinessRequireDB makes /readyz fail until the audit database is
	// configured and reachable, instead of treating in-memory mode as ready.
	ReadinessRequireDB bool

	// WSPath is the HTTP path session negotiation is served on.
	WSPath string

	// NegotiationTimeout bounds how long a Session.Open waits for its peer's
	// RequestSession/OpenSession reply before failing.
	NegotiationTimeout time.Duration

	// DefaultRequestTimeout bounds a Session.Call with no explicit timeout.
	DefaultRequestTimeout time.Duration

	// CapabilitiesFile points at the YAML file internal/config loads self
	// and negotiated capability defaults from. Empty uses built-in defaults.
	CapabilitiesFile string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("ETP_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("ETP_LOG_LEVEL", "info"),
		LogFormat: EnvString("ETP_LOG_FORMAT", "auto"),

		ReadHeaderTimeout: EnvDuration("ETP_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("ETP_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("ETP_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("ETP_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("ETP_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("ETP_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("ETP_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("ETP_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("ETP_READINESS_REQUIRE_DB", false),

		WSPath: EnvString("ETP_WS_PATH", "/etp"),

		NegotiationTimeout:    EnvDuration("ETP_NEGOTIATION_TIMEOUT", 10*time.Second),
		DefaultRequestTimeout: EnvDuration("ETP_DEFAULT_REQUEST_TIMEOUT", 30*time.Second),

		CapabilitiesFile: EnvString("ETP_CAPABILITIES_FILE", ""),
	}
}
