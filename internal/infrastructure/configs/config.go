package configs

import (
	"fmt"
	"time"

	"github.com/hilthontt/interchange/internal/infrastructure/env"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EventLogRedis  = "redis"
	EventLogAMQP   = "amqp"
	EventLogMemory = "memory"

	MembershipMemory = "memory"
	MembershipRedis  = "redis"
)

type Config struct {
	HTTP        HTTPConfig        `koanf:"http"`
	Auth        AuthConfig        `koanf:"auth"`
	EventLog    EventLogConfig    `koanf:"eventlog"`
	Membership  MembershipConfig  `koanf:"membership"`
	RateLimiter RateLimiterConfig `koanf:"rateLimiter"`
	Logger      LoggerConfig      `koanf:"logger"`
	Tracing     TracingConfig     `koanf:"tracing"`
}

type HTTPConfig struct {
	Host         string        `koanf:"host"`
	Port         uint16        `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// AllowedOrigins is checked against the Origin header of websocket handshakes.
	AllowedOrigins []string `koanf:"allowed_origins"`
	// MaxFrameBytes bounds one inbound websocket frame.
	MaxFrameBytes int64 `koanf:"max_frame_bytes"`
}

type AuthConfig struct {
	Token string `koanf:"token"`
}

type EventLogConfig struct {
	Driver string `koanf:"driver"`
	URL    string `koanf:"url"`
	// Stream is the Redis stream key or the AMQP exchange name.
	Stream       string        `koanf:"stream"`
	MaxLen       int64         `koanf:"max_len"`
	BlockTimeout time.Duration `koanf:"block_timeout"`
	BatchSize    int64         `koanf:"batch_size"`
}

type MembershipConfig struct {
	Backend            string `koanf:"backend"`
	RedisURL           string `koanf:"redis_url"`
	Key                string `koanf:"key"`
	ForgetOnDisconnect bool   `koanf:"forget_on_disconnect"`
}

type RateLimiterConfig struct {
	RequestsPerTimeFrame int           `koanf:"requestsPerTimeFrame"`
	TimeFrame            time.Duration `koanf:"timeFrame"`
	Enabled              bool          `koanf:"enabled"`
}

type LoggerConfig struct {
	Level    string `koanf:"level"`
	Encoding string `koanf:"encoding"`
	FilePath string `koanf:"file_path"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Environment string `koanf:"environment"`
	Endpoint    string `koanf:"endpoint"`
	// SampleRatio is the fraction of root spans kept, 0..1.
	SampleRatio float64 `koanf:"sample_ratio"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

func (c *Config) Validate() error {
	switch c.EventLog.Driver {
	case EventLogRedis, EventLogAMQP:
		if c.EventLog.URL == "" {
			return fmt.Errorf("eventlog.url is required for driver %q", c.EventLog.Driver)
		}
	case EventLogMemory:
	default:
		return fmt.Errorf("unknown eventlog driver %q", c.EventLog.Driver)
	}

	switch c.Membership.Backend {
	case MembershipMemory:
	case MembershipRedis:
		if c.Membership.RedisURL == "" && c.EventLog.Driver != EventLogRedis {
			return fmt.Errorf("membership.redis_url is required for backend %q", c.Membership.Backend)
		}
	default:
		return fmt.Errorf("unknown membership backend %q", c.Membership.Backend)
	}

	if c.Auth.Token == "" {
		return fmt.Errorf("auth.token must not be empty")
	}

	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The membership store shares the log's Redis unless told otherwise.
	if cfg.Membership.Backend == MembershipRedis && cfg.Membership.RedisURL == "" && cfg.EventLog.Driver == EventLogRedis {
		cfg.Membership.RedisURL = cfg.EventLog.URL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 5500)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)
	setDefault(k, "http.allowed_origins", []string{"*"})
	setDefault(k, "http.max_frame_bytes", 64*1024)

	setDefault(k, "auth.token", "token-for-client")

	setDefault(k, "eventlog.driver", EventLogRedis)
	setDefault(k, "eventlog.url", "redis://localhost:6379/0")
	setDefault(k, "eventlog.stream", "interchange")
	setDefault(k, "eventlog.max_len", 10000)
	setDefault(k, "eventlog.block_timeout", 5*time.Second)
	setDefault(k, "eventlog.batch_size", 100)

	setDefault(k, "membership.backend", MembershipMemory)
	setDefault(k, "membership.key", "interchange:membership")
	setDefault(k, "membership.forget_on_disconnect", false)

	setDefault(k, "rateLimiter.enabled", true)
	setDefault(k, "rateLimiter.requestsPerTimeFrame", 30)
	setDefault(k, "rateLimiter.timeFrame", time.Minute)

	setDefault(k, "logger.level", "info")
	setDefault(k, "logger.encoding", "json")

	setDefault(k, "tracing.enabled", false)
	setDefault(k, "tracing.service_name", "interchange")
	setDefault(k, "tracing.environment", "development")
	setDefault(k, "tracing.endpoint", "http://localhost:4318/v1/traces")
	setDefault(k, "tracing.sample_ratio", 1.0)
}

func applyEnvOverrides(k *koanf.Koanf) {
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	// SOCKET_PORT wins over HTTP_PORT; both name the one listening port.
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if port := env.GetInt("SOCKET_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if readTimeout := env.GetInt("HTTP_READ_TIMEOUT_SECONDS", 0); readTimeout > 0 {
		k.Set("http.read_timeout", time.Duration(readTimeout)*time.Second)
	}
	if writeTimeout := env.GetInt("HTTP_WRITE_TIMEOUT_SECONDS", 0); writeTimeout > 0 {
		k.Set("http.write_timeout", time.Duration(writeTimeout)*time.Second)
	}

	if token := env.GetString("AUTH_TOKEN", ""); token != "" {
		k.Set("auth.token", token)
	}

	if driver := env.GetString("EVENTLOG_DRIVER", ""); driver != "" {
		k.Set("eventlog.driver", driver)
	}
	if url := env.GetString("REDIS_URL", ""); url != "" {
		k.Set("eventlog.url", url)
	}
	if url := env.GetString("EVENTLOG_URL", ""); url != "" {
		k.Set("eventlog.url", url)
	}
	if stream := env.GetString("EVENTLOG_STREAM", ""); stream != "" {
		k.Set("eventlog.stream", stream)
	}

	if backend := env.GetString("MEMBERSHIP_BACKEND", ""); backend != "" {
		k.Set("membership.backend", backend)
	}
	if url := env.GetString("MEMBERSHIP_REDIS_URL", ""); url != "" {
		k.Set("membership.redis_url", url)
	}
	if _, ok := lookup("MEMBERSHIP_FORGET_ON_DISCONNECT"); ok {
		k.Set("membership.forget_on_disconnect", env.GetBool("MEMBERSHIP_FORGET_ON_DISCONNECT", false))
	}

	if limit := env.GetInt("RATE_LIMIT_REQUESTS_PER_TIME_FRAME", 0); limit > 0 {
		k.Set("rateLimiter.requestsPerTimeFrame", limit)
	}
	if frame := env.GetInt("RATE_LIMIT_TIME_FRAME_SECONDS", 0); frame > 0 {
		k.Set("rateLimiter.timeFrame", time.Duration(frame)*time.Second)
	}

	if level := env.GetString("LOGGER_LEVEL", ""); level != "" {
		k.Set("logger.level", level)
	}
	if encoding := env.GetString("LOGGER_ENCODING", ""); encoding != "" {
		k.Set("logger.encoding", encoding)
	}
	if path := env.GetString("LOGGER_FILE_PATH", ""); path != "" {
		k.Set("logger.file_path", path)
	}

	if endpoint := env.GetString("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ""); endpoint != "" {
		k.Set("tracing.enabled", true)
		k.Set("tracing.endpoint", endpoint)
	}
	if environment := env.GetString("ENVIRONMENT", ""); environment != "" {
		k.Set("tracing.environment", environment)
	}
}

func lookup(key string) (string, bool) {
	val := env.GetString(key, "")
	return val, val != ""
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
