package internal

import (
	"estate-live/infrastructure/ws"
	"estate-live/runtime"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Config is the hub process configuration, decoded from the environment.
type Config struct {
	BufferSize           int           `env:"BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=15s"`
	WriteWait            time.Duration `env:"WRITE_WAIT,default=10s"`
	PongWait             time.Duration `env:"PONG_WAIT,default=60s"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=524288"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	DuplicatePolicy      string        `env:"REGISTRY_DUPLICATE_POLICY,default=keep_oldest"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`
	MetricsNamespace     string        `env:"METRICS_NAMESPACE,default=estate_live"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=4000"`
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) Policy() (runtime.DuplicatePolicy, error) {
	return runtime.ParseDuplicatePolicy(c.DuplicatePolicy)
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	origins := lo.Map(strings.Split(c.AllowedOrigins, ","), func(o string, _ int) string {
		return strings.TrimSpace(o)
	})
	return lo.Compact(origins)
}

func (c Config) ServerConfig() ws.ServerConfig {
	return ws.ServerConfig{
		ConnectionBufferSize: c.ConnectionBufferSize,
		WriteWait:            c.WriteWait,
		PongWait:             c.PongWait,
		MaxMessageSize:       c.MaxMessageSize,
		AllowedOrigins:       c.Origins(),
	}
}
