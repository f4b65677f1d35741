package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Server struct {
	ListenAddr string `env:"LISTEN_ADDR, default=0.0.0.0:8000"`
	DBPath     string `env:"DB_PATH, default=pfbuild.db"`
	Dev        bool   `env:"DEV, default=false"`

	// MaxSessions bounds the in-memory session store.
	MaxSessions int `env:"MAX_SESSIONS, default=1000"`
}

type Pipeline struct {
	ServiceURL      string        `env:"SERVICE_URL, default=http://localhost:8000"`
	Simulate        bool          `env:"SIMULATE, default=false"`
	SimulateLatency time.Duration `env:"SIMULATE_LATENCY, default=1s"`
	StepTimeout     time.Duration `env:"STEP_TIMEOUT, default=2m"`
	QueueSize       int           `env:"QUEUE_SIZE, default=100"`
	Workers         int           `env:"WORKERS, default=2"`
}

type Synth struct {
	RepoHost     string `env:"REPO_HOST, default=https://github.com"`
	Organization string `env:"ORGANIZATION, default=FNNDSC"`
	CloneRoot    string `env:"CLONE_ROOT, default=/home/appuser/repositories"`
}

type Config struct {
	Server   Server   `env:",prefix=PFBUILD_SERVER_"`
	Pipeline Pipeline `env:",prefix=PFBUILD_PIPELINE_"`
	Synth    Synth    `env:",prefix=PFBUILD_SYNTH_"`
	LogLevel string   `env:"PFBUILD_LOG_LEVEL, default=info"`
}

func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	})
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
