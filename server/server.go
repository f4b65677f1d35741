package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/fnndsc/pfbuild/config"
	"github.com/fnndsc/pfbuild/db"
	"github.com/fnndsc/pfbuild/executor"
	"github.com/fnndsc/pfbuild/log"
	"github.com/fnndsc/pfbuild/notifier"
	"github.com/fnndsc/pfbuild/pipeline"
	"github.com/fnndsc/pfbuild/queue"
	"github.com/fnndsc/pfbuild/synth"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:   "server",
		Usage:  "serve the bootstrap API and run pipelines for browser sessions",
		Action: Run,
		Description: `
Environment variables:
	PFBUILD_SERVER_LISTEN_ADDR          (default: 0.0.0.0:8000)
	PFBUILD_SERVER_DB_PATH              (default: pfbuild.db)
	PFBUILD_SERVER_DEV                  (default: false)
	PFBUILD_SERVER_MAX_SESSIONS         (default: 1000)
	PFBUILD_PIPELINE_SERVICE_URL        (default: http://localhost:8000)
	PFBUILD_PIPELINE_SIMULATE           (default: false)
	PFBUILD_PIPELINE_SIMULATE_LATENCY   (default: 1s)
	PFBUILD_PIPELINE_STEP_TIMEOUT       (default: 2m)
	PFBUILD_PIPELINE_QUEUE_SIZE         (default: 100)
	PFBUILD_PIPELINE_WORKERS            (default: 2)
	PFBUILD_SYNTH_REPO_HOST             (default: https://github.com)
	PFBUILD_SYNTH_ORGANIZATION          (default: FNNDSC)
	PFBUILD_SYNTH_CLONE_ROOT            (default: /home/appuser/repositories)
	PFBUILD_LOG_LEVEL                   (default: info)
`,
	}
}

type Server struct {
	cfg   *config.Config
	db    *db.DB
	n     *notifier.Notifier
	jq    *queue.Queue
	l     *slog.Logger
	synth *synth.Synthesizer
	exec  *executor.Executor

	// runs drain under this context, not under the request that started them
	ctx context.Context

	mu       sync.RWMutex
	sessions map[string]*pipeline.Orchestrator
}

func New(ctx context.Context, cfg *config.Config, d *db.DB, n *notifier.Notifier, jq *queue.Queue) *Server {
	l := log.FromContext(ctx)

	s := synth.New(
		synth.WithRepoHost(cfg.Synth.RepoHost),
		synth.WithOrganization(cfg.Synth.Organization),
		synth.WithCloneRoot(cfg.Synth.CloneRoot),
	)

	var t executor.Transport
	if cfg.Pipeline.Simulate {
		t = executor.NewSynthTransport(s, cfg.Pipeline.SimulateLatency)
	} else {
		t = executor.NewHTTPTransport(&http.Client{})
	}

	return &Server{
		cfg:   cfg,
		db:    d,
		n:     n,
		jq:    jq,
		l:     l,
		synth: s,
		exec: executor.New(t,
			executor.WithLogger(log.SubLogger(l, "executor")),
			executor.WithTimeout(cfg.Pipeline.StepTimeout),
		),
		ctx:      ctx,
		sessions: make(map[string]*pipeline.Orchestrator),
	}
}

// withLogLevel applies level and returns a ctx whose logger honours it.
// Loggers built before the level was set keep the old one.
func withLogLevel(ctx context.Context, level string) (context.Context, error) {
	if err := log.SetLevel(level); err != nil {
		return ctx, fmt.Errorf("invalid log level: %w", err)
	}
	return log.IntoContext(ctx, log.New("pfbuild/server")), nil
}

func Run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	ctx, err = withLogLevel(ctx, cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.FromContext(ctx)

	n := notifier.New()

	d, err := db.Make(cfg.Server.DBPath, n)
	if err != nil {
		return fmt.Errorf("failed to setup db: %w", err)
	}
	defer d.Close()

	// starts a job queue runner in the background
	jq := queue.NewQueue(cfg.Pipeline.QueueSize, cfg.Pipeline.Workers)
	jq.Start()
	defer jq.Stop()

	if cfg.Pipeline.Simulate {
		logger.Info("simulating the bootstrap backend", "latency", cfg.Pipeline.SimulateLatency)
	}

	s := New(ctx, cfg, d, n, jq)
	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: s.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting pfbuild server", "address", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

func (s *Server) Router() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	if s.cfg.Server.Dev {
		mux.Use(middleware.Logger)
	}

	mux.Post("/api/vi/bootstrap", s.Bootstrap)
	mux.Post("/api/vi/bootstrap/", s.Bootstrap)

	mux.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/start", s.StartSession)
			r.Post("/reset", s.ResetSession)
			r.Get("/steps/{step}", s.StepResponse)
			r.Get("/completion", s.Completion)
		})
	})

	mux.HandleFunc("/events", s.Events)
	return mux
}
