package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Jurkyy/project-pilot/internal/api"
	"github.com/Jurkyy/project-pilot/internal/config"
	"github.com/Jurkyy/project-pilot/internal/credential"
	"github.com/Jurkyy/project-pilot/internal/output"
	"github.com/Jurkyy/project-pilot/internal/task"
)

const shutdownTimeout = 30 * time.Second

type serveFlags struct {
	host    string
	port    string
	apiKey  string
	publish bool
	private bool
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the generation HTTP API",
		Long: `Serve the generation pipeline over HTTP.

Endpoints:
  POST /api/v1/generate          queue a task: {"description", "name", "language"}
  GET  /api/v1/task/:task_id     task snapshot
  GET  /api/v1/status/:task_id   task updates as server-sent events
  GET  /health                   health check
  GET  /metrics                  Prometheus metrics

Each task writes into its own directory under server.workspace_dir.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().StringVar(&f.port, "port", "", "listen port (overrides server.port)")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "LLM API key (default from llm.api_key or the provider's env var)")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "publish every finished project to GitHub")
	cmd.Flags().BoolVar(&f.private, "private", false, "make published repositories private")

	return cmd
}

// server bundles the HTTP server with the task machinery it drives
type server struct {
	http    *http.Server
	tasks   *task.Manager
	sse     *api.SSEManager
	limiter *api.RateLimiter
}

func newServer(f *serveFlags) (*server, error) {
	apiKey := cfg.APIKey(f.apiKey)
	if _, err := credential.Validate(cfg.Provider(), apiKey); err != nil {
		return nil, &output.CLIError{
			Summary:    "cannot serve without a valid API key",
			Detail:     err.Error(),
			Suggestion: "Pass --api-key or set " + config.ProviderKeyEnv(cfg.Provider()),
			ExitCode:   output.ExitCredential,
		}
	}

	if err := os.MkdirAll(cfg.Server.WorkspaceDir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace directory: %w", err)
	}

	gen, err := newGenerator(pipelineOptions{publish: f.publish, private: f.private})
	if err != nil {
		return nil, err
	}

	tasks := task.NewManager(task.Options{
		MaxConcurrentTasks: cfg.Server.MaxConcurrentTasks,
		QueueSize:          cfg.Server.QueueSize,
		TaskTimeout:        cfg.Server.TaskTimeout,
	}, logger)
	tasks.Start(task.NewGeneratorRunner(tasks, gen, cfg.Server.WorkspaceDir, apiKey))

	sse := api.NewSSEManager()
	var limiter *api.RateLimiter
	if cfg.Server.RequestsPerMinute > 0 {
		limiter = api.PerMinute(cfg.Server.RequestsPerMinute)
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.SetupRouter(api.NewHandler(tasks, sse, logger), api.RouterOptions{Limiter: limiter})

	host, port := cfg.Server.Host, cfg.Server.Port
	if f.host != "" {
		host = f.host
	}
	if f.port != "" {
		port = f.port
	}

	return &server{
		http: &http.Server{
			Addr:              host + ":" + port,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		tasks:   tasks,
		sse:     sse,
		limiter: limiter,
	}, nil
}

// shutdown stops accepting requests, then cancels and drains running tasks
func (s *server) shutdown(ctx context.Context) error {
	httpErr := s.http.Shutdown(ctx)
	taskErr := s.tasks.Shutdown(ctx)
	s.sse.Close()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return errors.Join(httpErr, taskErr)
}

func runServe(cmd *cobra.Command, f *serveFlags) error {
	srv, err := newServer(f)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", "addr", srv.http.Addr, "workers", cfg.Server.MaxConcurrentTasks)
		printer.Success("Listening on %s", srv.http.Addr)
		if err := srv.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}
