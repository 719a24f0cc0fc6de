package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/meshdecomp/internal/application/decompose"
	"github.com/turtacn/meshdecomp/internal/config"
	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/meshdecomp/internal/interfaces/http"
	"github.com/turtacn/meshdecomp/internal/interfaces/http/handlers"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

const defaultDebounce = 250 * time.Millisecond

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the decomposition whenever the config or dictionary changes",
		Long: "watch runs the decomposition once, then again each time the config file\n" +
			"or the decomposition dictionary is modified.  Meanwhile it serves\n" +
			"/healthz, /readyz, /metrics and /api/v1/summary.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cliCtx, debounce)
		},
	}

	fs := cmd.Flags()
	addLayoutFlags(fs)
	addIOFlags(fs)
	fs.String("addr", "", "status server listen address (default :9102)")
	bindFlag(fs, "addr", "server.addr")
	fs.DurationVar(&debounce, "debounce", defaultDebounce, "quiet period before a change triggers a run")
	return cmd
}

// watchState holds the current config and queues reruns.
type watchState struct {
	service decompose.Service
	logger  logging.Logger

	mu  sync.Mutex
	cfg *config.Config

	triggers chan string
}

func newWatchState(cfg *config.Config, service decompose.Service, logger logging.Logger) *watchState {
	return &watchState{
		service:  service,
		logger:   logger,
		cfg:      cfg,
		triggers: make(chan string, 1),
	}
}

func (w *watchState) config() *config.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

func (w *watchState) setConfig(cfg *config.Config) {
	w.mu.Lock()
	w.cfg = cfg
	w.mu.Unlock()
}

// notify queues a rerun.  A rerun already pending absorbs it.
func (w *watchState) notify(reason string) {
	select {
	case w.triggers <- reason:
	default:
	}
}

// runOnce decomposes with the current config.  Failures are logged by the
// service and leave the previous result in place.
func (w *watchState) runOnce(ctx context.Context, reason string) {
	w.logger.Info("decomposition triggered", logging.String("reason", reason))
	req, err := decompose.RequestFromConfig(w.config())
	if err != nil {
		w.logger.Error("invalid decomposition settings", logging.Err(err))
		return
	}
	_, _ = w.service.Run(ctx, req)
}

// watchLoop runs once, then once per burst of triggers separated by at
// least debounce, until ctx is done.
func watchLoop(ctx context.Context, triggers <-chan string, debounce time.Duration, run func(ctx context.Context, reason string)) error {
	run(ctx, "startup")

	var (
		timer  *time.Timer
		fire   <-chan time.Time
		reason string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case reason = <-triggers:
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			run(ctx, reason)
		}
	}
}

// dictPathOf is the dictionary a config reads its settings from, or empty
// when the settings are inline.
func dictPathOf(cfg *config.Config) string {
	d := cfg.Decomposition
	switch {
	case d.Dict != "":
		return d.Dict
	case d.HasInlineRegions():
		return ""
	}
	dir := cfg.Input.Case
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, decompose.CaseDictPath)
}

// watchFile calls onChange whenever path is written, created or replaced.
// The parent directory is watched so that editors that rename over the
// file are seen.
func watchFile(path string, onChange func(), logger logging.Logger) (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "cannot create file watcher")
	}
	target := filepath.Clean(path)
	if err := fw.Add(filepath.Dir(target)); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, errors.CodeConfigFileNotFound, "cannot watch %s", path)
	}

	go func() {
		for {
			select {
			case e, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != target || e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				logger.Debug("watched file changed",
					logging.String("file", e.Name),
					logging.String("op", e.Op.String()))
				onChange()
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error", logging.Err(err))
			}
		}
	}()
	return fw, nil
}

// runWatch serves the status surface and reruns the decomposition on
// change until ctx is done.
func runWatch(ctx context.Context, cliCtx *CLIContext, debounce time.Duration) error {
	cfg := cliCtx.Config
	logger := cliCtx.Logger.Named("watch")

	deps, err := buildService(cliCtx, true)
	if err != nil {
		return err
	}
	state := newWatchState(cfg, deps.Service, logger)

	if cliCtx.ConfigFile != "" {
		_, err := config.Watch(cliCtx.ConfigFile,
			func(next *config.Config, e fsnotify.Event) {
				state.setConfig(next)
				state.notify("config " + e.Op.String())
			},
			func(err error) {
				logger.Warn("config reload rejected", logging.Err(err))
			},
			config.WithOverrides(cliCtx.Overrides))
		if err != nil {
			return err
		}
		logger.Info("watching config", logging.String("file", cliCtx.ConfigFile))
	}

	if dict := dictPathOf(cfg); dict != "" {
		fw, err := watchFile(dict, func() { state.notify("dictionary") }, logger)
		if err != nil {
			logger.Warn("dictionary not watched", logging.Err(err))
		} else {
			defer fw.Close()
			logger.Info("watching dictionary", logging.String("file", dict))
		}
	}

	summary := handlers.NewSummaryHandler(deps.Service)
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Mode:             cfg.Server.Mode,
		HealthHandler:    handlers.NewHealthHandler(Version, summary.Ready()),
		SummaryHandler:   summary,
		Logger:           logger.Named("http"),
		MetricsCollector: deps.Collector,
	})
	srv := httpserver.NewServer(httpserver.ServerConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop(context.Background())
	})
	g.Go(func() error {
		return watchLoop(gctx, state.triggers, debounce, state.runOnce)
	})
	return g.Wait()
}
