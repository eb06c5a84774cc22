// Package schedule implements the long-running scheduled pipeline command.
package schedule

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/cmd/common"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/app"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/scheduler"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/server"
)

// Command returns the schedule command.
func Command(version string) *cobra.Command {
	var (
		listen string
		runNow bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run discover, enrich and publish on a schedule",
		Long: `Run the pipeline (discover the configured object types, enrich objects that never
succeeded, publish pending objects) on the cron schedule in scheduler.spec. A pass
is skipped while the previous one is still running. Health, metrics and scheduler
status are served over HTTP.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			// Fail on configuration before the first tick.
			for _, validate := range []func() error{
				deps.Config.ValidateDatabase, deps.Config.ValidateMetasys, deps.Config.ValidateEntraOS,
			} {
				if err = validate(); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			a := deps.App
			sched, err := scheduler.New(deps.Config.Scheduler.Spec, func(ctx context.Context) error {
				_, runErr := a.RunPipeline(ctx)
				return runErr
			}, deps.Logger)
			if err != nil {
				return err
			}

			srv, err := newServer(ctx, deps, a, sched, version,
				common.FlagOr(cmd, "listen", listen, deps.Config.Scheduler.ListenAddress))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			srvErr := make(chan error, 1)
			go func() { srvErr <- srv.Run(ctx) }()

			if runNow {
				if runErr := sched.RunNow(ctx); runErr != nil && !errors.Is(runErr, scheduler.ErrAlreadyRunning) {
					deps.Logger.Warn("Initial pass failed", logger.Error(runErr))
				}
			}

			schedErr := make(chan error, 1)
			go func() { schedErr <- sched.Start(ctx) }()

			select {
			case err = <-srvErr:
				cancel()
				<-schedErr
				return err
			case err = <-schedErr:
				cancel()
				return errors.Join(err, <-srvErr)
			}
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "status server address (default from scheduler.listen_address)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run one pass immediately before waiting for the schedule")
	return cmd
}

func newServer(
	ctx context.Context, deps common.CommandDeps, a *app.App, sched *scheduler.Scheduler, version, listen string,
) (*server.Server, error) {
	db, err := a.DB(ctx)
	if err != nil {
		return nil, err
	}
	checks := map[string]server.HealthChecker{
		"database": server.DatabaseHealthChecker(db.PingContext),
	}

	rdb, err := a.Redis(ctx)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		checks["redis"] = server.RedisHealthChecker(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	return server.New(server.Config{
		Address:     listen,
		ServiceName: "metasys-crawler",
		Version:     version,
		Debug:       deps.Config.Logging.Level == "debug",
	}, deps.Logger, a.Metrics.Registry(), func() any { return sched.Status() }, checks), nil
}
