package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/casualchat/internal/auth"
	"github.com/example/casualchat/internal/config"
	"github.com/example/casualchat/internal/scheduler"
	"github.com/example/casualchat/internal/trigger"
	"github.com/example/casualchat/internal/web"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServerCmd() *cobra.Command {
	var (
		migrateUp bool
		noTrigger bool
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the execution runner, the trigger and the ops HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(ctx, migrateUp)
			if err != nil {
				return err
			}
			defer a.Close()

			engine, err := a.engine()
			if err != nil {
				return err
			}
			var d trigger.Dispatcher
			if !noTrigger {
				d = a.dispatcher()
			}
			guard, t, err := prepare(a.cfg, d, a.log)
			if err != nil {
				return err
			}

			// runner
			r := &scheduler.Runner{
				Store:    a.repo,
				Engine:   engine,
				Interval: a.cfg.PollInterval,
				Lease:    a.cfg.LeaseTTL,
				Now:      time.Now,
				Log:      a.log,
			}
			loops := []func(context.Context) error{r.Run}
			if t != nil {
				loops = append(loops, t.Run)
			}
			wait := goAll(ctx, loops...)

			// web
			ws := &web.Server{Executions: a.repo, Ping: a.db.Ping, Guard: guard, Log: a.log}
			err = web.Start(ctx, a.cfg.ListenAddr, ws.Routes(), a.log)
			cancel()
			wait()
			return err
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().BoolVar(&noTrigger, "no-trigger", false, "do not start the cron trigger (runner and ops server only)")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}

// prepare builds the parts of the server that can reject their
// configuration. It starts nothing, so a failure here leaves no goroutine
// behind. A nil dispatcher means no trigger.
func prepare(cfg config.Config, d trigger.Dispatcher, log logrus.FieldLogger) (*auth.Guard, *trigger.Trigger, error) {
	guard, err := auth.NewGuard(cfg.OpsTokenHash)
	if err != nil {
		return nil, nil, err
	}
	if !guard.Enabled() {
		log.Warn("OPS_TOKEN_HASH is not set; ops endpoints are unauthenticated")
	}
	if d == nil {
		return guard, nil, nil
	}
	t, err := trigger.New(cfg.TriggerCron, cfg.TriggerLocation, d, dispatchTimeout, log)
	if err != nil {
		return nil, nil, err
	}
	return guard, t, nil
}

// goAll runs each loop in its own goroutine. The returned func blocks until
// all of them have returned.
func goAll(ctx context.Context, loops ...func(context.Context) error) (wait func()) {
	var wg sync.WaitGroup
	for _, loop := range loops {
		wg.Add(1)
		go func(loop func(context.Context) error) {
			defer wg.Done()
			_ = loop(ctx)
		}(loop)
	}
	return wg.Wait
}
