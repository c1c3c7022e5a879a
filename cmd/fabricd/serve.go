package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/runtime"
	"github.com/ceyewan/fabric/xerrors"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *cliOptions) *cobra.Command {
	var assemblyPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the runtime and block until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, assemblyPath)
		},
	}
	cmd.Flags().StringVar(&assemblyPath, "assembly", "", "optional composite descriptor to deploy after start")
	return cmd
}

func serve(ctx context.Context, opts *cliOptions, assemblyPath string) error {
	cfg, loader, err := loadConfig(ctx, opts, clog.Discard())
	if err != nil {
		return err
	}
	logger, err := clog.New(cfg.Log, clog.WithNamespace("fabricd"))
	if err != nil {
		return xerrors.Wrap(err, "create logger")
	}
	defer logger.Flush()

	rt, err := runtime.New(cfg, runtime.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := rt.Start(ctx); err != nil {
		return err
	}

	if assemblyPath != "" {
		if err := deploy(ctx, rt, assemblyPath); err != nil {
			logger.Error("deploy failed", clog.String("assembly", assemblyPath), clog.Error(err))
		}
	}

	// 日志级别支持热更新
	if changes, err := loader.Watch(ctx, "log.level"); err == nil {
		go func() {
			for ev := range changes {
				level, err := clog.ParseLevel(fmt.Sprint(ev.Value))
				if err != nil {
					logger.Warn("ignore invalid log level", clog.Any("value", ev.Value))
					continue
				}
				if err := logger.SetLevel(level); err == nil {
					logger.Info("log level changed", clog.Any("level", ev.Value))
				}
			}
		}()
	}

	logger.Info("fabricd serving", clog.String("version", version))
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown finished with errors", clog.Error(err))
		return err
	}
	return nil
}
