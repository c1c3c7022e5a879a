// fabricd 运行一个 fabric 运行时，或离线校验配置、生成组合体的连线计划。
//
//	fabricd serve --config-dir ./configs
//	fabricd validate --config-dir ./configs
//	fabricd generate --assembly app.yaml
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/config"
	"github.com/ceyewan/fabric/runtime"
	"github.com/ceyewan/fabric/xerrors"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

type cliOptions struct {
	configDir  string
	configName string
	envPrefix  string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:          "fabricd",
		Short:        "Run a fabric runtime node or controller",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", "./configs", "directory containing the runtime config")
	root.PersistentFlags().StringVar(&opts.configName, "config-name", "fabric", "config file name without extension")
	root.PersistentFlags().StringVar(&opts.envPrefix, "env-prefix", config.DefaultEnvPrefix, "environment variable prefix")

	root.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		newGenerateCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig 读取并校验运行时配置，返回的 Loader 可用于监听变更
func loadConfig(ctx context.Context, opts *cliOptions, logger clog.Logger) (*runtime.Config, config.Loader, error) {
	loader, err := config.New(&config.Config{
		Name:      opts.configName,
		Paths:     []string{opts.configDir},
		EnvPrefix: opts.envPrefix,
	}, config.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, nil, xerrors.Wrap(err, "load config")
	}
	if err := loader.Validate(); err != nil {
		return nil, nil, err
	}

	var cfg runtime.Config
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, nil, xerrors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, loader, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fabricd version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
