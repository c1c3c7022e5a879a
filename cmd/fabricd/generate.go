package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ceyewan/fabric/assembly"
	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/runtime"
)

func newValidateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the runtime config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd.Context(), opts, clog.Discard())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: runtime=%s domain=%s mode=%s\n",
				cfg.Host.RuntimeName, cfg.Host.Domain, cfg.Host.Mode)
			return nil
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var assemblyPath string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print the physical wiring plan of a composite descriptor as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asm, err := assembly.LoadFile(assemblyPath)
			if err != nil {
				return err
			}
			rt, err := runtime.New(&runtime.Config{
				Host: runtime.HostInfo{RuntimeName: "fabricd-generate", Mode: runtime.ModeController},
			}, runtime.WithLogger(clog.Discard()))
			if err != nil {
				return err
			}
			plan, err := runtime.GeneratePlan(rt.WireGenerator(), rt.ChannelGenerator(), asm)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(plan)
		},
	}
	cmd.Flags().StringVar(&assemblyPath, "assembly", "", "composite descriptor file")
	_ = cmd.MarkFlagRequired("assembly")
	return cmd
}

func deploy(ctx context.Context, rt *runtime.Runtime, path string) error {
	asm, err := assembly.LoadFile(path)
	if err != nil {
		return err
	}
	_, err = rt.Deploy(ctx, asm)
	return err
}
