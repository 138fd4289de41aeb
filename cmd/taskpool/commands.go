package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/taskpool/internal/config"
	"github.com/vnykmshr/taskpool/internal/logging"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskpool",
		Short:         "Round-robin worker pool load driver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newVersionCommand())
	return root
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit synthetic tasks to a pool and print the per-worker distribution",
		Long: `Builds a pool, submits --tasks tasks that each sleep --task-duration and
prints how many tasks every worker ran. Every flag can also be set through a
TASKPOOL_* environment variable, e.g. TASKPOOL_TASK_DURATION=50ms.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			logger, flush, err := logging.Install(cfg.LogLevel, cfg.LogDevelopment)
			if err != nil {
				return err
			}
			defer flush()

			return runLoad(cmd.Context(), cfg, logger, newRegistry(), cmd.OutOrStdout())
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taskpool %s (%s, GOMAXPROCS=%d)\n",
				version, runtime.Version(), runtime.GOMAXPROCS(0))
		},
	}
}
