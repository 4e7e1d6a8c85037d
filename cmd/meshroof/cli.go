package main

import (
    "github.com/spf13/cobra"
)

// Options holds the flags shared by every subcommand.
type Options struct {
    ConfigPath string
}

func newRootCmd() *cobra.Command {
    var opts Options
    cmd := &cobra.Command{
        Use:           "meshroof",
        Short:         "Mesh relay node control plane",
        SilenceUsage:  true,
        SilenceErrors: true,
        RunE: func(cmd *cobra.Command, args []string) error {
            return runNode(cmd.Context(), opts)
        },
    }
    cmd.Version = version
    cmd.SetVersionTemplate("meshroof {{.Version}} (built " + built + ")\n")
    cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")

    cmd.AddCommand(newRunCmd(&opts), newNVMCmd(&opts), newConnectCmd())
    return cmd
}

func newRunCmd(opts *Options) *cobra.Command {
    return &cobra.Command{
        Use:   "run",
        Short: "Run the node (default)",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            return runNode(cmd.Context(), *opts)
        },
    }
}

func newNVMCmd(opts *Options) *cobra.Command {
    cmd := &cobra.Command{
        Use:   "nvm",
        Short: "Inspect or reset the persisted record offline",
    }
    cmd.AddCommand(&cobra.Command{
        Use:   "dump",
        Short: "Print the persisted record as YAML",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            return dumpNVM(*opts, cmd.OutOrStdout())
        },
    }, &cobra.Command{
        Use:   "reset",
        Short: "Overwrite the persisted record with an empty one",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            return resetNVM(*opts, cmd.OutOrStdout())
        },
    })
    return cmd
}
