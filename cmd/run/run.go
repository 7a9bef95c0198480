// Package run wires the command-line interface to the client and server
// entry points.
package run

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"geph5/internal/conf"
	"geph5/internal/flog"
)

var rootCmd = &cobra.Command{
	Use:           "geph5",
	Short:         "An obfuscated tunnel that looks like nothing at all",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(cookieCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var confPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a client or server from a YAML config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := conf.LoadFromFile(confPath)
		if err != nil {
			return err
		}
		return start(cfg)
	},
}

func init() {
	runCmd.Flags().StringVarP(&confPath, "conf", "c", "", "path to the YAML config file")
	runCmd.MarkFlagRequired("conf")
}

func start(cfg *conf.Conf) error {
	flog.SetLevel(cfg.Log.Level)
	if cfg.Role == "server" {
		return startServer(cfg)
	}
	return startClient(cfg)
}
