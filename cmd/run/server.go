package run

import (
	"github.com/spf13/cobra"

	"geph5/internal/conf"
	"geph5/internal/server"
)

var serverFlags struct {
	listen    string
	cookie    string
	target    string
	transport string
	logLevel  string
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run a server from command-line flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &conf.Conf{
			Role:   "server",
			Listen: serverFlags.listen,
			Cookie: serverFlags.cookie,
			Target: serverFlags.target,
		}
		cfg.Transport.Type = serverFlags.transport
		cfg.Log.Level = serverFlags.logLevel

		cfg, err := conf.Finish(cfg)
		if err != nil {
			return err
		}
		return start(cfg)
	},
}

func init() {
	serverCmd.Flags().StringVar(&serverFlags.listen, "listen", "0.0.0.0:19999", "address to listen on")
	serverCmd.Flags().StringVar(&serverFlags.cookie, "sosistab3", "", "obfuscation cookie; plaintext carrier when empty")
	serverCmd.Flags().StringVar(&serverFlags.target, "target", "", "address tunneled traffic is relayed to; echo mode when empty")
	serverCmd.Flags().StringVar(&serverFlags.transport, "transport", "tcp", "carrier transport (tcp, kcp or quic)")
	serverCmd.Flags().StringVar(&serverFlags.logLevel, "log-level", "info", "log level (debug, info, warn or error)")
}

func startServer(cfg *conf.Conf) error {
	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	return srv.Start()
}
