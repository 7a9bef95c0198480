package run

import (
	"github.com/spf13/cobra"

	"geph5/internal/client"
	"geph5/internal/conf"
)

var clientFlags struct {
	server    string
	listen    string
	cookie    string
	transport string
	logLevel  string
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Run a client from command-line flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &conf.Conf{
			Role:   "client",
			Server: clientFlags.server,
			Listen: clientFlags.listen,
			Cookie: clientFlags.cookie,
		}
		cfg.Transport.Type = clientFlags.transport
		cfg.Log.Level = clientFlags.logLevel

		cfg, err := conf.Finish(cfg)
		if err != nil {
			return err
		}
		return start(cfg)
	},
}

func init() {
	clientCmd.Flags().StringVar(&clientFlags.server, "connect", "", "server address to tunnel to")
	clientCmd.Flags().StringVar(&clientFlags.listen, "listen", "", "local address to accept connections on")
	clientCmd.Flags().StringVar(&clientFlags.cookie, "sosistab3", "", "obfuscation cookie; plaintext carrier when empty")
	clientCmd.Flags().StringVar(&clientFlags.transport, "transport", "tcp", "carrier transport (tcp, kcp or quic)")
	clientCmd.Flags().StringVar(&clientFlags.logLevel, "log-level", "info", "log level (debug, info, warn or error)")
	clientCmd.MarkFlagRequired("connect")
}

func startClient(cfg *conf.Conf) error {
	cli, err := client.New(cfg)
	if err != nil {
		return err
	}
	return cli.Start()
}
