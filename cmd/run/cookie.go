package run

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"geph5/internal/sosistab3"
)

var cookieFlags struct {
	obfsLengths bool
	obfsTiming  bool
}

var cookieCmd = &cobra.Command{
	Use:   "cookie",
	Short: "Generate a fresh obfuscation cookie",
	Long:  "Generates a random cookie to share between a client and a server. Both sides must use the exact same cookie string, including its obfuscation parameters.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cookie, err := sosistab3.RandomCookieWithParams(rand.Reader, sosistab3.ObfsParams{
			ObfsLengths: cookieFlags.obfsLengths,
			ObfsTiming:  cookieFlags.obfsTiming,
		})
		if err != nil {
			return err
		}
		fmt.Println(cookie.String())
		return nil
	},
}

func init() {
	cookieCmd.Flags().BoolVar(&cookieFlags.obfsLengths, "obfs-lengths", false, "pad frames to hide payload lengths")
	cookieCmd.Flags().BoolVar(&cookieFlags.obfsTiming, "obfs-timing", false, "jitter writes to hide payload timing")
}
