package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/example/casualchat/internal/auth"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	var opsToken bool

	c := &cobra.Command{
		Use:   "keys",
		Short: "Generate a REGISTRY_KEY value (base64), optionally with an ops token",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := make([]byte, 32)
			if _, err := rand.Read(key); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "export REGISTRY_KEY=%s\n", base64.StdEncoding.EncodeToString(key))

			if opsToken {
				token, hash, err := auth.NewToken()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "# bearer token for the ops endpoints; keep it, only the hash is configured\n")
				fmt.Fprintf(out, "# OPS_TOKEN=%s\n", token)
				fmt.Fprintf(out, "export OPS_TOKEN_HASH='%s'\n", hash)
			}
			return nil
		},
	}

	c.Flags().BoolVar(&opsToken, "ops-token", false, "also generate an ops bearer token and its OPS_TOKEN_HASH")
	return c
}
