package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ed25519"

	"github.com/houzhh15/smolcert/cert"
)

func newKeygenCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:     "keygen",
		Short:   "Generate an ed25519 private key",
		Args:    cobra.NoArgs,
		Example: `  smolcert keygen --out root.key`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			if err := cert.WritePrivateKeyFile(out, priv); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(pub))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Private key output file (PKCS#8 PEM)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
