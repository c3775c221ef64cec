package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Exit codes
const (
	ExitSuccess    = 0
	ExitInputError = 1
	ExitUntrusted  = 2
)

// errUntrusted marks a completed validation that rejected the chain
var errUntrusted = errors.New("certificate chain is not trusted")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "smolcert",
		Short:         "Issue, inspect and validate compact ed25519 certificates",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	cmd.AddCommand(newKeygenCmd())
	cmd.AddCommand(newIssueCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAnchorCmd())
	return cmd
}

// exitCode maps a command error to the process exit status
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errUntrusted):
		return ExitUntrusted
	default:
		return ExitInputError
	}
}

func main() {
	err := newRootCmd().Execute()
	if err != nil && !errors.Is(err, errUntrusted) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}
