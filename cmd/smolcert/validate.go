package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/houzhh15/smolcert/cert"
	"github.com/houzhh15/smolcert/config"
	"github.com/houzhh15/smolcert/service"
)

type validateOptions struct {
	configPath string
	bundle     bool
	at         uint64
	asJSON     bool
}

type validateResult struct {
	cert.Outcome
	Subject string `json:"subject,omitempty"`
}

func newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <leaf> [intermediate...]",
		Short: "Validate a certificate chain against the configured trust anchors",
		Long: `Validate a leaf-first certificate chain. Files may hold raw certificates or
one or more PEM blocks; certificates are taken in argument order.
Exits 2 when the chain is rejected.`,
		Args: cobra.MinimumNArgs(1),
		Example: `  smolcert validate --config smolcert.yaml device.cert inter.cert
  smolcert validate --config smolcert.yaml --bundle chain.pem
  smolcert validate --config smolcert.yaml --at 1700000000 -j device.cert`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file (YAML or JSON)")
	cmd.Flags().BoolVar(&opts.bundle, "bundle", false, "Certificates are unordered; find the leaf")
	cmd.Flags().Uint64Var(&opts.at, "at", 0, "Validate at this unix time instead of now")
	cmd.Flags().BoolVarP(&opts.asJSON, "json", "j", false, "Output in JSON format")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runValidate(cmd *cobra.Command, opts *validateOptions, args []string) error {
	cfg, err := config.NewLoader().Load(opts.configPath)
	if err != nil {
		return err
	}
	// stdout carries the result
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}

	var chain []*cert.Certificate
	for _, path := range args {
		certs, err := cert.LoadBundleFile(path)
		if err != nil {
			return err
		}
		chain = append(chain, certs...)
	}

	var svcOpts []service.Option
	if opts.at != 0 {
		svcOpts = append(svcOpts, service.WithClock(cert.FixedClock(opts.at)))
	}
	svc, err := service.New(cfg, svcOpts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	leaf := chain[0]
	if opts.bundle {
		leaf, err = svc.Validator().ValidateBundle(cmd.Context(), chain)
	} else {
		err = svc.Validator().ValidateChain(cmd.Context(), chain)
	}

	result := validateResult{Outcome: cert.OutcomeOf(err)}
	if err == nil {
		result.Subject = leaf.Subject
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if jerr := enc.Encode(result); jerr != nil {
			return jerr
		}
	} else if result.Trusted {
		fmt.Fprintf(out, "trusted: %s\n", result.Subject)
	} else {
		fmt.Fprintf(out, "untrusted: kind=%s position=%d: %s\n", result.Kind, result.Position, result.Reason)
	}

	if err != nil {
		return fmt.Errorf("%w: %v", errUntrusted, err)
	}
	return nil
}
