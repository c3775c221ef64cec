package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ed25519"

	"github.com/houzhh15/smolcert/cert"
)

type issueOptions struct {
	subject    string
	key        string
	issuerKey  string
	issuerCert string
	notBefore  uint64
	notAfter   uint64
	validFor   time.Duration
	exts       []string
	out        string
	pem        bool
}

func newIssueCmd() *cobra.Command {
	opts := &issueOptions{}

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a certificate",
		Long: `Issue a certificate for the public half of --key.
Without --issuer-cert the certificate is self-signed by --key.`,
		Args: cobra.NoArgs,
		Example: `  smolcert issue --subject root-A --key root.key --out root.pem --pem
  smolcert issue --subject device-1 --key device.key --issuer-cert root.pem --issuer-key root.key --out device.cert`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := runIssue(opts, time.Now())
			if err != nil {
				return err
			}
			if err := cert.WriteCertificateFile(opts.out, c, opts.pem); err != nil {
				return err
			}
			fp, err := cert.Fingerprint(c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", c.Subject, fp)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.subject, "subject", "", "Certificate subject")
	cmd.Flags().StringVar(&opts.key, "key", "", "Subject private key file")
	cmd.Flags().StringVar(&opts.issuerCert, "issuer-cert", "", "Issuer certificate file")
	cmd.Flags().StringVar(&opts.issuerKey, "issuer-key", "", "Issuer private key file")
	cmd.Flags().Uint64Var(&opts.notBefore, "not-before", 0, "Validity start (unix seconds, default now)")
	cmd.Flags().Uint64Var(&opts.notAfter, "not-after", 0, "Validity end, exclusive (unix seconds, default not-before + valid-for)")
	cmd.Flags().DurationVar(&opts.validFor, "valid-for", 365*24*time.Hour, "Validity duration when --not-after is unset")
	cmd.Flags().StringArrayVar(&opts.exts, "ext", nil, "Extension key=value (repeatable)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Certificate output file")
	cmd.Flags().BoolVar(&opts.pem, "pem", false, "Write PEM instead of raw CBOR")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// runIssue builds and signs the certificate described by opts
func runIssue(opts *issueOptions, now time.Time) (*cert.Certificate, error) {
	subjectKey, err := cert.LoadPrivateKeyFile(opts.key)
	if err != nil {
		return nil, err
	}

	exts, err := parseExtensions(opts.exts)
	if err != nil {
		return nil, err
	}

	notBefore := opts.notBefore
	if notBefore == 0 {
		notBefore = uint64(now.Unix())
	}
	notAfter := opts.notAfter
	if notAfter == 0 {
		notAfter = notBefore + uint64(opts.validFor/time.Second)
	}

	if opts.issuerCert == "" {
		if opts.issuerKey != "" {
			return nil, errors.New("--issuer-key requires --issuer-cert")
		}
		return cert.NewSelfSigned(opts.subject, subjectKey, notBefore, notAfter, exts...)
	}

	if opts.issuerKey == "" {
		return nil, errors.New("--issuer-cert requires --issuer-key")
	}
	issuer, err := cert.LoadCertificateFile(opts.issuerCert)
	if err != nil {
		return nil, err
	}
	issuerKey, err := cert.LoadPrivateKeyFile(opts.issuerKey)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(issuerKey.Public().(ed25519.PublicKey), issuer.PubKey) {
		return nil, fmt.Errorf("issuer key does not match the public key of %s", issuer.Subject)
	}

	return cert.SignCertificate(&cert.Certificate{
		Subject:    opts.subject,
		Issuer:     issuer.Subject,
		PubKey:     subjectKey.Public().(ed25519.PublicKey),
		NotBefore:  notBefore,
		NotAfter:   notAfter,
		Extensions: exts,
	}, issuerKey)
}

func parseExtensions(specs []string) ([]cert.Extension, error) {
	var exts []cert.Extension
	for _, s := range specs {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid extension %q (want key=value)", s)
		}
		exts = append(exts, cert.Extension{Key: []byte(k), Value: []byte(v)})
	}
	return exts, nil
}
