package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/houzhh15/smolcert/cert"
)

// certSummary is the printable form of a certificate
type certSummary struct {
	Subject     string            `json:"subject"`
	Issuer      string            `json:"issuer"`
	PublicKey   string            `json:"public_key"`
	NotBefore   uint64            `json:"not_before"`
	NotAfter    uint64            `json:"not_after"`
	SelfSigned  bool              `json:"self_signed"`
	Fingerprint string            `json:"fingerprint"`
	Extensions  map[string]string `json:"extensions,omitempty"`
}

func summarize(c *cert.Certificate) (*certSummary, error) {
	fp, err := cert.Fingerprint(c)
	if err != nil {
		return nil, err
	}
	s := &certSummary{
		Subject:     c.Subject,
		Issuer:      c.Issuer,
		PublicKey:   hex.EncodeToString(c.PubKey),
		NotBefore:   c.NotBefore,
		NotAfter:    c.NotAfter,
		SelfSigned:  c.IsSelfSigned(),
		Fingerprint: fp,
	}
	if len(c.Extensions) > 0 {
		s.Extensions = make(map[string]string, len(c.Extensions))
		for _, e := range c.Extensions {
			s.Extensions[string(e.Key)] = hex.EncodeToString(e.Value)
		}
	}
	return s, nil
}

func newInspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <file>...",
		Short: "Print certificate contents",
		Args:  cobra.MinimumNArgs(1),
		Example: `  smolcert inspect device.cert
  smolcert inspect -j chain.pem`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var summaries []*certSummary
			for _, path := range args {
				certs, err := cert.LoadBundleFile(path)
				if err != nil {
					return err
				}
				for _, c := range certs {
					s, err := summarize(c)
					if err != nil {
						return err
					}
					summaries = append(summaries, s)
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}
			for i, s := range summaries {
				if i > 0 {
					fmt.Fprintln(out)
				}
				printSummary(out, s)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output in JSON format")
	return cmd
}

func printSummary(w io.Writer, s *certSummary) {
	fmt.Fprintf(w, "Subject:     %s\n", s.Subject)
	fmt.Fprintf(w, "Issuer:      %s\n", s.Issuer)
	fmt.Fprintf(w, "Public key:  %s\n", s.PublicKey)
	fmt.Fprintf(w, "Not before:  %d (%s)\n", s.NotBefore, formatUnix(s.NotBefore))
	fmt.Fprintf(w, "Not after:   %d (%s)\n", s.NotAfter, formatUnix(s.NotAfter))
	fmt.Fprintf(w, "Self-signed: %t\n", s.SelfSigned)
	fmt.Fprintf(w, "Fingerprint: %s\n", s.Fingerprint)
	if len(s.Extensions) > 0 {
		keys := make([]string, 0, len(s.Extensions))
		for k := range s.Extensions {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, "Extensions:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s = %s\n", k, s.Extensions[k])
		}
	}
}

func formatUnix(sec uint64) string {
	if sec > 1<<62 {
		return "far future"
	}
	return time.Unix(int64(sec), 0).UTC().Format(time.RFC3339)
}
