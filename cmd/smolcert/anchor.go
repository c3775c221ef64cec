package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/houzhh15/smolcert/cert"
)

func newAnchorCmd() *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "anchor",
		Short: "Manage the trust anchor registry",
	}
	cmd.PersistentFlags().StringVar(&database, "database", "", "Anchor registry database (sqlite)")
	_ = cmd.MarkPersistentFlagRequired("database")

	open := func() (*cert.Registry, func(), error) {
		db, err := gorm.Open(sqlite.Open(database), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		reg, err := cert.NewRegistry(db, nil)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		return reg, closeDB, nil
	}

	var comment string
	addCmd := &cobra.Command{
		Use:     "add <cert-file>...",
		Short:   "Register the subject and public key of certificates as trust anchors",
		Args:    cobra.MinimumNArgs(1),
		Example: `  smolcert anchor add --database anchors.db root.pem`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, closeDB, err := open()
			if err != nil {
				return err
			}
			defer closeDB()

			for _, path := range args {
				certs, err := cert.LoadBundleFile(path)
				if err != nil {
					return err
				}
				for _, c := range certs {
					if err := reg.RegisterCertificate(c, comment); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", c.Subject)
				}
			}
			return nil
		},
	}
	addCmd.Flags().StringVar(&comment, "comment", "", "Free-form note stored with the anchor")

	var (
		status string
		asJSON bool
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List trust anchors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, closeDB, err := open()
			if err != nil {
				return err
			}
			defer closeDB()

			var all []*cert.AnchorInfo
			for page := 1; ; page++ {
				infos, total, err := reg.List(page, 100, cert.AnchorStatus(status))
				if err != nil {
					return err
				}
				all = append(all, infos...)
				if len(infos) == 0 || int64(len(all)) >= total {
					break
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(all)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "IDENTITY\tSTATUS\tFINGERPRINT\tCOMMENT")
			for _, a := range all {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Identity, a.Status, a.Fingerprint, a.Comment)
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "Only anchors with this status (active, disabled)")
	listCmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output in JSON format")

	var reason string
	disableCmd := &cobra.Command{
		Use:   "disable <identity>",
		Short: "Stop trusting an anchor while keeping its record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, closeDB, err := open()
			if err != nil {
				return err
			}
			defer closeDB()
			return reg.Disable(args[0], reason)
		},
	}
	disableCmd.Flags().StringVar(&reason, "reason", "", "Why the anchor was disabled")

	removeCmd := &cobra.Command{
		Use:   "remove <identity>",
		Short: "Delete an anchor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, closeDB, err := open()
			if err != nil {
				return err
			}
			defer closeDB()
			return reg.Remove(args[0])
		},
	}

	cmd.AddCommand(addCmd, listCmd, disableCmd, removeCmd)
	return cmd
}
