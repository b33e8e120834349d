package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTargetCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "target", Short: "Import and export targets"}

	var grantTo string
	importCmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Create targets from a CSV file with name,type,ra,dec columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ids, err := e.targets.ImportCSV(cmd.Context(), f)
			if err != nil {
				e.log.Error("import stopped", zap.Int("imported", len(ids)), zap.Error(err))
				return err
			}

			if grantTo != "" {
				u, err := e.users.LookupUsername(cmd.Context(), grantTo)
				if err != nil {
					return err
				}
				for _, id := range ids {
					if err := e.perms.GrantUser(cmd.Context(), id, u.ID); err != nil {
						return err
					}
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d targets from %s\n", len(ids), args[0])
			return nil
		},
	}
	importCmd.Flags().StringVar(&grantTo, "grant", "", "username to grant view access on the imported targets")

	exportCmd := &cobra.Command{
		Use:   "export <file.csv>",
		Short: "Write every target to a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := e.targets.ExportCSV(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d targets to %s\n", n, args[0])
			return nil
		},
	}

	cmd.AddCommand(importCmd, exportCmd)
	return cmd
}
