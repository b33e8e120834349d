package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"tomdash/internal/plots"
	"tomdash/internal/targets"
)

func newPlotCmd() *cobra.Command {
	var (
		username string
		ids      []int64
		pretty   bool
	)
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Print the target distribution figure JSON for a user",
		Long: `Runs the same computation as the TargetDistributionView widget.
Without --targets every target the user can view is used as the filter.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			td := &plots.TargetDistribution{Users: e.users, Perms: e.perms, Targets: e.targets, Log: e.log}

			filter := ids
			if !cmd.Flags().Changed("targets") {
				u, err := e.users.LookupUsername(cmd.Context(), username)
				if err != nil {
					return err
				}
				set, err := e.perms.ViewableTargets(cmd.Context(), u)
				if err != nil {
					return err
				}
				filter = targets.SortedIDs(set)
			}

			fig, err := td.Plot(cmd.Context(), username, filter)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(fig)
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "username to plot for")
	cmd.Flags().Int64SliceVar(&ids, "targets", nil, "comma separated target ids")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
