package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newGrantCmd() *cobra.Command {
	var (
		targetID  int64
		username  string
		groupName string
	)
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Let a user or group view a target",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (username == "") == (groupName == "") {
				return errors.New("exactly one of --user or --group is required")
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			t, err := e.targets.GetByID(cmd.Context(), targetID)
			if err != nil {
				return err
			}
			if t == nil {
				return fmt.Errorf("target %d not found", targetID)
			}

			if username != "" {
				u, err := e.users.LookupUsername(cmd.Context(), username)
				if err != nil {
					return err
				}
				if err := e.perms.GrantUser(cmd.Context(), t.ID, u.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s can view %s\n", u.Username, t.Name)
				return nil
			}

			g, err := e.perms.GroupByName(cmd.Context(), groupName)
			if err != nil {
				return err
			}
			if err := e.perms.GrantGroup(cmd.Context(), t.ID, g.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "group %s can view %s\n", g.Name, t.Name)
			return nil
		},
	}
	cmd.Flags().Int64Var(&targetID, "target", 0, "target id")
	cmd.Flags().StringVar(&username, "user", "", "username")
	cmd.Flags().StringVar(&groupName, "group", "", "group name")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}
