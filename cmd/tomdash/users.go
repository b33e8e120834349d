package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tomdash/internal/auth"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}

	var (
		username, email, password string
		superuser                 bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := auth.NewUser(username, email, password, superuser)
			if err != nil {
				return err
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.users.CreateUser(cmd.Context(), u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "username")
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&password, "password", "", "password")
	create.Flags().BoolVar(&superuser, "superuser", false, "can view every target")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	var revoke bool
	promote := &cobra.Command{
		Use:   "promote <username>",
		Short: "Let a user view every target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			u, err := e.users.LookupUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := e.users.SetSuperuser(cmd.Context(), u.ID, !revoke); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s superuser=%t\n", u.Username, !revoke)
			return nil
		},
	}
	promote.Flags().BoolVar(&revoke, "revoke", false, "remove superuser instead")

	cmd.AddCommand(create, promote)
	return cmd
}

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "group", Short: "Manage groups"}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			g, err := e.perms.CreateGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created group %s (%s)\n", g.Name, g.ID)
			return nil
		},
	}

	addMember := &cobra.Command{
		Use:   "add-member <group> <username>",
		Short: "Add a user to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			g, err := e.perms.GroupByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			u, err := e.users.LookupUsername(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return e.perms.AddMember(cmd.Context(), g.ID, u.ID)
		},
	}

	cmd.AddCommand(create, addMember)
	return cmd
}
