package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/nerrad567/appaccess/internal/access"
	"github.com/nerrad567/appaccess/internal/client"
)

func (c *cli) permsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "perms",
		Aliases: []string{"permissions"},
		Short:   "List and edit permission grants",
	}
	cmd.AddCommand(c.permsListCmd(), c.permsGetCmd(), c.permsSetCmd(), c.permsRemoveCmd())
	return cmd
}

func (c *cli) permsListCmd() *cobra.Command {
	var userID, appID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List grants, optionally for one user or application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				perms []client.Permission
				err   error
			)
			switch {
			case userID != "":
				perms, err = c.client.Permissions.ListForUser(cmd.Context(), userID)
			case appID != "":
				perms, err = c.client.Permissions.ListForApplication(cmd.Context(), appID)
			default:
				perms, err = c.client.Permissions.List(cmd.Context())
			}
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(perms))
			for _, p := range perms {
				rows = append(rows, []string{p.UserEmail, p.ApplicationName, string(p.PermissionType), p.UserID, p.ApplicationID})
			}
			return c.render(perms, []string{"USER", "APPLICATION", "LEVEL", "USER ID", "APPLICATION ID"}, rows)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "only grants held by this user ID")
	cmd.Flags().StringVar(&appID, "app", "", "only grants on this application ID")
	cmd.MarkFlagsMutuallyExclusive("user", "app")
	return cmd
}

func (c *cli) permsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-id> <application-id>",
		Short: "Show the grant a user holds on an application",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.client.Permissions.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			row := []string{p.UserID, p.ApplicationID, string(p.PermissionType), p.ID}
			return c.render(p, []string{"USER ID", "APPLICATION ID", "LEVEL", "ID"}, [][]string{row})
		},
	}
}

func (c *cli) permsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <user-id> <application-id> <admin|viewer>",
		Short: "Grant or change a user's access to an application (admin)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.client.Permissions.Set(cmd.Context(), args[0], args[1], access.Role(args[2]))
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(p)
			}
			c.success("Granted %s on %s to %s", p.PermissionType, p.ApplicationID, p.UserID)
			return nil
		},
	}
}

func (c *cli) permsRemoveCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "remove <user-id> [application-id]",
		Short: "Revoke one grant, or every grant a user holds with --all (admin)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				n, err := c.client.Permissions.RemoveAllForUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(map[string]int{"removed": n})
				}
				c.success("Removed %s", plural(n, "permission"))
				return nil
			}

			if len(args) != 2 {
				return errors.New("application-id is required unless --all is set")
			}
			if err := c.client.Permissions.Remove(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			c.success("Removed access to %s for %s", args[1], args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "remove every grant held by the user")
	return cmd
}
