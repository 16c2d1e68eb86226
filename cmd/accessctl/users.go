package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nerrad567/appaccess/internal/access"
	"github.com/nerrad567/appaccess/internal/client"
)

func (c *cli) usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "List and manage user accounts",
	}
	cmd.AddCommand(c.usersListCmd(), c.usersCreateCmd(), c.usersDeleteCmd())
	return cmd
}

func (c *cli) usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := c.client.Users.List(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(users))
			for _, u := range users {
				rows = append(rows, []string{u.ID, u.Name, u.Email, string(u.Role), strconv.FormatBool(u.IsActive)})
			}
			return c.render(users, []string{"ID", "NAME", "EMAIL", "ROLE", "ACTIVE"}, rows)
		},
	}
}

func (c *cli) usersCreateCmd() *cobra.Command {
	var nu client.NewUser
	var role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nu.Role = access.Role(role)
			u, err := c.client.Users.Create(cmd.Context(), nu)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(u)
			}
			c.success("Created user %s (%s)", u.ID, u.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&nu.Name, "name", "", "display name")
	cmd.Flags().StringVar(&nu.Email, "email", "", "login email")
	cmd.Flags().StringVar(&nu.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(access.RoleViewer), "admin or viewer")
	return cmd
}

func (c *cli) usersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete an account and its grants (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client.Users.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(res)
			}
			c.success("Deleted user %s (%s removed)", res.ID, plural(res.PermissionsRemoved, "permission"))
			return nil
		},
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
