package main

import (
	"github.com/spf13/cobra"

	"github.com/nerrad567/appaccess/internal/client"
)

func (c *cli) appsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "apps",
		Aliases: []string{"app", "applications"},
		Short:   "List and manage applications",
	}
	cmd.AddCommand(c.appsListCmd(), c.appsCreateCmd(), c.appsDeleteCmd())
	return cmd
}

func (c *cli) appsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			apps, err := c.client.Applications.List(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(apps))
			for _, a := range apps {
				rows = append(rows, []string{a.ID, a.Name, a.Category, a.URL})
			}
			return c.render(apps, []string{"ID", "NAME", "CATEGORY", "URL"}, rows)
		},
	}
}

func (c *cli) appsCreateCmd() *cobra.Command {
	var in client.ApplicationInput

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register an application (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			app, err := c.client.Applications.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(app)
			}
			c.success("Created application %s (%s)", app.ID, app.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Description, "description", "", "short description")
	cmd.Flags().StringVar(&in.Category, "category", "", "grouping label")
	cmd.Flags().StringVar(&in.Color, "color", "", "display colour")
	cmd.Flags().StringVar(&in.URL, "url", "", "absolute http(s) URL")
	return cmd
}

func (c *cli) appsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <application-id>",
		Short: "Delete an application and its grants (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client.Applications.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.jsonOut {
				return c.printJSON(res)
			}
			c.success("Deleted application %s (%s removed)", res.ID, plural(res.PermissionsRemoved, "permission"))
			return nil
		},
	}
}
