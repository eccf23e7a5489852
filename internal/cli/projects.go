package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Project commands",
	}
	cmd.AddCommand(newProjectsListCmd(app))
	return cmd
}

func newProjectsListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := app.projectID()
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			projects, err := app.client().FetchProjects(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, newResult(projects, func() string {
				rows := make([][]string, 0, len(projects))
				for _, p := range projects {
					mark := ""
					if p.ID == current {
						mark = "*"
					}
					rows = append(rows, []string{mark, strconv.FormatInt(p.ID, 10), p.Name, p.Status})
				}
				return table([]string{"", "ID", "NAME", "STATUS"}, rows)
			}, "select one with: taskboard config set project <id>"))
		},
	}
	return cmd
}
