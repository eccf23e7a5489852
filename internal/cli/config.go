package cli

import (
	"fmt"
	"strings"

	"taskboard-cli/internal/store"

	"github.com/spf13/cobra"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the client config file",
	}
	cmd.AddCommand(newConfigShowCmd(app))
	cmd.AddCommand(newConfigSetCmd(app))
	return cmd
}

func configText(path string, vals map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", path)
	for _, k := range store.SortedKeys(vals) {
		fmt.Fprintf(&b, "%s = %s\n", k, vals[k])
	}
	return b.String()
}

func newConfigShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored config (the token is masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := store.ConfigPath()
			if err != nil {
				return writeErr(cmd, err)
			}
			vals := app.cfg.Values()
			data := map[string]any{"path": path, "values": vals, "effectiveApiUrl": app.apiURL()}
			return writeOut(cmd, app, newResult(data, func() string { return configText(path, vals) }))
		},
	}
	return cmd
}

func newConfigSetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Set a config key; omit the value to clear it",
		Long:  "Known keys: " + strings.Join(store.ConfigKeys, ", "),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 2 {
				value = args[1]
			}
			if err := app.cfg.Set(args[0], value); err != nil {
				return writeErr(cmd, err)
			}
			if err := store.SaveConfig(app.cfg); err != nil {
				return writeErr(cmd, err)
			}
			path, _ := store.ConfigPath()
			vals := app.cfg.Values()
			return writeOut(cmd, app, newResult(map[string]any{"path": path, "values": vals}, func() string {
				return configText(path, vals)
			}))
		},
	}
	return cmd
}
