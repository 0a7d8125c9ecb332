package cmd

import (
	"fmt"
	"strings"

	"github.com/jp-hoehmann/bun/internal/theme"
	"github.com/jp-hoehmann/bun/internal/ui"
	"github.com/spf13/cobra"
)

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Show or change the colour scheme",
}

var themeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the colour schemes",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := themeStore()
		if err != nil {
			return err
		}
		current, _, err := theme.Load(store)
		if err != nil {
			return err
		}
		fmt.Println(ui.SchemeTableView(theme.Schemes, current.Name))
		return nil
	},
}

var themeSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Select and persist a colour scheme",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scheme, err := theme.Lookup(strings.Join(args, " "))
		if err != nil {
			return err
		}
		store, err := themeStore()
		if err != nil {
			return err
		}
		if err := theme.Save(store, scheme); err != nil {
			return err
		}
		ui.ApplyScheme(scheme)
		ui.PrintSuccessf("Colour scheme set to %s", ui.NavStyle(scheme).Render(scheme.Name))
		return nil
	},
}

var themeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the selected colour scheme",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := themeStore()
		if err != nil {
			return err
		}
		scheme, ok, err := theme.Load(store)
		if err != nil {
			return err
		}
		if !ok {
			ui.PrintInfo("No colour scheme selected")
			return nil
		}
		fmt.Println(ui.NavStyle(scheme).Render(fmt.Sprintf("%s %s", scheme.Name, scheme.Color())))
		return nil
	},
}

func themeStore() (theme.Store, error) {
	path, err := theme.DefaultPath()
	if err != nil {
		return nil, err
	}
	return theme.NewFileStore(path), nil
}

func init() {
	rootCmd.AddCommand(themeCmd)
	themeCmd.AddCommand(themeListCmd, themeSetCmd, themeShowCmd)
}
