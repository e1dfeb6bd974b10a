package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/pkg/selection"
)

func newPickCmd(a *app) *cobra.Command {
	var (
		catalogPath string
		title       string
		width       int
		values      []string
		search      string
	)
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Choose options from a catalog and print the summary line",
		Long: "pick reads a flat or grouped option catalog (JSON) and prints the selection summary.\n" +
			"With --select the values are toggled directly; otherwise an interactive list opens.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(catalogPath)
			if err != nil {
				return fmt.Errorf("pick: read catalog: %w", err)
			}
			catalog, err := selection.ParseCatalog(data)
			if err != nil {
				return fmt.Errorf("pick: %w", err)
			}
			if search != "" {
				matches := catalog.Search(search, 20)
				if len(matches) == 0 {
					printf(cmd.OutOrStdout(), "no matches\n")
				}
				for _, opt := range matches {
					printf(cmd.OutOrStdout(), "%s\t%s\n", opt.Value, opt.Text())
				}
				return nil
			}

			widget := selection.NewWidget(catalog, selection.WithWidth(width))
			defer widget.Close()

			if len(values) > 0 {
				for _, value := range values {
					if _, ok := catalog.Lookup(value); !ok {
						a.logger.Debug("selected value is not in the catalog", zap.String("value", value))
					}
					widget.ToggleValue(value)
				}
				printSelection(cmd, widget)
				return nil
			}

			program := tea.NewProgram(selection.NewModel(widget, title),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			final, err := program.Run()
			if err != nil {
				return fmt.Errorf("pick: %w", err)
			}
			if model, ok := final.(selection.Model); !ok || !model.Confirmed() {
				return errors.New("pick: cancelled")
			}
			printSelection(cmd, widget)
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "path to the option catalog (JSON)")
	cmd.Flags().StringVar(&title, "title", "Select options", "heading shown above the list")
	cmd.Flags().IntVar(&width, "width", 0, "summary width in cells (0 means unconstrained)")
	cmd.Flags().StringSliceVar(&values, "select", nil, "values to select without opening the list")
	cmd.Flags().StringVar(&search, "search", "", "list options matching a query instead of selecting")
	_ = cmd.MarkFlagRequired("catalog")
	return cmd
}

func printSelection(cmd *cobra.Command, widget *selection.Widget) {
	out := cmd.OutOrStdout()
	printf(out, "%s\n", widget.Display())
	for _, value := range widget.Selection().Values() {
		printf(out, "  %s\n", value)
	}
}
