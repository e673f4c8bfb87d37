package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sitegraph/pkg/graph"
	"github.com/matzehuels/sitegraph/pkg/search"
	"github.com/matzehuels/sitegraph/pkg/session"
)

// searchCommand creates the search command.
func (c *CLI) searchCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find sites whose label contains a query",
		Long: `Search lists nodes whose label contains the query, ignoring case.

Each match is shown with its status and degree so that hubs stand out.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSearch(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum matches to show (0 for all)")

	return cmd
}

func (c *CLI) runSearch(ctx context.Context, w io.Writer, query string, limit int) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	sess, cleanup, err := c.openSession(ctx, cfg, func(o *session.Options) {
		o.AutoStart = false
	})
	if err != nil {
		return err
	}
	defer cleanup()

	store := sess.Store()
	matches := search.Collect(search.Search(store, query), limit)
	if len(matches) == 0 {
		printInfo("No sites match %q", query)
		return nil
	}
	fmt.Fprintln(w, matchTable(store, matches, cfg.Style.RelevantMarker).Render())
	return nil
}

// matchTable lays matches out with their status and degrees.
func matchTable(store *graph.Store, matches []search.Match, marker string) *table.Table {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	rows := make([][]string, 0, len(matches))
	relevant := make([]bool, 0, len(matches))
	for _, m := range matches {
		n, _ := store.Node(m.ID)
		rows = append(rows, []string{
			m.ID,
			m.Label,
			orDash(n.Status),
			strconv.Itoa(store.InDegree(m.ID)),
			strconv.Itoa(store.OutDegree(m.ID)),
		})
		relevant = append(relevant, marker != "" && strings.Contains(n.Status, marker))
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "Label", "Status", "In", "Out").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if col >= 3 {
				base = base.Foreground(colorCyan)
			} else if row < len(relevant) && relevant[row] {
				base = base.Foreground(colorGreen)
			}
			return base
		})
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
