package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/sitegraph/pkg/interact"
	"github.com/matzehuels/sitegraph/pkg/session"
)

// openCommand creates the open command.
func (c *CLI) openCommand() *cobra.Command {
	var (
		random    bool
		printOnly bool
	)

	cmd := &cobra.Command{
		Use:   "open [node-id]",
		Short: "Open a site in the browser",
		Long: `Open a site's URL in the default browser.

With --random, a random node whose status marks it as relevant is opened
instead. Use --print to only show the URL.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if random {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) > 0 {
				id = args[0]
			}
			return c.runOpen(cmd.Context(), cmd.OutOrStdout(), id, printOnly)
		},
	}

	cmd.Flags().BoolVar(&random, "random", false, "open a random relevant site")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the URL instead of opening it")

	return cmd
}

func (c *CLI) runOpen(ctx context.Context, w io.Writer, id string, printOnly bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	sess, cleanup, err := c.openSession(ctx, cfg, func(o *session.Options) {
		o.AutoStart = false
		if printOnly {
			o.Opener = nil
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	ctrl := sess.Controller()
	var url string
	if id == "" {
		// With a nil opener this only picks the node.
		if id, err = ctrl.OpenRandomRelevant(nil); err != nil {
			return err
		}
		n, _ := sess.Store().Node(id)
		url = interact.URLFor(n.Label)
	} else {
		if !sess.Store().Has(id) {
			return fmt.Errorf("unknown node: %s", id)
		}
		if url, err = ctrl.Click(id); err != nil {
			return err
		}
	}

	if printOnly {
		fmt.Fprintln(w, url)
		return nil
	}
	printSuccess("Opened %s", StyleLink.Render(url))
	return nil
}
