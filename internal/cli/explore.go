package cli

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sitegraph/pkg/session"
)

// exploreOptions holds flags for the explore command.
type exploreOptions struct {
	resume bool
	seed   uint64
}

// exploreCommand creates the interactive terminal explorer.
func (c *CLI) exploreCommand() *cobra.Command {
	opts := exploreOptions{}

	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Explore the graph interactively in the terminal",
		Long: `Explore loads the graph, starts the force layout and draws it in the
terminal. Tab cycles the hover through sites, hubs first; enter selects;
/ searches by label; f switches between the full and filtered graphs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExplore(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.resume, "resume", false, "reuse the variant and strategy from the last run")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "seed for initial placement (0 for random)")

	return cmd
}

func (c *CLI) runExplore(ctx context.Context, opts exploreOptions) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	var prefs *session.FileStore
	if opts.resume {
		if prefs, err = session.NewFileStore(""); err != nil {
			return err
		}
	}
	cam := &tuiCamera{}
	sess, cleanup, err := c.openSession(ctx, cfg, func(o *session.Options) {
		o.Camera = cam
		o.Preferences = prefs
		o.Seed = opts.seed
	})
	if err != nil {
		return err
	}
	defer cleanup()

	// The alternate screen owns the terminal; keep the logger quiet.
	level := c.Logger.GetLevel()
	c.Logger.SetLevel(log.FatalLevel)

	model := NewExploreModel(ctx, sess, cam, cfg.Server.FrameInterval)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	c.Logger.SetLevel(level)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = ctx.Err()
	}
	return err
}
