package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/wareneingang/internal/app"
	"github.com/odyssey-erp/wareneingang/internal/shared"
)

// BootstrapFunc builds a loaded container from the given .env file.
type BootstrapFunc func(ctx context.Context, envFile string) (*app.Container, *app.Config, error)

// Options configures the command tree.
type Options struct {
	Stdout    io.Writer
	Stderr    io.Writer
	Bootstrap BootstrapFunc
}

type runtime struct {
	opts      Options
	envFile   string
	actor     string
	jsonOut   bool
	metrics   bool
	container *app.Container
}

// newRoot assembles the operator command tree.
func newRoot(opts Options) (*cobra.Command, *runtime) {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	rt := &runtime{opts: opts}

	root := &cobra.Command{
		Use:           "wareneingang",
		Short:         "Goods receipt, stock and case handling for the warehouse",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.setup(cmd)
		},
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	root.PersistentFlags().StringVar(&rt.envFile, "env-file", ".env", "optional .env file to load")
	root.PersistentFlags().StringVar(&rt.actor, "actor", "", "name recorded on comments and tickets (default ACTOR_NAME)")
	root.PersistentFlags().BoolVar(&rt.jsonOut, "json", false, "print results as JSON")
	root.PersistentFlags().BoolVar(&rt.metrics, "metrics", false, "dump workflow counters to stderr after the command")

	root.AddCommand(
		newStockCommand(rt),
		newOrdersCommand(rt),
		newReceiptCommand(rt),
		newTicketCommand(rt),
	)
	return root, rt
}

// Execute runs the tree with args, reports failures on Stderr and closes the container.
func Execute(ctx context.Context, opts Options, args []string) error {
	root, rt := newRoot(opts)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if rt.container != nil {
		if rt.metrics {
			if werr := rt.container.Metrics.WriteText(root.ErrOrStderr()); werr != nil {
				rt.container.Logger.Warn("write metrics", slog.Any("error", werr))
			}
		}
		rt.container.Close()
	}
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "error: %v\n", describeError(err))
	}
	return err
}

func (rt *runtime) setup(cmd *cobra.Command) error {
	if rt.container != nil {
		return nil
	}
	if rt.opts.Bootstrap == nil {
		return errors.New("cli: bootstrap not configured")
	}
	container, cfg, err := rt.opts.Bootstrap(cmd.Context(), rt.envFile)
	if err != nil {
		return err
	}
	rt.container = container
	if rt.actor == "" && cfg != nil {
		rt.actor = cfg.ActorName
	}
	if rt.actor != "" {
		cmd.SetContext(shared.ContextWithActor(cmd.Context(), rt.actor))
	}
	return nil
}

func (rt *runtime) printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func describeError(err error) string {
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		return "invalid input: " + verr.Error()
	}
	return err.Error()
}
