package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Caller   string
	Template string
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a cut from a manifest template",
		Long: `Validate a cut template against the current composition and start
its timelock window. The cut applies nothing yet; execute it after the
window closes.

Example:
  tessera submit --template upgrade --caller alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Caller, "caller", "", "caller identity (must be the owner)")
	cmd.Flags().StringVar(&opts.Template, "template", "", "manifest template to submit")
	_ = cmd.MarkFlagRequired("caller")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func runSubmit(opts *SubmitOptions, cmd *cobra.Command) error {
	f := formatter(opts.RootOptions, cmd)

	caller, err := parseAddr(opts.Caller)
	if err != nil {
		return WrapExitError(ExitCommandError, "caller", err)
	}

	svc, err := openService(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer svc.Close()

	tmpl, err := svc.man.Template(opts.Template)
	if err != nil {
		return WrapExitError(ExitCommandError, "template", err)
	}
	c, err := tmpl.Instantiate(svc.resolve)
	if err != nil {
		return WrapExitError(ExitCommandError, "template", err)
	}

	p, err := svc.k.SubmitCut(cmd.Context(), caller, c.Entries, c.Initializer)
	if err != nil {
		return domainError(f, err)
	}

	return f.Successf(map[string]any{
		"cut_id":   p.ID,
		"entries":  len(c.Entries),
		"ready_at": p.ReadyAt.UTC().Format(time.RFC3339),
	}, "cut %s submitted (%d entries), executable at %s",
		p.ID, len(c.Entries), p.ReadyAt.UTC().Format(time.RFC3339))
}
