package cli

import (
	"github.com/spf13/cobra"
)

// ExecuteOptions holds flags shared by execute and cancel.
type ExecuteOptions struct {
	*RootOptions
	Caller string
}

// NewExecuteCommand creates the execute command.
func NewExecuteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecuteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "execute <cut-id>",
		Short: "Apply a pending cut after its timelock window",
		Long: `Apply a previously submitted cut. Fails if the delay window has not
closed. The whole batch, plus its optional initializer, lands in one
transaction; on any failure the composition is unchanged.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Caller, "caller", "", "caller identity (must be the owner)")
	_ = cmd.MarkFlagRequired("caller")

	return cmd
}

func runExecute(opts *ExecuteOptions, cutID string, cmd *cobra.Command) error {
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

	if err := svc.k.ExecuteCut(cmd.Context(), caller, cutID); err != nil {
		return domainError(f, err)
	}
	return f.Successf(map[string]any{"cut_id": cutID}, "cut %s applied", cutID)
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecuteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "cancel <cut-id>",
		Short:         "Withdraw a pending cut",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Caller, "caller", "", "caller identity (must be the owner)")
	_ = cmd.MarkFlagRequired("caller")

	return cmd
}

func runCancel(opts *ExecuteOptions, cutID string, cmd *cobra.Command) error {
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

	if err := svc.k.CancelCut(cmd.Context(), caller, cutID); err != nil {
		return domainError(f, err)
	}
	return f.Successf(map[string]any{"cut_id": cutID}, "cut %s cancelled", cutID)
}
