package cli

import (
	"github.com/spf13/cobra"

	"github.com/tessera-dev/tessera/internal/opid"
)

// CallOptions holds call command options.
type CallOptions struct {
	*RootOptions
	Caller string
	Value  uint64
	Args   string
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <signature> [args]",
		Short: "Dispatch one operation against the service",
		Long: `Resolves the signature to its operation id, routes it through the
registry, and prints the module's result. Unknown operations and module
failures exit with status 1.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				opts.Args = args[1]
			}
			return runCall(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Caller, "caller", "", "caller identity (hex address or name)")
	cmd.Flags().Uint64Var(&opts.Value, "value", 0, "value attached to the call")
	_ = cmd.MarkFlagRequired("caller")

	return cmd
}

func runCall(cmd *cobra.Command, opts *CallOptions, signature string) error {
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

	op := opid.DeriveOp(signature)
	f.VerboseLog("dispatching %s as %s", op, caller)

	res, err := svc.k.Dispatch(cmd.Context(), op, caller, opts.Value, []byte(opts.Args))
	if err != nil {
		return domainError(f, err)
	}
	return f.Successf(map[string]any{
		"operation": op.String(),
		"result":    string(res.Data),
	}, "%s", res.Data)
}
