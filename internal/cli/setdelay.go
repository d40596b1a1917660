package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// NewSetDelayCommand creates the set-delay command.
func NewSetDelayCommand(rootOpts *RootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "set-delay <duration>",
		Short: "Change the timelock delay for future submissions",
		Long: `Sets the delay applied to cuts submitted after this point. Cuts
already pending keep the delay they were submitted under.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(rootOpts, cmd)

			d, err := time.ParseDuration(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "duration", err)
			}
			who, err := parseAddr(caller)
			if err != nil {
				return WrapExitError(ExitCommandError, "caller", err)
			}
			svc, err := openService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.k.SetDelay(cmd.Context(), who, d); err != nil {
				return domainError(f, err)
			}
			return f.Successf(map[string]any{
				"delay": d.String(),
			}, "timelock delay set to %s for future submissions", d)
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "current owner (hex address or name)")
	_ = cmd.MarkFlagRequired("caller")

	return cmd
}
