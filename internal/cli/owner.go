package cli

import (
	"github.com/spf13/cobra"
)

// NewOwnerCommand creates the owner command group (the two-step
// ownership handshake plus renouncement).
func NewOwnerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Manage service ownership",
	}

	cmd.AddCommand(newOwnerTransfer(rootOpts))
	cmd.AddCommand(newOwnerAccept(rootOpts))
	cmd.AddCommand(newOwnerRenounce(rootOpts))

	return cmd
}

func newOwnerTransfer(rootOpts *RootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "transfer <new-owner>",
		Short: "Nominate a new owner",
		Long: `Records the nominee as pending owner. Nothing changes until the
nominee accepts; re-running replaces the previous nominee.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(rootOpts, cmd)
			from, err := parseAddr(caller)
			if err != nil {
				return WrapExitError(ExitCommandError, "caller", err)
			}
			to, err := parseAddr(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "new owner", err)
			}
			svc, err := openService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.k.TransferOwnership(cmd.Context(), from, to); err != nil {
				return domainError(f, err)
			}
			return f.Successf(map[string]any{
				"pending_owner": to.String(),
			}, "ownership transfer to %s pending acceptance", to)
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "current owner (hex address or name)")
	_ = cmd.MarkFlagRequired("caller")

	return cmd
}

func newOwnerAccept(rootOpts *RootOptions) *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:           "accept",
		Short:         "Accept a pending ownership transfer",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(rootOpts, cmd)
			who, err := parseAddr(caller)
			if err != nil {
				return WrapExitError(ExitCommandError, "caller", err)
			}
			svc, err := openService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.k.AcceptOwnership(cmd.Context(), who); err != nil {
				return domainError(f, err)
			}
			return f.Successf(map[string]any{
				"owner": who.String(),
			}, "ownership accepted by %s", who)
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "pending owner (hex address or name)")
	_ = cmd.MarkFlagRequired("caller")

	return cmd
}

func newOwnerRenounce(rootOpts *RootOptions) *cobra.Command {
	var caller string
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "renounce",
		Short: "Renounce ownership permanently",
		Long: `Sets the owner to the null sentinel. Irreversible: no further cuts,
delay changes, or transfers are possible afterwards. Requires --yes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(rootOpts, cmd)
			if !confirmed {
				return NewExitError(ExitCommandError, "renouncing ownership is irreversible; pass --yes to confirm")
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

			if err := svc.k.RenounceOwnership(cmd.Context(), who); err != nil {
				return domainError(f, err)
			}
			return f.Successf(map[string]any{
				"owner": svc.k.Owner().String(),
			}, "ownership renounced; composition is frozen")
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "current owner (hex address or name)")
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the irreversible renouncement")
	_ = cmd.MarkFlagRequired("caller")

	return cmd
}
