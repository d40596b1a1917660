package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessera-dev/tessera/internal/opid"
)

// NewShowCommand creates the show command group (the loupe surface).
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Inspect the current composition",
		Long: `Read-only introspection of the composition: which modules own which
operations, advertised capabilities, ownership, and pending cuts. No
authorization required.`,
	}

	cmd.AddCommand(newShowModules(rootOpts))
	cmd.AddCommand(newShowOperations(rootOpts))
	cmd.AddCommand(newShowModuleOf(rootOpts))
	cmd.AddCommand(newShowSupports(rootOpts))
	cmd.AddCommand(newShowOwner(rootOpts))
	cmd.AddCommand(newShowPending(rootOpts))

	return cmd
}

func newShowModules(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "modules",
		Short:         "List modules that currently own operations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(rootOpts, cmd)
			svc, err := openService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer svc.Close()

			type row struct {
				Name       string `json:"name"`
				Address    string `json:"address"`
				Operations int    `json:"operations"`
			}
			var rows []row
			var lines []string
			for _, addr := range svc.k.Modules() {
				ops := len(svc.k.OperationsOf(addr))
				rows = append(rows, row{Name: svc.moduleName(addr), Address: addr.String(), Operations: ops})
				lines = append(lines, fmt.Sprintf("%s  %s  (%d operations)", svc.moduleName(addr), addr, ops))
			}
			return f.Successf(rows, "%s", strings.Join(lines, "\n"))
		},
	}
}

func newShowOperations(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "operations <module>",
		Short:         "List the operations a module owns",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(rootOpts, cmd)
			svc, err := openService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer svc.Close()

			addr, err := svc.resolve(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "module", err)
			}

			sigs := make(map[opid.OperationID]string)
			if spec, err := svc.man.Module(args[0]); err == nil {
				for _, op := range spec.Operations {
					sigs[op.ID] = op.Signature
				}
			}

			var ids []string
			var lines []string
			for _, op := range svc.k.OperationsOf(addr) {
				ids = append(ids, op.String())
				if sig, ok := sigs[op]; ok {
					lines = append(lines, fmt.Sprintf("%s  %s", op, sig))
				} else {
					lines = append(lines, op.String())
				}
			}
			if len(ids) == 0 {
				return f.Successf([]string{}, "module %s owns no operations", args[0])
			}
			return f.Successf(ids, "%s", strings.Join(lines, "\n"))
		},
	}
}

func newShowModuleOf(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "module-of <signature>",
		Short:         "Show which module owns an operation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(rootOpts, cmd)
			svc, err := openService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer svc.Close()

			op := opid.DeriveOp(args[0])
			addr, ok := svc.k.ModuleOf(op)
			if !ok {
				if ferr := f.Error("UNKNOWN_OPERATION", fmt.Sprintf("no module owns %s", args[0])); ferr != nil {
					return ferr
				}
				return NewExitError(ExitFailure, "UNKNOWN_OPERATION")
			}
			return f.Successf(map[string]any{
				"operation": op.String(),
				"module":    svc.moduleName(addr),
				"address":   addr.String(),
			}, "%s -> %s (%s)", args[0], svc.moduleName(addr), addr)
		},
	}
}

func newShowSupports(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "supports <capability>",
		Short:         "Probe whether the composite advertises a capability",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(rootOpts, cmd)
			svc, err := openService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer svc.Close()

			supported := svc.k.Supports(opid.DeriveCapability(args[0]))
			return f.Successf(map[string]any{
				"capability": args[0],
				"supported":  supported,
			}, "%s: %v", args[0], supported)
		},
	}
}

func newShowOwner(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "owner",
		Short:         "Show the current and pending owner",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(rootOpts, cmd)
			svc, err := openService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer svc.Close()

			owner := svc.k.Owner()
			data := map[string]any{"owner": owner.String()}
			line := fmt.Sprintf("owner: %s", owner)
			if owner.IsZero() {
				line = "owner: none (renounced)"
			}
			if pending := svc.k.PendingOwner(); !pending.IsZero() {
				data["pending_owner"] = pending.String()
				line += fmt.Sprintf("\npending owner: %s", pending)
			}
			return f.Successf(data, "%s", line)
		},
	}
}

func newShowPending(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "pending",
		Short:         "List submitted-but-unapplied cuts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(rootOpts, cmd)
			svc, err := openService(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer svc.Close()

			type row struct {
				ID      string `json:"id"`
				Entries int    `json:"entries"`
				ReadyAt string `json:"ready_at"`
			}
			var rows []row
			var lines []string
			for _, p := range svc.k.PendingCuts() {
				rows = append(rows, row{
					ID:      p.ID,
					Entries: len(p.Cut.Entries),
					ReadyAt: p.ReadyAt.UTC().Format(time.RFC3339),
				})
				lines = append(lines, fmt.Sprintf("%s  %d entries  ready %s",
					p.ID, len(p.Cut.Entries), p.ReadyAt.UTC().Format(time.RFC3339)))
			}
			if len(rows) == 0 {
				return f.Successf([]row{}, "no pending cuts")
			}
			return f.Successf(rows, "%s", strings.Join(lines, "\n"))
		},
	}
}
