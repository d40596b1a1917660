package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessera-dev/tessera/internal/kernel"
	"github.com/tessera-dev/tessera/internal/opid"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Owner    string
	Template string
	Delay    time.Duration
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Construct a service from the manifest's genesis template",
		Long: `Construct a new service database: module addresses are derived from
the manifest code hashes and the salt, the genesis cut is applied
immediately (no timelock at construction), and the owner record is
written atomically with it.

Example:
  tessera init --db svc.db --manifest ./manifest --owner alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "initial owner (hex address or name)")
	cmd.Flags().StringVar(&opts.Template, "template", "genesis", "manifest template to apply at genesis")
	cmd.Flags().DurationVar(&opts.Delay, "delay", 0, "timelock delay (default 24h)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	f := formatter(opts.RootOptions, cmd)

	if _, err := os.Stat(opts.DB); err == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("service database %s already exists", opts.DB))
	}

	owner, err := parseAddr(opts.Owner)
	if err != nil {
		return WrapExitError(ExitCommandError, "owner", err)
	}

	man, err := loadManifest(opts.RootOptions)
	if err != nil {
		return err
	}
	binding, addrs, err := buildBinding(man, opts.Salt)
	if err != nil {
		return err
	}

	tmpl, err := man.Template(opts.Template)
	if err != nil {
		return WrapExitError(ExitCommandError, "genesis template", err)
	}
	genesis, err := tmpl.Instantiate(func(name string) (opid.Address, error) {
		a, ok := addrs[name]
		if !ok {
			return opid.ZeroAddress, fmt.Errorf("no module %q in manifest", name)
		}
		return a, nil
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "genesis template", err)
	}

	f.VerboseLog("constructing %s with %d modules", opts.DB, len(addrs))
	k, err := kernel.New(cmd.Context(), kernel.Config{
		StorePath:   opts.DB,
		Owner:       owner,
		Binding:     binding,
		Genesis:     genesis.Entries,
		GenesisInit: genesis.Initializer,
		Delay:       opts.Delay,
		Logger:      cliLogger(opts.RootOptions),
	})
	if err != nil {
		return domainError(f, err)
	}
	defer k.Close()

	return f.Successf(map[string]any{
		"db":       opts.DB,
		"owner":    k.Owner().String(),
		"modules":  len(k.Modules()),
		"timelock": k.Delay().String(),
	}, "service constructed at %s (owner %s, %d modules, timelock %s)",
		opts.DB, k.Owner(), len(k.Modules()), k.Delay())
}
