package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessera-dev/tessera/internal/factory"
	"github.com/tessera-dev/tessera/internal/harness"
	"github.com/tessera-dev/tessera/internal/module"
)

// DeployOptions holds deploy command options.
type DeployOptions struct {
	*RootOptions
	Owner    string
	Template string
	Dir      string
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeployOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a service instance at a deterministic address",
		Long: `Deploys the manifest's genesis template through the factory. The
service address is a pure function of the module code hashes and the
salt, so the address is known before deployment and re-deploying with
the same salt fails.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "service owner (hex address or name)")
	cmd.Flags().StringVar(&opts.Template, "template", "genesis", "cut template to deploy from")
	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "directory for service databases")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runDeploy(cmd *cobra.Command, opts *DeployOptions) error {
	f := formatter(opts.RootOptions, cmd)

	owner, err := parseAddr(opts.Owner)
	if err != nil {
		return WrapExitError(ExitCommandError, "owner", err)
	}
	man, err := loadManifest(opts.RootOptions)
	if err != nil {
		return err
	}

	handlers := make(map[string]module.Handler, len(man.Modules))
	for name, spec := range man.Modules {
		kind := spec.Kind
		if kind == "" {
			kind = "echo"
		}
		h, err := harness.KindHandler(kind, spec.Namespace)
		if err != nil {
			return WrapExitError(ExitCommandError, "module "+name, err)
		}
		handlers[name] = h
	}

	fac := factory.New(opts.Dir, factory.WithLogger(cliLogger(opts.RootOptions)))
	if err := fac.Register(opts.Template, factory.Template{
		Manifest: man,
		Genesis:  opts.Template,
		Handlers: handlers,
	}); err != nil {
		return WrapExitError(ExitCommandError, "register template", err)
	}

	dep, err := fac.Deploy(cmd.Context(), opts.Template, []byte(opts.Salt), owner)
	if err != nil {
		return domainError(f, err)
	}
	defer dep.Kernel.Close()

	names := make([]string, 0, len(dep.Modules))
	for name := range dep.Modules {
		names = append(names, name)
	}
	return f.Successf(map[string]any{
		"address": dep.Address.String(),
		"db":      dep.StorePath,
		"owner":   owner.String(),
		"modules": names,
	}, "deployed %s at %s (%s)", opts.Template, dep.Address, strings.Join(names, ", "))
}
