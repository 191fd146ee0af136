package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openrig/rigup/pkg/installer"
	"github.com/openrig/rigup/pkg/utils/prompt"
)

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	opts := installer.Options{}

	cmd := &cobra.Command{
		Use:     "install",
		Short:   "Install the rig runtime environment",
		GroupID: gInstallation,
		Long: `Install the rig runtime environment.

This updates the conda base environment, creates the rig conda environment,
installs the rig software into it, seeds the rig configuration directory and
optionally installs the Bonsai runtime (Windows only).

Prompts can be pre-answered with the --*-response flags for unattended
installs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Validate pre-answered prompts up front, not halfway
			// through a long install.
			for flag, resp := range map[string]string{
				"reinstall-response": opts.ReinstallResponse,
				"config-response":    opts.ConfigResponse,
				"bonsai-response":    opts.BonsaiResponse,
			} {
				if resp == "" {
					continue
				}
				if _, err := prompt.ParseYesNo(resp); err != nil {
					return fmt.Errorf("invalid --%s: %v", flag, err)
				}
			}

			log := logrus.WithField("component", "installer")
			ins := installer.New(opts, log, os.Stdin, cmd.OutOrStdout())

			return ins.Run()
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.EnvName, "env-name", "n", installer.DefaultEnvName, "conda environment name for the rig installation")
	flags.BoolVar(&opts.UseYAML, "use-yaml", false, "create the environment from environment.yaml instead of a bare python env")
	flags.StringVar(&opts.YAMLPath, "yaml", "", "path to environment.yaml (default <root>/environment.yaml)")
	flags.StringVar(&opts.RootPath, "root", "", "rig software checkout to install from (default current directory)")
	flags.StringVar(&opts.ReinstallResponse, "reinstall-response", "", "pre-answer the env reinstall prompt (y/n)")
	flags.StringVar(&opts.ConfigResponse, "config-response", "", "pre-answer the config reset prompt (y/n)")
	flags.StringVar(&opts.BonsaiResponse, "bonsai-response", "", "pre-answer the Bonsai install prompt (y/n)")

	return cmd
}
