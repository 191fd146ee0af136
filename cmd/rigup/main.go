package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/openrig/rigup/pkg/params"
	"github.com/openrig/rigup/pkg/version"
)

var (
	logLevel   = "info"
	paramsPath = params.DefaultPath()
)

var (
	gPreflight    = "Preflight:"
	gInstallation = "Installation:"
	commandGroups = []string{
		gPreflight,
		gInstallation,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rigup",
		Short: "rigup checks and provisions behavioral rig hardware",
		Long: `rigup is the companion tool for behavioral rig setups.

It runs the pre-session preflight checklist against the rig hardware
(Bpod, rotary encoder, frame2TTL, sound card) and connectivity (Alyx,
data folders), and installs the rig runtime environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&paramsPath, "params", paramsPath, "rig parameter file path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewCheckCommand(),
		NewPortsCommand(),
		NewInstallCommand(),
		NewVersionCommand(),
	)

	return cmd
}

// NewVersionCommand .
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s\n", version.Version)
		},
	}
}
