package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openrig/rigup/pkg/params"
	"github.com/openrig/rigup/pkg/preflight"
)

var (
	passLabel = color.New(color.FgGreen, color.Bold).Sprint("PASS")
	failLabel = color.New(color.FgRed, color.Bold).Sprint("FAIL")
	skipLabel = color.New(color.FgYellow).Sprint("SKIP")
)

// NewCheckCommand .
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "check [probe]",
		Short:   "Run the preflight checklist",
		GroupID: gPreflight,
		Long: `Run the preflight checklist against this rig.

Without arguments the whole checklist runs in order. With a probe name only
that probe runs. Known probes:

  ` + strings.Join(probeNames(), ", "),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pars, err := params.NewFile(paramsPath)
			if err != nil {
				return err
			}

			log := logrus.WithField("component", "preflight")
			log.Debugf("rig params: %v", pars.LogrusFields())
			checker := preflight.New(pars, log)

			var results []preflight.Result
			if len(args) == 1 {
				res, ok := checker.Probe(args[0])
				if !ok {
					return fmt.Errorf("unknown probe %q, see `rigup check --help`", args[0])
				}
				results = []preflight.Result{res}
			} else {
				results = checker.CheckRig()
			}

			failed := renderResults(cmd, results)
			if failed > 0 {
				return fmt.Errorf("%d of %d preflight checks failed", failed, len(results))
			}

			return nil
		},
	}

	return cmd
}

func renderResults(cmd *cobra.Command, results []preflight.Result) int {
	failed := 0
	for _, res := range results {
		label := passLabel
		switch res.Status {
		case preflight.StatusFail:
			label = failLabel
			failed++
		case preflight.StatusSkip:
			label = skipLabel
		}

		line := fmt.Sprintf("%s  %-20s", label, res.Name)
		if res.Detail != "" {
			line += "  " + res.Detail
		}
		if res.Err != nil {
			line += fmt.Sprintf(" (%v)", res.Err)
		}
		cmd.Println(line)
	}

	return failed
}

func probeNames() []string {
	return []string{
		preflight.ProbeComPorts,
		preflight.ProbeCalibrationDates,
		preflight.ProbeAlyx,
		preflight.ProbeLocalServer,
		preflight.ProbeRigDataFolder,
		preflight.ProbeAlyxServerRig,
		preflight.ProbeRotaryEncoder,
		preflight.ProbeBpod,
		preflight.ProbeBpodModules,
		preflight.ProbeFrame2TTL,
		preflight.ProbeXonarSoundCard,
		preflight.ProbeHarpSoundCard,
		preflight.ProbeDiskSpace,
	}
}
