// Package installer provisions the rig runtime environment: it drives the
// conda/mamba package managers, installs the acquisition software into a
// named environment, seeds the rig configuration directory and optionally
// installs the Bonsai runtime. The sequence and the per-step failure policy
// are fixed; steps either abort the install or log a warning and carry on.
package installer

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openrig/rigup/pkg/utils/prompt"
)

// DefaultEnvName is the conda environment the rig software installs into.
const DefaultEnvName = "iblenv"

// envPythonVersion pins the interpreter the acquisition software runs on.
const envPythonVersion = "3.7.11"

// Options configures a run of the installer.
type Options struct {
	// EnvName is the conda environment to create/use.
	EnvName string
	// UseYAML creates the environment from YAMLPath instead of a bare
	// python env.
	UseYAML  bool
	YAMLPath string
	// RootPath is the project checkout the environment is installed from.
	RootPath string

	// Pre-answered prompts for non-interactive runs; empty means ask.
	ReinstallResponse string
	ConfigResponse    string
	BonsaiResponse    string
}

// Installer runs the environment installation sequence.
type Installer struct {
	opts Options
	log  logrus.FieldLogger
	in   io.Reader
	out  io.Writer

	// conda or mamba, decided by the first step.
	tool string
	goos string

	// exec seams, replaced in tests.
	run     func(dir, name string, arg ...string) error
	capture func(name string, arg ...string) ([]byte, error)
}

// New builds an Installer reading prompts from in and writing them to out.
func New(opts Options, log logrus.FieldLogger, in io.Reader, out io.Writer) *Installer {
	if opts.EnvName == "" {
		opts.EnvName = DefaultEnvName
	}
	if opts.RootPath == "" {
		opts.RootPath, _ = os.Getwd()
	}
	if opts.YAMLPath == "" {
		opts.YAMLPath = filepath.Join(opts.RootPath, "environment.yaml")
	}

	return &Installer{
		opts: opts,
		log:  log,
		in:   in,
		out:  out,
		tool: "conda",
		goos: runtime.GOOS,
		run: func(dir, name string, arg ...string) error {
			cmd := exec.Command(name, arg...)
			cmd.Dir = dir
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			return cmd.Run()
		},
		capture: func(name string, arg ...string) ([]byte, error) {
			return exec.Command(name, arg...).Output()
		},
	}
}

// Run executes the full installation sequence. It returns the error of the
// first aborting step.
func (i *Installer) Run() error {
	if i.goos != "windows" {
		i.log.Warn("unsupported OS, installation might not work")
	}

	steps := []struct {
		name  string
		fn    func() error
		fatal bool
	}{
		{"install package manager", i.installPackageManager, false},
		{"clean package cache", i.cleanCache, true},
		{"update base python", i.updateBasePython, true},
		{"update conda", i.updateConda, true},
		{"reinstall pip", i.reinstallPip, true},
		{"install git", i.installGit, true},
		{"update base packages", i.updateBasePackages, false},
		{"create environment", i.createEnvironment, true},
		{"install rig software", i.installProject, true},
		{"configure rig params", i.configureParams, true},
		{"install Bonsai", i.installBonsai, true},
	}

	for _, step := range steps {
		i.log.Infof("step: %s", step.name)
		if err := step.fn(); err != nil {
			if step.fatal {
				return pkgerrors.Wrapf(err, "failed to %s, aborting install", step.name)
			}
			i.log.WithError(err).Warnf("failed to %s, trying to continue install", step.name)
		}
	}

	i.log.Info("installation finished")

	return nil
}

// installPackageManager tries to put mamba into the base environment and
// falls back to plain conda when that fails.
func (i *Installer) installPackageManager() error {
	err := i.run("", "conda", "install", "mamba", "-y", "-n", "base", "-c", "conda-forge")
	if err != nil {
		i.tool = "conda"
		return pkgerrors.Wrap(err, "could not install mamba, using conda")
	}

	i.tool = "mamba"
	i.log.Info("mamba installed")

	return nil
}

func (i *Installer) cleanCache() error {
	return i.run("", i.tool, "clean", "-q", "-y", "--all")
}

func (i *Installer) updateBasePython() error {
	return i.run("", i.tool, "update", "-q", "-y", "-n", "base", "-c", "defaults", "python")
}

func (i *Installer) updateConda() error {
	return i.run("", i.tool, "update", "-q", "-y", "-n", "base", "-c", "defaults", "conda")
}

func (i *Installer) reinstallPip() error {
	return i.run("", i.tool, "install", "-q", "-y", "-n", "base", "-c", "defaults", "pip", "--force-reinstall")
}

func (i *Installer) installGit() error {
	return i.run("", i.tool, "install", "-q", "-y", "git")
}

func (i *Installer) updateBasePackages() error {
	return i.run("", i.tool, "update", "-q", "-y", "-n", "base", "-c", "defaults", "--all")
}

// createEnvironment creates the project environment, prompting before
// blowing away an existing one.
func (i *Installer) createEnvironment() error {
	if i.opts.UseYAML {
		env, err := ParseEnvironmentFile(i.opts.YAMLPath)
		if err != nil {
			return err
		}
		i.log.Infof("creating environment %s from %s (%d dependencies)",
			env.Name, i.opts.YAMLPath, env.DependencyCount())
		return i.run("", i.tool, "env", "create", "-f", i.opts.YAMLPath)
	}

	envFolder, err := i.envFolder(i.opts.EnvName)
	if err != nil {
		return err
	}

	if envFolder != "" {
		reinstall, err := i.askYesNo(i.opts.ReinstallResponse,
			fmt.Sprintf("Found pre-existing environment in %s.\nDo you want to reinstall the environment?", envFolder))
		if err != nil {
			return err
		}
		if !reinstall {
			i.log.Infof("keeping existing environment %s", i.opts.EnvName)
			return nil
		}

		if err := i.run("", i.tool, "env", "remove", "-y", "-n", i.opts.EnvName); err != nil {
			return pkgerrors.Wrapf(err, "failed to remove environment %s", i.opts.EnvName)
		}
		// conda can leave the folder behind.
		if err := os.RemoveAll(envFolder); err != nil {
			i.log.WithError(err).Warnf("failed to remove leftover env folder %s", envFolder)
		}
	}

	err = i.run("", i.tool, "create", "-y", "-n", i.opts.EnvName, "python="+envPythonVersion)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create environment %s", i.opts.EnvName)
	}
	i.log.Infof("environment %s installed", i.opts.EnvName)

	return nil
}

// installProject pip-installs the rig software into the environment, using
// the environment's own pip.
func (i *Installer) installProject() error {
	envFolder, err := i.envFolder(i.opts.EnvName)
	if err != nil {
		return err
	}
	if envFolder == "" {
		return pkgerrors.Errorf("environment %s not found", i.opts.EnvName)
	}

	pip := i.envPip(envFolder)
	err = i.run(i.opts.RootPath, pip, "install", "--no-warn-script-location", "-e", ".")
	if err != nil {
		return pkgerrors.Wrap(err, "pip install failed")
	}
	i.log.Infof("rig software installed in %s", i.opts.EnvName)

	return nil
}

// configureParams seeds the rig configuration directory next to the
// checkout, prompting before resetting an existing one.
func (i *Installer) configureParams() error {
	envFolder, err := i.envFolder(i.opts.EnvName)
	if err != nil {
		return err
	}
	if envFolder == "" {
		return pkgerrors.Errorf("can't configure rig params, environment %s not found", i.opts.EnvName)
	}

	python := i.envPython(envFolder)
	paramsPath := filepath.Join(filepath.Dir(i.opts.RootPath), "iblrig_params")

	if _, err := os.Stat(paramsPath); err == nil {
		reset, err := i.askYesNo(i.opts.ConfigResponse,
			fmt.Sprintf("Found previous configuration in %s.\nDo you want to reset to default config?", paramsPath))
		if err != nil {
			return err
		}
		if !reset {
			i.log.Info("keeping existing rig configuration")
			return nil
		}
		return i.run(i.opts.RootPath, python, "setup_default_config.py", paramsPath)
	}

	if err := os.MkdirAll(paramsPath, 0755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create %s", paramsPath)
	}

	return i.run(i.opts.RootPath, python, "setup_default_config.py", paramsPath)
}

// installBonsai offers to install the Bonsai visual-programming runtime.
// Bonsai only exists on Windows; elsewhere the step is skipped with a note.
func (i *Installer) installBonsai() error {
	install, err := i.askYesNo(i.opts.BonsaiResponse, "Do you want to install Bonsai now?")
	if err != nil {
		return err
	}
	if !install {
		return nil
	}

	if i.goos != "windows" {
		i.log.Info("skipping Bonsai installation on non-Windows platforms")
		return nil
	}

	bonsaiDir := filepath.Join(i.opts.RootPath, "Bonsai")
	return i.run(bonsaiDir, "cmd", "/C", "setup.bat")
}

// askYesNo resolves a prompt: a pre-answered response wins, otherwise the
// user is asked interactively.
func (i *Installer) askYesNo(response, question string) (bool, error) {
	if response != "" {
		return prompt.ParseYesNo(response)
	}

	return prompt.AskYesNo(i.in, i.out, question)
}
