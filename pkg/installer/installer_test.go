package installer

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

const testEnvList = `{"envs": ["/opt/conda", "/opt/conda/envs/iblenv", "/opt/conda/envs/dlcenv"]}`

// execRecorder fakes the exec seams, recording every command and failing the
// ones listed in failOn.
type execRecorder struct {
	cmds    []string
	failOn  map[string]error
	envList string
}

func (e *execRecorder) run(dir, name string, arg ...string) error {
	cmd := strings.Join(append([]string{name}, arg...), " ")
	e.cmds = append(e.cmds, cmd)
	for substr, err := range e.failOn {
		if strings.Contains(cmd, substr) {
			return err
		}
	}
	return nil
}

func (e *execRecorder) capture(name string, arg ...string) ([]byte, error) {
	list := e.envList
	if list == "" {
		list = testEnvList
	}
	return []byte(list), nil
}

func newTestInstaller(t *testing.T, opts Options) (*Installer, *execRecorder) {
	t.Helper()

	if opts.RootPath == "" {
		opts.RootPath = filepath.Join(t.TempDir(), "iblrig")
		require.NoError(t, os.MkdirAll(opts.RootPath, 0755))
	}
	if opts.ReinstallResponse == "" {
		opts.ReinstallResponse = "n"
	}
	if opts.ConfigResponse == "" {
		opts.ConfigResponse = "y"
	}
	if opts.BonsaiResponse == "" {
		opts.BonsaiResponse = "n"
	}

	rec := &execRecorder{failOn: map[string]error{}}
	ins := New(opts, testLogger(), strings.NewReader(""), &strings.Builder{})
	ins.goos = "windows"
	ins.run = rec.run
	ins.capture = rec.capture

	return ins, rec
}

func TestRunHappyPath(t *testing.T) {
	ins, rec := newTestInstaller(t, Options{})

	require.NoError(t, ins.Run())

	joined := strings.Join(rec.cmds, "\n")
	assert.Contains(t, joined, "conda install mamba -y -n base -c conda-forge")
	assert.Contains(t, joined, "mamba clean -q -y --all")
	assert.Contains(t, joined, "mamba update -q -y -n base -c defaults python")
	assert.Contains(t, joined, "mamba update -q -y -n base -c defaults conda")
	assert.Contains(t, joined, "pip --force-reinstall")
	assert.Contains(t, joined, "mamba install -q -y git")
	assert.Contains(t, joined, "mamba update -q -y -n base -c defaults --all")
	assert.Contains(t, joined, "pip.exe install --no-warn-script-location -e .")
	assert.Contains(t, joined, "setup_default_config.py")
	// Bonsai answered "n".
	assert.NotContains(t, joined, "setup.bat")
}

func TestRunMambaFallsBackToConda(t *testing.T) {
	ins, rec := newTestInstaller(t, Options{})
	rec.failOn["install mamba"] = pkgerrors.New("no conda-forge access")

	require.NoError(t, ins.Run())

	assert.Equal(t, "conda", ins.tool)
	assert.Contains(t, strings.Join(rec.cmds, "\n"), "conda clean -q -y --all")
}

func TestRunAbortsOnFatalStep(t *testing.T) {
	ins, rec := newTestInstaller(t, Options{})
	rec.failOn["clean"] = pkgerrors.New("cache locked")

	err := ins.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clean package cache")

	// Nothing after the aborting step ran.
	assert.NotContains(t, strings.Join(rec.cmds, "\n"), "git")
}

func TestRunWarnStepContinues(t *testing.T) {
	ins, rec := newTestInstaller(t, Options{})
	// The cache clean also contains "--all", so match the full update command.
	rec.failOn["update -q -y -n base -c defaults --all"] = pkgerrors.New("solver error")

	require.NoError(t, ins.Run())
	assert.Contains(t, strings.Join(rec.cmds, "\n"), "install --no-warn-script-location")
}

func TestCreateEnvironmentReinstall(t *testing.T) {
	ins, rec := newTestInstaller(t, Options{ReinstallResponse: "y"})
	ins.tool = "mamba"

	require.NoError(t, ins.createEnvironment())

	joined := strings.Join(rec.cmds, "\n")
	assert.Contains(t, joined, "mamba env remove -y -n iblenv")
	assert.Contains(t, joined, "mamba create -y -n iblenv python="+envPythonVersion)
}

func TestCreateEnvironmentKeep(t *testing.T) {
	ins, rec := newTestInstaller(t, Options{ReinstallResponse: "n"})

	require.NoError(t, ins.createEnvironment())
	assert.Empty(t, rec.cmds)
}

func TestCreateEnvironmentFresh(t *testing.T) {
	ins, rec := newTestInstaller(t, Options{EnvName: "rig2env"})
	ins.tool = "mamba"

	require.NoError(t, ins.createEnvironment())
	assert.Contains(t, strings.Join(rec.cmds, "\n"), "mamba create -y -n rig2env")
}

func TestCreateEnvironmentInvalidResponse(t *testing.T) {
	ins, _ := newTestInstaller(t, Options{ReinstallResponse: "x"})

	require.Error(t, ins.createEnvironment())
}

func TestCreateEnvironmentFromYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "environment.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
name: iblenv
channels:
  - defaults
  - conda-forge
dependencies:
  - python=3.7.11
  - scipy
  - pip:
      - pybpod
      - sounddevice
`), 0644))

	ins, rec := newTestInstaller(t, Options{UseYAML: true, YAMLPath: yamlPath})
	ins.tool = "mamba"

	require.NoError(t, ins.createEnvironment())
	assert.Contains(t, strings.Join(rec.cmds, "\n"), "mamba env create -f "+yamlPath)
}

func TestInstallBonsaiSkippedOffWindows(t *testing.T) {
	ins, rec := newTestInstaller(t, Options{BonsaiResponse: "y"})
	ins.goos = "linux"

	require.NoError(t, ins.installBonsai())
	assert.Empty(t, rec.cmds)
}

func TestInstallBonsaiOnWindows(t *testing.T) {
	ins, rec := newTestInstaller(t, Options{BonsaiResponse: "y"})

	require.NoError(t, ins.installBonsai())
	assert.Contains(t, strings.Join(rec.cmds, "\n"), "setup.bat")
}

func TestInstallProjectMissingEnv(t *testing.T) {
	ins, rec := newTestInstaller(t, Options{EnvName: "missing-env"})
	rec.envList = `{"envs": ["/opt/conda"]}`

	require.Error(t, ins.installProject())
}

func TestFindEnvFolder(t *testing.T) {
	folder, err := findEnvFolder([]byte(testEnvList), "iblenv")
	require.NoError(t, err)
	assert.Equal(t, "/opt/conda/envs/iblenv", folder)

	folder, err = findEnvFolder([]byte(testEnvList), "nope")
	require.NoError(t, err)
	assert.Empty(t, folder)

	_, err = findEnvFolder([]byte("not json"), "iblenv")
	require.Error(t, err)
}

func TestParseEnvironmentFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "environment.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
name: iblenv
dependencies:
  - python=3.7.11
  - numpy
  - pip:
      - pybpod
`), 0644))

	env, err := ParseEnvironmentFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "iblenv", env.Name)
	assert.Equal(t, 3, env.DependencyCount())

	require.NoError(t, os.WriteFile(yamlPath, []byte("dependencies: [numpy]"), 0644))
	_, err = ParseEnvironmentFile(yamlPath)
	require.Error(t, err, "an environment without a name is invalid")
}
