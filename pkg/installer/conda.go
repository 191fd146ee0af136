package installer

import (
	"encoding/json"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"
)

// envList is the shape of `conda env list --json`.
type envList struct {
	Envs []string `json:"envs"`
}

// findEnvFolder returns the folder of the named conda environment from the
// raw `conda env list --json` output, or "" if the environment does not
// exist.
func findEnvFolder(listJSON []byte, envName string) (string, error) {
	var list envList
	if err := json.Unmarshal(listJSON, &list); err != nil {
		return "", pkgerrors.Wrap(err, "failed to parse conda env list output")
	}

	for _, env := range list.Envs {
		if filepath.Base(env) == envName {
			return env, nil
		}
	}

	return "", nil
}

// envFolder locates the named environment by asking the package manager.
func (i *Installer) envFolder(envName string) (string, error) {
	out, err := i.capture("conda", "env", "list", "--json")
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to list conda environments")
	}

	return findEnvFolder(out, envName)
}

// envPython returns the path of the python interpreter inside an env folder.
func (i *Installer) envPython(envFolder string) string {
	if i.goos == "windows" {
		return filepath.Join(envFolder, "python.exe")
	}
	return filepath.Join(envFolder, "bin", "python")
}

// envPip returns the path of pip inside an env folder.
func (i *Installer) envPip(envFolder string) string {
	if i.goos == "windows" {
		return filepath.Join(envFolder, "Scripts", "pip.exe")
	}
	return filepath.Join(envFolder, "bin", "pip")
}
