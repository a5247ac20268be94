package runner

import (
	goruntime "runtime"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Variables every script receives on top of the inherited environment.
const (
	EnvOSType  = "OS_TYPE"
	EnvWorkDir = "WORK_DIR"
)

// OSType returns the operating system name exposed to scripts as OS_TYPE,
// e.g. "Linux", "Darwin" or "Windows".
func OSType() string {
	return cases.Title(language.English).String(goruntime.GOOS)
}

// buildEnv overlays OS_TYPE, WORK_DIR and the request variables on base.
// Request variables are applied in key order and win over everything else.
func buildEnv(base []string, workDir string, extra map[string]string) []string {
	env := slices.Clone(base)
	env = setEnv(env, EnvOSType, OSType())
	env = setEnv(env, EnvWorkDir, workDir)

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		env = setEnv(env, k, extra[k])
	}
	return env
}

// setEnv sets or replaces an environment variable in the env slice.
func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}
