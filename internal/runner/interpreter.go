package runner

import (
	"path/filepath"
	"strings"
)

// interpreters maps entry point extensions to the program that runs them.
var interpreters = map[string]string{
	".py":  "python3",
	".sh":  "sh",
	".js":  "node",
	".mjs": "node",
	".ps1": "pwsh",
}

// InterpreterFor returns the interpreter for entryPoint, or "" when the entry
// point should be executed directly.
func InterpreterFor(entryPoint string) string {
	return interpreters[strings.ToLower(filepath.Ext(entryPoint))]
}

// Command builds the program and argument list for a run. A non-empty
// override replaces the extension lookup and may carry its own flags
// (e.g. "python3 -u").
func Command(override, entryPoint string, args []string) (string, []string) {
	interp := strings.Fields(override)
	if len(interp) == 0 {
		if name := InterpreterFor(entryPoint); name != "" {
			interp = []string{name}
		}
	}
	if len(interp) == 0 {
		return entryPoint, append([]string{}, args...)
	}
	argv := append(interp[1:len(interp):len(interp)], entryPoint)
	return interp[0], append(argv, args...)
}
