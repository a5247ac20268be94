package branding

import "testing"

func TestEmbeddedValues(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"CLIName", CLIName(), "tutils"},
		{"HomeDir", HomeDir(), ".tutils"},
		{"EnvPrefix", EnvPrefix(), "TUTILS"},
		{"DefaultScriptsDir", DefaultScriptsDir(), "Scripts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestEnvVar(t *testing.T) {
	if got := EnvVar("config"); got != "TUTILS_CONFIG" {
		t.Errorf("EnvVar(\"config\") = %q, want %q", got, "TUTILS_CONFIG")
	}
}
