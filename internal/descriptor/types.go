package descriptor

// IndexFileName is the file name of both descriptor kinds.
const IndexFileName = "index.yaml"

// DefaultVersion is assigned to script descriptors that omit version.
const DefaultVersion = "0.0.1"

// Repository is the repository descriptor stored at <repo>/index.yaml.
type Repository struct {
	Name    string   `yaml:"name" json:"name"`
	Scripts []string `yaml:"scripts" json:"scripts"`
}

// Script is the script descriptor stored at <repo>/<script>/index.yaml.
type Script struct {
	Name        string              `yaml:"name" json:"name"`
	Version     string              `yaml:"version" json:"version"`
	Description string              `yaml:"description" json:"description"`
	Author      string              `yaml:"author" json:"author"`
	Email       string              `yaml:"email" json:"email"`
	EntryPoint  string              `yaml:"run" json:"run"`
	SourceFiles []string            `yaml:"src" json:"src"`
	License     string              `yaml:"license" json:"license"`
	Params      []map[string]string `yaml:"param" json:"param"`
}

func (r *Repository) applyDefaults() {
	if r.Scripts == nil {
		r.Scripts = []string{}
	}
}

func (s *Script) applyDefaults() {
	if s.Version == "" {
		s.Version = DefaultVersion
	}
	if s.SourceFiles == nil {
		s.SourceFiles = []string{}
	}
	if s.Params == nil {
		s.Params = []map[string]string{}
	}
}
