// Package config manages user-level settings stored at ~/.tutils/config.yaml.
// It loads the file through a private Viper instance (with TUTILS_* environment
// overrides) into an immutable Config value that is passed explicitly to the
// catalog and runner, and writes it back as YAML.
package config
