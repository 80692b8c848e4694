// Package config defines the settings shared by the alert binaries and
// provides helpers to load, validate and save them.
//
// Files ending in .toml are read with go-toml; everything else is YAML.
// Missing fields keep the values from Default.
package config
