// Package configs provides embedded configuration templates for synapsense.
//
// Templates are embedded at build time so they ship with every build,
// including `go install`.
//
// The templates are used by:
//   - `synapsense config init` writes .synapsense.yaml in the project root
//   - `synapsense config init --user` writes the user config
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults (config.NewConfig)
//  2. User config ($XDG_CONFIG_HOME/synapsense/config.yaml)
//  3. Project config (.synapsense.yaml)
//  4. Environment variables (SYNAPSENSE_*)
package configs

import _ "embed"

// UserConfigTemplate holds machine-level settings shared by every project:
// where datasets live, worker counts and logging defaults.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate holds project settings that are usually version
// controlled: dataset catalog overrides, extensions and processing defaults.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
