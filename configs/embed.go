// Package configs provides the embedded configuration template for fsledger.
//
// The template is embedded at build time so `fsledger config init` works
// from any distribution, source build or binary release alike.
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults (internal/config NewConfig())
//  2. User config (~/.config/fsledger/config.yaml)
//  3. File given with --config
//  4. Environment variables (FSLEDGER_*)
package configs

import _ "embed"

// UserConfigTemplate is written by `fsledger config init` to
// ~/.config/fsledger/config.yaml.
//
//go:embed config.example.yaml
var UserConfigTemplate string
