// Package config loads the YAML configuration that declares plugins and executor settings
// and turns it into an executor.Configuration.
//
// Plugin names resolve through a Registry; NewDefaultRegistry knows "querylimit" and "tracelog".
// Files are decoded strictly (unknown keys fail) and validated with go-playground/validator.
package config
