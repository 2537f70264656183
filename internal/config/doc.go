// Package config defines the settings of a provisioning run and helpers to
// load, validate and save them in YAML format.
//
// Default returns the compiled-in release and plugin set; a YAML file may
// override any field.
package config
