package main

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
)

// Settings file, YAML. Command line flags win over anything in here.
type config struct {
	EscTimeoutMillis int    `yaml:"escTimeoutMillis"`
	Mouse            bool   `yaml:"mouse"`
	Paste            bool   `yaml:"paste"`
	LogFile          string `yaml:"logFile"`
	Trace            bool   `yaml:"trace"`
}

func loadConfig(path string) (config, error) {
	conf := config{
		EscTimeoutMillis: 50,
	}

	if path == "" {
		return conf, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return conf, errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(raw, &conf); err != nil {
		return conf, errors.Wrapf(err, "parsing config file %s", path)
	}

	return conf, nil
}

// Fold command line flags into the config. Boolean flags can only turn
// things on; use the config file to turn them off for good.
func (conf *config) apply(opts *options) {
	if opts.EscTimeout >= 0 {
		conf.EscTimeoutMillis = opts.EscTimeout
	}
	if opts.Mouse {
		conf.Mouse = true
	}
	if opts.Paste {
		conf.Paste = true
	}
	if opts.LogFile != "" {
		conf.LogFile = opts.LogFile
	}
	if opts.Trace {
		conf.Trace = true
	}
}
