/*
battery-analyzer - cycle and profile analysis of battery test logs.
Copyright (C) 2024, The Cacophony Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package config reads the sectioned battery-analyzer.toml file.
// Values can be overridden with BATTERY_ANALYZER_<SECTION>_<KEY>
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DefaultConfigDir = "/etc/cacophony"
	ConfigFileName   = "battery-analyzer.toml"
	envPrefix        = "BATTERY_ANALYZER"
)

// ConfigArgs is embedded in the go-arg structs of each subcommand.
type ConfigArgs struct {
	ConfigDir string `arg:"-c,--config-dir" default:"/etc/cacophony" help:"path to configuration directory"`
}

type Config struct {
	v    *viper.Viper
	file string
}

var sectionDefaults = map[string]func() interface{}{
	AnalysisKey: func() interface{} { return DefaultAnalysis() },
	DatabaseKey: func() interface{} { return DefaultDatabase() },
	S3Key:       func() interface{} { return DefaultS3() },
	OutputKey:   func() interface{} { return DefaultOutput() },
}

// New loads battery-analyzer.toml from dir. A missing file is not an
// error, every section then holds its defaults.
func New(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, def := range sectionDefaults {
		m := map[string]interface{}{}
		if err := mapstructure.Decode(def(), &m); err != nil {
			return nil, fmt.Errorf("failed to decode defaults for %s: %w", key, err)
		}
		for k, val := range m {
			v.SetDefault(key+"."+k, val)
		}
	}

	c := &Config{v: v}
	if dir == "" {
		return c, nil
	}
	file := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		return c, nil
	} else if err != nil {
		return nil, err
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", file, err)
	}
	c.file = file
	return c, nil
}

// File is the path of the loaded config file, empty when only defaults
// and the environment are in use.
func (c *Config) File() string {
	return c.file
}

// Unmarshal decodes the section stored under key into out. out should
// already hold the section defaults.
func (c *Config) Unmarshal(key string, out interface{}) error {
	if _, ok := sectionDefaults[key]; !ok {
		return fmt.Errorf("unknown config section %q", key)
	}
	raw, ok := c.v.AllSettings()[key]
	if !ok {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode config section %s: %w", key, err)
	}
	return nil
}
