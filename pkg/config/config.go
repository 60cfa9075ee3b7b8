// Copyright ©️ The Cinnabar Authors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FollowRedirects selects when HTTP requests may follow redirects: never,
// only for the initial capabilities request, or always.
type FollowRedirects int

const (
	FollowInitial FollowRedirects = iota
	FollowNever
	FollowAlways
)

func (f FollowRedirects) String() string {
	switch f {
	case FollowNever:
		return "never"
	case FollowAlways:
		return "always"
	default:
		return "initial-only"
	}
}

func ParseFollowRedirects(s string) (FollowRedirects, error) {
	switch s {
	case "", "initial-only", "initial":
		return FollowInitial, nil
	case "never", "false":
		return FollowNever, nil
	case "always", "true":
		return FollowAlways, nil
	}
	return FollowInitial, fmt.Errorf("bad follow-redirects value '%s'", s)
}

type HTTP struct {
	FollowRedirects string `toml:"follow-redirects,omitempty"`
}

type Config struct {
	HTTP HTTP `toml:"http,omitempty"`
}

// Load reads cfgPath when it exists. The CINNABAR_FOLLOW_REDIRECTS
// environment variable overrides the file.
func Load(cfgPath string) (*Config, error) {
	cfg := &Config{}
	if len(cfgPath) != 0 {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	if v, ok := os.LookupEnv("CINNABAR_FOLLOW_REDIRECTS"); ok {
		cfg.HTTP.FollowRedirects = v
	}
	return cfg, nil
}

func (c *Config) FollowRedirects() (FollowRedirects, error) {
	return ParseFollowRedirects(c.HTTP.FollowRedirects)
}
