// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"fmt"
	"io/fs"

	"github.com/curioswitch/go-curiostack/config"
)

// MaxBatchSize is the most values Firestore accepts in an "in" filter.
const MaxBatchSize = 30

type Identity struct {
	// APIKey is the Firebase web API key used for password sign-in.
	APIKey string `koanf:"apikey"`

	// Endpoint overrides the Identity Toolkit endpoint, e.g. for the auth
	// emulator.
	Endpoint string `koanf:"endpoint"`

	// Email and Password are the credentials the CLI signs in with.
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
}

type Members struct {
	// BatchSize is the number of profiles fetched per query when resolving
	// group members.
	BatchSize int `koanf:"batchsize"`
}

type Membership struct {
	// Retries is the number of attempts for each reconcile repair write.
	Retries int `koanf:"retries"`
}

type Metrics struct {
	// Addr is the listen address for /metrics while watching. Empty disables.
	Addr string `koanf:"addr"`
}

type Config struct {
	config.Common

	Identity   Identity   `koanf:"identity"`
	Members    Members    `koanf:"members"`
	Membership Membership `koanf:"membership"`
	Metrics    Metrics    `koanf:"metrics"`
}

// Load resolves configuration from confFiles and the environment, e.g.
// config.yaml then config-${CONFIG_ENV}.yaml then GOOGLE_PROJECT, and
// validates the result.
func Load(confFiles fs.FS) (*Config, error) {
	var c Config
	if err := config.Load(&c, confFiles); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks loaded values and fills in defaults that cannot be
// expressed in yaml.
func (c *Config) Validate() error {
	if c.Members.BatchSize <= 0 || c.Members.BatchSize > MaxBatchSize {
		return fmt.Errorf("config: members.batchsize must be between 1 and %d, got %d", MaxBatchSize, c.Members.BatchSize)
	}
	if c.Membership.Retries <= 0 {
		c.Membership.Retries = 1
	}
	return nil
}
