// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	conf, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default, *conf)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VECBENCH_ELEMENTS", "500")
	t.Setenv("VECBENCH_WORKERS", "8")
	t.Setenv("VECBENCH_ARENA_SLOTS", "3")
	t.Setenv("VECBENCH_LOGLEVEL", "debug")

	conf, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, conf.Elements)
	assert.Equal(t, 8, conf.Workers)
	assert.Equal(t, 3, conf.ArenaSlots)
	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, "text", conf.LogFormat)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("VECBENCH_WORKERS", "0")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("VECBENCH_WORKERS", "two")
	_, err = Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"no elements", func(c *Config) { c.Elements = 0 }, true},
		{"negative elements", func(c *Config) { c.Elements = -1 }, false},
		{"no workers", func(c *Config) { c.Workers = 0 }, false},
		{"no slots", func(c *Config) { c.ArenaSlots = 0 }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conf := Default
			tc.modify(&conf)
			if tc.ok {
				assert.NoError(t, conf.Validate())
			} else {
				assert.Error(t, conf.Validate())
			}
		})
	}
}
