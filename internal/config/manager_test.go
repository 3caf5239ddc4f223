// corevta - Taekwondo VTA scoring/broadcast event pipeline core.
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerRejectsNilConfig(t *testing.T) {
	_, err := NewManager(nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestManagerGetReturnsIndependentCopy(t *testing.T) {
	mgr, err := NewManager(defaultConfig())
	require.NoError(t, err)

	cp := mgr.Get()
	cp.UDP.Port = 1
	assert.NotEqual(t, 1, mgr.Get().UDP.Port)
}

func TestManagerUpdateAppliesValidatedChange(t *testing.T) {
	mgr, err := NewManager(defaultConfig())
	require.NoError(t, err)

	err = mgr.Update(func(c *Config) { c.UDP.Port = 9999 })
	require.NoError(t, err)
	assert.Equal(t, 9999, mgr.Get().UDP.Port)
}

func TestManagerUpdateRejectsInvalidChange(t *testing.T) {
	mgr, err := NewManager(defaultConfig())
	require.NoError(t, err)

	err = mgr.Update(func(c *Config) { c.UDP.Port = 0 })
	assert.Error(t, err)
	assert.NotEqual(t, 0, mgr.Get().UDP.Port)
}

func TestManagerSubscribeReceivesUpdate(t *testing.T) {
	mgr, err := NewManager(defaultConfig())
	require.NoError(t, err)

	ch := mgr.Subscribe()
	require.NoError(t, mgr.Update(func(c *Config) { c.UDP.Port = 4242 }))

	select {
	case next := <-ch:
		assert.Equal(t, 4242, next.UDP.Port)
	default:
		t.Fatal("expected subscriber notification")
	}
}
