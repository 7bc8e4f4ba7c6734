package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	cmd := Create()

	require.NotNil(t, cmd)
	assert.Equal(t, "create", cmd.Use)
	assert.Contains(t, cmd.Long, "resumes from the last recorded step")
	assert.NotNil(t, cmd.RunE)
}

func TestCreateConfigFlag(t *testing.T) {
	cmd := Create()

	flag := cmd.Flags().Lookup("config")
	require.NotNil(t, flag, "config flag should exist")
	assert.Equal(t, "c", flag.Shorthand)
	assert.Equal(t, "", flag.DefValue)
}

func TestCreateMetricsFlag(t *testing.T) {
	cmd := Create()

	flag := cmd.Flags().Lookup("metrics-addr")
	require.NotNil(t, flag, "metrics-addr flag should exist")
	assert.Equal(t, "", flag.DefValue)
}
