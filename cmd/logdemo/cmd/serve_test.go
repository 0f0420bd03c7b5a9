package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeFlagsBoundToViper(t *testing.T) {
	t.Cleanup(func() {
		_ = serveCmd.Flags().Set("port", "0")
		_ = serveCmd.Flags().Set("config", "")
	})

	require.NoError(t, serveCmd.Flags().Set("port", "8088"))
	require.NoError(t, serveCmd.Flags().Set("config", "deployments/logdemo.yaml"))

	assert.Equal(t, 8088, viper.GetInt("port"))
	assert.Equal(t, "deployments/logdemo.yaml", viper.GetString("config"))
}
