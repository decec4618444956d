package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagLoader_Precedence(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	c := &cobra.Command{Use: "test"}
	c.Flags().String("bucket", "flag-default", "")
	c.Flags().Bool("throw", false, "")
	c.Flags().Int("delete_concurrency", 1, "")
	c.Flags().Duration("expires", time.Minute, "")

	viper.Set("bucket", "from-config")
	viper.Set("throw", true)
	viper.Set("delete_concurrency", 4)
	viper.Set("expires", "2h")

	f := NewFlagLoader(c)
	assert.Equal(t, "from-config", f.String("bucket"))
	assert.True(t, f.Bool("throw"))
	assert.Equal(t, 4, f.Int("delete_concurrency"))
	assert.Equal(t, 2*time.Hour, f.Duration("expires"))

	require.NoError(t, c.Flags().Set("bucket", "from-flag"))
	require.NoError(t, c.Flags().Set("throw", "false"))
	require.NoError(t, c.Flags().Set("delete_concurrency", "8"))
	require.NoError(t, c.Flags().Set("expires", "5s"))

	assert.Equal(t, "from-flag", f.String("bucket"))
	assert.False(t, f.Bool("throw"))
	assert.Equal(t, 8, f.Int("delete_concurrency"))
	assert.Equal(t, 5*time.Second, f.Duration("expires"))
}
