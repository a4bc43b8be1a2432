// -- cmd/root_test.go --
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/periscope-cli/api/schemas"
	"github.com/xkilldash9x/periscope-cli/internal/observability"
)

// resetGlobals clears the shared viper and logger state the cmd package
// leans on, so tests stay independent.
func resetGlobals(t *testing.T) {
	t.Helper()
	viper.Reset()
	observability.ResetForTest()
	cfgFile = ""
	t.Cleanup(func() {
		viper.Reset()
		observability.ResetForTest()
		cfgFile = ""
	})
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	resetGlobals(t)

	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "periscope "+Version)
}

func TestRunCommandRequiresExactlyOneTask(t *testing.T) {
	resetGlobals(t)

	_, err := executeCommand(t, "run")
	require.Error(t, err)

	resetGlobals(t)
	_, err = executeCommand(t, "run", "task one", "task two")
	require.Error(t, err)
}

func TestRunCommandRejectsBlankTask(t *testing.T) {
	resetGlobals(t)

	_, err := executeCommand(t, "run", "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrConfiguration)
}

func TestInitializeConfigAppliesDefaults(t *testing.T) {
	resetGlobals(t)

	require.NoError(t, initializeConfig())

	assert.Equal(t, 50, viper.GetInt("agent.max_steps"))
	assert.Equal(t, 5, viper.GetInt("agent.context_window"))
	assert.Equal(t, "qwen3-vl:8b", viper.GetString("model.model"))
}

func TestInitializeConfigReadsConfigFile(t *testing.T) {
	resetGlobals(t)

	configYAML := `
agent:
  max_steps: 7
  start_url: "https://config.example"
model:
  model: "test-model:latest"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0644))
	cfgFile = path

	require.NoError(t, initializeConfig())

	assert.Equal(t, 7, viper.GetInt("agent.max_steps"))
	assert.Equal(t, "https://config.example", viper.GetString("agent.start_url"))
	assert.Equal(t, "test-model:latest", viper.GetString("model.model"))
	// Values the file does not mention keep their defaults.
	assert.Equal(t, 5, viper.GetInt("agent.context_window"))
}

func TestInitializeConfigRejectsMalformedFile(t *testing.T) {
	resetGlobals(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent: [not a map"), 0644))
	cfgFile = path

	err := initializeConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file")
}

func TestInitializeConfigBindsEnvironment(t *testing.T) {
	resetGlobals(t)
	t.Setenv("PERISCOPE_AGENT_MAX_STEPS", "12")

	require.NoError(t, initializeConfig())
	assert.Equal(t, 12, viper.GetInt("agent.max_steps"))
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	resetGlobals(t)
	require.NoError(t, initializeConfig())

	runCmd := newRunCmd()
	require.NoError(t, runCmd.Flags().Set("max-steps", "3"))
	require.NoError(t, runCmd.Flags().Set("url", "https://flag.example"))
	require.NoError(t, runCmd.PreRunE(runCmd, []string{"task"}))

	assert.Equal(t, 3, viper.GetInt("agent.max_steps"))
	assert.Equal(t, "https://flag.example", viper.GetString("agent.start_url"))
	// Unset flags must not clobber resolved values.
	assert.Equal(t, "qwen3-vl:8b", viper.GetString("model.model"))
}

func TestRunFlagSurfaceMatchesBindings(t *testing.T) {
	runCmd := newRunCmd()
	for flag := range runFlagBindings {
		assert.NotNil(t, runCmd.Flags().Lookup(flag), "flag %q is bound but not declared", flag)
	}
	assert.True(t, strings.HasPrefix(runCmd.Use, "run"))
}
