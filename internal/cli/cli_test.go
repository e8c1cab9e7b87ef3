package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/recipe-api/internal/config"
)

func testLoader(vars map[string]string) func() (config.Config, error) {
	return func() (config.Config, error) {
		base := map[string]string{"APP_ENV": "test"}
		for k, v := range vars {
			base[k] = v
		}
		return config.LoadFrom(base)
	}
}

func run(t *testing.T, load func() (config.Config, error), args ...string) error {
	t.Helper()
	root := NewRootCmd(load)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	return root.Execute()
}

func TestCommandTree(t *testing.T) {
	root := NewRootCmd(testLoader(nil))
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "wait-for-db", "create-superuser", "consume-events"})

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("migrate"))
}

func TestConfigErrorStopsCommand(t *testing.T) {
	load := func() (config.Config, error) { return config.Config{}, errors.New("missing required env var: JWT_SECRET") }
	err := run(t, load, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestConsumeEventsRequiresBroker(t *testing.T) {
	err := run(t, testLoader(nil), "consume-events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMQP_URL")
}

func TestCreateSuperuserFlags(t *testing.T) {
	err := run(t, testLoader(nil), "create-superuser")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")

	err = run(t, testLoader(nil), "create-superuser", "--email", "admin@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is required")
}

func TestBodyLimit(t *testing.T) {
	assert.Equal(t, "6144K", bodyLimit(5*1024*1024))
	assert.Equal(t, "", bodyLimit(0))
}
