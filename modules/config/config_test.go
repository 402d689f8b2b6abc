package config_test

import (
	"context"
	"os"
	"testing"

	"reward-polls/modules/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conf struct {
	A uint
	B string
}

func TestBasic(t *testing.T) {
	dir := t.TempDir()
	c := config.New(conf{1, "hi"}, &dir)
	err := c.Init()
	require.NoError(t, err)
	_, err = c.Start().Await(context.Background())
	require.NoError(t, err)
	assert.True(t, c.Loaded())
	assert.Equal(t, conf{1, "hi"}, c.Get())

	_, err = os.Stat(c.FilePath())
	assert.NoError(t, err)

	require.NoError(t, c.Stop())
}

func TestUpdatePersists(t *testing.T) {
	dir := t.TempDir()
	c := config.New(conf{1, "hi"}, &dir)
	require.NoError(t, c.Init())

	require.NoError(t, c.Update(func(v *conf) {
		v.B = "changed"
	}))

	reloaded := config.New(conf{}, &dir)
	require.NoError(t, reloaded.Init())
	assert.Equal(t, conf{1, "changed"}, reloaded.Get())
}
