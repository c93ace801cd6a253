package personas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedCatalog(t *testing.T) {
	t.Parallel()

	c := Load()
	all := c.All()
	require.NotEmpty(t, all)
	assert.Equal(t, "Priya Sharma", all[0].Name)
}

func TestCatalog_Get_KnownID(t *testing.T) {
	t.Parallel()

	c := Load()
	p, err := c.Get("2")
	require.NoError(t, err)
	assert.Equal(t, "Sarah Johnson", p.Name)
	assert.Equal(t, "coral", p.VoiceID)
}

func TestCatalog_Get_UnknownIDFallsBackToFirst(t *testing.T) {
	t.Parallel()

	c := Load()
	p, err := c.Get("999")
	require.NoError(t, err)
	assert.Equal(t, "1", p.ID)
}

func TestCatalog_EmptyYAMLUsesDefaults(t *testing.T) {
	t.Parallel()

	c := newCatalog(defaults)
	assert.Len(t, c.All(), 4)
}

func TestCatalog_Get_EmptyCatalogErrors(t *testing.T) {
	t.Parallel()

	c := newCatalog(nil)
	_, err := c.Get("1")
	assert.Error(t, err)
}
