package langhandler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeboxed/execd/internal/langhandler"
)

func TestNewRegistryRejectsUnknownTag(t *testing.T) {
	_, err := langhandler.NewRegistry([]string{"python", "cobol"})
	require.Error(t, err)
	assert.ErrorIs(t, err, langhandler.ErrUnsupportedLanguage)
}

func TestNewRegistryDedupesAliases(t *testing.T) {
	reg, err := langhandler.NewRegistry([]string{"node", "javascript"})
	require.NoError(t, err)
	assert.Equal(t, []string{"node"}, reg.Supported())
}

func TestCanonicalizeRejectsTagOutsideAllowList(t *testing.T) {
	reg, err := langhandler.NewRegistry([]string{"python"})
	require.NoError(t, err)

	_, err = reg.Canonicalize("bash")
	assert.ErrorIs(t, err, langhandler.ErrUnsupportedLanguage, "bash is a known tag but not allow-listed here")
}

func TestCanonicalizeResolvesAliases(t *testing.T) {
	reg, err := langhandler.NewRegistry([]string{"node", "bash"})
	require.NoError(t, err)

	canonical, err := reg.Canonicalize("javascript")
	require.NoError(t, err)
	assert.Equal(t, "node", canonical)

	canonical, err = reg.Canonicalize("shell")
	require.NoError(t, err)
	assert.Equal(t, "bash", canonical)
}

func TestLookupRejectsCanonicalOutsideAllowList(t *testing.T) {
	reg, err := langhandler.NewRegistry([]string{"python"})
	require.NoError(t, err)

	_, err = reg.Lookup("c")
	assert.ErrorIs(t, err, langhandler.ErrUnsupportedLanguage)

	h, err := reg.Lookup("python")
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestSupportedPreservesConfiguredOrder(t *testing.T) {
	reg, err := langhandler.NewRegistry([]string{"c", "python", "bash"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "python", "bash"}, reg.Supported())
}
