package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/mechmon/internal/config"
)

func TestParseModelSpec(t *testing.T) {
	mc, err := parseModelSpec("rasmodel")
	require.NoError(t, err)
	assert.Equal(t, config.ModelConfig{Name: "rasmodel"}, mc)

	mc, err = parseModelSpec("rasmodel:large_corpus,rasmachine_tests")
	require.NoError(t, err)
	assert.Equal(t, "rasmodel", mc.Name)
	assert.Equal(t, []string{"large_corpus", "rasmachine_tests"}, mc.Corpora)

	_, err = parseModelSpec(":large_corpus")
	assert.Error(t, err)

	_, err = parseModelSpec("rasmodel:large_corpus,")
	assert.Error(t, err)
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "abcd1234", shortHash("abcd1234ef56"))
	assert.Equal(t, "abc", shortHash("abc"))
}
