package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	language string
}

func (s stubRunner) Language() string { return s.language }

func (s stubRunner) Run(ctx context.Context, req Request) (Result, error) {
	return Result{}, nil
}

func TestRegistryResolvesRegisteredLanguage(t *testing.T) {
	registry := NewRegistry(stubRunner{language: "javascript"})

	runner, err := registry.RunnerFor("javascript")
	require.NoError(t, err)
	assert.Equal(t, "javascript", runner.Language())
}

func TestRegistryNormalizesLanguageIdentifier(t *testing.T) {
	registry := NewRegistry(stubRunner{language: "JavaScript"})

	runner, err := registry.RunnerFor("  javascript ")
	require.NoError(t, err)
	assert.Equal(t, "JavaScript", runner.Language())
}

func TestRegistryRejectsUnknownLanguage(t *testing.T) {
	registry := NewRegistry(stubRunner{language: "javascript"})

	_, err := registry.RunnerFor("cobol")
	var notSupported *LanguageNotSupportedError
	require.ErrorAs(t, err, &notSupported)
	assert.Equal(t, "cobol", notSupported.Language)
}

func TestRegistryListsLanguages(t *testing.T) {
	registry := NewRegistry(stubRunner{language: "javascript"}, stubRunner{language: "lua"})
	assert.ElementsMatch(t, []string{"javascript", "lua"}, registry.Languages())
}
