package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjadal/steward/internal/config"
	"github.com/jjadal/steward/internal/logging"
)

type fakeNotes struct {
	corpus string
}

func (f fakeNotes) Corpus() (string, error) { return f.corpus, nil }

func testDirs(t *testing.T) (prompts, context string) {
	t.Helper()
	base := t.TempDir()
	prompts = filepath.Join(base, "prompts")
	context = filepath.Join(base, "context")
	require.NoError(t, os.MkdirAll(prompts, 0o700))
	require.NoError(t, os.MkdirAll(context, 0o700))
	return prompts, context
}

func TestLoadSystemPrompt(t *testing.T) {
	prompts, context := testDirs(t)
	require.NoError(t, os.WriteFile(filepath.Join(prompts, "helper.md"), []byte("You are a helpful assistant.\n"), 0o600))

	p := NewProvider(prompts, context, nil, logging.Silent())

	text, err := p.LoadSystemPrompt("helper")
	require.NoError(t, err)
	assert.Equal(t, "You are a helpful assistant.", text)

	text, err = p.LoadSystemPrompt("missing")
	require.NoError(t, err)
	assert.Empty(t, text)

	text, err = p.LoadSystemPrompt("")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestLoadContextWithNotesSet(t *testing.T) {
	prompts, context := testDirs(t)
	require.NoError(t, os.WriteFile(filepath.Join(context, "household.md"), []byte("Trash day is Tuesday."), 0o600))

	p := NewProvider(prompts, context, fakeNotes{corpus: "- buy oat milk"}, logging.Silent())

	text, err := p.LoadContext([]string{"household", "notes", "absent"})
	require.NoError(t, err)
	assert.Contains(t, text, "Trash day is Tuesday.")
	assert.Contains(t, text, "## Notes")
	assert.Contains(t, text, "- buy oat milk")
}

func TestComposeOrdersSections(t *testing.T) {
	prompts, context := testDirs(t)
	require.NoError(t, os.WriteFile(filepath.Join(prompts, "helper.md"), []byte("Base prompt."), 0o600))

	p := NewProvider(prompts, context, fakeNotes{corpus: "note one"}, logging.Silent())

	text, err := p.Compose(config.PersonalityEntry{
		ID:                 "helper",
		PromptID:           "helper",
		CustomInstructions: "Keep answers short.",
		ContextSets:        []string{"notes"},
	})
	require.NoError(t, err)

	require.Contains(t, text, "Base prompt.")
	require.Contains(t, text, "Keep answers short.")
	require.Contains(t, text, "note one")

	assert.Less(t, strings.Index(text, "Base prompt."), strings.Index(text, "Keep answers short."))
	assert.Less(t, strings.Index(text, "Keep answers short."), strings.Index(text, "note one"))
}
