// Package prompt assembles the system prompt for a personality from prompt
// files, optional custom instructions, and named context sets.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jjadal/steward/internal/config"
	"github.com/jjadal/steward/internal/logging"
)

// notesSet is the reserved context set name backed by the live note corpus
// instead of a file under the context directory.
const notesSet = "notes"

// NotesSource supplies the persistent note corpus for the reserved "notes"
// context set.
type NotesSource interface {
	Corpus() (string, error)
}

// Provider loads and composes system prompts.
type Provider struct {
	promptsDir string
	contextDir string
	notes      NotesSource
	log        *logging.Logger
}

// NewProvider creates a prompt provider over the standard directories.
func NewProvider(promptsDir, contextDir string, notes NotesSource, log *logging.Logger) *Provider {
	return &Provider{
		promptsDir: promptsDir,
		contextDir: contextDir,
		notes:      notes,
		log:        log.Sub("prompt"),
	}
}

// LoadSystemPrompt reads the base prompt file for a prompt id. A missing or
// empty id yields an empty prompt, not an error.
func (p *Provider) LoadSystemPrompt(promptID string) (string, error) {
	if promptID == "" {
		return "", nil
	}
	data, err := os.ReadFile(filepath.Join(p.promptsDir, promptID+".md"))
	if err != nil {
		if os.IsNotExist(err) {
			p.log.Warn().Str("prompt", promptID).Msg("prompt file not found")
			return "", nil
		}
		return "", fmt.Errorf("reading prompt %s: %w", promptID, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// LoadContext reads the named context sets and concatenates them in order.
// The reserved "notes" set pulls from the note corpus.
func (p *Provider) LoadContext(setIDs []string) (string, error) {
	var sections []string
	for _, id := range setIDs {
		if id == notesSet {
			if p.notes == nil {
				continue
			}
			corpus, err := p.notes.Corpus()
			if err != nil {
				return "", fmt.Errorf("loading notes context: %w", err)
			}
			if corpus = strings.TrimSpace(corpus); corpus != "" {
				sections = append(sections, "## Notes\n\n"+corpus)
			}
			continue
		}

		data, err := os.ReadFile(filepath.Join(p.contextDir, id+".md"))
		if err != nil {
			if os.IsNotExist(err) {
				p.log.Warn().Str("set", id).Msg("context set not found")
				continue
			}
			return "", fmt.Errorf("reading context set %s: %w", id, err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			sections = append(sections, text)
		}
	}
	return strings.Join(sections, "\n\n"), nil
}

// Compose builds the full system prompt for a personality: base prompt,
// custom instructions, then context sets.
func (p *Provider) Compose(personality config.PersonalityEntry) (string, error) {
	var parts []string

	base, err := p.LoadSystemPrompt(personality.PromptID)
	if err != nil {
		return "", err
	}
	if base != "" {
		parts = append(parts, base)
	}

	if instr := strings.TrimSpace(personality.CustomInstructions); instr != "" {
		parts = append(parts, instr)
	}

	ctx, err := p.LoadContext(personality.ContextSets)
	if err != nil {
		return "", err
	}
	if ctx != "" {
		parts = append(parts, ctx)
	}

	return strings.Join(parts, "\n\n"), nil
}
