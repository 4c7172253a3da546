package action

import "github.com/jjadal/steward/internal/logging"

// NewBuiltinRegistry builds a registry holding every built-in tool. The
// caller supplies the notes store so note appends share one lock with any
// other reader of the corpus; the remaining stores are rooted at dataDir.
func NewBuiltinRegistry(dataDir string, notes *NotesStore, log *logging.Logger) *Registry {
	reg := NewRegistry(log)
	events := NewEventStore(dataDir)
	reg.MustRegister(
		&NoteAppendTool{Store: notes},
		&TimerStartTool{Store: NewTimerStore(dataDir)},
		&AlarmCreateTool{Store: NewAlarmStore(dataDir)},
		&EventCreateTool{Store: events},
		&EventCheckTool{Store: events},
	)
	return reg
}
