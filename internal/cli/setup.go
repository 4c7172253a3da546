package cli

import (
	"fmt"

	"github.com/jjadal/steward/internal/action"
	"github.com/jjadal/steward/internal/config"
	"github.com/jjadal/steward/internal/engine"
	"github.com/jjadal/steward/internal/prompt"
	"github.com/jjadal/steward/internal/store"
	"github.com/jjadal/steward/internal/usage"
)

// runtime bundles the wired-up engine stack for one command invocation.
type runtime struct {
	cfg     config.Config
	db      *store.DB
	manager *engine.Manager
	tools   *action.Registry
	usage   *usage.Tracker
}

func (r *runtime) close() {
	if r.db != nil {
		r.db.Close()
	}
}

// setupRuntime loads config, opens the store, and wires the session manager
// with the given event sink.
func setupRuntime(sink engine.EventSink) (*runtime, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, err
	}

	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return nil, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}

	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}

	db, err := store.Open(paths.Store, log)
	if err != nil {
		return nil, err
	}

	notes := action.NewNotesStore(paths.Data)
	tools := action.NewBuiltinRegistry(paths.Data, notes, log)
	prompts := prompt.NewProvider(paths.Prompts, paths.Context, notes, log)
	tracker := usage.NewTracker(db.SQL(), log)
	manager := engine.NewManager(cfg, store.NewConversations(db), tools, prompts, tracker, sink, log)

	return &runtime{
		cfg:     cfg,
		db:      db,
		manager: manager,
		tools:   tools,
		usage:   tracker,
	}, nil
}
