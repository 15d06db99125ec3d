//go:build !windows

package main

import (
	"fmt"
	"runtime"

	"github.com/windowsadmins/pvagent/pkg/config"
	"github.com/windowsadmins/pvagent/pkg/orchestrator"
	"github.com/windowsadmins/pvagent/pkg/state"
)

var errUnsupported = fmt.Errorf("not supported on %s", runtime.GOOS)

// openStore only offers the badger backend here, which is enough to inspect
// a copied state directory with --show-state.
func openStore(cfg *config.Configuration) (state.Store, error) {
	if cfg.StateBackend != config.BackendBadger {
		return nil, fmt.Errorf("state backend %q: %w", cfg.StateBackend, errUnsupported)
	}
	return state.NewBadgerStore(cfg.StatePath)
}

func newSystem(*config.Configuration, state.Store) (orchestrator.System, string, error) {
	return orchestrator.System{}, "", errUnsupported
}

func checkAdmin() error { return nil }
