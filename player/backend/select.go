package backend

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/lectern/player"
	"github.com/dgnsrekt/lectern/player/backend/mock"
)

// Select picks the synthesis backend once from configuration and
// availability. The remote engine needs a present, non-empty credential;
// without one the preference silently degrades to local. The choice is made
// here, once, never re-evaluated mid-session.
func Select(cfg player.Config, out player.AudioPlayer, logger *log.Logger) (player.SynthesisBackend, error) {
	if logger == nil {
		logger = log.Default()
	}

	switch cfg.Engine {
	case player.EngineRemote:
		if cfg.HasCredential() {
			return NewRemote(cfg.Remote, logger), nil
		}
		logger.Warn("remote engine selected but no credential configured, falling back to local")
		fallthrough
	case player.EngineLocal:
		local, err := NewLocal(cfg.Local, out, logger)
		if err != nil {
			return nil, fmt.Errorf("selecting local engine: %w", err)
		}
		return local, nil
	case player.EngineMock:
		return mock.New(mock.WithRemote()), nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", player.ErrBackendUnavailable, cfg.Engine)
	}
}
