// File: cmd/wiring.go
// Description: Builds the real dependency graph shared by the heal and
// serve commands.
package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/attest"
	"github.com/xkilldash9x/mendbot/internal/config"
	"github.com/xkilldash9x/mendbot/internal/fixer"
	"github.com/xkilldash9x/mendbot/internal/gitops"
	"github.com/xkilldash9x/mendbot/internal/healer"
	"github.com/xkilldash9x/mendbot/internal/hosting"
	"github.com/xkilldash9x/mendbot/internal/llmclient"
	"github.com/xkilldash9x/mendbot/internal/progress"
	"github.com/xkilldash9x/mendbot/internal/sandbox"
	"github.com/xkilldash9x/mendbot/internal/scanner"
	"github.com/xkilldash9x/mendbot/internal/store"
	"github.com/xkilldash9x/mendbot/internal/testrunner"
)

// appDeps is the assembled application: the healer, its store, and the
// progress registry the server subscribes to.
type appDeps struct {
	Healer   *healer.Healer
	Store    schemas.SessionStore
	Registry *progress.Registry
}

// buildApp wires the real implementations. The returned closer releases the
// session store and tears down the registry.
func buildApp(cfg *config.Config, logger *zap.Logger) (*appDeps, func(), error) {
	var sessionStore schemas.SessionStore
	var err error
	if cfg.Store.Path != "" {
		sessionStore, err = store.NewBadgerStore(cfg.Store.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open session store: %w", err)
		}
	} else {
		sessionStore = store.NewMemoryStore()
	}

	llm, err := llmclient.NewClient(cfg.LLM, logger)
	if err != nil {
		_ = sessionStore.Close()
		return nil, nil, fmt.Errorf("could not initialize LLM client: %w", err)
	}

	host, err := hosting.NewClient(cfg.GitHub, logger)
	if err != nil {
		_ = sessionStore.Close()
		return nil, nil, fmt.Errorf("could not initialize hosting client: %w", err)
	}

	exec := sandbox.NewExecutor(logger, cfg.Sandbox.CommandTimeout)
	registry := progress.NewRegistry(logger)

	h := healer.New(cfg.Healer, healer.Deps{
		Store:   sessionStore,
		Host:    host,
		Sandbox: sandbox.NewManager(cfg.SandboxRoot(), logger),
		Git:     gitops.NewClient(exec, cfg.GitHub, logger),
		Runner:  testrunner.NewRunner(exec, cfg.Runner, logger),
		Scanner: scanner.New(llm, logger),
		Fixer:   fixer.New(llm, logger),
		Emitter: registry,
		Attest:  attest.NewRecorder(cfg.Attestation, logger),
	}, logger)

	closer := func() {
		registry.Shutdown()
		if err := sessionStore.Close(); err != nil {
			logger.Warn("Session store close failed", zap.Error(err))
		}
	}
	return &appDeps{Healer: h, Store: sessionStore, Registry: registry}, closer, nil
}
