package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/internal/localcache"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/internal/sync"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/config"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
)

// keyAuthToken is the local cache entry holding the bearer token
const keyAuthToken = "authToken"

var rootCmd = &cobra.Command{
	Use:   "brainctl",
	Short: "Command-line client for the brain imaging case service",
	Long: `brainctl talks to the case service the same way the patient and
doctor apps do: it keeps a local cache of the case list, works from
that cache when the backend is unreachable, and periodically
synchronizes in watch mode.`,
	SilenceUsage: true,
}

// app bundles the wired-up client core shared by all subcommands
type app struct {
	cfg         *config.Config
	store       *localcache.FileStore
	client      *sync.Client
	coordinator *sync.Coordinator
	view        *sync.ViewModel
}

// newApp wires the sync client, coordinator and view model against the
// configured backend and state directory
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New("error")

	store, err := localcache.NewFileStore(cfg.Sync.StateDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}

	client := sync.NewClient(&cfg.Sync, log)
	if token, ok := store.Get(keyAuthToken); ok {
		client.SetToken(string(token))
	}

	coordinator := sync.NewCoordinator(client, store, log)
	coordinator.SetPollInterval(time.Duration(cfg.Sync.PollInterval) * time.Second)

	return &app{
		cfg:         cfg,
		store:       store,
		client:      client,
		coordinator: coordinator,
		view:        sync.NewViewModel(coordinator),
	}, nil
}

// requireSession returns the cached session profile or an error telling
// the user to log in first
func (a *app) requireSession() error {
	if a.coordinator.Session() == nil {
		return fmt.Errorf("not logged in, run 'brainctl login' first")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
