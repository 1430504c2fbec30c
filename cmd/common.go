/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/valpere/slidetran/internal/config"
	"github.com/valpere/slidetran/internal/detector"
	"github.com/valpere/slidetran/internal/enhancer"
	"github.com/valpere/slidetran/internal/memory"
	"github.com/valpere/slidetran/internal/orchestrator"
	"github.com/valpere/slidetran/internal/store"
	"github.com/valpere/slidetran/internal/translator"
)

// buildService constructs the configured machine-translation provider.
func buildService(cfg *config.Config) (translator.Service, error) {
	switch cfg.Translation.Provider {
	case "azure":
		return translator.NewAzureService(cfg.Translation.AzureKey, cfg.Translation.AzureEndpoint, cfg.Translation.AzureRegion), nil
	case "google":
		return translator.NewGoogleService(cfg.Translation.GoogleCredentials), nil
	default:
		return nil, fmt.Errorf("unknown translation provider: %s", cfg.Translation.Provider)
	}
}

// buildEnhancer constructs the LLM refiner, or returns nil when no API key
// is configured.
func buildEnhancer(cfg *config.Config) (enhancer.Enhancer, error) {
	if cfg.Enhancement.APIKey == "" {
		return nil, nil
	}
	return enhancer.NewOpenRouterEnhancer(cfg.Enhancement.APIKey, cfg.Enhancement.Endpoint, cfg.Enhancement.DefaultModel)
}

// pipeline bundles the components shared by the serve and translate
// commands.
type pipeline struct {
	orchestrator *orchestrator.Orchestrator
	store        *store.Store
	service      translator.Service
	enhancer     enhancer.Enhancer // nil when unconfigured
	cleanup      func()
}

// buildPipeline wires store, provider, memory and orchestrator from
// configuration. Callers must invoke cleanup when done.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	st, err := store.New(cfg.Storage.UploadDir, cfg.Storage.OutputDir, cfg.Storage.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	svc, err := buildService(cfg)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(svc, st, orchestrator.Config{
		MaxConcurrentBatches:      cfg.Translation.MaxConcurrentBatches,
		MaxConcurrentEnhancements: cfg.Enhancement.MaxConcurrent,
		MaxAttempts:               cfg.Translation.MaxAttempts,
		RetryDelay:                cfg.Translation.RetryDelay,
	}, logger)

	orch.WithPolicy(detector.NewPolicy(detector.New()))

	cleanup := func() {}
	if cfg.Storage.MemoryDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.MemoryDB), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create memory directory: %w", err)
		}
		mem, err := memory.Open(cfg.Storage.MemoryDB)
		if err != nil {
			return nil, err
		}
		orch.WithMemory(mem)
		cleanup = func() { mem.Close() }
	}

	enh, err := buildEnhancer(cfg)
	if err != nil {
		cleanup()
		return nil, err
	}
	if enh != nil {
		orch.WithEnhancer(enh)
	}

	return &pipeline{
		orchestrator: orch,
		store:        st,
		service:      svc,
		enhancer:     enh,
		cleanup:      cleanup,
	}, nil
}
