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
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valpere/slidetran/internal/config"
	"github.com/valpere/slidetran/internal/editor"
	"github.com/valpere/slidetran/internal/preview"
	"github.com/valpere/slidetran/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the translation HTTP API",
	Long: `Start the HTTP server backing the slide editor: document upload,
translation jobs, content editing and slide previews.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger := newLogger()

		p, err := buildPipeline(cfg, logger)
		if err != nil {
			return err
		}
		defer p.cleanup()

		srv := server.New(
			p.orchestrator,
			editor.New(p.store, logger),
			preview.NewService(p.store, nil),
			p.store,
			p.service,
			p.enhancer,
			cfg.Enhancement.Models,
			logger,
		).WithAllowedOrigin(cfg.Server.AllowedOrigin)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := srv.ListenAndServe(ctx, addr, cfg.Server.ShutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
