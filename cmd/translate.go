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
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/valpere/slidetran/internal/config"
	"github.com/valpere/slidetran/internal/orchestrator"
)

var (
	inputFile  string
	outputFile string
	sourceLang string
	targetLang string
	useLLM     bool
	llmModel   string
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a presentation from the command line",
	Long: `Translate a single .pptx file and write the translated copy next to
the original (or to --output). Formatting, layout and images are preserved;
only text content changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == "" || targetLang == "" {
			return fmt.Errorf("--input and --target are required")
		}

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

		// Stage the input file in the upload store.
		src, err := os.Open(inputFile)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		name, err := p.store.SaveUpload(filepath.Base(inputFile), src)
		src.Close()
		if err != nil {
			return err
		}

		stats, err := p.orchestrator.Translate(cmd.Context(), orchestrator.Job{
			Filename:   name,
			SourceLang: sourceLang,
			TargetLang: targetLang,
			UseLLM:     useLLM,
			LLMModel:   llmModel,
		})
		if err != nil {
			return err
		}

		dest := outputFile
		if dest == "" {
			dest = filepath.Join(filepath.Dir(inputFile), stats.OutputFilename)
		}
		if err := copyFile(p.store.OutputPath(stats.OutputFilename), dest); err != nil {
			return err
		}

		fmt.Printf("Translated %d text frames on %d slides to %s\n",
			stats.TextFramesTranslated, stats.SlidesTranslated, targetLang)
		if stats.Skipped > 0 {
			fmt.Printf("Skipped %d frames already in the target language\n", stats.Skipped)
		}
		if stats.MemoryHits > 0 {
			fmt.Printf("Reused %d translations from memory\n", stats.MemoryHits)
		}
		if stats.Failed > 0 {
			fmt.Fprintf(os.Stderr, "Warning: %d frames could not be translated and keep their original text\n", stats.Failed)
		}
		if useLLM {
			fmt.Printf("LLM refinement: %d applied, %d fell back to the draft\n",
				stats.Enhanced, stats.EnhancementFallbacks)
		}
		fmt.Printf("Output written to %s (%.1fs)\n", dest, stats.ProcessingTime)
		return nil
	},
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return out.Close()
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "input .pptx file")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default <input>_<lang>.pptx)")
	translateCmd.Flags().StringVarP(&sourceLang, "source", "s", "", "source language (default: provider auto-detect)")
	translateCmd.Flags().StringVarP(&targetLang, "target", "t", "", "target language")
	translateCmd.Flags().BoolVar(&useLLM, "llm", false, "refine translations with the configured LLM")
	translateCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model for refinement")
}
