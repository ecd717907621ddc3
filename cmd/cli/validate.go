// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Packages whose tests need a live Postgres (build tag integration).
var integrationPackages = []string{
	"./internal/repository",
	"./internal/worker",
	"./internal/persistence/postgres",
}

type checkStep struct {
	name string
	argv []string
}

// validationSteps lists the go toolchain checks after gofmt. The integration
// suite is only planned when a database is configured.
func validationSteps(databaseURL string) []checkStep {
	steps := []checkStep{
		{name: "go vet", argv: []string{"go", "vet", "./..."}},
		{name: "go test unit", argv: []string{"go", "test", "./..."}},
	}
	if strings.TrimSpace(databaseURL) == "" {
		return steps
	}

	argv := append([]string{"go", "test", "-count=1", "-tags=integration"}, integrationPackages...)
	return append(steps, checkStep{name: "go test integration", argv: argv})
}

func runValidate(ctx context.Context, logger *slog.Logger) error {
	started := time.Now()

	if err := checkFormatting(ctx, logger, "."); err != nil {
		return err
	}

	dbURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(dbURL) == "" {
		logger.Info("integration tests will be skipped", "reason", "DATABASE_URL is not set")
	}

	for _, step := range validationSteps(dbURL) {
		if err := runStep(ctx, logger, step); err != nil {
			return err
		}
	}

	logger.Info("validation complete", "duration_ms", time.Since(started).Milliseconds())
	return nil
}

func checkFormatting(ctx context.Context, logger *slog.Logger, root string) error {
	files, err := listGoFiles(root)
	if err != nil {
		return fmt.Errorf("list go files: %w", err)
	}
	if len(files) == 0 {
		logger.Info("gofmt skipped", "reason", "no go files found")
		return nil
	}

	started := time.Now()
	cmd := exec.CommandContext(ctx, "gofmt", append([]string{"-l"}, files...)...)
	cmd.Stderr = os.Stderr

	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("gofmt: %w", err)
	}
	if dirty := strings.TrimSpace(string(out)); dirty != "" {
		return fmt.Errorf("gofmt would change files:\n%s", dirty)
	}

	logger.Info("step completed", "step", "gofmt", "files", len(files), "duration_ms", time.Since(started).Milliseconds())
	return nil
}

func runStep(ctx context.Context, logger *slog.Logger, step checkStep) error {
	logger.Info("running step", "step", step.name, "command", strings.Join(step.argv, " "))
	started := time.Now()

	cmd := exec.CommandContext(ctx, step.argv[0], step.argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	elapsed := time.Since(started).Milliseconds()
	if err != nil {
		var exitErr *exec.ExitError
		code := 1
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		logger.Error("step failed", "step", step.name, "duration_ms", elapsed, "exit_code", code)
		return fmt.Errorf("%s: %w", step.name, err)
	}

	logger.Info("step completed", "step", step.name, "duration_ms", elapsed)
	return nil
}

// listGoFiles walks root the way the go tool does: vendor, dot and
// underscore directories are skipped.
func listGoFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
