// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/adiadia/coverage-tracker/internal/logging"
)

const usage = `usage: go run ./cmd/cli <command>

commands:
  validate             gofmt, vet and tests (integration tests when DATABASE_URL is set)
  roster-check <path>  parse a roster file and report problems
  board [path]         render the verification board for a roster (sample roster by default)
`

func main() {
	logger := logging.New(os.Stderr, "prod", "cli")
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, logger))
}

// run returns the process exit code: 0 ok, 1 command failed, 2 bad usage.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, logger *slog.Logger) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "validate":
		if err := runValidate(ctx, logger); err != nil {
			logger.Error("validation failed", "error", err)
			return 1
		}
		logger.Info("validation passed")
	case "roster-check":
		if len(rest) != 1 {
			_, _ = fmt.Fprint(stderr, usage)
			return 2
		}
		if err := runRosterCheck(rest[0], logger); err != nil {
			logger.Error("roster check failed", "path", rest[0], "error", err)
			return 1
		}
	case "board":
		path := ""
		if len(rest) > 0 {
			path = rest[0]
		}
		if err := runBoard(ctx, stdout, path, logger); err != nil {
			logger.Error("board failed", "error", err)
			return 1
		}
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	return 0
}
