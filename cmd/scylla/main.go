package main

import (
	"os"

	"github.com/kindredgroup/scylla/internal/cmd/cli"
	logpkg "github.com/kindredgroup/scylla/pkg/log"
)

func main() {
	// Respect SCYLLA_LOG_LEVEL for all commands.
	level := os.Getenv("SCYLLA_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	opts := []logpkg.Option{logpkg.WithLevel(parsed)}
	if os.Getenv("SCYLLA_LOG_FORMAT") == "json" {
		opts = append(opts, logpkg.WithJSON())
	}
	logger := logpkg.NewLogger(opts...)

	if err := cli.NewRoot(logger).Execute(); err != nil {
		os.Exit(1)
	}
}
