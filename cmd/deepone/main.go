// Command deepone writes cited research reports from web search and a local
// document index.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/deepone/internal/adapters/driven/ai"
	configfile "github.com/custodia-labs/deepone/internal/adapters/driven/config/file"
	"github.com/custodia-labs/deepone/internal/adapters/driving/cli"
	"github.com/custodia-labs/deepone/internal/core/services"
	"github.com/custodia-labs/deepone/internal/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// homeEnv relocates the config file and, unless storage.dir is set, all data.
const homeEnv = "DEEPONE_HOME"

func main() {
	// Provider keys may live in a .env file next to where deepone runs.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: reading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	defer logger.Sync()

	store, err := configfile.NewConfigStore(os.Getenv(homeEnv))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening config: %v\n", err)
		return 1
	}

	settings := services.NewSettingsService(store, ai.NewConfigValidator())
	c := newContainer(settings)
	defer c.Close()

	cli.SetVersion(version)
	cli.SetServices(settings, c)
	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
