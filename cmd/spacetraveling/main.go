// Command spacetraveling serves the blog, or exports it as static files.
package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	// Variables already in the environment win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("spacetraveling"),
		kong.Description("A blog front-end over a Prismic repository."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		slog.Error("Command failed", "command", ctx.Command(), "error", err)
		os.Exit(1)
	}
}
