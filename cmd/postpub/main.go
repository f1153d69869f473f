package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/postpub/cmd/postpub/commands"
	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
	"git.home.luguber.info/inful/postpub/internal/version"
)

func main() {
	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("postpub"),
		kong.Description("Publish markdown posts of a Hugo site with canonical URLs"),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(cli),
	)

	err := ctx.Run(&commands.Global{Logger: slog.Default(), Stdout: os.Stdout})
	if code := errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).Report(os.Stderr, err); code != 0 {
		os.Exit(code)
	}
}
