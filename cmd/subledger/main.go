package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"subledger/internal/cli"
	applog "subledger/internal/log"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentCLI)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range ledgerCommands {
		commander.Register(c, "ledger")
	}
	for _, c := range reportCommands {
		commander.Register(c, "reports")
	}
	for _, c := range syncCommands {
		commander.Register(c, "cloud")
	}

	flag.Parse()

	ctx, stop := cli.SignalContext(applog.IntoContext(context.Background(), logger))
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
