package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/vburojevic/ttycast/internal/cli"
	"github.com/vburojevic/ttycast/internal/config"
)

const quickStart = `ttycast - turn honeypot terminal captures into asciicast transcripts

Quick start:
  ttycast convert SESSION.log --sensor honeypot-1 -o out/     Convert one capture
  ttycast inspect SESSION.log --where verdict=accept          Trace the decoder
  ttycast play out/SESSION.json                               Replay in the terminal
  ttycast watch /var/lib/cowrie/tty -o casts/                 Convert captures as they land

For help:
  ttycast --help                        All commands and flags
  ttycast schema                        JSON Schema of every output
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Config values become flag defaults; explicit flags override them
	ctx := kong.Parse(&c,
		kong.Name("ttycast"),
		kong.Description("ttycast: convert cowrie ttylog captures into replayable asciicast transcripts"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		cli.Vars(cfg),
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	err = ctx.Run(globals)
	if err != nil {
		os.Exit(1)
	}
}
