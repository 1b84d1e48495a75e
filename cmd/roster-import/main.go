package main

import (
	"context"
	"flag"
	"log"
	"os"

	rosterimportcmd "github.com/sjpiano/paytrack/internal/cmd/rosterimport"
	"github.com/sjpiano/paytrack/internal/platform/config"
)

func main() {
	cfg, err := rosterimportcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	log.SetPrefix("[ROSTER] ")

	if err := rosterimportcmd.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
