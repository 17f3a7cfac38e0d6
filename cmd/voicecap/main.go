package main

import (
	"context"
	"os"

	"github.com/tiroq/voicecap/internal/cli"
	"github.com/tiroq/voicecap/internal/diaglog"
	"github.com/tiroq/voicecap/internal/output"
	"github.com/tiroq/voicecap/internal/version"
)

func main() {
	diaglog.Version = version.Version

	deps := cli.NewDependencies()
	if err := cli.NewRootCmd(deps).ExecuteContext(context.Background()); err != nil {
		output.NewFormatter(os.Stderr).Error(err.Error())
		if deps.Logger != nil {
			_ = deps.Logger.Sync()
		}
		os.Exit(1)
	}
}
