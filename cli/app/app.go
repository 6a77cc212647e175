package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/abelian-network/abelian-go/cli/key"
	"github.com/abelian-network/abelian-go/cli/registry"
	"github.com/abelian-network/abelian-go/cli/shell"
	"github.com/abelian-network/abelian-go/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "Abelian\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates an instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "abelian"
	ctl.Version = config.Version
	ctl.Usage = "Node registry tool"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, key.NewCommands()...)
	ctl.Commands = append(ctl.Commands, registry.NewCommands()...)
	ctl.Commands = append(ctl.Commands, shell.NewCommands()...)
	return ctl
}
