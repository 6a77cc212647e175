package flags

import (
	"errors"
	"fmt"

	"github.com/abelian-network/abelian-go/pkg/registry"
	"github.com/abelian-network/abelian-go/pkg/util"
	"github.com/urfave/cli"
)

// Node is a set of flags used to specify a registry node either directly or
// by name.
var Node = []cli.Flag{
	cli.StringFlag{
		Name:  "node, n",
		Usage: "hex-encoded node (conflicts with --name)",
	},
	cli.StringFlag{
		Name:  "name",
		Usage: "dot-separated name the node is derived from (conflicts with --node)",
	},
}

var (
	errNoNode          = errors.New("no node given, use '--node' or '--name' option")
	errConflictingNode = errors.New("--node flag conflicts with --name flag, please, provide one of them")
)

// GetNode returns the node given via Node flags.
func GetNode(ctx *cli.Context) (util.Uint256, error) {
	var (
		hex  = ctx.String("node")
		name = ctx.String("name")
	)
	switch {
	case len(hex) != 0 && len(name) != 0:
		return util.Uint256{}, errConflictingNode
	case len(hex) != 0:
		n, err := util.Uint256DecodeStringBE(hex)
		if err != nil {
			return util.Uint256{}, fmt.Errorf("invalid node: %w", err)
		}
		return n, nil
	case len(name) != 0:
		return registry.NameHash(name), nil
	default:
		return util.Uint256{}, errNoNode
	}
}
