package flags

import (
	"flag"
	"testing"

	"github.com/abelian-network/abelian-go/pkg/registry"
	"github.com/abelian-network/abelian-go/pkg/util"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func nodeContext(t *testing.T, node, name string) *cli.Context {
	set := flag.NewFlagSet("flagSet", flag.ContinueOnError)
	set.String("node", "", "")
	set.String("name", "", "")
	if node != "" {
		require.NoError(t, set.Set("node", node))
	}
	if name != "" {
		require.NoError(t, set.Set("name", name))
	}
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestGetNode(t *testing.T) {
	expected := util.Uint256{0xde, 0xad}

	n, err := GetNode(nodeContext(t, expected.StringPrefixed(), ""))
	require.NoError(t, err)
	require.Equal(t, expected, n)

	n, err = GetNode(nodeContext(t, "", "node.abelian"))
	require.NoError(t, err)
	require.Equal(t, registry.NameHash("node.abelian"), n)

	_, err = GetNode(nodeContext(t, "", ""))
	require.ErrorIs(t, err, errNoNode)
	_, err = GetNode(nodeContext(t, expected.String(), "abelian"))
	require.ErrorIs(t, err, errConflictingNode)
	_, err = GetNode(nodeContext(t, "0x1234", ""))
	require.Error(t, err)
}
