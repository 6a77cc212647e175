package key

import (
	"fmt"
	"io"

	"github.com/abelian-network/abelian-go/cli/options"
	"github.com/abelian-network/abelian-go/pkg/crypto/keys"
	"github.com/urfave/cli"
)

// NewCommands returns 'key' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:  "key",
		Usage: "Manage signing keys",
		Subcommands: []cli.Command{
			{
				Name:   "generate",
				Usage:  "Generate a new random signing key",
				Action: generate,
			},
			{
				Name:      "inspect",
				Usage:     "Print the public key, address and script hash of the signing key",
				UsageText: "inspect --key <hex>",
				Action:    inspect,
				Flags:     []cli.Flag{options.Key},
			},
		},
	}}
}

func generate(ctx *cli.Context) error {
	k, err := keys.NewPrivateKey()
	if err != nil {
		return options.ExitWith(fmt.Errorf("failed to generate key: %w", err))
	}
	defer k.Destroy()
	fmt.Fprintf(ctx.App.Writer, "Key:\t%s\n", k.String())
	printKey(ctx.App.Writer, k)
	return nil
}

func inspect(ctx *cli.Context) error {
	k, err := options.GetKeyFromContext(ctx)
	if err != nil {
		return options.ExitWith(err)
	}
	defer k.Destroy()
	printKey(ctx.App.Writer, k)
	return nil
}

func printKey(w io.Writer, k *keys.PrivateKey) {
	fmt.Fprintf(w, "PublicKey:\t%s\n", k.PublicKey().String())
	fmt.Fprintf(w, "Address:\t%s\n", k.Address())
	fmt.Fprintf(w, "ScriptHash:\t%s\n", k.GetScriptHash().StringPrefixed())
}
