package registry

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/abelian-network/abelian-go/cli/flags"
	"github.com/abelian-network/abelian-go/cli/options"
	"github.com/abelian-network/abelian-go/pkg/config"
	"github.com/abelian-network/abelian-go/pkg/core/storage"
	"github.com/abelian-network/abelian-go/pkg/crypto/keys"
	"github.com/abelian-network/abelian-go/pkg/encoding/address"
	"github.com/abelian-network/abelian-go/pkg/registry"
	"github.com/abelian-network/abelian-go/pkg/util"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// ServiceKey is the cli.App metadata key holding an already opened
// registry.Service. Commands open their own service from the configuration
// if it's not set.
const ServiceKey = "registryService"

var errInvalidChainID = errors.New("chain ID must be in [1, 65535] range")

// NewCommands returns 'registry' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:        "registry",
		Usage:       "Operate the node registry",
		Subcommands: Commands(),
	}}
}

// Commands returns registry subcommands.
func Commands() []cli.Command {
	var (
		submitFlags = append([]cli.Flag{options.Key, options.Timeout}, options.Common...)
		nodeFlags   = append(append([]cli.Flag{}, flags.Node...), options.Common...)
	)
	return []cli.Command{
		{
			Name:      "deploy",
			Usage:     "Deploy the registry with the signer as admin",
			UsageText: "deploy --key <hex> [--config-file <file>]",
			Action:    deploy,
			Flags:     submitFlags,
		},
		{
			Name:      "mint",
			Usage:     "Mint a new token not bound to any node",
			UsageText: "mint --key <hex> [--config-file <file>]",
			Action:    mint,
			Flags:     submitFlags,
		},
		{
			Name:      "mint-for",
			Usage:     "Mint a new token for the node",
			UsageText: "mint-for --key <hex> --node <hex> | --name <name> [--config-file <file>]",
			Action:    mintFor,
			Flags:     append(append([]cli.Flag{}, flags.Node...), submitFlags...),
		},
		{
			Name:      "set-owner",
			Usage:     "Set the owner of the node",
			UsageText: "set-owner --key <hex> --node <hex> | --name <name> --owner <address> [--config-file <file>]",
			Action:    setOwner,
			Flags: append(append([]cli.Flag{}, flags.Node...), append(flags.MarkRequired([]cli.Flag{
				cli.StringFlag{
					Name:  "owner, o",
					Usage: "new owner address (base58 or hex)",
				},
			}, "owner"), submitFlags...)...),
		},
		{
			Name:      "add-chain",
			Usage:     "Add a supported chain ID",
			UsageText: "add-chain --key <hex> --id <chain ID> [--config-file <file>]",
			Action:    addChain,
			Flags: append(flags.MarkRequired([]cli.Flag{
				cli.IntFlag{
					Name:  "id",
					Usage: "chain ID to add",
				},
			}, "id"), submitFlags...),
		},
		{
			Name:      "owner",
			Usage:     "Print the owner of the node",
			UsageText: "owner --node <hex> | --name <name> [--config-file <file>]",
			Action:    getOwner,
			Flags:     nodeFlags,
		},
		{
			Name:      "record",
			Usage:     "Print the record of the node",
			UsageText: "record --node <hex> | --name <name> [--config-file <file>]",
			Action:    getRecord,
			Flags:     nodeFlags,
		},
		{
			Name:      "chain-ids",
			Usage:     "Print supported chain IDs in the order they were added",
			UsageText: "chain-ids [--config-file <file>]",
			Action:    getChainIDs,
			Flags:     options.Common,
		},
		{
			Name:      "supply",
			Usage:     "Print the number of minted tokens",
			UsageText: "supply [--config-file <file>]",
			Action:    getSupply,
			Flags:     options.Common,
		},
		{
			Name:      "receipt",
			Usage:     "Print the receipt of the confirmed transaction",
			UsageText: "receipt --tx <hash> [--config-file <file>]",
			Action:    getReceipt,
			Flags: append(flags.MarkRequired([]cli.Flag{
				cli.StringFlag{
					Name:  "tx",
					Usage: "transaction hash",
				},
			}, "tx"), options.Common...),
		},
		{
			Name:      "height",
			Usage:     "Print the index of the last persisted block",
			UsageText: "height [--config-file <file>]",
			Action:    getHeight,
			Flags:     options.Common,
		},
	}
}

// OpenService opens the configured storage and the registry on top of it.
func OpenService(cfg config.Config, log *zap.Logger, opts ...registry.Option) (*registry.Service, error) {
	store, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}
	svc, err := registry.New(store, cfg.Registry, log, opts...)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	return svc, nil
}

func getService(ctx *cli.Context) (*registry.Service, func(), error) {
	if svc, ok := ctx.App.Metadata[ServiceKey].(*registry.Service); ok {
		return svc, func() {}, nil
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	log, _, logCloser, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return nil, nil, err
	}
	svc, err := OpenService(cfg, log)
	if err != nil {
		_ = logCloser()
		return nil, nil, err
	}
	return svc, func() {
		if err := svc.Close(); err != nil {
			log.Error("failed to close registry", zap.Error(err))
		}
		_ = logCloser()
	}, nil
}

// signer wraps a key to be used as registry.Signer.
type signer struct {
	*keys.PrivateKey
}

func (s signer) ScriptHash() util.Uint160 {
	return s.GetScriptHash()
}

func submit(ctx *cli.Context, f func(*registry.Service, registry.Signer) (*registry.Pending, error)) error {
	key, err := options.GetKeyFromContext(ctx)
	if err != nil {
		return options.ExitWith(err)
	}
	svc, closer, err := getService(ctx)
	if err != nil {
		return options.ExitWith(err)
	}
	defer closer()

	p, err := f(svc, signer{key})
	if err != nil {
		return options.ExitWith(err)
	}
	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	r, err := p.Wait(gctx)
	if r != nil {
		if perr := printJSON(ctx.App.Writer, receiptToJSON(r)); perr != nil && err == nil {
			err = perr
		}
	}
	return options.ExitWith(err)
}

func query(ctx *cli.Context, f func(*registry.Service, io.Writer) error) error {
	svc, closer, err := getService(ctx)
	if err != nil {
		return options.ExitWith(err)
	}
	defer closer()
	return options.ExitWith(f(svc, ctx.App.Writer))
}

func deploy(ctx *cli.Context) error {
	return submit(ctx, func(svc *registry.Service, s registry.Signer) (*registry.Pending, error) {
		return svc.Deploy(s)
	})
}

func mint(ctx *cli.Context) error {
	return submit(ctx, func(svc *registry.Service, s registry.Signer) (*registry.Pending, error) {
		return svc.Mint(s)
	})
}

func mintFor(ctx *cli.Context) error {
	node, err := flags.GetNode(ctx)
	if err != nil {
		return options.ExitWith(err)
	}
	return submit(ctx, func(svc *registry.Service, s registry.Signer) (*registry.Pending, error) {
		return svc.MintFor(s, node)
	})
}

func setOwner(ctx *cli.Context) error {
	node, err := flags.GetNode(ctx)
	if err != nil {
		return options.ExitWith(err)
	}
	owner, err := flags.ParseAddress(ctx.String("owner"))
	if err != nil {
		return options.ExitWith(fmt.Errorf("invalid owner: %w", err))
	}
	return submit(ctx, func(svc *registry.Service, s registry.Signer) (*registry.Pending, error) {
		return svc.SetOwner(s, node, owner)
	})
}

func addChain(ctx *cli.Context) error {
	id := ctx.Int("id")
	if id <= 0 || id > math.MaxUint16 {
		return options.ExitWith(errInvalidChainID)
	}
	return submit(ctx, func(svc *registry.Service, s registry.Signer) (*registry.Pending, error) {
		return svc.AddSupportedChainID(s, registry.ChainID(id))
	})
}

func getOwner(ctx *cli.Context) error {
	node, err := flags.GetNode(ctx)
	if err != nil {
		return options.ExitWith(err)
	}
	return query(ctx, func(svc *registry.Service, w io.Writer) error {
		owner, err := svc.GetOwner(node)
		if err != nil {
			return err
		}
		if owner.IsZero() {
			fmt.Fprintln(w, "unregistered")
			return nil
		}
		fmt.Fprintln(w, address.Uint160ToString(owner))
		return nil
	})
}

func getRecord(ctx *cli.Context) error {
	node, err := flags.GetNode(ctx)
	if err != nil {
		return options.ExitWith(err)
	}
	return query(ctx, func(svc *registry.Service, w io.Writer) error {
		rec, err := svc.GetRecord(node)
		if err != nil {
			return err
		}
		return printJSON(w, recordToJSON(node, rec))
	})
}

func getChainIDs(ctx *cli.Context) error {
	return query(ctx, func(svc *registry.Service, w io.Writer) error {
		ids, err := svc.GetChainIDs()
		if err != nil {
			return err
		}
		if ids == nil {
			ids = []registry.ChainID{}
		}
		return printJSON(w, ids)
	})
}

func getSupply(ctx *cli.Context) error {
	return query(ctx, func(svc *registry.Service, w io.Writer) error {
		supply, err := svc.TotalSupply()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, supply.ToBig().String())
		return nil
	})
}

func getReceipt(ctx *cli.Context) error {
	h, err := util.Uint256DecodeStringBE(ctx.String("tx"))
	if err != nil {
		return options.ExitWith(fmt.Errorf("invalid transaction hash: %w", err))
	}
	return query(ctx, func(svc *registry.Service, w io.Writer) error {
		r, err := svc.GetReceipt(h)
		if err != nil {
			return err
		}
		return printJSON(w, receiptToJSON(r))
	})
}

func getHeight(ctx *cli.Context) error {
	return query(ctx, func(svc *registry.Service, w io.Writer) error {
		h, err := svc.Height()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, h)
		return nil
	})
}
