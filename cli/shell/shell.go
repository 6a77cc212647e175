package shell

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/abelian-network/abelian-go/cli/options"
	regcli "github.com/abelian-network/abelian-go/cli/registry"
	"github.com/abelian-network/abelian-go/pkg/config"
	"github.com/abelian-network/abelian-go/pkg/core/storage/dbconfig"
	"github.com/abelian-network/abelian-go/pkg/encoding/address"
	"github.com/abelian-network/abelian-go/pkg/registry"
	"github.com/abelian-network/abelian-go/pkg/services/metrics"
	"github.com/abelian-network/abelian-go/pkg/wormhole"
	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

const (
	readlineInstanceKey = "readlineKey"
	publisherKey        = "publisher"
	prompt              = "\033[32mABELIAN >\033[0m "
)

var shellCommands = []cli.Command{
	{
		Name:        "exit",
		Usage:       "Exit the shell",
		Description: "Exit the shell",
		Action:      handleExit,
	},
	{
		Name:        "messages",
		Usage:       "Show cross-chain messages published in this session",
		Description: "Show cross-chain messages published in this session",
		Action:      handleMessages,
	},
}

var completer *readline.PrefixCompleter

func init() {
	var pcItems []readline.PrefixCompleterInterface
	for _, c := range append(regcli.Commands(), shellCommands...) {
		if !c.Hidden {
			var flagsItems []readline.PrefixCompleterInterface
			for _, f := range c.Flags {
				names := strings.SplitN(f.GetName(), ", ", 2) // only long name will be offered
				flagsItems = append(flagsItems, readline.PcItem("--"+names[0]))
			}
			pcItems = append(pcItems, readline.PcItem(c.Name, flagsItems...))
		}
	}
	completer = readline.NewPrefixCompleter(pcItems...)
}

// NewCommands returns 'shell' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:      "shell",
		Usage:     "Start an interactive registry console",
		UsageText: "shell [--config-path path] [--config-file file] [-d]",
		Action:    startShell,
		Flags:     options.Common,
	}}
}

// Shell is an interactive console running registry commands against one
// opened registry.
type Shell struct {
	svc      *registry.Service
	shell    *cli.App
	services []*metrics.Service
	log      *zap.Logger
}

// New returns a Shell reading commands via readline configured with c. The
// storage is taken from cfg, clean in-memory storage is used if it can't be
// opened. Monitoring services are started if enabled.
func New(c *readline.Config, cfg config.Config, log *zap.Logger) (*Shell, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if c.AutoComplete == nil {
		// Autocomplete commands/flags on TAB.
		c.AutoComplete = completer
	}
	if c.Prompt == "" {
		c.Prompt = prompt
	}
	l, err := readline.NewEx(c)
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	ctl := cli.NewApp()
	ctl.Name = "Abelian shell"

	// Empty HelpName and UsageText prevent os.Args[0] from being used.
	ctl.HelpName = ""
	ctl.UsageText = ""

	ctl.Writer = l.Stdout()
	ctl.ErrWriter = l.Stderr()
	ctl.Version = config.Version
	ctl.Usage = "Interactive registry console"

	// Override default error handler in order not to exit on error.
	ctl.ExitErrHandler = func(context *cli.Context, err error) {}

	ctl.Commands = append(regcli.Commands(), shellCommands...)

	publisher := wormhole.NewMock(wormhole.ChainID(cfg.Registry.InitialChainID))
	svc, err := regcli.OpenService(cfg, log, registry.WithPublisher(publisher))
	if err != nil {
		writeErr(ctl.ErrWriter, fmt.Errorf("clean in-memory storage will be used: %w", err))
		cfg.ApplicationConfiguration.DBConfiguration.Type = dbconfig.InMemoryDB
		svc, err = regcli.OpenService(cfg, log, registry.WithPublisher(publisher))
		if err != nil {
			_ = l.Close()
			return nil, err
		}
	}
	// Stored receipts already carry the sequences of earlier sessions.
	seqs, err := svc.Sequences()
	if err != nil {
		_ = svc.Close()
		_ = l.Close()
		return nil, fmt.Errorf("failed to get registration sequences: %w", err)
	}
	for emitter, seq := range seqs {
		publisher.SetNextSequence(emitter, seq)
	}

	s := &Shell{
		svc:   svc,
		shell: ctl,
		log:   log,
	}
	s.shell.Metadata = map[string]interface{}{
		regcli.ServiceKey:   svc,
		readlineInstanceKey: l,
		publisherKey:        publisher,
	}

	for _, ms := range []*metrics.Service{
		metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, log),
		metrics.NewPprofService(cfg.ApplicationConfiguration.Pprof, log),
	} {
		if err := ms.Start(); err != nil {
			s.Close()
			return nil, err
		}
		s.services = append(s.services, ms)
	}
	return s, nil
}

func getReadlineInstanceFromContext(app *cli.App) *readline.Instance {
	return app.Metadata[readlineInstanceKey].(*readline.Instance)
}

func getPublisherFromContext(app *cli.App) *wormhole.Mock {
	return app.Metadata[publisherKey].(*wormhole.Mock)
}

// Run waits for user input and executes the passed commands until EOF,
// interrupt or exit command.
func (s *Shell) Run() error {
	l := getReadlineInstanceFromContext(s.shell)
	for {
		line, err := l.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil // OK, stop execution.
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err) // Critical error, stop execution.
		}

		args, err := shellquote.Split(line)
		if err != nil {
			writeErr(s.shell.ErrWriter, fmt.Errorf("failed to parse arguments: %w", err))
			continue // Not a critical error, continue execution.
		}
		if len(args) == 0 {
			continue
		}

		err = s.shell.Run(append([]string{"abelian"}, args...))
		if err != nil {
			writeErr(s.shell.ErrWriter, err) // Various command/flags parsing errors and execution errors.
		}
	}
}

// Close stops monitoring services and closes the registry.
func (s *Shell) Close() {
	for _, ms := range s.services {
		ms.ShutDown()
	}
	_ = getReadlineInstanceFromContext(s.shell).Close()
	if err := s.svc.Close(); err != nil {
		s.log.Error("failed to close registry", zap.Error(err))
	}
}

func startShell(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return options.ExitWith(err)
	}
	log, _, logCloser, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return options.ExitWith(err)
	}
	defer func() { _ = logCloser() }()

	s, err := New(&readline.Config{}, cfg, log)
	if err != nil {
		return options.ExitWith(err)
	}
	defer s.Close()
	return options.ExitWith(s.Run())
}

func handleExit(c *cli.Context) error {
	l := getReadlineInstanceFromContext(c.App)
	fmt.Fprintln(c.App.Writer, "Bye!")
	_ = l.Close()
	return nil
}

func handleMessages(c *cli.Context) error {
	logs := getPublisherFromContext(c.App).Logs()
	if len(logs) == 0 {
		fmt.Fprintln(c.App.Writer, "no messages")
		return nil
	}
	for _, m := range logs {
		fmt.Fprintf(c.App.Writer, "%d\t%s\t%s\n", m.Sequence, address.Uint160ToString(m.Emitter), hex.EncodeToString(m.VM))
	}
	return nil
}

func writeErr(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", err)
}
