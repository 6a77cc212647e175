package shell

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abelian-network/abelian-go/pkg/config"
	"github.com/abelian-network/abelian-go/pkg/core/storage/dbconfig"
	"github.com/abelian-network/abelian-go/pkg/crypto/keys"
	"github.com/abelian-network/abelian-go/pkg/registry"
	"github.com/chzyer/readline"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type executor struct {
	out *bytes.Buffer
	cfg config.Config
}

func newTestShell(t *testing.T) *executor {
	return &executor{
		out: bytes.NewBuffer(nil),
		cfg: config.Default(),
	}
}

func noRawMode() error { return nil }

// runProg feeds the commands to a new shell and runs it until the input
// is exhausted.
func (e *executor) runProg(t *testing.T, commands ...string) {
	e.out.Reset()
	in := bytes.NewBufferString(strings.Join(commands, "\n") + "\n")
	s, err := New(&readline.Config{
		Prompt:         "> ",
		Stdin:          io.NopCloser(in),
		Stdout:         e.out,
		Stderr:         e.out,
		FuncIsTerminal: func() bool { return false },
		FuncMakeRaw:    noRawMode,
		FuncExitRaw:    noRawMode,
	}, e.cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Run())
}

func newKey(t *testing.T) *keys.PrivateKey {
	k, err := keys.NewPrivateKey()
	require.NoError(t, err)
	return k
}

func TestShellRegistry(t *testing.T) {
	e := newTestShell(t)
	admin, user := newKey(t), newKey(t)
	const name = "bob.abelian"

	e.runProg(t,
		"deploy --key "+admin.String(),
		"mint-for --key "+user.String()+" --name "+name,
		"set-owner --key "+admin.String()+" --name "+name+" --owner "+user.Address(),
		"owner --name "+name,
		"add-chain --key "+admin.String()+" --id 7",
		"chain-ids",
		"supply",
		"messages",
	)
	out := e.out.String()
	require.NotContains(t, out, "Error:")
	require.Contains(t, out, `"method": "deploy"`)
	require.Contains(t, out, `"tokenid": "1"`)
	require.Contains(t, out, `"name": "`+registry.OwnerSetNotification+`"`)
	require.Contains(t, out, `"sequence": 0`)
	require.Contains(t, out, user.Address()+"\n")
	require.Contains(t, out, `"added": true`)
	require.Contains(t, out, "[\n  2,\n  7\n]")
	require.Regexp(t, "(?m)^0\t"+admin.Address()+"\t[0-9a-f]+$", out)
}

func TestShellErrors(t *testing.T) {
	e := newTestShell(t)
	admin, user := newKey(t), newKey(t)

	e.runProg(t,
		"deploy --key "+admin.String(),
		"add-chain --key "+user.String()+" --id 7",
		`owner --name "unterminated`,
		"set-owner --key "+admin.String()+" --name x.abelian",
		"messages",
		"",
		"chain-ids",
	)
	out := e.out.String()
	require.Contains(t, out, `"vmstate": "FAULT"`)
	require.Contains(t, out, "Error: "+registry.ErrUnauthorized.Error())
	require.Contains(t, out, "Error: failed to parse arguments")
	require.Contains(t, out, `Error: Required flag "owner" not set`)
	require.Contains(t, out, "no messages")
	// Errors don't stop the shell.
	require.Contains(t, out, "[\n  2\n]")
}

func TestShellExit(t *testing.T) {
	e := newTestShell(t)
	e.runProg(t, "exit", "supply")
	out := e.out.String()
	require.Contains(t, out, "Bye!")
	require.NotContains(t, out, "\n0\n")
}

func TestShellPersistentStore(t *testing.T) {
	e := newTestShell(t)
	e.cfg.ApplicationConfiguration.DBConfiguration = dbconfig.DBConfiguration{
		Type:          dbconfig.BoltDB,
		BoltDBOptions: dbconfig.BoltDBOptions{FilePath: filepath.Join(t.TempDir(), "registry.bolt")},
	}
	admin := newKey(t)

	e.runProg(t, "deploy --key "+admin.String(), "mint --key "+admin.String())
	require.Contains(t, e.out.String(), `"tokenid": "1"`)

	e.runProg(t, "supply", "height")
	require.Regexp(t, "(?m)^1$", e.out.String())
	require.Regexp(t, "(?m)^2$", e.out.String())
}

func TestShellSequencesContinue(t *testing.T) {
	e := newTestShell(t)
	e.cfg.ApplicationConfiguration.DBConfiguration = dbconfig.DBConfiguration{
		Type:          dbconfig.BoltDB,
		BoltDBOptions: dbconfig.BoltDBOptions{FilePath: filepath.Join(t.TempDir(), "registry.bolt")},
	}
	admin, user := newKey(t), newKey(t)

	e.runProg(t,
		"deploy --key "+admin.String(),
		"set-owner --key "+admin.String()+" --name a.abelian --owner "+user.Address())
	require.Contains(t, e.out.String(), `"sequence": 0`)

	e.runProg(t,
		"set-owner --key "+admin.String()+" --name b.abelian --owner "+user.Address(),
		"messages")
	out := e.out.String()
	require.NotContains(t, out, "Error:")
	require.Contains(t, out, `"sequence": 1`)
	require.Regexp(t, "(?m)^1\t"+admin.Address()+"\t[0-9a-f]+$", out)
}

func TestShellFallbackToMemory(t *testing.T) {
	e := newTestShell(t)
	e.cfg.ApplicationConfiguration.DBConfiguration = dbconfig.DBConfiguration{
		Type: "unknown",
	}
	e.runProg(t, "height")
	require.Contains(t, e.out.String(), "clean in-memory storage will be used")
	require.Regexp(t, "(?m)^0$", e.out.String())
}
