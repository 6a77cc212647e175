package main

import (
	"bytes"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abelian-network/abelian-go/cli/app"
	"github.com/abelian-network/abelian-go/pkg/crypto/keys"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

const testConfig = `Registry:
  InitialChainID: 2
  RecordCacheSize: 16

ApplicationConfiguration:
  LogLevel: error
  DBConfiguration:
    Type: "boltdb"
    BoltDBOptions:
      FilePath: %q
`

// executor represents context for a test instance.
// It can be safely used in multiple tests, but not in parallel.
type executor struct {
	// CLI is a cli application to test.
	CLI *cli.App
	// ConfigFile is the configuration file backed by a temporary BoltDB.
	ConfigFile string
	// Out contains command output.
	Out *bytes.Buffer
	// Err contains command errors.
	Err *bytes.Buffer
}

func newExecutor(t *testing.T) *executor {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "abelian.yml")
	cfg := fmt.Sprintf(testConfig, filepath.Join(dir, "registry.bolt"))
	require.NoError(t, os.WriteFile(cfgFile, []byte(cfg), 0o644))

	e := &executor{
		CLI:        app.New(),
		ConfigFile: cfgFile,
		Out:        bytes.NewBuffer(nil),
		Err:        bytes.NewBuffer(nil),
	}
	e.CLI.Writer = e.Out
	e.CLI.ErrWriter = e.Err
	return e
}

func newAccount(t *testing.T) *keys.PrivateKey {
	k, err := keys.NewPrivateKey()
	require.NoError(t, err)
	return k
}

func (e *executor) getNextLine(t *testing.T) string {
	line, err := e.Out.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(line, "\n")
}

func (e *executor) checkNextLine(t *testing.T, expected string) {
	line := e.getNextLine(t)
	e.checkLine(t, line, expected)
}

func (e *executor) checkLine(t *testing.T, line, expected string) {
	require.Regexp(t, expected, line)
}

func (e *executor) checkEOF(t *testing.T) {
	_, err := e.Out.ReadString('\n')
	require.True(t, errors.Is(err, io.EOF))
}

// checkJSON decodes the whole remaining output as a JSON value.
func (e *executor) checkJSON(t *testing.T, v interface{}) {
	require.NoError(t, stdjson.Unmarshal(e.Out.Bytes(), v), e.Out.String())
	e.Out.Reset()
}

// checkReceipt decodes the transaction receipt and checks its VM state.
func (e *executor) checkReceipt(t *testing.T, vmstate string) map[string]interface{} {
	var r map[string]interface{}
	e.checkJSON(t, &r)
	require.Equal(t, vmstate, r["vmstate"])
	return r
}

func setExitFunc() <-chan int {
	ch := make(chan int, 1)
	cli.OsExiter = func(code int) {
		ch <- code
	}
	return ch
}

func checkExit(t *testing.T, ch <-chan int, code int) {
	select {
	case c := <-ch:
		require.Equal(t, code, c)
	default:
		if code != 0 {
			require.Fail(t, "no exit was called")
		}
	}
}

// RunWithError runs command and checks that is exits with error.
func (e *executor) RunWithError(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.Error(t, e.run(args...))
	checkExit(t, ch, 1)
}

// Run runs command and checks that there were no errors.
func (e *executor) Run(t *testing.T, args ...string) {
	ch := setExitFunc()
	require.NoError(t, e.run(args...))
	checkExit(t, ch, 0)
}

func (e *executor) run(args ...string) error {
	e.Out.Reset()
	e.Err.Reset()
	return e.CLI.Run(args)
}
