package registrytest

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/abelian-network/abelian-go/pkg/config"
	"github.com/abelian-network/abelian-go/pkg/core/storage"
	"github.com/abelian-network/abelian-go/pkg/registry"
	"github.com/abelian-network/abelian-go/pkg/util"
	"github.com/abelian-network/abelian-go/pkg/wormhole"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// DefaultInitialChainID is the chain ID registries are deployed with unless
// WithInitialChainID is given.
const DefaultInitialChainID registry.ChainID = config.DefaultInitialChainID

// Executor wraps a freshly deployed registry and provides helper methods
// to check its state.
type Executor struct {
	Service   *registry.Service
	Admin     Signer
	Publisher *wormhole.Mock
}

type executorOptions struct {
	chainID   registry.ChainID
	publisher *wormhole.Mock
	log       *zap.Logger
	store     storage.Store
}

// Option is an Executor constructor option.
type Option func(*executorOptions)

// WithInitialChainID sets the chain ID the registry is deployed with.
func WithInitialChainID(id registry.ChainID) Option {
	return func(o *executorOptions) {
		o.chainID = id
	}
}

// WithPublisher makes the registry publish registrations via the mock.
func WithPublisher(p *wormhole.Mock) Option {
	return func(o *executorOptions) {
		o.publisher = p
	}
}

// WithLogger sets the registry logger, zaptest logger is used by default.
func WithLogger(log *zap.Logger) Option {
	return func(o *executorOptions) {
		o.log = log
	}
}

// WithStore sets the registry backend, a new MemoryStore is used by default.
// The store is closed when the test ends.
func WithStore(s storage.Store) Option {
	return func(o *executorOptions) {
		o.store = s
	}
}

// NewExecutor creates a new registry deployed by a new admin account. The
// registry is closed on test cleanup.
func NewExecutor(t testing.TB, opts ...Option) *Executor {
	o := executorOptions{chainID: DefaultInitialChainID}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zaptest.NewLogger(t)
	}
	if o.store == nil {
		o.store = storage.NewMemoryStore()
	}

	cfg := config.Default().Registry
	cfg.InitialChainID = uint16(o.chainID)
	var svcOpts []registry.Option
	if o.publisher != nil {
		svcOpts = append(svcOpts, registry.WithPublisher(o.publisher))
	}
	svc, err := registry.New(o.store, cfg, o.log, svcOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	e := &Executor{
		Service:   svc,
		Admin:     NewAccount(t),
		Publisher: o.publisher,
	}
	e.AdminInvoker().Invoke(t)(e.Service.Deploy(e.Admin))
	return e
}

// RandomNode returns a random node.
func RandomNode(t testing.TB) util.Uint256 {
	var n util.Uint256
	_, err := rand.Read(n[:])
	require.NoError(t, err)
	return n
}

// Wait confirms the pending transaction and returns its receipt whatever the
// resulting state is.
func (e *Executor) Wait(t testing.TB, p *registry.Pending, err error) *registry.Receipt {
	require.NoError(t, err)
	r, _ := p.Wait(context.Background())
	require.NotNil(t, r)
	return r
}

// CheckHalt checks that the transaction with the given hash was confirmed
// successfully.
func (e *Executor) CheckHalt(t testing.TB, h util.Uint256) *registry.Receipt {
	r, err := e.Service.GetReceipt(h)
	require.NoError(t, err)
	require.Equal(t, registry.HaltState, r.State, r.FaultException)
	return r
}

// CheckFault checks that the transaction with the given hash faulted with
// the given message.
func (e *Executor) CheckFault(t testing.TB, h util.Uint256, msg string) {
	r, err := e.Service.GetReceipt(h)
	require.NoError(t, err)
	require.Equal(t, registry.FaultState, r.State)
	require.Equal(t, msg, r.FaultException)
}

// CheckOwner checks the confirmed owner of the node.
func (e *Executor) CheckOwner(t testing.TB, node util.Uint256, expected util.Uint160) {
	owner, err := e.Service.GetOwner(node)
	require.NoError(t, err)
	require.Equal(t, expected, owner, "owner mismatch: expected %s, got %s", expected, owner)
}

// CheckState checks the lifecycle state of the node record.
func (e *Executor) CheckState(t testing.TB, node util.Uint256, expected registry.RecordState) {
	rec, err := e.Service.GetRecord(node)
	require.NoError(t, err)
	require.Equal(t, expected, rec.State(), "state mismatch: expected %s, got %s", expected, rec.State())
}

// CheckChainIDs checks the supported chain set contents and order.
func (e *Executor) CheckChainIDs(t testing.TB, expected ...registry.ChainID) {
	ids, err := e.Service.GetChainIDs()
	require.NoError(t, err)
	require.Equal(t, expected, ids)
}

// CheckSupply checks the number of minted tokens.
func (e *Executor) CheckSupply(t testing.TB, expected uint64) {
	supply, err := e.Service.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, new(uint256.Int).SetUint64(expected), supply)
}

// CheckNotification checks that the receipt has exactly the given
// notifications.
func (e *Executor) CheckNotification(t testing.TB, r *registry.Receipt, expected ...registry.Notification) {
	if len(expected) == 0 {
		require.Empty(t, r.Notifications)
		return
	}
	require.Equal(t, expected, r.Notifications)
}
