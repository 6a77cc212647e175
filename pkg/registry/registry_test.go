package registry_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/abelian-network/abelian-go/pkg/config"
	"github.com/abelian-network/abelian-go/pkg/core/storage"
	"github.com/abelian-network/abelian-go/pkg/core/storage/dbconfig"
	"github.com/abelian-network/abelian-go/pkg/registry"
	"github.com/abelian-network/abelian-go/pkg/registrytest"
	"github.com/abelian-network/abelian-go/pkg/util"
	"github.com/abelian-network/abelian-go/pkg/wormhole"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestRegistry(t *testing.T) {
	t.Run("mint token and verify ownership state unchanged", func(t *testing.T) {
		e := registrytest.NewExecutor(t)
		inv := e.AdminInvoker()
		nodes := []util.Uint256{{}, registry.NameHash("abelian"), registrytest.RandomNode(t)}

		for k := uint64(1); k <= 3; k++ {
			id := inv.Mint(t)
			require.Equal(t, k, id.Uint64())
			for _, n := range nodes {
				e.CheckOwner(t, n, util.Uint160{})
				e.CheckState(t, n, registry.Unregistered)
			}
		}
		e.CheckSupply(t, 3)
	})

	t.Run("emit event on new registration", func(t *testing.T) {
		mock := wormhole.NewMock(wormhole.ChainIDEthereum)
		e := registrytest.NewExecutor(t, registrytest.WithPublisher(mock))
		inv := e.AdminInvoker()
		acc := registrytest.NewAccount(t)
		node := registry.NameHash("node.abelian")

		id := inv.MintFor(t, node)
		e.CheckState(t, node, registry.Minted)

		r := inv.SetOwner(t, node, acc.ScriptHash())
		e.CheckNotification(t, r, registry.Notification{
			Name:  registry.OwnerSetNotification,
			Node:  node,
			Owner: acc.ScriptHash(),
		})
		e.CheckOwner(t, node, acc.ScriptHash())
		e.CheckState(t, node, registry.Owned)

		rec, err := e.Service.GetRecord(node)
		require.NoError(t, err)
		require.Equal(t, *id, rec.TokenID)

		require.True(t, r.Published)
		logs := mock.Logs()
		require.Len(t, logs, 1)
		require.Equal(t, r.Sequence, logs[0].Sequence)
		require.Equal(t, e.Admin.ScriptHash(), logs[0].Emitter)
		require.Equal(t, append(node.BytesBE(), acc.ScriptHash().BytesBE()...), logs[0].Payload)
		require.Equal(t, uint8(registry.RegistrationConsistencyLevel), logs[0].ConsistencyLevel)
	})

	t.Run("parse verification message", func(t *testing.T) {
		mock := wormhole.NewMock(wormhole.ChainIDEthereum)
		e := registrytest.NewExecutor(t, registrytest.WithPublisher(mock))
		acc := registrytest.NewAccount(t)
		node := registrytest.RandomNode(t)

		e.AdminInvoker().SetOwner(t, node, acc.ScriptHash())
		r := e.NewInvoker(acc).SetOwner(t, node, e.Admin.ScriptHash())
		require.Equal(t, uint64(0), r.Sequence)

		logs := mock.Logs()
		require.Len(t, logs, 2)
		m, err := wormhole.ParseMessage(logs[1].VM)
		require.NoError(t, err)
		require.Equal(t, uint8(wormhole.SupportedVersion), m.Version)
		require.Equal(t, wormhole.ChainIDEthereum, m.EmitterChain)
		require.Equal(t, wormhole.PadAddress(acc.ScriptHash()), m.EmitterAddress)
		require.Equal(t, r.Sequence, m.Sequence)
		require.Equal(t, append(node.BytesBE(), e.Admin.ScriptHash().BytesBE()...), m.Payload)

		dummy, err := wormhole.ParseMessage(wormhole.CreateDummyMessage(wormhole.ChainIDEthereum, util.Uint160{}))
		require.NoError(t, err)
		require.Equal(t, wormhole.ChainIDEthereum, dummy.EmitterChain)
		require.True(t, dummy.EmitterAddress.IsZero())
	})

	t.Run("add supported chain ID and verify set contents", func(t *testing.T) {
		e := registrytest.NewExecutor(t)
		inv := e.AdminInvoker()
		e.CheckChainIDs(t, 2)

		require.True(t, inv.AddSupportedChainID(t, 5))
		e.CheckChainIDs(t, 2, 5)

		r := inv.Invoke(t)(e.Service.AddSupportedChainID(e.Admin, 5))
		require.False(t, r.Added)
		e.CheckNotification(t, r)
		e.CheckChainIDs(t, 2, 5)

		ok, err := e.Service.IsSupportedChainID(5)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = e.Service.IsSupportedChainID(3)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestSetOwnerPermissions(t *testing.T) {
	e := registrytest.NewExecutor(t)
	var (
		admin  = e.AdminInvoker()
		alice  = registrytest.NewAccount(t)
		bob    = registrytest.NewAccount(t)
		mallet = registrytest.NewAccount(t)
		node   = registrytest.RandomNode(t)
	)

	admin.WithSigner(mallet).SetOwnerFail(t, node, mallet.ScriptHash(), registry.ErrUnauthorized)
	admin.SetOwner(t, node, alice.ScriptHash())
	e.CheckOwner(t, node, alice.ScriptHash())

	admin.WithSigner(mallet).SetOwnerFail(t, node, mallet.ScriptHash(), registry.ErrUnauthorized)
	admin.WithSigner(alice).SetOwnerFail(t, node, util.Uint160{}, registry.ErrZeroOwner)

	admin.WithSigner(alice).SetOwner(t, node, bob.ScriptHash())
	e.CheckOwner(t, node, bob.ScriptHash())
	admin.WithSigner(alice).SetOwnerFail(t, node, alice.ScriptHash(), registry.ErrUnauthorized)

	admin.SetOwner(t, node, alice.ScriptHash())
	e.CheckOwner(t, node, alice.ScriptHash())
}

func TestChainIDsAdminOnly(t *testing.T) {
	e := registrytest.NewExecutor(t, registrytest.WithInitialChainID(7))
	acc := registrytest.NewAccount(t)

	e.NewInvoker(acc).AddSupportedChainIDFail(t, 5, registry.ErrUnauthorized)
	e.CheckChainIDs(t, 7)
}

func TestMintFor(t *testing.T) {
	e := registrytest.NewExecutor(t)
	acc := registrytest.NewAccount(t)
	inv := e.NewInvoker(acc)
	node := registrytest.RandomNode(t)

	p, err := e.Service.MintFor(acc, node)
	require.NoError(t, err)
	r, err := p.Wait(context.Background())
	require.NoError(t, err)
	e.CheckNotification(t, r, registry.Notification{
		Name:    registry.MintNotification,
		Node:    node,
		Owner:   acc.ScriptHash(),
		TokenID: *new(uint256.Int).SetUint64(1),
	})

	inv.MintForFail(t, node, registry.ErrAlreadyMinted)
	e.CheckSupply(t, 1)

	minter, err := e.Service.MinterOf(r.TokenID)
	require.NoError(t, err)
	require.Equal(t, acc.ScriptHash(), minter)
	ok, err := e.Service.TokenExists(r.TokenID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPendingConfirmation(t *testing.T) {
	e := registrytest.NewExecutor(t)
	acc := registrytest.NewAccount(t)
	node := registrytest.RandomNode(t)

	h0, err := e.Service.Height()
	require.NoError(t, err)

	pSet, err := e.Service.SetOwner(e.Admin, node, acc.ScriptHash())
	require.NoError(t, err)
	pMint, err := e.Service.Mint(acc)
	require.NoError(t, err)
	pLast, err := e.Service.Mint(acc)
	require.NoError(t, err)
	require.Equal(t, 3, e.Service.MempoolSize())

	// Nothing is visible before confirmation.
	e.CheckOwner(t, node, util.Uint160{})
	_, err = e.Service.GetReceipt(pSet.Hash())
	require.ErrorIs(t, err, registry.ErrReceiptNotFound)

	// Confirming the second one confirms the first one too.
	r, err := pMint.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, h0+1, r.Block)
	require.Equal(t, uint64(1), r.TokenID.Uint64())
	require.Equal(t, 1, e.Service.MempoolSize())
	e.CheckOwner(t, node, acc.ScriptHash())
	rSet := e.CheckHalt(t, pSet.Hash())
	require.Equal(t, h0+1, rSet.Block)

	// Waiting again returns the same receipt.
	again, err := pSet.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, rSet, again)

	r = e.Wait(t, pLast, nil)
	require.Equal(t, h0+2, r.Block)
	require.Equal(t, uint64(2), r.TokenID.Uint64())
	h, err := e.Service.Height()
	require.NoError(t, err)
	require.Equal(t, h0+2, h)
}

func TestFaultedTransaction(t *testing.T) {
	e := registrytest.NewExecutor(t)
	acc := registrytest.NewAccount(t)
	node := registrytest.RandomNode(t)

	pBad, err := e.Service.SetOwner(acc, node, acc.ScriptHash())
	require.NoError(t, err)
	pGood, err := e.Service.Mint(acc)
	require.NoError(t, err)

	r, err := pGood.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), r.TokenID.Uint64())

	r, err = pBad.Wait(context.Background())
	require.ErrorIs(t, err, registry.ErrUnauthorized)
	require.Equal(t, registry.FaultState, r.State)
	require.Nil(t, r.TokenID)
	e.CheckFault(t, pBad.Hash(), registry.ErrUnauthorized.Error())
	e.CheckOwner(t, node, util.Uint160{})
}

func TestWaitCanceled(t *testing.T) {
	e := registrytest.NewExecutor(t)
	p, err := e.Service.Mint(e.Admin)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
	e.CheckSupply(t, 0)
	require.Equal(t, 1, e.Service.MempoolSize())

	e.AdminInvoker().Invoke(t)(p, nil)
	e.CheckSupply(t, 1)
}

func TestNotDeployed(t *testing.T) {
	svc, err := registry.New(storage.NewMemoryStore(), config.Default().Registry, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()
	acc := registrytest.NewAccount(t)

	p, err := svc.Mint(acc)
	require.NoError(t, err)
	_, err = p.Wait(context.Background())
	require.ErrorIs(t, err, registry.ErrNotDeployed)

	ids, err := svc.GetChainIDs()
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestRedeploy(t *testing.T) {
	e := registrytest.NewExecutor(t)
	r := e.AdminInvoker().Invoke(t)(e.Service.Deploy(e.Admin))
	e.CheckNotification(t, r)

	e.NewInvoker(registrytest.NewAccount(t)).InvokeFail(t, registry.ErrAlreadyDeployed)(
		e.Service.Deploy(registrytest.NewAccount(t)))
	admin, err := e.Service.Admin()
	require.NoError(t, err)
	require.Equal(t, e.Admin.ScriptHash(), admin)
}

func TestDeployNotifications(t *testing.T) {
	svc, err := registry.New(storage.NewMemoryStore(), config.Default().Registry, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()
	admin := registrytest.NewAccount(t)

	p, err := svc.Deploy(admin)
	require.NoError(t, err)
	r, err := p.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, []registry.Notification{
		{Name: registry.DeployNotification, Owner: admin.ScriptHash()},
		{Name: registry.ChainIDAddedNotification, ChainID: config.DefaultInitialChainID},
	}, r.Notifications)
}

func TestServiceClose(t *testing.T) {
	svc, err := registry.New(storage.NewMemoryStore(), config.Default().Registry, nil)
	require.NoError(t, err)
	acc := registrytest.NewAccount(t)
	p, err := svc.Deploy(acc)
	require.NoError(t, err)

	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())
	_, err = p.Wait(context.Background())
	require.ErrorIs(t, err, registry.ErrServiceClosed)
	_, err = svc.Mint(acc)
	require.ErrorIs(t, err, registry.ErrServiceClosed)
}

func TestServiceReopen(t *testing.T) {
	cfg := dbconfig.LevelDBOptions{DataDirectoryPath: filepath.Join(t.TempDir(), "registry")}
	db, err := storage.NewLevelDBStore(cfg)
	require.NoError(t, err)

	e := registrytest.NewExecutor(t, registrytest.WithStore(db))
	inv := e.AdminInvoker()
	node := registrytest.RandomNode(t)
	inv.MintFor(t, node)
	inv.AddSupportedChainID(t, 5)
	r := inv.SetOwner(t, node, e.Admin.ScriptHash())
	require.NoError(t, e.Service.Close())

	db, err = storage.NewLevelDBStore(cfg)
	require.NoError(t, err)
	svc, err := registry.New(db, config.Default().Registry, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()

	ids, err := svc.GetChainIDs()
	require.NoError(t, err)
	require.Equal(t, []registry.ChainID{2, 5}, ids)
	owner, err := svc.GetOwner(node)
	require.NoError(t, err)
	require.Equal(t, e.Admin.ScriptHash(), owner)
	h, err := svc.Height()
	require.NoError(t, err)
	require.Equal(t, r.Block, h)

	stored, err := svc.GetReceipt(r.TxHash)
	require.NoError(t, err)
	require.Equal(t, r, stored)

	// Deploy, MintFor, AddSupportedChainID and SetOwner were confirmed before.
	p, err := svc.Mint(e.Admin)
	require.NoError(t, err)
	require.Equal(t, uint32(5), p.Tx.Nonce)
	_, err = p.Wait(context.Background())
	require.NoError(t, err)
	stored, err = svc.GetReceipt(r.TxHash)
	require.NoError(t, err)
	require.Equal(t, r, stored)
}

func TestConcurrentSubmissions(t *testing.T) {
	e := registrytest.NewExecutor(t, registrytest.WithLogger(zap.NewNop()))
	var (
		wg  sync.WaitGroup
		n   = 16
		ids = make([]uint64, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := e.Service.Mint(e.Admin)
			if err != nil {
				return
			}
			r, err := p.Wait(context.Background())
			if err == nil {
				ids[i] = r.TokenID.Uint64()
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, id := range ids {
		require.NotZero(t, id)
		require.False(t, seen[id], id)
		seen[id] = true
	}
	e.CheckSupply(t, uint64(n))
}

var errDiskFull = errors.New("disk full")

// flakyStore fails the given number of changeset writes.
type flakyStore struct {
	*storage.MemoryStore
	failures int
}

func (s *flakyStore) PutChangeSet(puts map[string][]byte) error {
	if s.failures > 0 {
		s.failures--
		return errDiskFull
	}
	return s.MemoryStore.PutChangeSet(puts)
}

func TestBlockPersistFailure(t *testing.T) {
	st := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	mock := wormhole.NewMock(wormhole.ChainIDEthereum)
	e := registrytest.NewExecutor(t, registrytest.WithStore(st), registrytest.WithPublisher(mock))
	acc := registrytest.NewAccount(t)
	node := registrytest.RandomNode(t)
	h0, err := e.Service.Height()
	require.NoError(t, err)

	pSet, err := e.Service.SetOwner(e.Admin, node, acc.ScriptHash())
	require.NoError(t, err)
	pMint, err := e.Service.Mint(acc)
	require.NoError(t, err)

	st.failures = 1
	_, err = pMint.Wait(context.Background())
	require.ErrorIs(t, err, errDiskFull)
	require.Equal(t, 0, e.Service.MempoolSize())

	// Both transactions are dropped for good, nothing is left behind.
	for _, p := range []*registry.Pending{pMint, pSet} {
		_, err = p.Wait(context.Background())
		require.ErrorIs(t, err, errDiskFull)
		_, err = e.Service.GetReceipt(p.Hash())
		require.ErrorIs(t, err, registry.ErrReceiptNotFound)
	}
	h, err := e.Service.Height()
	require.NoError(t, err)
	require.Equal(t, h0, h)
	e.CheckSupply(t, 0)
	e.CheckOwner(t, node, util.Uint160{})
	e.CheckState(t, node, registry.Unregistered)
	require.Empty(t, mock.Logs())

	// The next block starts from the state before the failed one.
	inv := e.NewInvoker(acc)
	require.Equal(t, uint64(1), inv.Mint(t).Uint64())
	r := e.AdminInvoker().SetOwner(t, node, acc.ScriptHash())
	require.Equal(t, uint64(0), r.Sequence)
	require.Len(t, mock.Logs(), 1)
	e.CheckSupply(t, 1)
	h, err = e.Service.Height()
	require.NoError(t, err)
	require.Equal(t, h0+2, h)
}

func TestRegistrationSequencesPersist(t *testing.T) {
	cfg := dbconfig.BoltDBOptions{FilePath: filepath.Join(t.TempDir(), "registry.bolt")}
	db, err := storage.NewBoltDBStore(cfg)
	require.NoError(t, err)

	e := registrytest.NewExecutor(t, registrytest.WithStore(db),
		registrytest.WithPublisher(wormhole.NewMock(wormhole.ChainIDEthereum)))
	inv := e.AdminInvoker()
	inv.SetOwner(t, registrytest.RandomNode(t), e.Admin.ScriptHash())
	inv.SetOwner(t, registrytest.RandomNode(t), e.Admin.ScriptHash())
	require.NoError(t, e.Service.Close())

	db, err = storage.NewBoltDBStore(cfg)
	require.NoError(t, err)
	mock := wormhole.NewMock(wormhole.ChainIDEthereum)
	svc, err := registry.New(db, config.Default().Registry, zaptest.NewLogger(t), registry.WithPublisher(mock))
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()

	seqs, err := svc.Sequences()
	require.NoError(t, err)
	require.Equal(t, map[util.Uint160]uint64{e.Admin.ScriptHash(): 2}, seqs)
	for emitter, seq := range seqs {
		mock.SetNextSequence(emitter, seq)
	}

	p, err := svc.SetOwner(e.Admin, registrytest.RandomNode(t), e.Admin.ScriptHash())
	require.NoError(t, err)
	r, err := p.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), r.Sequence)
	logs := mock.Logs()
	require.Len(t, logs, 1)
	require.Equal(t, uint64(2), logs[0].Sequence)
}
