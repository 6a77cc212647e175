package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/abelian-network/abelian-go/pkg/config"
	"github.com/abelian-network/abelian-go/pkg/core/storage"
	"github.com/abelian-network/abelian-go/pkg/util"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// RegistrationConsistencyLevel is the consistency level of published
// registration messages.
const RegistrationConsistencyLevel = 1

// maxKeptFaults is the number of the latest fault errors kept for Wait.
const maxKeptFaults = 1024

// Signer is the caller identity used for submitted operations.
type Signer interface {
	ScriptHash() util.Uint160
}

// Publisher emits cross-chain messages, it's used to announce new node
// registrations. PublishMessage returns the sequence number of the message,
// NextSequence returns the one the next message of the emitter will get.
type Publisher interface {
	PublishMessage(emitter util.Uint160, nonce uint32, payload []byte, consistencyLevel uint8) (uint64, error)
	NextSequence(emitter util.Uint160) uint64
}

// Service is the externally callable registry surface. State-changing
// operations are submitted first and take effect only when confirmed via
// Pending.Wait, queries see the confirmed state only. Service is safe for
// concurrent use.
type Service struct {
	lock sync.RWMutex

	store     *Store
	cfg       config.RegistryConfiguration
	log       *zap.Logger
	publisher Publisher

	nonce   uint32
	mempool []*Transaction
	// faults keeps original errors of recently faulted or dropped
	// transactions, receipts only have their messages.
	faults *lru.Cache
	closed bool
}

// Option is a Service constructor option.
type Option func(*Service)

// WithPublisher sets the publisher of registration messages.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// New creates a registry Service over the given storage backend. The
// Service owns the backend and closes it on Close.
func New(backend storage.Store, cfg config.RegistryConfiguration, log *zap.Logger, opts ...Option) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RecordCacheSize <= 0 {
		cfg.RecordCacheSize = config.DefaultRecordCacheSize
	}
	st, err := NewStore(backend, cfg.RecordCacheSize)
	if err != nil {
		return nil, err
	}
	h, err := st.Height()
	if err != nil {
		return nil, fmt.Errorf("failed to get registry height: %w", err)
	}
	// Nonces continue after restart so that transaction hashes stay unique.
	nonce, err := st.Nonce()
	if err != nil {
		return nil, fmt.Errorf("failed to get last nonce: %w", err)
	}
	faults, err := lru.New(maxKeptFaults)
	if err != nil {
		return nil, fmt.Errorf("failed to create fault cache: %w", err)
	}
	s := &Service{
		store:  st,
		nonce:  nonce,
		cfg:    cfg,
		log:    log,
		faults: faults,
	}
	for _, o := range opts {
		o(s)
	}
	updateBlockHeightMetric(h)
	updateMempoolMetric(0)
	log.Info("registry service started", zap.Uint32("height", h))
	return s, nil
}

// Deploy submits registry deployment with the signer as admin and the
// configured initial chain ID.
func (s *Service) Deploy(admin Signer) (*Pending, error) {
	return s.submit(&Transaction{
		Sender:  admin.ScriptHash(),
		Method:  MethodDeploy,
		ChainID: ChainID(s.cfg.InitialChainID),
	})
}

// Mint submits a new token mint. The token isn't bound to any node.
func (s *Service) Mint(signer Signer) (*Pending, error) {
	return s.submit(&Transaction{
		Sender: signer.ScriptHash(),
		Method: MethodMint,
	})
}

// MintFor submits a new token mint bound to the node.
func (s *Service) MintFor(signer Signer, node util.Uint256) (*Pending, error) {
	return s.submit(&Transaction{
		Sender: signer.ScriptHash(),
		Method: MethodMintFor,
		Node:   node,
	})
}

// SetOwner submits node owner change.
func (s *Service) SetOwner(signer Signer, node util.Uint256, owner util.Uint160) (*Pending, error) {
	return s.submit(&Transaction{
		Sender: signer.ScriptHash(),
		Method: MethodSetOwner,
		Node:   node,
		Owner:  owner,
	})
}

// AddSupportedChainID submits a new supported chain ID, only the admin
// can add chain IDs.
func (s *Service) AddSupportedChainID(signer Signer, id ChainID) (*Pending, error) {
	return s.submit(&Transaction{
		Sender:  signer.ScriptHash(),
		Method:  MethodAddSupportedChainID,
		ChainID: id,
	})
}

func (s *Service) submit(tx *Transaction) (*Pending, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil, ErrServiceClosed
	}
	s.nonce++
	tx.Nonce = s.nonce
	// The hash is cached here, Pending.Wait reads it without the lock.
	h := tx.Hash()
	s.mempool = append(s.mempool, tx)
	updateMempoolMetric(len(s.mempool))
	s.log.Debug("transaction submitted",
		zap.Stringer("hash", h),
		zap.Stringer("method", tx.Method),
		zap.Stringer("sender", tx.Sender))
	return &Pending{Tx: tx, svc: s}, nil
}

// confirm persists all the transactions up to the one with hash h (if it's
// not yet persisted) and returns its receipt. The batch leaves the mempool
// even if it can't be persisted, its transactions are dropped then.
func (s *Service) confirm(h util.Uint256) (*Receipt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil, ErrServiceClosed
	}
	for i, tx := range s.mempool {
		if tx.Hash().Equals(h) {
			err := s.persistBlock(s.mempool[:i+1])
			s.mempool = append(s.mempool[:0:0], s.mempool[i+1:]...)
			updateMempoolMetric(len(s.mempool))
			if err != nil {
				return nil, err
			}
			break
		}
	}
	r, err := s.store.GetReceipt(h)
	if err != nil {
		if ferr, ok := s.faults.Get(h); ok && errors.Is(err, ErrReceiptNotFound) {
			return nil, ferr.(error)
		}
		return nil, err
	}
	return r, s.faultErr(r)
}

func (s *Service) faultErr(r *Receipt) error {
	if r.State == HaltState {
		return nil
	}
	if err, ok := s.faults.Get(r.TxHash); ok {
		return err.(error)
	}
	return errors.New(r.FaultException)
}

// persistBlock applies txs as the next block. Either the whole block gets to
// the storage or nothing does, registrations are published only for the
// persisted one.
func (s *Service) persistBlock(txs []*Transaction) error {
	h, err := s.store.Height()
	if err != nil {
		return s.dropBlock(txs, fmt.Errorf("failed to get height: %w", err))
	}
	var (
		block    = h + 1
		blk      = s.store.GetWrapped()
		receipts = make([]*Receipt, 0, len(txs))
		faults   = make(map[util.Uint256]error)
	)
	for _, tx := range txs {
		r, err := s.apply(blk, block, tx)
		if err != nil {
			faults[r.TxHash] = err
		}
		if err := blk.PutReceipt(r); err != nil {
			return s.dropBlock(txs, fmt.Errorf("failed to store receipt: %w", err))
		}
		receipts = append(receipts, r)
	}
	blk.PutHeight(block)
	blk.PutNonce(txs[len(txs)-1].Nonce)
	_, err = blk.Persist()
	var n int
	if err == nil {
		n, err = s.store.Persist()
	}
	if err != nil {
		return s.dropBlock(txs, fmt.Errorf("failed to persist block %d: %w", block, err))
	}
	for _, r := range receipts {
		if err, ok := faults[r.TxHash]; ok {
			s.faults.Add(r.TxHash, err)
		}
		addConfirmedTxMetric(r)
	}
	updateBlockHeightMetric(block)
	s.log.Debug("block persisted",
		zap.Uint32("index", block),
		zap.Int("txs", len(txs)),
		zap.Int("keys", n))
	s.publish(txs, receipts)
	return nil
}

// dropBlock discards everything the block has changed, waiting for any of
// its transactions returns err afterwards.
func (s *Service) dropBlock(txs []*Transaction, err error) error {
	s.store.Discard()
	for _, tx := range txs {
		s.faults.Add(tx.Hash(), err)
	}
	s.log.Error("block dropped", zap.Int("txs", len(txs)), zap.Error(err))
	return err
}

// apply executes tx over a store wrapped on top of blk and moves the changes
// to blk only if it succeeds. The error returned is the fault reason, the
// receipt is returned in any case.
func (s *Service) apply(blk *Store, block uint32, tx *Transaction) (*Receipt, error) {
	ws := blk.GetWrapped()
	r := &Receipt{
		TxHash: tx.Hash(),
		Block:  block,
		Method: tx.Method,
	}
	err := s.execute(ws, tx, r)
	if err == nil {
		_, err = ws.Persist()
	}
	if err != nil {
		s.log.Warn("transaction faulted",
			zap.Stringer("hash", r.TxHash),
			zap.Stringer("method", tx.Method),
			zap.Error(err))
		return &Receipt{
			TxHash:         r.TxHash,
			Block:          block,
			Method:         tx.Method,
			State:          FaultState,
			FaultException: err.Error(),
		}, err
	}
	return r, nil
}

// publish sends registration messages of the persisted block. Sequences were
// reserved by execute, the publisher is expected to assign the same ones.
func (s *Service) publish(txs []*Transaction, receipts []*Receipt) {
	for i, r := range receipts {
		if !r.Published {
			continue
		}
		tx := txs[i]
		seq, err := s.publisher.PublishMessage(tx.Sender, tx.Nonce, registrationPayload(tx), RegistrationConsistencyLevel)
		if err != nil {
			s.log.Error("failed to publish registration",
				zap.Stringer("hash", r.TxHash),
				zap.Error(err))
			continue
		}
		if seq != r.Sequence {
			s.log.Warn("registration published with unexpected sequence",
				zap.Stringer("hash", r.TxHash),
				zap.Uint64("expected", r.Sequence),
				zap.Uint64("actual", seq))
		}
	}
}

func registrationPayload(tx *Transaction) []byte {
	return append(tx.Node.BytesBE(), tx.Owner.BytesBE()...)
}

func (s *Service) execute(ws *Store, tx *Transaction, r *Receipt) error {
	if tx.Method == MethodDeploy {
		_, err := ws.Admin()
		fresh := errors.Is(err, ErrNotDeployed)
		if err != nil && !fresh {
			return err
		}
		if err := ws.Deploy(tx.Sender, tx.ChainID); err != nil {
			return err
		}
		if fresh {
			r.Notifications = append(r.Notifications,
				Notification{Name: DeployNotification, Owner: tx.Sender},
				Notification{Name: ChainIDAddedNotification, ChainID: tx.ChainID})
		}
		return nil
	}

	admin, err := ws.Admin()
	if err != nil {
		return err
	}
	switch tx.Method {
	case MethodMint:
		id, err := ws.Mint(tx.Sender)
		if err != nil {
			return err
		}
		r.TokenID = id
		r.Notifications = append(r.Notifications, Notification{Name: MintNotification, Owner: tx.Sender, TokenID: *id})
	case MethodMintFor:
		id, err := ws.MintFor(tx.Sender, tx.Node)
		if err != nil {
			return err
		}
		r.TokenID = id
		r.Notifications = append(r.Notifications, Notification{Name: MintNotification, Node: tx.Node, Owner: tx.Sender, TokenID: *id})
	case MethodSetOwner:
		if err := ws.SetOwner(tx.Sender, tx.Node, tx.Owner); err != nil {
			return err
		}
		r.Notifications = append(r.Notifications, Notification{Name: OwnerSetNotification, Node: tx.Node, Owner: tx.Owner})
		if s.publisher != nil {
			seq, err := ws.NextSequence(tx.Sender)
			if err != nil {
				return err
			}
			if next := s.publisher.NextSequence(tx.Sender); next > seq {
				seq = next
			}
			ws.PutNextSequence(tx.Sender, seq+1)
			r.Published = true
			r.Sequence = seq
		}
	case MethodAddSupportedChainID:
		if !tx.Sender.Equals(admin) {
			return ErrUnauthorized
		}
		added, err := ws.AddSupportedChainID(tx.ChainID)
		if err != nil {
			return err
		}
		r.Added = added
		if added {
			r.Notifications = append(r.Notifications, Notification{Name: ChainIDAddedNotification, ChainID: tx.ChainID})
		}
	default:
		return fmt.Errorf("unknown method %s", tx.Method)
	}
	return nil
}

// GetOwner returns the confirmed owner of the node.
func (s *Service) GetOwner(node util.Uint256) (util.Uint160, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.store.GetOwner(node)
}

// GetRecord returns the confirmed record of the node.
func (s *Service) GetRecord(node util.Uint256) (*Record, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.store.GetRecord(node)
}

// GetChainIDs returns supported chain IDs in insertion order.
func (s *Service) GetChainIDs() ([]ChainID, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.store.GetChainIDs()
}

// IsSupportedChainID checks whether the chain ID is supported.
func (s *Service) IsSupportedChainID(id ChainID) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.store.IsSupportedChainID(id)
}

// TotalSupply returns the number of minted tokens.
func (s *Service) TotalSupply() (*uint256.Int, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.store.TotalSupply()
}

// TokenExists checks whether the token was minted.
func (s *Service) TokenExists(id *uint256.Int) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.store.TokenExists(id)
}

// MinterOf returns the minter of the token.
func (s *Service) MinterOf(id *uint256.Int) (util.Uint160, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.store.MinterOf(id)
}

// Admin returns the registry admin.
func (s *Service) Admin() (util.Uint160, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.store.Admin()
}

// GetReceipt returns the receipt of the confirmed transaction.
func (s *Service) GetReceipt(h util.Uint256) (*Receipt, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.store.GetReceipt(h)
}

// Sequences returns the next registration message sequence of every emitter
// that has published anything.
func (s *Service) Sequences() (map[util.Uint160]uint64, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.store.Sequences()
}

// Height returns the index of the last persisted block.
func (s *Service) Height() (uint32, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.store.Height()
}

// MempoolSize returns the number of submitted transactions waiting for
// confirmation.
func (s *Service) MempoolSize() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.mempool)
}

// Close drops unconfirmed transactions and closes the storage.
func (s *Service) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if len(s.mempool) != 0 {
		s.log.Warn("dropping unconfirmed transactions", zap.Int("count", len(s.mempool)))
	}
	s.mempool = nil
	updateMempoolMetric(0)
	return s.store.Close()
}

// Pending is a submitted but not yet confirmed transaction.
type Pending struct {
	Tx  *Transaction
	svc *Service
}

// Hash returns the transaction hash.
func (p *Pending) Hash() util.Uint256 {
	return p.Tx.Hash()
}

// Wait confirms the transaction along with every transaction submitted
// before it and returns its receipt. Faulted transactions return a FAULT
// receipt along with the error that caused it. If the block can't be
// persisted, none of its transactions take effect and all of them return
// the storage error with no receipt. The context is only checked
// before confirmation starts, confirmation itself can't be interrupted.
func (p *Pending) Wait(ctx context.Context) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.svc.confirm(p.Tx.Hash())
}
