package registry

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/abelian-network/abelian-go/pkg/core/storage"
	"github.com/abelian-network/abelian-go/pkg/io"
	"github.com/abelian-network/abelian-go/pkg/util"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
)

// Key prefixes used by the registry in the underlying storage.
const (
	prefixRecord       storage.KeyPrefix = 0x01
	prefixToken        storage.KeyPrefix = 0x02
	prefixChainByIndex storage.KeyPrefix = 0x03
	prefixChainMember  storage.KeyPrefix = 0x04
	prefixCounter      storage.KeyPrefix = 0x05
	prefixAdmin        storage.KeyPrefix = 0x06
	prefixChainCount   storage.KeyPrefix = 0x07
	prefixHeight       storage.KeyPrefix = 0x08
	prefixReceipt      storage.KeyPrefix = 0x09
	prefixNonce        storage.KeyPrefix = 0x0a
	prefixSequence     storage.KeyPrefix = 0x0b
)

// Store is the registry state kept in a storage.Store. All changes are
// accumulated in the in-memory Backend layer until Persist is called.
// Store is not safe for concurrent modification, Service serializes
// access to it.
type Store struct {
	Backend *storage.MemCachedStore

	// records is the read cache of the base store, nil for wrapped ones.
	records *lru.Cache
	// parent is set for wrapped stores, its cache is invalidated for
	// every dirty node on Persist.
	parent *Store
	dirty  []util.Uint256
}

// NewStore creates a registry Store on top of the given backend with the
// record cache of the given size.
func NewStore(backend storage.Store, cacheSize int) (*Store, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create record cache: %w", err)
	}
	return &Store{
		Backend: storage.NewMemCachedStore(backend),
		records: cache,
	}, nil
}

// GetWrapped returns a Store whose changes are cached on top of s and
// only get to s after Persist. Discarding the wrapped store leaves s
// untouched.
func (s *Store) GetWrapped() *Store {
	return &Store{
		Backend: storage.NewMemCachedStore(s.Backend),
		parent:  s,
	}
}

// Persist flushes all changes to the lower layer and returns the number of
// keys written.
func (s *Store) Persist() (int, error) {
	n, err := s.Backend.Persist()
	if err != nil {
		return 0, err
	}
	if p := s.parent; p != nil {
		if p.records != nil {
			for _, node := range s.dirty {
				p.records.Remove(node)
			}
		}
		p.dirty = append(p.dirty, s.dirty...)
	}
	s.dirty = s.dirty[:0]
	return n, nil
}

// Discard drops all the changes not yet persisted.
func (s *Store) Discard() {
	s.Backend.Discard()
	if s.records != nil {
		s.records.Purge()
	}
	s.dirty = s.dirty[:0]
}

// Close closes the underlying storage dropping all the changes not yet
// persisted.
func (s *Store) Close() error {
	return s.Backend.Close()
}

func makeRecordKey(node util.Uint256) []byte {
	return append(prefixRecord.Bytes(), node.BytesBE()...)
}

func makeTokenKey(id *uint256.Int) []byte {
	b := id.Bytes32()
	return append(prefixToken.Bytes(), b[:]...)
}

func makeChainIndexKey(i uint32) []byte {
	key := make([]byte, 5)
	key[0] = byte(prefixChainByIndex)
	binary.BigEndian.PutUint32(key[1:], i)
	return key
}

func makeChainMemberKey(id ChainID) []byte {
	key := make([]byte, 3)
	key[0] = byte(prefixChainMember)
	binary.BigEndian.PutUint16(key[1:], uint16(id))
	return key
}

func makeSequenceKey(emitter util.Uint160) []byte {
	return append(prefixSequence.Bytes(), emitter.BytesBE()...)
}

func makeReceiptKey(h util.Uint256) []byte {
	return append(prefixReceipt.Bytes(), h.BytesBE()...)
}

func (s *Store) getItem(key []byte, item io.Serializable) error {
	b, err := s.Backend.Get(key)
	if err != nil {
		return err
	}
	return io.FromByteArray(item, b)
}

func (s *Store) putItem(key []byte, item io.Serializable) error {
	b, err := io.ToByteArray(item)
	if err != nil {
		return err
	}
	s.Backend.Put(key, b)
	return nil
}

// Deploy initializes the registry with the given admin and initial chain
// ID. Repeated deployment by the same admin is a no-op, deploying with
// another admin fails with ErrAlreadyDeployed.
func (s *Store) Deploy(admin util.Uint160, initial ChainID) error {
	cur, err := s.Admin()
	if err == nil {
		if cur.Equals(admin) {
			return nil
		}
		return ErrAlreadyDeployed
	}
	if !errors.Is(err, ErrNotDeployed) {
		return err
	}
	if admin.IsZero() {
		return ErrZeroOwner
	}
	s.Backend.Put(prefixAdmin.Bytes(), admin.BytesBE())
	_, err = s.AddSupportedChainID(initial)
	return err
}

// Admin returns the registry admin, ErrNotDeployed is returned if the
// registry wasn't deployed yet.
func (s *Store) Admin() (util.Uint160, error) {
	b, err := s.Backend.Get(prefixAdmin.Bytes())
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return util.Uint160{}, ErrNotDeployed
		}
		return util.Uint160{}, err
	}
	return util.Uint160DecodeBytesBE(b)
}

// TotalSupply returns the number of tokens minted so far which is also the
// last issued token ID.
func (s *Store) TotalSupply() (*uint256.Int, error) {
	b, err := s.Backend.Get(prefixCounter.Bytes())
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return new(uint256.Int), nil
		}
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("invalid counter length %d", len(b))
	}
	return new(uint256.Int).SetBytes32(b), nil
}

func (s *Store) putCounter(c *uint256.Int) {
	b := c.Bytes32()
	s.Backend.Put(prefixCounter.Bytes(), b[:])
}

// Mint issues the next token ID on behalf of minter. It never touches node
// records.
func (s *Store) Mint(minter util.Uint160) (*uint256.Int, error) {
	cur, err := s.TotalSupply()
	if err != nil {
		return nil, err
	}
	id := new(uint256.Int).AddUint64(cur, 1)
	if id.IsZero() {
		return nil, ErrCounterOverflow
	}
	s.putCounter(id)
	s.Backend.Put(makeTokenKey(id), minter.BytesBE())
	return id, nil
}

// MintFor issues the next token ID and binds it to the node. The node must
// not have a token yet.
func (s *Store) MintFor(minter util.Uint160, node util.Uint256) (*uint256.Int, error) {
	rec, err := s.GetRecord(node)
	if err != nil {
		return nil, err
	}
	if !rec.TokenID.IsZero() {
		return nil, ErrAlreadyMinted
	}
	id, err := s.Mint(minter)
	if err != nil {
		return nil, err
	}
	rec.TokenID = *id
	if err := s.putRecord(node, rec); err != nil {
		return nil, err
	}
	return id, nil
}

// TokenExists checks whether the token with the given ID was minted.
func (s *Store) TokenExists(id *uint256.Int) (bool, error) {
	_, err := s.Backend.Get(makeTokenKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MinterOf returns the address that minted the token, storage.ErrKeyNotFound
// is returned for unknown tokens.
func (s *Store) MinterOf(id *uint256.Int) (util.Uint160, error) {
	b, err := s.Backend.Get(makeTokenKey(id))
	if err != nil {
		return util.Uint160{}, err
	}
	return util.Uint160DecodeBytesBE(b)
}

// GetRecord returns the record of the node, never registered nodes get an
// empty record.
func (s *Store) GetRecord(node util.Uint256) (*Record, error) {
	if s.records != nil {
		if r, ok := s.records.Get(node); ok {
			rec := r.(Record)
			return &rec, nil
		}
	}
	rec := new(Record)
	err := s.getItem(makeRecordKey(node), rec)
	if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return nil, err
	}
	if s.records != nil {
		s.records.Add(node, *rec)
	}
	return rec, nil
}

func (s *Store) putRecord(node util.Uint256, rec *Record) error {
	if err := s.putItem(makeRecordKey(node), rec); err != nil {
		return err
	}
	if s.records != nil {
		s.records.Remove(node)
	}
	s.dirty = append(s.dirty, node)
	return nil
}

// GetOwner returns the owner of the node, zero address for unregistered
// nodes.
func (s *Store) GetOwner(node util.Uint256) (util.Uint160, error) {
	rec, err := s.GetRecord(node)
	if err != nil {
		return util.Uint160{}, err
	}
	return rec.Owner, nil
}

// SetOwner sets the owner of the node on behalf of caller. The admin can
// change any node, the current owner can transfer its own node. Nothing is
// changed on error.
func (s *Store) SetOwner(caller util.Uint160, node util.Uint256, owner util.Uint160) error {
	admin, err := s.Admin()
	if err != nil {
		return err
	}
	rec, err := s.GetRecord(node)
	if err != nil {
		return err
	}
	if !caller.Equals(admin) && (rec.Owner.IsZero() || !caller.Equals(rec.Owner)) {
		return ErrUnauthorized
	}
	if owner.IsZero() {
		return ErrZeroOwner
	}
	rec.Owner = owner
	return s.putRecord(node, rec)
}

func (s *Store) chainCount() (uint32, error) {
	b, err := s.Backend.Get(prefixChainCount.Bytes())
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("invalid chain count length %d", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// IsSupportedChainID checks whether id is in the supported chain set.
func (s *Store) IsSupportedChainID(id ChainID) (bool, error) {
	_, err := s.Backend.Get(makeChainMemberKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AddSupportedChainID appends id to the supported chain set. It returns
// false without changing anything if id is already there.
func (s *Store) AddSupportedChainID(id ChainID) (bool, error) {
	ok, err := s.IsSupportedChainID(id)
	if err != nil || ok {
		return false, err
	}
	n, err := s.chainCount()
	if err != nil {
		return false, err
	}
	val := make([]byte, 2)
	binary.BigEndian.PutUint16(val, uint16(id))
	s.Backend.Put(makeChainIndexKey(n), val)
	idx := make([]byte, 4)
	binary.BigEndian.PutUint32(idx, n)
	s.Backend.Put(makeChainMemberKey(id), idx)
	cnt := make([]byte, 4)
	binary.BigEndian.PutUint32(cnt, n+1)
	s.Backend.Put(prefixChainCount.Bytes(), cnt)
	return true, nil
}

// GetChainIDs returns supported chain IDs in insertion order.
func (s *Store) GetChainIDs() ([]ChainID, error) {
	var (
		res []ChainID
		err error
	)
	s.Backend.Seek(storage.SeekRange{Prefix: prefixChainByIndex.Bytes()}, func(k, v []byte) bool {
		if len(v) != 2 {
			err = fmt.Errorf("invalid chain ID at %x", k)
			return false
		}
		res = append(res, ChainID(binary.BigEndian.Uint16(v)))
		return true
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Height returns the number of the last persisted block.
func (s *Store) Height() (uint32, error) {
	b, err := s.Backend.Get(prefixHeight.Bytes())
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("invalid height length %d", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// PutHeight stores the current block height.
func (s *Store) PutHeight(h uint32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, h)
	s.Backend.Put(prefixHeight.Bytes(), b)
}

// Nonce returns the nonce of the last confirmed transaction.
func (s *Store) Nonce() (uint32, error) {
	b, err := s.Backend.Get(prefixNonce.Bytes())
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(b) != 4 {
		return 0, fmt.Errorf("invalid nonce length %d", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// PutNonce stores the nonce of the last confirmed transaction.
func (s *Store) PutNonce(n uint32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	s.Backend.Put(prefixNonce.Bytes(), b)
}

// GetReceipt returns the receipt of the confirmed transaction.
func (s *Store) GetReceipt(h util.Uint256) (*Receipt, error) {
	r := new(Receipt)
	err := s.getItem(makeReceiptKey(h), r)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}
	return r, nil
}

// PutReceipt stores the receipt of a confirmed transaction.
func (s *Store) PutReceipt(r *Receipt) error {
	return s.putItem(makeReceiptKey(r.TxHash), r)
}

// NextSequence returns the sequence number reserved for the next
// registration message of the emitter.
func (s *Store) NextSequence(emitter util.Uint160) (uint64, error) {
	b, err := s.Backend.Get(makeSequenceKey(emitter))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid sequence length %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// PutNextSequence stores the next registration message sequence of the
// emitter.
func (s *Store) PutNextSequence(emitter util.Uint160, seq uint64) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	s.Backend.Put(makeSequenceKey(emitter), b)
}

// Sequences returns next registration message sequences of all emitters.
func (s *Store) Sequences() (map[util.Uint160]uint64, error) {
	var (
		res = make(map[util.Uint160]uint64)
		err error
	)
	s.Backend.Seek(storage.SeekRange{Prefix: prefixSequence.Bytes()}, func(k, v []byte) bool {
		var emitter util.Uint160
		emitter, err = util.Uint160DecodeBytesBE(k[1:])
		if err == nil && len(v) != 8 {
			err = fmt.Errorf("invalid sequence at %x", k)
		}
		if err != nil {
			return false
		}
		res[emitter] = binary.BigEndian.Uint64(v)
		return true
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
