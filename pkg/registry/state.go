package registry

import (
	"fmt"

	"github.com/abelian-network/abelian-go/pkg/io"
	"github.com/abelian-network/abelian-go/pkg/util"
	"github.com/holiman/uint256"
)

// ChainID identifies an external network supported by the registry.
type ChainID uint16

// RecordState is the lifecycle state of a node record.
type RecordState byte

// Record states, a record never leaves Minted or Owned once it gets there.
const (
	Unregistered RecordState = iota
	Minted
	Owned
)

// String implements the fmt.Stringer interface.
func (s RecordState) String() string {
	switch s {
	case Unregistered:
		return "Unregistered"
	case Minted:
		return "Minted"
	case Owned:
		return "Owned"
	default:
		return fmt.Sprintf("RecordState(%d)", byte(s))
	}
}

// Record is the registry entry of a single node. Zero Owner means the node
// wasn't registered, zero TokenID means no token is bound to it.
type Record struct {
	Owner   util.Uint160
	TokenID uint256.Int
}

// State returns the lifecycle state of the record.
func (r *Record) State() RecordState {
	switch {
	case !r.Owner.IsZero():
		return Owned
	case !r.TokenID.IsZero():
		return Minted
	default:
		return Unregistered
	}
}

// EncodeBinary implements the io.Serializable interface.
func (r *Record) EncodeBinary(w *io.BinWriter) {
	r.Owner.EncodeBinary(w)
	writeTokenID(w, &r.TokenID)
}

// DecodeBinary implements the io.Serializable interface.
func (r *Record) DecodeBinary(br *io.BinReader) {
	r.Owner.DecodeBinary(br)
	readTokenID(br, &r.TokenID)
}

func writeTokenID(w *io.BinWriter, id *uint256.Int) {
	b := id.Bytes32()
	w.WriteBytes(b[:])
}

func readTokenID(br *io.BinReader, id *uint256.Int) {
	var b [32]byte
	br.ReadBytes(b[:])
	if br.Err != nil {
		return
	}
	id.SetBytes32(b[:])
}

// Notification names.
const (
	DeployNotification       = "Deploy"
	MintNotification         = "Mint"
	OwnerSetNotification     = "OwnerSet"
	ChainIDAddedNotification = "ChainIDAdded"
)

// Notification is an event emitted by a confirmed operation. Fields that are
// irrelevant for the particular event are left zeroed.
type Notification struct {
	Name    string
	Node    util.Uint256
	Owner   util.Uint160
	TokenID uint256.Int
	ChainID ChainID
}

// EncodeBinary implements the io.Serializable interface.
func (n *Notification) EncodeBinary(w *io.BinWriter) {
	w.WriteString(n.Name)
	n.Node.EncodeBinary(w)
	n.Owner.EncodeBinary(w)
	writeTokenID(w, &n.TokenID)
	w.WriteU16BE(uint16(n.ChainID))
}

// DecodeBinary implements the io.Serializable interface.
func (n *Notification) DecodeBinary(r *io.BinReader) {
	n.Name = r.ReadString(32)
	n.Node.DecodeBinary(r)
	n.Owner.DecodeBinary(r)
	readTokenID(r, &n.TokenID)
	n.ChainID = ChainID(r.ReadU16BE())
}

// VMState is the final state of a confirmed transaction.
type VMState byte

// Transaction states.
const (
	HaltState VMState = iota
	FaultState
)

// String implements the fmt.Stringer interface.
func (s VMState) String() string {
	if s == HaltState {
		return "HALT"
	}
	return "FAULT"
}

// Receipt is the confirmation result of a submitted transaction.
type Receipt struct {
	TxHash util.Uint256
	Block  uint32
	Method Method
	State  VMState
	// FaultException is the error message for faulted transactions.
	FaultException string
	// TokenID is set for successful mints only.
	TokenID *uint256.Int
	// Added is the AddSupportedChainID result.
	Added bool
	// Sequence is the cross-chain message sequence number of the published
	// registration, it's only meaningful for SetOwner with Published set.
	Sequence      uint64
	Published     bool
	Notifications []Notification
}

// EncodeBinary implements the io.Serializable interface.
func (r *Receipt) EncodeBinary(w *io.BinWriter) {
	r.TxHash.EncodeBinary(w)
	w.WriteU32LE(r.Block)
	w.WriteB(byte(r.Method))
	w.WriteB(byte(r.State))
	w.WriteString(r.FaultException)
	w.WriteBool(r.TokenID != nil)
	if r.TokenID != nil {
		writeTokenID(w, r.TokenID)
	}
	w.WriteBool(r.Added)
	w.WriteBool(r.Published)
	w.WriteU64LE(r.Sequence)
	io.WriteArray(w, r.Notifications)
}

// DecodeBinary implements the io.Serializable interface.
func (r *Receipt) DecodeBinary(br *io.BinReader) {
	r.TxHash.DecodeBinary(br)
	r.Block = br.ReadU32LE()
	r.Method = Method(br.ReadB())
	r.State = VMState(br.ReadB())
	r.FaultException = br.ReadString()
	if br.ReadBool() {
		r.TokenID = new(uint256.Int)
		readTokenID(br, r.TokenID)
	}
	r.Added = br.ReadBool()
	r.Published = br.ReadBool()
	r.Sequence = br.ReadU64LE()
	io.ReadArray(br, &r.Notifications)
}
