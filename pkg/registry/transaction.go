package registry

import (
	"fmt"

	"github.com/abelian-network/abelian-go/pkg/crypto/hash"
	"github.com/abelian-network/abelian-go/pkg/io"
	"github.com/abelian-network/abelian-go/pkg/util"
)

// Method is a registry operation invoked by a transaction.
type Method byte

// Registry methods.
const (
	MethodDeploy Method = iota
	MethodMint
	MethodMintFor
	MethodSetOwner
	MethodAddSupportedChainID
)

// String implements the fmt.Stringer interface.
func (m Method) String() string {
	switch m {
	case MethodDeploy:
		return "deploy"
	case MethodMint:
		return "mint"
	case MethodMintFor:
		return "mintFor"
	case MethodSetOwner:
		return "setOwner"
	case MethodAddSupportedChainID:
		return "addSupportedChainID"
	default:
		return fmt.Sprintf("Method(%d)", byte(m))
	}
}

// Transaction is a submitted registry operation. Only the fields relevant for
// the Method are set.
type Transaction struct {
	Nonce   uint32
	Sender  util.Uint160
	Method  Method
	Node    util.Uint256
	Owner   util.Uint160
	ChainID ChainID

	hash util.Uint256
}

// EncodeBinary implements the io.Serializable interface.
func (t *Transaction) EncodeBinary(w *io.BinWriter) {
	w.WriteU32LE(t.Nonce)
	t.Sender.EncodeBinary(w)
	w.WriteB(byte(t.Method))
	t.Node.EncodeBinary(w)
	t.Owner.EncodeBinary(w)
	w.WriteU16BE(uint16(t.ChainID))
}

// DecodeBinary implements the io.Serializable interface.
func (t *Transaction) DecodeBinary(r *io.BinReader) {
	t.Nonce = r.ReadU32LE()
	t.Sender.DecodeBinary(r)
	t.Method = Method(r.ReadB())
	t.Node.DecodeBinary(r)
	t.Owner.DecodeBinary(r)
	t.ChainID = ChainID(r.ReadU16BE())
	t.hash = util.Uint256{}
}

// Hash returns the double SHA-256 hash of the serialized transaction.
func (t *Transaction) Hash() util.Uint256 {
	if t.hash.IsZero() {
		buf := io.NewBufBinWriter()
		t.EncodeBinary(buf.BinWriter)
		if buf.Err != nil {
			panic(buf.Err)
		}
		t.hash = hash.DoubleSha256(buf.Bytes())
	}
	return t.hash
}
