package registrytest

import (
	"testing"

	"github.com/abelian-network/abelian-go/pkg/crypto/keys"
	"github.com/abelian-network/abelian-go/pkg/registry"
	"github.com/abelian-network/abelian-go/pkg/util"
	"github.com/stretchr/testify/require"
)

// Signer is a registry caller backed by a private key.
type Signer interface {
	registry.Signer
	// Address returns the base58 signer address.
	Address() string
	// PrivateKey returns the signer key.
	PrivateKey() *keys.PrivateKey
}

// signer represents simple-signature signer.
type signer keys.PrivateKey

// NewSingleSigner returns a signer for the provided key.
func NewSingleSigner(key *keys.PrivateKey) Signer {
	return (*signer)(key)
}

// ScriptHash implements Signer interface.
func (s *signer) ScriptHash() util.Uint160 {
	return s.PrivateKey().GetScriptHash()
}

// Address implements Signer interface.
func (s *signer) Address() string {
	return s.PrivateKey().Address()
}

// PrivateKey implements Signer interface.
func (s *signer) PrivateKey() *keys.PrivateKey {
	return (*keys.PrivateKey)(s)
}

// NewAccount returns a new signer with a random key.
func NewAccount(t testing.TB) Signer {
	key, err := keys.NewPrivateKey()
	require.NoError(t, err)
	return NewSingleSigner(key)
}
