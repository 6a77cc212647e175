package registrytest

import (
	"context"
	"testing"

	"github.com/abelian-network/abelian-go/pkg/registry"
	"github.com/abelian-network/abelian-go/pkg/util"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// Invoker performs registry invocations on behalf of its signer.
type Invoker struct {
	*Executor
	Signer Signer
}

// NewInvoker creates a new Invoker for the signer.
func (e *Executor) NewInvoker(s Signer) *Invoker {
	return &Invoker{
		Executor: e,
		Signer:   s,
	}
}

// AdminInvoker creates a new Invoker signing with the registry admin.
func (e *Executor) AdminInvoker() *Invoker {
	return e.NewInvoker(e.Admin)
}

// WithSigner creates a new Invoker with the same executor and another
// signer.
func (i *Invoker) WithSigner(s Signer) *Invoker {
	return i.NewInvoker(s)
}

// Invoke returns a function that confirms the submitted transaction and
// checks it was successful. It's supposed to be used as
// inv.Invoke(t)(svc.Method(...)).
func (i *Invoker) Invoke(t testing.TB) func(*registry.Pending, error) *registry.Receipt {
	return func(p *registry.Pending, err error) *registry.Receipt {
		require.NoError(t, err)
		r, err := p.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, registry.HaltState, r.State)
		return r
	}
}

// InvokeFail returns a function that confirms the submitted transaction and
// checks it faulted with the expected error. State is checked to be unchanged
// by the caller if needed.
func (i *Invoker) InvokeFail(t testing.TB, expected error) func(*registry.Pending, error) *registry.Receipt {
	return func(p *registry.Pending, err error) *registry.Receipt {
		require.NoError(t, err)
		r, err := p.Wait(context.Background())
		require.ErrorIs(t, err, expected)
		require.NotNil(t, r)
		require.Equal(t, registry.FaultState, r.State)
		require.Equal(t, err.Error(), r.FaultException)
		require.Empty(t, r.Notifications)
		return r
	}
}

// Mint mints a new token and returns its ID.
func (i *Invoker) Mint(t testing.TB) *uint256.Int {
	r := i.Invoke(t)(i.Service.Mint(i.Signer))
	require.NotNil(t, r.TokenID)
	return r.TokenID
}

// MintFor mints a new token for the node and returns its ID.
func (i *Invoker) MintFor(t testing.TB, node util.Uint256) *uint256.Int {
	r := i.Invoke(t)(i.Service.MintFor(i.Signer, node))
	require.NotNil(t, r.TokenID)
	return r.TokenID
}

// MintForFail checks that minting for the node fails with the expected
// error.
func (i *Invoker) MintForFail(t testing.TB, node util.Uint256, expected error) {
	i.InvokeFail(t, expected)(i.Service.MintFor(i.Signer, node))
}

// SetOwner sets the node owner.
func (i *Invoker) SetOwner(t testing.TB, node util.Uint256, owner util.Uint160) *registry.Receipt {
	return i.Invoke(t)(i.Service.SetOwner(i.Signer, node, owner))
}

// SetOwnerFail checks that setting the node owner fails with the expected
// error and leaves the owner unchanged.
func (i *Invoker) SetOwnerFail(t testing.TB, node util.Uint256, owner util.Uint160, expected error) {
	before, err := i.Service.GetOwner(node)
	require.NoError(t, err)
	i.InvokeFail(t, expected)(i.Service.SetOwner(i.Signer, node, owner))
	i.CheckOwner(t, node, before)
}

// AddSupportedChainID adds the chain ID and returns whether it was added.
func (i *Invoker) AddSupportedChainID(t testing.TB, id registry.ChainID) bool {
	return i.Invoke(t)(i.Service.AddSupportedChainID(i.Signer, id)).Added
}

// AddSupportedChainIDFail checks that adding the chain ID fails with the
// expected error.
func (i *Invoker) AddSupportedChainIDFail(t testing.TB, id registry.ChainID, expected error) {
	i.InvokeFail(t, expected)(i.Service.AddSupportedChainID(i.Signer, id))
}
