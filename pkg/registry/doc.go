/*
Package registry implements the node registry: a token counter, per-node
ownership records and an ordered set of supported chain IDs.

The registry is split into two layers. Store keeps the state in a
storage.Store and enforces its invariants (minting never touches ownership,
chain IDs are unique and kept in insertion order, only permitted callers can
change owners). Service is the externally callable surface: operations are
submitted on behalf of a Signer and confirmed later, every confirmed
operation gets a Receipt with its notifications.

Usually it's used like this:

	svc, err := registry.New(storage.NewMemoryStore(), cfg.Registry, log)
	...
	p, err := svc.Deploy(admin)
	...
	_, err = p.Wait(ctx)
	...
	p, err = svc.Mint(admin)
	...
	receipt, err := p.Wait(ctx)
*/
package registry
