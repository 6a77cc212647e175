package registry

import "errors"

// Errors returned by the registry operations. They're never wrapped with any
// additional context by the Service, so errors.Is can be used on anything
// returned from Pending.Wait.
var (
	// ErrUnauthorized is returned when the caller isn't permitted to perform
	// the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrCounterOverflow is returned when the token counter is exhausted.
	ErrCounterOverflow = errors.New("token counter overflow")
	// ErrAlreadyMinted is returned on an attempt to mint a token for a node
	// that already has one.
	ErrAlreadyMinted = errors.New("node already has a token")
	// ErrAlreadyDeployed is returned on an attempt to deploy the registry
	// with another admin.
	ErrAlreadyDeployed = errors.New("registry is already deployed")
	// ErrNotDeployed is returned for state-changing operations performed
	// before deployment.
	ErrNotDeployed = errors.New("registry is not deployed")
	// ErrZeroOwner is returned on an attempt to set the zero address as
	// node owner.
	ErrZeroOwner = errors.New("zero owner address")
	// ErrReceiptNotFound is returned for unknown transaction hashes.
	ErrReceiptNotFound = errors.New("receipt not found")
)

// ErrServiceClosed is returned by Service methods called after Close.
var ErrServiceClosed = errors.New("service is closed")
