// Package wallet manages the session identity of the client.
//
// The identity is resolved from the signing provider of the user, and its role
// is derived from the owner recorded by the ledger. The manager is the only
// component that writes the identity.
package wallet

import (
	"context"
	"sync"

	"go.dedis.ch/shipagency"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/ledger"
	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"
)

// Role is the role of an identity towards the agency.
type Role int

const (
	// RoleUnknown is the role while no identity is connected.
	RoleUnknown Role = iota

	// RoleCustomer is the role of any identity other than the owner.
	RoleCustomer

	// RoleOwner is the role of the owner of the agency.
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// RoleOf returns the role of the address for the owner address.
func RoleOf(addr, owner ledger.Address) Role {
	if addr.IsZero() {
		return RoleUnknown
	}

	if addr.Equal(owner) {
		return RoleOwner
	}

	return RoleCustomer
}

// Identity is the connected account and its role.
type Identity struct {
	Address ledger.Address
	Role    Role
}

// Connected returns true if the identity is set.
func (id Identity) Connected() bool {
	return !id.Address.IsZero()
}

// Provider is the signing provider of the user, i.e. its wallet software.
type Provider interface {
	// RequestAccounts asks the user for its accounts. The first one is the
	// active account.
	RequestAccounts(ctx context.Context) ([]ledger.Address, error)

	// Signer returns the signer of the account.
	Signer(addr ledger.Address) (ledger.Signer, error)
}

// OwnerReader reads the owner of the agency.
type OwnerReader interface {
	GetAgencyOwner(ctx context.Context) (ledger.Address, error)
}

// Manager tracks the identity of the session.
//
// - implements ledger.SignerSource
type Manager struct {
	sync.RWMutex

	provider Provider
	owners   OwnerReader
	flight   singleflight.Group

	identity Identity
	signer   ledger.Signer
}

// NewManager creates a manager for the provider. The provider can be nil when
// the user has no wallet, in which case connecting fails.
func NewManager(provider Provider, owners OwnerReader) *Manager {
	return &Manager{
		provider: provider,
		owners:   owners,
	}
}

// SetOwnerReader sets the reader used to resolve the role. It allows the owner
// reader to depend on the manager.
func (m *Manager) SetOwnerReader(owners OwnerReader) {
	m.Lock()
	m.owners = owners
	m.Unlock()
}

// Connect requests the active account to the provider and updates the
// identity of the session. A call while connected resolves the account again
// to follow a switch done in the wallet. Concurrent calls share the same
// provider request. The identity is left unchanged on failure.
func (m *Manager) Connect(ctx context.Context) (Identity, error) {
	res, err, shared := m.flight.Do("connect", func() (interface{}, error) {
		return m.connect(ctx)
	})

	if err != nil {
		return Identity{}, err
	}

	if shared {
		shipagency.Logger.Debug().Msg("connection request coalesced")
	}

	return res.(Identity), nil
}

func (m *Manager) connect(ctx context.Context) (Identity, error) {
	if m.provider == nil {
		return Identity{}, xerrors.Errorf("no wallet found: %w", core.ErrProviderUnavailable)
	}

	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		if xerrors.Is(err, core.ErrUserRejected) {
			return Identity{}, xerrors.Errorf("failed to request accounts: %w", err)
		}

		return Identity{}, ledger.Classify(ctx, "failed to request accounts", err)
	}

	if len(accounts) == 0 {
		return Identity{}, xerrors.Errorf("no account shared: %w", core.ErrUserRejected)
	}

	addr, err := ledger.ParseAddress(string(accounts[0]))
	if err != nil {
		return Identity{}, xerrors.Errorf("provider: %v: %w", err, core.ErrInvalidInput)
	}

	signer, err := m.provider.Signer(addr)
	if err != nil {
		return Identity{}, xerrors.Errorf("failed to get signer: %w", err)
	}

	m.RLock()
	owners := m.owners
	m.RUnlock()

	owner, err := owners.GetAgencyOwner(ctx)
	if err != nil {
		return Identity{}, xerrors.Errorf("failed to resolve role: %w", err)
	}

	id := Identity{
		Address: addr,
		Role:    RoleOf(addr, owner),
	}

	m.Lock()
	previous := m.identity
	m.identity = id
	m.signer = signer
	m.Unlock()

	evt := shipagency.Logger.Info().
		Stringer("address", id.Address).
		Stringer("role", id.Role)

	if previous.Connected() && !previous.Address.Equal(id.Address) {
		evt = evt.Stringer("previous", previous.Address)
	}

	evt.Msg("wallet connected")

	return id, nil
}

// Disconnect forgets the identity of the session.
func (m *Manager) Disconnect() {
	m.Lock()
	m.identity = Identity{}
	m.signer = nil
	m.Unlock()
}

// Identity returns the current identity of the session.
func (m *Manager) Identity() Identity {
	m.RLock()
	defer m.RUnlock()

	return m.identity
}

// Signer implements ledger.SignerSource. It returns the signer of the connected
// identity, or ErrProviderUnavailable.
func (m *Manager) Signer() (ledger.Signer, error) {
	m.RLock()
	defer m.RUnlock()

	if m.signer == nil {
		return nil, xerrors.Errorf("not connected: %w", core.ErrProviderUnavailable)
	}

	return m.signer, nil
}
