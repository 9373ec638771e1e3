// Package view synchronizes the local view of the ledger.
//
// The controller pulls the state of the contract in a fixed order, agency
// profile, ship record, balance of the caller and then role, and publishes a
// consolidated snapshot to the observers once every fetch succeeded. A partial
// snapshot is never published.
package view

import (
	"context"
	"sync"

	"go.dedis.ch/shipagency"
	"go.dedis.ch/shipagency/core"
	"go.dedis.ch/shipagency/core/amount"
	"go.dedis.ch/shipagency/core/dues"
	"go.dedis.ch/shipagency/core/ledger"
	"go.dedis.ch/shipagency/core/wallet"
	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"
)

// Fields is a set of parts of the snapshot.
type Fields uint8

const (
	// FieldAgency is the agency profile.
	FieldAgency Fields = 1 << iota

	// FieldShip is the ship record.
	FieldShip

	// FieldBalance is the balance of the connected identity.
	FieldBalance

	// FieldRole is the role of the connected identity.
	FieldRole

	// FieldsAll is every part of the snapshot.
	FieldsAll = FieldAgency | FieldShip | FieldBalance | FieldRole
)

// Has returns true if every field of o is in f.
func (f Fields) Has(o Fields) bool {
	return f&o == o
}

// AgencyProfile is the agency as recorded by the ledger.
type AgencyProfile struct {
	Owner ledger.Address
	Name  string
}

// ShipRecord is the ship as recorded by the ledger. A zero tonnage means that
// it is not set.
type ShipRecord struct {
	IMO        string
	NetTonnage uint64
}

// Snapshot is the view-model published to the observers.
type Snapshot struct {
	// Version increases with every published snapshot.
	Version uint64

	Identity wallet.Identity
	Agency   AgencyProfile
	Ship     ShipRecord
	Balance  amount.Amount

	// Dues is the payment required for the recorded tonnage. HasDues is false
	// when the tonnage is not set.
	Dues    amount.Amount
	HasDues bool

	// NeedsAgencyName is true when the owner is connected and the agency has
	// no name yet.
	NeedsAgencyName bool
}

// Reader is the part of the ledger client the controller reads from.
type Reader interface {
	GetAgencyOwner(ctx context.Context) (ledger.Address, error)
	GetAgencyName(ctx context.Context) (string, error)
	GetShipIMO(ctx context.Context) (string, error)
	GetShipTonnage(ctx context.Context) (uint64, error)
	GetBalance(ctx context.Context, addr ledger.Address) (amount.Amount, error)
}

// IdentitySource provides the identity of the session.
type IdentitySource interface {
	Identity() wallet.Identity
}

// Controller keeps the last snapshot and refreshes it.
type Controller struct {
	reader     Reader
	identities IdentitySource
	calc       dues.Calculator
	watcher    *core.Watcher[Snapshot]
	flight     singleflight.Group

	// mu serializes the refreshes.
	mu   sync.Mutex
	last Snapshot
}

// NewController creates a new controller.
func NewController(reader Reader, identities IdentitySource, calc dues.Calculator) *Controller {
	return &Controller{
		reader:     reader,
		identities: identities,
		calc:       calc,
		watcher:    core.NewWatcher[Snapshot](),
	}
}

// Subscribe registers the observer of the snapshots and returns the function
// that unregisters it. Observers are notified synchronously, in the order of
// the refreshes, and must not call back into the controller.
func (c *Controller) Subscribe(obs core.Observer[Snapshot]) (unsubscribe func()) {
	return c.watcher.Add(obs)
}

// Last returns the last published snapshot.
func (c *Controller) Last() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.last
}

// Reset forgets the last snapshot, e.g. when a new session starts.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.last = Snapshot{Version: c.last.Version}
	c.mu.Unlock()
}

// RefreshAll fetches the whole state and publishes it. Concurrent calls are
// coalesced: a call made while another one is in flight waits for it and
// returns the same snapshot.
func (c *Controller) RefreshAll(ctx context.Context) (Snapshot, error) {
	res, err, _ := c.flight.Do("all", func() (interface{}, error) {
		return c.Refresh(ctx, FieldsAll)
	})

	if err != nil {
		return Snapshot{}, err
	}

	return res.(Snapshot), nil
}

// Refresh fetches the fields, merges them into the last snapshot and publishes
// the result.
func (c *Controller) Refresh(ctx context.Context, fields Fields) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.last
	next.Identity = c.identities.Identity()

	if !next.Identity.Connected() {
		next.Balance = amount.Zero()
	}

	if fields.Has(FieldAgency) || fields.Has(FieldRole) {
		owner, err := c.reader.GetAgencyOwner(ctx)
		if err != nil {
			return Snapshot{}, xerrors.Errorf("agency: %w", err)
		}

		next.Agency.Owner = owner
	}

	if fields.Has(FieldAgency) {
		name, err := c.reader.GetAgencyName(ctx)
		if err != nil {
			return Snapshot{}, xerrors.Errorf("agency: %w", err)
		}

		next.Agency.Name = name
	}

	if fields.Has(FieldShip) {
		imo, err := c.reader.GetShipIMO(ctx)
		if err != nil {
			return Snapshot{}, xerrors.Errorf("ship: %w", err)
		}

		tonnage, err := c.reader.GetShipTonnage(ctx)
		if err != nil {
			return Snapshot{}, xerrors.Errorf("ship: %w", err)
		}

		next.Ship = ShipRecord{IMO: imo, NetTonnage: tonnage}
	}

	if fields.Has(FieldBalance) && next.Identity.Connected() {
		balance, err := c.reader.GetBalance(ctx, next.Identity.Address)
		if err != nil {
			return Snapshot{}, xerrors.Errorf("balance: %w", err)
		}

		next.Balance = balance
	}

	next.Identity.Role = wallet.RoleOf(next.Identity.Address, next.Agency.Owner)

	next.HasDues = false
	next.Dues = amount.Zero()

	if next.Ship.NetTonnage > 0 {
		d, err := c.calc.Compute(next.Ship.NetTonnage)
		if err == nil {
			next.Dues = d
			next.HasDues = true
		}
	}

	next.NeedsAgencyName = next.Identity.Role == wallet.RoleOwner && next.Agency.Name == ""

	next.Version = c.last.Version + 1
	c.last = next

	shipagency.Logger.Debug().
		Uint64("version", next.Version).
		Uint8("fields", uint8(fields)).
		Msg("view refreshed")

	c.watcher.Notify(next)

	return next, nil
}
