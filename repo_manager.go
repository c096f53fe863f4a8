package upkeep

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories and the request-scoped unit of
// work. SaveAuditTrail is the post-commit half of the audit pipeline and must
// run after RunInTx returns successfully.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Organizations() *EntityRepository[*Organization]
	Houses() *EntityRepository[*House]
	HouseMembers() *EntityRepository[*HouseMember]
	Devices() *EntityRepository[*Device]
	MaintenanceTypes() *EntityRepository[*MaintenanceType]
	MaintenanceInstances() *EntityRepository[*MaintenanceInstance]
	RefreshTokens() *RefreshTokenLedger
	SaveAuditTrail(ctx context.Context) error
	AuditEntries(ctx context.Context, entityType, entityID string) ([]*AuditLog, error)
}

type mngr struct {
	db                   *bun.DB
	users                Users
	organizations        *EntityRepository[*Organization]
	houses               *EntityRepository[*House]
	houseMembers         *EntityRepository[*HouseMember]
	devices              *EntityRepository[*Device]
	maintenanceTypes     *EntityRepository[*MaintenanceType]
	maintenanceInstances *EntityRepository[*MaintenanceInstance]
	refreshTokens        *RefreshTokenLedger
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:                   db,
		users:                NewUsersRepository(db),
		organizations:        NewEntityRepository[*Organization](db, entityHandlers[*Organization](func() *Organization { return &Organization{} })),
		houses:               NewEntityRepository[*House](db, entityHandlers[*House](func() *House { return &House{} })),
		houseMembers:         NewEntityRepository[*HouseMember](db, entityHandlers[*HouseMember](func() *HouseMember { return &HouseMember{} })),
		devices:              NewEntityRepository[*Device](db, entityHandlers[*Device](func() *Device { return &Device{} })),
		maintenanceTypes:     NewEntityRepository[*MaintenanceType](db, entityHandlers[*MaintenanceType](func() *MaintenanceType { return &MaintenanceType{} })),
		maintenanceInstances: NewEntityRepository[*MaintenanceInstance](db, entityHandlers[*MaintenanceInstance](func() *MaintenanceInstance { return &MaintenanceInstance{} })),
		refreshTokens:        NewRefreshTokenLedger(db),
	}
}

// entityHandlers builds the id plumbing shared by every uuid-keyed entity
func entityHandlers[T any](newRecord func() T) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			return uuidFromEntity(record)
		},
		SetID: func(record T, id uuid.UUID) {
			assignEntityUUID(record, id)
		},
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.refreshTokens == nil {
		return errors.New("refresh token ledger should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users { return m.users }

func (m mngr) Organizations() *EntityRepository[*Organization] { return m.organizations }

func (m mngr) Houses() *EntityRepository[*House] { return m.houses }

func (m mngr) HouseMembers() *EntityRepository[*HouseMember] { return m.houseMembers }

func (m mngr) Devices() *EntityRepository[*Device] { return m.devices }

func (m mngr) MaintenanceTypes() *EntityRepository[*MaintenanceType] { return m.maintenanceTypes }

func (m mngr) MaintenanceInstances() *EntityRepository[*MaintenanceInstance] {
	return m.maintenanceInstances
}

func (m mngr) RefreshTokens() *RefreshTokenLedger { return m.refreshTokens }

// SaveAuditTrail flushes the request's captured drafts in a second save once
// the primary commit is durable.
func (m mngr) SaveAuditTrail(ctx context.Context) error {
	return flushAuditTrail(ctx, m.db)
}

// AuditEntries lists the trail for one entity, newest last
func (m mngr) AuditEntries(ctx context.Context, entityType, entityID string) ([]*AuditLog, error) {
	var entries []*AuditLog

	q := m.db.NewSelect().
		Model(&entries).
		OrderExpr("?TableAlias.timestamp ASC")

	if entityType != "" {
		q = q.Where("?TableAlias.entity_type = ?", entityType)
	}
	if entityID != "" {
		q = q.Where("?TableAlias.entity_id = ?", entityID)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return entries, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
