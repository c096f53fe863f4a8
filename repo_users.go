package upkeep

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the identity store. Email lookups are exact, case-sensitive as
// stored.
type Users interface {
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
	Update(ctx context.Context, record *User, criteria ...repository.UpdateCriteria) (*User, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.UpdateCriteria) (*User, error)
	Delete(ctx context.Context, record *User) error
	DeleteTx(ctx context.Context, tx bun.IDB, record *User) error
	GetByID(ctx context.Context, id uuid.UUID, criteria ...repository.SelectCriteria) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID, criteria ...repository.SelectCriteria) (*User, error)

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	EmailTakenTx(ctx context.Context, tx bun.IDB, email string) (bool, error)
}

type users struct {
	*EntityRepository[*User]
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	repo := NewEntityRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{EntityRepository: repo}
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"identifier": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) EmailTaken(ctx context.Context, email string) (bool, error) {
	return a.EmailTakenTx(ctx, a.db, email)
}

func (a *users) EmailTakenTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	count, err := tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
