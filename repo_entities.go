package upkeep

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EntityRepository wraps the generic bun repository so every write passes
// through the change-audit pipeline: creation/modification stamping, hard
// deletes converted to soft deletes, and one audit draft per mutation. Reads
// go through bun's default scope, which excludes soft-deleted rows; callers
// wanting deleted rows opt in with IncludeDeleted.
type EntityRepository[T any] struct {
	repository.Repository[T]
	handlers repository.ModelHandlers[T]
	db       *bun.DB
}

func NewEntityRepository[T any](db *bun.DB, handlers repository.ModelHandlers[T]) *EntityRepository[T] {
	return &EntityRepository[T]{
		Repository: repository.NewRepository[T](db, handlers),
		handlers:   handlers,
		db:         db,
	}
}

// IncludeDeleted opts a select into rows that were soft deleted
func IncludeDeleted() repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereAllWithDeleted()
	}
}

func (r *EntityRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *EntityRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	prepareInsert(ctx, record)
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (r *EntityRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return r.UpdateTx(ctx, r.db, record, criteria...)
}

func (r *EntityRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	id := r.handlers.GetID(record)

	old, err := r.loadTx(ctx, tx, id)
	if err != nil {
		return record, err
	}

	prepareUpdate(ctx, old, record)

	if len(criteria) == 0 {
		criteria = []repository.UpdateCriteria{repository.UpdateByID(id.String())}
	}
	return r.Repository.UpdateTx(ctx, tx, record, criteria...)
}

func (r *EntityRepository[T]) Delete(ctx context.Context, record T) error {
	return r.DeleteTx(ctx, r.db, record)
}

// DeleteTx removes the record. Entities implementing SoftDeletable never lose
// their row: the delete is rewritten into an update that flags the row and
// stamps who deleted it.
func (r *EntityRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	old, err := r.loadTx(ctx, tx, r.handlers.GetID(record))
	if err != nil {
		return err
	}

	if prepareDelete(ctx, old) {
		_, err = tx.NewUpdate().Model(old).WherePK().Exec(ctx)
		return err
	}

	_, err = tx.NewDelete().Model(old).WherePK().Exec(ctx)
	return err
}

// GetByID loads one record within the default scope
func (r *EntityRepository[T]) GetByID(ctx context.Context, id uuid.UUID, criteria ...repository.SelectCriteria) (T, error) {
	return r.GetByIDTx(ctx, r.db, id, criteria...)
}

func (r *EntityRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID, criteria ...repository.SelectCriteria) (T, error) {
	record := r.handlers.NewRecord()

	q := tx.NewSelect().Model(record)
	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return record, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return record, err
	}

	return record, nil
}

func (r *EntityRepository[T]) loadTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (T, error) {
	return r.GetByIDTx(ctx, tx, id)
}
