package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/billing"
)

var recordColumns = []string{
	"id", "kind", "user_id", "user_name", "user_email", "user_class",
	"title", "amount", "status", "manual", "date", "created_at", "paid_at",
}

const skipBilledCycle = "ON CONFLICT ON CONSTRAINT billing_records_cycle_key DO NOTHING RETURNING id"

type recordRow struct {
	ID        string    `db:"id"`
	Kind      string    `db:"kind"`
	UserID    string    `db:"user_id"`
	UserName  string    `db:"user_name"`
	UserEmail string    `db:"user_email"`
	UserClass string    `db:"user_class"`
	Title     string    `db:"title"`
	Amount    int64     `db:"amount"`
	Status    string    `db:"status"`
	Manual    bool      `db:"manual"`
	Date      time.Time `db:"date"`
	CreatedAt time.Time `db:"created_at"`
	PaidAt    null.Time `db:"paid_at"`
}

func (r recordRow) record() billing.Record {
	return billing.Record{
		ID:        r.ID,
		Kind:      billing.Kind(r.Kind),
		UserID:    r.UserID,
		UserName:  r.UserName,
		UserEmail: r.UserEmail,
		UserClass: r.UserClass,
		Title:     r.Title,
		Amount:    r.Amount,
		Status:    billing.Status(r.Status),
		Manual:    r.Manual,
		Date:      r.Date,
		CreatedAt: r.CreatedAt.UTC(),
		PaidAt:    r.PaidAt,
	}
}

func recordValues(r billing.Record) []interface{} {
	return []interface{}{
		r.ID, string(r.Kind), r.UserID, r.UserName, r.UserEmail, r.UserClass,
		r.Title, r.Amount, string(r.Status), r.Manual, r.Date, r.CreatedAt, r.PaidAt,
	}
}

type billingRepository struct {
	db core.DB
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db core.DB) billing.Repository {
	return &billingRepository{db: db}
}

// CreateRecords inserts every record in one transaction, in batches.
// Records of an already billed cycle are skipped by the cycle key.
func (repo *billingRepository) CreateRecords(ctx context.Context, records []billing.Record) ([]billing.Record, error) {
	byID := make(map[string]billing.Record, len(records))
	for i := range records {
		records[i].ID = newID()
		byID[records[i].ID] = records[i]
	}

	created := make([]billing.Record, 0, len(records))
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for start := 0; start < len(records); start += insertBatchSize {
			end := start + insertBatchSize
			if end > len(records) {
				end = len(records)
			}

			q := psql.Insert("billing_records").Columns(recordColumns...)
			for _, r := range records[start:end] {
				q = q.Values(recordValues(r)...)
			}

			var ids []string
			if err := selectRows(ctx, tx, &ids, q.Suffix(skipBilledCycle)); err != nil {
				return errors.Wrap(err, "inserting records")
			}
			for _, id := range ids {
				created = append(created, byID[id])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *billingRepository) CreateRecord(ctx context.Context, r billing.Record) (billing.Record, error) {
	r.ID = newID()
	q := psql.Insert("billing_records").Columns(recordColumns...).Values(recordValues(r)...)
	if _, err := exec(ctx, repo.db, q); err != nil {
		if isUniqueViolation(err) {
			return billing.Record{}, billing.ErrDuplicateRecord
		}
		return billing.Record{}, errors.Wrap(err, "inserting record")
	}
	return r, nil
}

func (repo *billingRepository) GetRecordByID(ctx context.Context, kind billing.Kind, id string) (billing.Record, error) {
	var row recordRow
	q := psql.Select(recordColumns...).From("billing_records").Where(sq.Eq{"id": id, "kind": string(kind)})
	if err := get(ctx, repo.db, &row, q); err != nil {
		return billing.Record{}, notFoundOr(err, billing.ErrNotFound)
	}
	return row.record(), nil
}

func (repo *billingRepository) FilterRecords(ctx context.Context, filter billing.QueryFilter) ([]billing.Record, error) {
	q := psql.Select(recordColumns...).From("billing_records")

	eq := sq.Eq{}
	if filter.Kind != "" {
		eq["kind"] = string(filter.Kind)
	}
	if filter.Status != "" {
		eq["status"] = string(filter.Status)
	}
	if filter.Class != "" {
		eq["user_class"] = filter.Class
	}
	if filter.UserID != "" {
		eq["user_id"] = filter.UserID
	}
	if filter.Title != "" {
		eq["title"] = filter.Title
	}
	if len(eq) > 0 {
		q = q.Where(eq)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(sq.Or{sq.ILike{"user_name": pattern}, sq.ILike{"user_email": pattern}})
	}
	q = q.OrderBy("(status = 'Paid') ASC", "created_at DESC")

	var rows []recordRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting records")
	}
	records := make([]billing.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

func (repo *billingRepository) BilledUserIDs(ctx context.Context, kind billing.Kind, title string) ([]string, error) {
	ids := make([]string, 0)
	q := psql.Select("user_id").From("billing_records").Where(sq.Eq{"kind": string(kind), "title": title})
	if err := selectRows(ctx, repo.db, &ids, q); err != nil {
		return nil, errors.Wrap(err, "selecting billed users")
	}
	return ids, nil
}

func (repo *billingRepository) MarkRecordPaid(
	ctx context.Context, kind billing.Kind, id string, paidAt time.Time,
) (billing.Record, error) {
	q := psql.Update("billing_records").
		Set("status", string(billing.StatusPaid)).
		Set("paid_at", paidAt).
		Where(sq.Eq{"id": id, "kind": string(kind), "status": string(billing.StatusPending)})

	if err := execAffecting(ctx, repo.db, q, billing.ErrAlreadyPaid); err != nil {
		if err != billing.ErrAlreadyPaid {
			return billing.Record{}, errors.Wrap(err, "marking record paid")
		}
		if _, gErr := repo.GetRecordByID(ctx, kind, id); gErr != nil {
			return billing.Record{}, gErr
		}
		return billing.Record{}, err
	}
	return repo.GetRecordByID(ctx, kind, id)
}
