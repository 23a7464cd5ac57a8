package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schoolhub/core/billing"
)

type billingRepository struct {
	db *DB
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db *DB) billing.Repository {
	return &billingRepository{db: db}
}

// exists must be called with the lock held.
func (repo *billingRepository) exists(r billing.Record) bool {
	for _, rec := range repo.db.records {
		if rec.Kind == r.Kind && rec.UserID == r.UserID && rec.Title == r.Title {
			return true
		}
	}
	return false
}

func (repo *billingRepository) CreateRecords(_ context.Context, records []billing.Record) ([]billing.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]billing.Record, 0, len(records))
	for _, r := range records {
		if repo.exists(r) {
			continue
		}
		r.ID = newID()
		stored := r
		repo.db.records[r.ID] = &stored
		created = append(created, r)
	}
	return created, nil
}

func (repo *billingRepository) CreateRecord(_ context.Context, r billing.Record) (billing.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.exists(r) {
		return billing.Record{}, billing.ErrDuplicateRecord
	}
	r.ID = newID()
	stored := r
	repo.db.records[r.ID] = &stored
	return r, nil
}

func (repo *billingRepository) GetRecordByID(_ context.Context, kind billing.Kind, id string) (billing.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.records[id]; ok && r.Kind == kind {
		return *r, nil
	}
	return billing.Record{}, billing.ErrNotFound
}

func (repo *billingRepository) FilterRecords(_ context.Context, filter billing.QueryFilter) ([]billing.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]billing.Record, 0)
	for _, r := range repo.db.records {
		switch {
		case filter.Kind != "" && r.Kind != filter.Kind,
			filter.Status != "" && r.Status != filter.Status,
			filter.Class != "" && r.UserClass != filter.Class,
			filter.UserID != "" && r.UserID != filter.UserID,
			filter.Title != "" && r.Title != filter.Title,
			filter.Search != "" && !containsFold(r.UserName, filter.Search) && !containsFold(r.UserEmail, filter.Search):
			continue
		}
		records = append(records, *r)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].IsPaid() != records[j].IsPaid() {
			return !records[i].IsPaid()
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (repo *billingRepository) BilledUserIDs(_ context.Context, kind billing.Kind, title string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := make([]string, 0)
	for _, r := range repo.db.records {
		if r.Kind == kind && r.Title == title {
			ids = append(ids, r.UserID)
		}
	}
	return ids, nil
}

func (repo *billingRepository) MarkRecordPaid(
	_ context.Context, kind billing.Kind, id string, paidAt time.Time,
) (billing.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	r, ok := repo.db.records[id]
	if !ok || r.Kind != kind {
		return billing.Record{}, billing.ErrNotFound
	}
	if r.IsPaid() {
		return billing.Record{}, billing.ErrAlreadyPaid
	}
	r.Status = billing.StatusPaid
	r.PaidAt = null.TimeFrom(paidAt)
	return *r, nil
}
