package billing

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/user"
)

var (
	// errors
	ErrNotFound             = errors.New("record not found")
	ErrAlreadyPaid          = errors.New("record is already paid")
	ErrDuplicateRecord      = errors.New("a record with this title already exists for this user")
	ErrInvalidKind          = errors.New("invalid billing kind")
	ErrTitleRequired        = errors.New("a billing cycle title is required")
	ErrNotCommissionTeacher = errors.New("manual salaries can only be recorded for approved commission teachers")
)

type (
	Repository interface {
		// CreateRecords inserts records in one transaction, skipping those whose (kind, user, title) already exists.
		// It returns the records actually inserted.
		CreateRecords(ctx context.Context, records []Record) ([]Record, error)
		// CreateRecord inserts one record, ErrDuplicateRecord if its (kind, user, title) already exists.
		CreateRecord(ctx context.Context, r Record) (Record, error)
		GetRecordByID(ctx context.Context, kind Kind, id string) (Record, error)
		// FilterRecords returns the records matching filter, pending first then newest.
		FilterRecords(ctx context.Context, filter QueryFilter) ([]Record, error)
		// BilledUserIDs returns the ids of the users having a record of kind titled title.
		BilledUserIDs(ctx context.Context, kind Kind, title string) ([]string, error)
		// MarkRecordPaid sets the record as paid at paidAt, only if it is still pending.
		// It returns ErrAlreadyPaid otherwise.
		MarkRecordPaid(ctx context.Context, kind Kind, id string, paidAt time.Time) (Record, error)
	}

	// Users is what billing needs to know about users.
	Users interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		Query(ctx context.Context, filter user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error)
	}

	Service struct {
		conf  core.BillingConfig
		repo  Repository
		users Users
	}
)

func NewService(conf *core.Config, repo Repository, users Users) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
	).CheckAndPanic()

	bc := conf.Billing
	if bc.Location == nil {
		bc.Location = time.UTC
	}
	return &Service{conf: bc, repo: repo, users: users}
}

// Now returns the current time in the billing time zone.
func (svc *Service) Now() time.Time {
	return core.NowFunc().In(svc.conf.Location)
}

func (svc *Service) eligibleUsers(ctx context.Context, kind Kind) ([]user.User, error) {
	approved := true
	filter := user.QueryFilter{IsApproved: &approved}
	switch kind {
	case KindFee:
		filter.Roles = []string{user.RoleStudent}
	case KindSalary:
		filter.Roles = []string{user.RoleTeacher}
		filter.SalaryType = user.SalaryFixed
	default:
		return nil, ErrInvalidKind
	}
	return svc.users.Query(ctx, filter)
}

func (svc *Service) newRecord(kind Kind, usr user.User, title string, now time.Time) Record {
	r := Record{
		Kind:      kind,
		UserID:    usr.ID,
		UserName:  usr.Name,
		UserEmail: usr.Email,
		UserClass: usr.Class(),
		Title:     title,
		Status:    StatusPending,
		Date:      truncateDay(now),
		CreatedAt: now.UTC(),
	}
	switch kind {
	case KindFee:
		r.Amount = usr.MonthlyFeeAmount
		if r.Amount <= 0 {
			r.Amount = svc.conf.DefaultFeeAmount
		}
	case KindSalary:
		r.Amount = usr.Salary
	}
	return r
}

// GenerateCycle creates one pending record of kind titled title for each eligible user not billed yet:
// approved students for fees, approved fixed-salary teachers for salaries.
// Records are created as one batch and the number of created records is returned.
// Running it again for the same cycle creates nothing.
func (svc *Service) GenerateCycle(ctx context.Context, kind Kind, title string) (int, error) {
	if !kind.IsValid() {
		return 0, ErrInvalidKind
	}
	title = core.CleanString(title)
	if title == "" {
		return 0, ErrTitleRequired
	}

	var (
		eligible []user.User
		billed   []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		eligible, err = svc.eligibleUsers(gctx, kind)
		return errors.Wrap(err, "querying eligible users")
	})
	g.Go(func() (err error) {
		billed, err = svc.repo.BilledUserIDs(gctx, kind, title)
		return errors.Wrap(err, "querying billed users")
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	billedSet := make(map[string]struct{}, len(billed))
	for _, id := range billed {
		billedSet[id] = struct{}{}
	}

	now := svc.Now()
	records := make([]Record, 0, len(eligible))
	for _, usr := range eligible {
		if _, ok := billedSet[usr.ID]; ok {
			continue
		}
		records = append(records, svc.newRecord(kind, usr, title, now))
	}
	if len(records) == 0 {
		return 0, nil
	}

	created, err := svc.repo.CreateRecords(ctx, records)
	if err != nil {
		return 0, errors.Wrap(err, "creating records")
	}
	return len(created), nil
}

// HasCycle reports whether any generated record of kind titled title exists.
// Manual salaries do not count.
func (svc *Service) HasCycle(ctx context.Context, kind Kind, title string) (bool, error) {
	records, err := svc.repo.FilterRecords(ctx, QueryFilter{Kind: kind, Title: title})
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if !r.Manual {
			return true, nil
		}
	}
	return false, nil
}

// AutoGenerate generates the current cycles that are due at now:
// salaries from the salary auto day of the month, fees from the fee auto day (when enabled),
// as long as no record of the current cycle exists yet.
// It returns the number of created records per kind.
func (svc *Service) AutoGenerate(ctx context.Context, now time.Time) (map[Kind]int, error) {
	now = now.In(svc.conf.Location)
	counts := make(map[Kind]int)

	for _, job := range []struct {
		kind Kind
		day  int
	}{
		{kind: KindSalary, day: svc.conf.SalaryAutoDay},
		{kind: KindFee, day: svc.conf.FeeAutoDay},
	} {
		if job.day <= 0 || now.Day() < job.day {
			continue
		}
		title := CycleTitle(job.kind, now)
		exists, err := svc.HasCycle(ctx, job.kind, title)
		if err != nil {
			return counts, errors.Wrapf(err, "checking %s cycle", job.kind)
		}
		if exists {
			continue
		}
		n, err := svc.GenerateCycle(ctx, job.kind, title)
		if err != nil {
			return counts, errors.Wrapf(err, "generating %s cycle", job.kind)
		}
		counts[job.kind] = n
	}
	return counts, nil
}

// MarkPaid moves a pending record to paid. Paid records are final.
func (svc *Service) MarkPaid(ctx context.Context, kind Kind, id string) (Record, error) {
	if !kind.IsValid() {
		return Record{}, ErrInvalidKind
	}
	return svc.repo.MarkRecordPaid(ctx, kind, id, core.NowFunc().UTC())
}

// RecordManual records a salary for a commission teacher.
func (svc *Service) RecordManual(ctx context.Context, nm NewManualRecord) (Record, error) {
	teacher, err := svc.users.GetByID(ctx, nm.UserID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Record{}, core.NewFieldError("user_id", ErrNotCommissionTeacher)
		}
		return Record{}, errors.Wrap(err, "finding teacher")
	}
	if !teacher.IsTeacher() || !teacher.IsApproved || teacher.SalaryType != user.SalaryCommission {
		return Record{}, core.NewFieldError("user_id", ErrNotCommissionTeacher)
	}

	now := svc.Now()
	r := svc.newRecord(KindSalary, teacher, nm.Title, now)
	r.Amount = nm.Amount
	r.Manual = true
	if nm.Status == StatusPaid {
		r.Status = StatusPaid
		r.PaidAt = null.TimeFrom(now.UTC())
	}

	r, err = svc.repo.CreateRecord(ctx, r)
	if err != nil {
		if errors.Cause(err) == ErrDuplicateRecord {
			return Record{}, core.NewFieldError("title", ErrDuplicateRecord)
		}
		return Record{}, errors.Wrap(err, "creating record")
	}
	return r, nil
}

func (svc *Service) GetByID(ctx context.Context, kind Kind, id string) (Record, error) {
	return svc.repo.GetRecordByID(ctx, kind, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Record, error) {
	if !filter.Kind.IsValid() {
		return nil, ErrInvalidKind
	}
	return svc.repo.FilterRecords(ctx, filter)
}

// ForUser returns the fees of a student or the salaries of a teacher.
func (svc *Service) ForUser(ctx context.Context, usr user.User) ([]Record, error) {
	var kind Kind
	switch {
	case usr.IsStudent():
		kind = KindFee
	case usr.IsTeacher():
		kind = KindSalary
	default:
		return []Record{}, nil
	}
	return svc.repo.FilterRecords(ctx, QueryFilter{Kind: kind, UserID: usr.ID})
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
