package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/billing"
	"github.com/trezcool/schoolhub/core/user"
)

var (
	userColumns = []string{
		"id", "role", "name", "email", "phone", "password_hash", "is_approved",
		"standard", "stream", "enrolled_subjects", "monthly_fee_amount",
		"classes_taught", "subjects", "salary", "salary_type",
		"created_at", "updated_at", "last_login",
	}

	userOrderings = map[string]struct{}{
		"name": {}, "email": {}, "role": {}, "standard": {}, "created_at": {}, "updated_at": {}, "last_login": {},
	}
)

type userRow struct {
	ID               string         `db:"id"`
	Role             string         `db:"role"`
	Name             string         `db:"name"`
	Email            string         `db:"email"`
	Phone            string         `db:"phone"`
	PasswordHash     []byte         `db:"password_hash"`
	IsApproved       bool           `db:"is_approved"`
	Standard         string         `db:"standard"`
	Stream           string         `db:"stream"`
	EnrolledSubjects pq.StringArray `db:"enrolled_subjects"`
	MonthlyFeeAmount int64          `db:"monthly_fee_amount"`
	ClassesTaught    pq.StringArray `db:"classes_taught"`
	Subjects         pq.StringArray `db:"subjects"`
	Salary           int64          `db:"salary"`
	SalaryType       string         `db:"salary_type"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	LastLogin        null.Time      `db:"last_login"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:               r.ID,
		Role:             r.Role,
		Name:             r.Name,
		Email:            r.Email,
		Phone:            r.Phone,
		PasswordHash:     r.PasswordHash,
		IsApproved:       r.IsApproved,
		Standard:         r.Standard,
		Stream:           r.Stream,
		EnrolledSubjects: []string(r.EnrolledSubjects),
		MonthlyFeeAmount: r.MonthlyFeeAmount,
		ClassesTaught:    []string(r.ClassesTaught),
		Subjects:         []string(r.Subjects),
		Salary:           r.Salary,
		SalaryType:       r.SalaryType,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
		LastLogin:        r.LastLogin,
	}
}

func stringArray(ss []string) pq.StringArray {
	if ss == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(ss)
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	q := psql.Select("COUNT(*)").From("users").Where(sq.Eq{"email": email})
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q = q.Where(sq.NotEq{"id": ids})
	}

	var n int
	if err := get(ctx, repo.db, &n, q); err != nil {
		return errors.Wrap(err, "checking email")
	}
	if n > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	q := psql.Insert("users").Columns(userColumns...).Values(
		usr.ID, usr.Role, usr.Name, usr.Email, usr.Phone, usr.PasswordHash, usr.IsApproved,
		usr.Standard, usr.Stream, stringArray(usr.EnrolledSubjects), usr.MonthlyFeeAmount,
		stringArray(usr.ClassesTaught), stringArray(usr.Subjects), usr.Salary, usr.SalaryType,
		usr.CreatedAt, usr.UpdatedAt, usr.LastLogin,
	)
	if _, err := exec(ctx, repo.db, q); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) getBy(ctx context.Context, where sq.Eq) (user.User, error) {
	var row userRow
	if err := get(ctx, repo.db, &row, psql.Select(userColumns...).From("users").Where(where)); err != nil {
		return user.User{}, notFoundOr(err, user.ErrNotFound)
	}
	return row.user(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.getBy(ctx, sq.Eq{"id": id})
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getBy(ctx, sq.Eq{"email": email})
}

func (repo *userRepository) FilterUsers(
	ctx context.Context, filter user.QueryFilter, orderings ...core.DBOrdering,
) ([]user.User, error) {
	q := psql.Select(userColumns...).From("users")
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"email": pattern},
			sq.ILike{"phone": pattern},
		})
	}
	if len(filter.Roles) > 0 {
		q = q.Where(sq.Eq{"role": filter.Roles})
	}
	if len(filter.Standards) > 0 {
		q = q.Where(sq.Eq{"standard": filter.Standards})
	}
	if filter.IsApproved != nil {
		q = q.Where(sq.Eq{"is_approved": *filter.IsApproved})
	}
	if filter.SalaryType != "" {
		q = q.Where(sq.Eq{"salary_type": filter.SalaryType})
	}
	if !filter.CreatedFrom.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
	}
	if !filter.CreatedTo.IsZero() {
		q = q.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
	}

	for _, ord := range orderings {
		if _, ok := userOrderings[ord.Field]; ok {
			q = q.OrderBy(ord.String())
		}
	}
	q = q.OrderBy("created_at DESC")

	var rows []userRow
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := psql.Update("users").SetMap(map[string]interface{}{
		"name":               usr.Name,
		"email":              usr.Email,
		"phone":              usr.Phone,
		"standard":           usr.Standard,
		"stream":             usr.Stream,
		"enrolled_subjects":  stringArray(usr.EnrolledSubjects),
		"monthly_fee_amount": usr.MonthlyFeeAmount,
		"classes_taught":     stringArray(usr.ClassesTaught),
		"subjects":           stringArray(usr.Subjects),
		"salary":             usr.Salary,
		"salary_type":        usr.SalaryType,
		"updated_at":         usr.UpdatedAt,
		"last_login":         usr.LastLogin,
	}).Where(sq.Eq{"id": usr.ID})
	if usr.PasswordHash != nil {
		q = q.Set("password_hash", usr.PasswordHash)
	}

	if err := execAffecting(ctx, repo.db, q, user.ErrNotFound); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) ApproveUser(ctx context.Context, usr user.User) (user.User, error) {
	q := psql.Update("users").SetMap(map[string]interface{}{
		"is_approved":        true,
		"monthly_fee_amount": usr.MonthlyFeeAmount,
		"salary_type":        usr.SalaryType,
		"salary":             usr.Salary,
		"updated_at":         usr.UpdatedAt,
	}).Where(sq.Eq{"id": usr.ID, "is_approved": false})

	if err := execAffecting(ctx, repo.db, q, user.ErrAlreadyApproved); err != nil {
		if err == user.ErrAlreadyApproved {
			// tell a missing user apart from an approved one
			if _, gErr := repo.GetUserByID(ctx, usr.ID); gErr != nil {
				return user.User{}, gErr
			}
			return user.User{}, err
		}
		return user.User{}, errors.Wrap(err, "approving user")
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) DeleteUser(ctx context.Context, usr user.User) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var cascade []sq.DeleteBuilder
		switch usr.Role {
		case user.RoleStudent:
			cascade = []sq.DeleteBuilder{
				psql.Delete("billing_records").Where(sq.Eq{"kind": string(billing.KindFee), "user_id": usr.ID}),
				psql.Delete("exam_results").Where(sq.Eq{"student_id": usr.ID}),
			}
		case user.RoleTeacher:
			cascade = []sq.DeleteBuilder{
				psql.Delete("assignments").Where(sq.Eq{"teacher_id": usr.ID}),
				psql.Delete("attendance").Where(sq.Eq{"teacher_id": usr.ID}),
			}
		}
		for _, q := range cascade {
			if _, err := exec(ctx, tx, q); err != nil {
				return errors.Wrap(err, "deleting user records")
			}
		}

		if err := execAffecting(ctx, tx, psql.Delete("users").Where(sq.Eq{"id": usr.ID}), user.ErrNotFound); err != nil {
			return errors.Wrap(err, "deleting user")
		}
		return nil
	})
}
