package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/billing"
	"github.com/trezcool/schoolhub/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func cloneUser(u *user.User) user.User {
	usr := *u
	usr.EnrolledSubjects = copyStrings(u.EnrolledSubjects)
	usr.ClassesTaught = copyStrings(u.ClassesTaught)
	usr.Subjects = copyStrings(u.Subjects)
	return usr
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, cloneUser(u))
	}
	return users
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers ...user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]struct{}, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = struct{}{}
	}
	for _, u := range repo.db.users {
		if _, ok := excluded[u.ID]; !ok && u.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, u := range repo.db.users {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	usr.ID = newID()
	stored := cloneUser(&usr)
	repo.db.users[usr.ID] = &stored
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if u, ok := repo.db.users[id]; ok {
		return cloneUser(u), nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, u := range repo.db.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) FilterUsers(
	_ context.Context, filter user.QueryFilter, orderings ...core.DBOrdering,
) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0)
	for _, u := range repo.query() {
		if filter.Search != "" &&
			!containsFold(u.Name, filter.Search) &&
			!containsFold(u.Email, filter.Search) &&
			!containsFold(u.Phone, filter.Search) {
			continue
		}
		if !matchesAny(u.Role, filter.Roles) || !matchesAny(u.Standard, filter.Standards) {
			continue
		}
		if filter.IsApproved != nil && u.IsApproved != *filter.IsApproved {
			continue
		}
		if filter.SalaryType != "" && u.SalaryType != filter.SalaryType {
			continue
		}
		if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom.UTC()) {
			continue
		}
		if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo.UTC()) {
			continue
		}
		users = append(users, u)
	}

	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(users, func(i, j int) bool { return lessUser(users[i], users[j], orderings) })
	return users, nil
}

func lessUser(a, b user.User, orderings []core.DBOrdering) bool {
	for _, ord := range orderings {
		var cmp int
		switch ord.Field {
		case "name":
			cmp = strings.Compare(a.Name, b.Name)
		case "email":
			cmp = strings.Compare(a.Email, b.Email)
		case "standard":
			cmp = strings.Compare(a.Standard, b.Standard)
		case "role":
			cmp = strings.Compare(a.Role, b.Role)
		case "updated_at":
			cmp = a.UpdatedAt.Compare(b.UpdatedAt)
		case "created_at":
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		}
		if cmp == 0 {
			continue
		}
		if ord.Ascending {
			return cmp < 0
		}
		return cmp > 0
	}
	return false
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.IsApproved = orig.IsApproved
	if usr.PasswordHash == nil {
		usr.PasswordHash = orig.PasswordHash
	}
	stored := cloneUser(&usr)
	repo.db.users[usr.ID] = &stored
	return usr, nil
}

func (repo *userRepository) ApproveUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if orig.IsApproved {
		return user.User{}, user.ErrAlreadyApproved
	}
	orig.IsApproved = true
	orig.MonthlyFeeAmount = usr.MonthlyFeeAmount
	orig.SalaryType = usr.SalaryType
	orig.Salary = usr.Salary
	orig.UpdatedAt = usr.UpdatedAt
	return cloneUser(orig), nil
}

func (repo *userRepository) DeleteUser(_ context.Context, usr user.User) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.ErrNotFound
	}
	delete(repo.db.users, usr.ID)

	switch usr.Role {
	case user.RoleStudent:
		for id, r := range repo.db.records {
			if r.Kind == billing.KindFee && r.UserID == usr.ID {
				delete(repo.db.records, id)
			}
		}
		for id, r := range repo.db.examResults {
			if r.StudentID == usr.ID {
				delete(repo.db.examResults, id)
			}
		}
	case user.RoleTeacher:
		for id, a := range repo.db.assignments {
			if a.TeacherID == usr.ID {
				delete(repo.db.assignments, id)
			}
		}
		for id, a := range repo.db.attendance {
			if a.TeacherID == usr.ID {
				delete(repo.db.attendance, id)
			}
		}
	}
	return nil
}
