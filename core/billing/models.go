// Package billing generates the monthly student fees and teacher salaries
// and tracks their payment status.
package billing

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/schoolhub/core"
)

type (
	Kind   string
	Status string
)

const (
	KindFee    Kind = "fee"
	KindSalary Kind = "salary"

	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"

	monthLayout = "2006-01"
)

var (
	Kinds = []Kind{KindFee, KindSalary}

	titlePrefixes = map[Kind]string{
		KindFee:    "Tuition Fee - ",
		KindSalary: "Salary - ",
	}
)

func (k Kind) IsValid() bool {
	_, ok := titlePrefixes[k]
	return ok
}

// Record is a fee of a student or a salary of a teacher for one billing cycle.
type Record struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	UserClass string    `json:"user_class"`
	Title     string    `json:"title"`
	Amount    int64     `json:"amount"`
	Status    Status    `json:"status"`
	Manual    bool      `json:"manual"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at"` // UTC
	PaidAt    null.Time `json:"paid_at"`    // UTC
}

func (r Record) IsPaid() bool { return r.Status == StatusPaid }

// CycleTitle returns the default title of the billing cycle of kind containing t,
// e.g. "Tuition Fee - March 2025" or "Salary - March 2025".
func CycleTitle(kind Kind, t time.Time) string {
	return titlePrefixes[kind] + t.Format("January 2006")
}

// GenerateRequest selects the billing cycle to generate: an explicit title, a month (YYYY-MM),
// or the current month when both are empty.
type GenerateRequest struct {
	Title string `json:"title" query:"title"`
	Month string `json:"month" query:"month" validate:"omitempty,datetime=2006-01"`
}

func (gr *GenerateRequest) Validate(validate *validator.Validate) error {
	gr.Title = core.CleanString(gr.Title)
	gr.Month = core.CleanString(gr.Month)
	return validate.Struct(gr)
}

// CycleTitle resolves the title of the requested cycle.
func (gr GenerateRequest) CycleTitle(kind Kind, now time.Time) (string, error) {
	switch {
	case gr.Title != "":
		return gr.Title, nil
	case gr.Month != "":
		t, err := time.ParseInLocation(monthLayout, gr.Month, now.Location())
		if err != nil {
			return "", errors.Wrap(err, "parsing month")
		}
		return CycleTitle(kind, t), nil
	}
	return CycleTitle(kind, now), nil
}

// NewManualRecord is a salary recorded by hand for a commission teacher.
type NewManualRecord struct {
	UserID string `json:"user_id" validate:"required"`
	Title  string `json:"title" validate:"required"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Status Status `json:"status" validate:"omitempty,oneof=Pending Paid"`
}

func (nm *NewManualRecord) Validate(validate *validator.Validate) error {
	nm.UserID = core.CleanString(nm.UserID)
	nm.Title = core.CleanString(nm.Title)
	if nm.Status == "" {
		nm.Status = StatusPending
	}
	return validate.Struct(nm)
}

type QueryFilter struct {
	Kind   Kind   `query:"-"`
	Status Status `query:"status"`
	Class  string `query:"class"`
	UserID string `query:"user_id"`
	Title  string `query:"title"`
	Search string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = Status(core.CleanString(string(qf.Status)))
	qf.Class = core.CleanString(qf.Class)
	qf.UserID = core.CleanString(qf.UserID)
	qf.Title = core.CleanString(qf.Title)
	qf.Search = core.CleanString(qf.Search)
}

// Summary totals the amounts of a list of records.
type Summary struct {
	Count   int   `json:"count"`
	Total   int64 `json:"total"`
	Paid    int64 `json:"paid"`
	Pending int64 `json:"pending"`
}

func Summarize(records []Record) Summary {
	s := Summary{Count: len(records)}
	for _, r := range records {
		s.Total += r.Amount
		if r.IsPaid() {
			s.Paid += r.Amount
		} else {
			s.Pending += r.Amount
		}
	}
	return s
}
