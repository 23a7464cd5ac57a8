package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolhub/core/billing"
	"github.com/trezcool/schoolhub/core/user"
)

const allBilledMsg = "all users are already billed for this cycle"

type billingApi struct {
	kind     billing.Kind
	auth     *authenticator
	svc      *billing.Service
	validate *validator.Validate
}

func registerBillingAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc *billing.Service,
	validate *validator.Validate,
) {
	admin := roleMiddleware(user.RoleAdmin)

	for prefix, kind := range map[string]billing.Kind{"/fees": billing.KindFee, "/salaries": billing.KindSalary} {
		api := &billingApi{kind: kind, auth: auth, svc: svc, validate: validate}
		owner := user.RoleStudent
		if kind == billing.KindSalary {
			owner = user.RoleTeacher
		}

		bg := g.Group(prefix, jwt)
		bg.GET("/mine", api.mine, roleMiddleware(owner))
		bg.GET("", api.query, admin)
		bg.POST("/generate", api.generate, admin)
		bg.GET("/:id", api.retrieve, admin)
		bg.POST("/:id/pay", api.markPaid, admin)
		if kind == billing.KindSalary {
			bg.POST("/manual", api.recordManual, admin)
		}
	}
}

type (
	RecordsResponse struct {
		Records []billing.Record `json:"records"`
		Summary billing.Summary  `json:"summary"`
	}

	GenerateResponse struct {
		Title   string `json:"title"`
		Created int    `json:"created"`
		Message string `json:"message,omitempty"`
	}
)

func newRecordsResponse(records []billing.Record) RecordsResponse {
	if records == nil {
		records = []billing.Record{}
	}
	return RecordsResponse{Records: records, Summary: billing.Summarize(records)}
}

// Handlers

func (api *billingApi) query(ctx echo.Context) error {
	filter := new(billing.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, newRecordsResponse(nil))
	}
	filter.Clean()
	filter.Kind = api.kind

	records, err := api.svc.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrapf(err, "querying %s records", api.kind)
	}
	return ctx.JSON(http.StatusOK, newRecordsResponse(records))
}

func (api *billingApi) mine(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	records, err := api.svc.ForUser(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrapf(err, "listing %s records of user", api.kind)
	}
	return ctx.JSON(http.StatusOK, newRecordsResponse(records))
}

func (api *billingApi) retrieve(ctx echo.Context) error {
	r, err := api.svc.GetByID(ctx.Request().Context(), api.kind, ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "finding %s record", api.kind)
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *billingApi) generate(ctx echo.Context) error {
	var data billing.GenerateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	title, err := data.CycleTitle(api.kind, api.svc.Now())
	if err != nil {
		return errors.Wrap(err, "resolving cycle title")
	}

	n, err := api.svc.GenerateCycle(ctx.Request().Context(), api.kind, title)
	if err != nil {
		return errors.Wrapf(err, "generating %s cycle", api.kind)
	}
	res := GenerateResponse{Title: title, Created: n}
	if n == 0 {
		res.Message = allBilledMsg
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *billingApi) markPaid(ctx echo.Context) error {
	r, err := api.svc.MarkPaid(ctx.Request().Context(), api.kind, ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "marking %s record paid", api.kind)
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *billingApi) recordManual(ctx echo.Context) error {
	var data billing.NewManualRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewManualRecord")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.RecordManual(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording manual salary")
	}
	return ctx.JSON(http.StatusCreated, r)
}
