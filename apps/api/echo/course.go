package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolhub/core/course"
	"github.com/trezcool/schoolhub/core/user"
)

const thumbnailField = "thumbnail"

type courseApi struct {
	auth     *authenticator
	svc      *course.Service
	validate *validator.Validate
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	optionalJWT echo.MiddlewareFunc,
	auth *authenticator,
	svc *course.Service,
	validate *validator.Validate,
) {
	api := courseApi{auth: auth, svc: svc, validate: validate}
	admin := roleMiddleware(user.RoleAdmin)

	cg := g.Group("/courses")
	cg.GET("", api.list, optionalJWT)
	cg.GET("/targets", api.targets)
	cg.GET("/:id", api.retrieve, optionalJWT)
	cg.POST("", api.create, jwt, admin)
	cg.DELETE("/:id", api.destroy, jwt, admin)
}

// Handlers

func (api *courseApi) list(ctx echo.Context) error {
	viewer, err := api.auth.optionalUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	courses, err := api.svc.List(ctx.Request().Context(), viewer)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) targets(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, course.Targets())
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	return ctx.JSON(http.StatusOK, c)
}

// create accepts a JSON body, or a multipart form with an optional thumbnail image.
func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	thumbnail, done, err := formFile(ctx, thumbnailField)
	if err != nil {
		return err
	}
	defer done()

	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.svc.Create(ctx.Request().Context(), usr, data, thumbnail)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}
