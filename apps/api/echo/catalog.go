package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/enrollment"
)

func registerCatalogAPI(g *echo.Group) {
	cg := g.Group("/catalog")
	cg.GET("", getCatalog)
	cg.GET("/subjects", resolveSubjects)
}

func getCatalog(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, enrollment.GetCatalog())
}

type SubjectsRequest struct {
	Role     string   `query:"role"`
	Standard string   `query:"standard"`
	Stream   string   `query:"stream"`
	Classes  []string `query:"class"`
}

// resolveSubjects returns the subjects a student of standard (and stream) can enroll in,
// or the subjects a teacher of the classes can teach.
func resolveSubjects(ctx echo.Context) error {
	var data SubjectsRequest
	if err := ctx.Bind(&data); err != nil {
		return ctx.JSON(http.StatusOK, []string{})
	}

	role := enrollment.Role(core.CleanString(data.Role, true /* lower */))
	if role == enrollment.RoleTeacher {
		classes := core.CleanStrings(data.Classes)
		if len(classes) == 0 && data.Standard != "" {
			classes = []string{core.CleanString(data.Standard)}
		}
		return ctx.JSON(http.StatusOK, enrollment.ResolveTeacherSubjects(classes))
	}
	return ctx.JSON(http.StatusOK, enrollment.ResolveSubjects(
		core.CleanString(data.Standard), core.CleanString(data.Stream), enrollment.RoleStudent,
	))
}
