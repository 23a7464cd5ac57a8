package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/classroom"
	"github.com/trezcool/schoolhub/core/user"
)

const attachmentField = "attachment"

type classroomApi struct {
	auth     *authenticator
	svc      *classroom.Service
	validate *validator.Validate
}

func registerClassroomAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc *classroom.Service,
	validate *validator.Validate,
) {
	api := classroomApi{auth: auth, svc: svc, validate: validate}
	admin := roleMiddleware(user.RoleAdmin)
	teacher := roleMiddleware(user.RoleTeacher)
	student := roleMiddleware(user.RoleStudent)

	ng := g.Group("/notices", jwt)
	ng.GET("", api.notices)
	ng.POST("", api.postNotice, admin)
	ng.DELETE("/:id", api.deleteNotice, admin)

	cg := g.Group("/class-notices", jwt)
	cg.GET("", api.classNotices)
	cg.POST("", api.postClassNotice, teacher)

	for prefix, kind := range map[string]classroom.AssignmentKind{
		"/homework":  classroom.KindHomework,
		"/materials": classroom.KindMaterial,
	} {
		kind := kind
		ag := g.Group(prefix, jwt)
		ag.GET("", func(ctx echo.Context) error { return api.assignments(ctx, kind) })
		ag.POST("", func(ctx echo.Context) error { return api.postAssignment(ctx, kind) }, teacher)
		ag.DELETE("/:id", func(ctx echo.Context) error { return api.deleteAssignment(ctx, kind) },
			roleMiddleware(user.RoleTeacher, user.RoleAdmin))
	}

	atg := g.Group("/attendance", jwt)
	atg.GET("", api.attendance, roleMiddleware(user.RoleTeacher, user.RoleAdmin))
	atg.POST("", api.submitAttendance, teacher)
	atg.GET("/mine", api.myAttendance, student)
	atg.GET("/:class/:subject/:date", api.getAttendance, roleMiddleware(user.RoleTeacher, user.RoleAdmin))

	lg := g.Group("/leaves", jwt)
	lg.GET("", api.leaves, roleMiddleware(user.RoleTeacher, user.RoleAdmin))
	lg.POST("", api.requestLeave, roleMiddleware(user.RoleStudent, user.RoleTeacher))
	lg.GET("/mine", api.myLeaves)

	eg := g.Group("/exams", jwt)
	eg.GET("", api.examResults)
	eg.POST("", api.publishExam, teacher)
	eg.GET("/students", api.examStudents, teacher)
}

// Notices

func (api *classroomApi) notices(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	notices, err := api.svc.Notices(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing notices")
	}
	return ctx.JSON(http.StatusOK, notices)
}

func (api *classroomApi) postNotice(ctx echo.Context) error {
	var data classroom.NewNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotice")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	n, err := api.svc.PostNotice(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "posting notice")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *classroomApi) deleteNotice(ctx echo.Context) error {
	if err := api.svc.DeleteNotice(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Class notices

func (api *classroomApi) classNotices(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	notices, err := api.svc.ClassNotices(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing class notices")
	}
	return ctx.JSON(http.StatusOK, notices)
}

func (api *classroomApi) postClassNotice(ctx echo.Context) error {
	var data classroom.NewClassNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClassNotice")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	n, err := api.svc.PostClassNotice(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "posting class notice")
	}
	return ctx.JSON(http.StatusCreated, n)
}

// Homework & materials

func (api *classroomApi) assignments(ctx echo.Context, kind classroom.AssignmentKind) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	assignments, err := api.svc.Assignments(ctx.Request().Context(), usr, kind, ctx.QueryParam("subject"))
	if err != nil {
		return errors.Wrapf(err, "listing %s", kind)
	}
	return ctx.JSON(http.StatusOK, assignments)
}

// postAssignment accepts a JSON body, or a multipart form with an optional attachment.
func (api *classroomApi) postAssignment(ctx echo.Context, kind classroom.AssignmentKind) error {
	var data classroom.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	attachment, done, err := formFile(ctx, attachmentField)
	if err != nil {
		return err
	}
	defer done()

	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, err := api.svc.PostAssignment(ctx.Request().Context(), usr, kind, data, attachment)
	if err != nil {
		return errors.Wrapf(err, "posting %s", kind)
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *classroomApi) deleteAssignment(ctx echo.Context, kind classroom.AssignmentKind) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteAssignment(ctx.Request().Context(), usr, kind, ctx.Param("id")); err != nil {
		return errors.Wrapf(err, "deleting %s", kind)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Attendance

func (api *classroomApi) attendance(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	roll, err := api.svc.Attendance(ctx.Request().Context(), usr, ctx.QueryParam("class_id"), ctx.QueryParam("subject"))
	if err != nil {
		return errors.Wrap(err, "listing attendance")
	}
	return ctx.JSON(http.StatusOK, roll)
}

func (api *classroomApi) getAttendance(ctx echo.Context) error {
	date, err := time.Parse(classroom.DateLayout, ctx.Param("date"))
	if err != nil {
		return errHttpNotFound
	}
	a, err := api.svc.GetAttendance(ctx.Request().Context(), ctx.Param("class"), ctx.Param("subject"), date)
	if err != nil {
		return errors.Wrap(err, "finding attendance")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *classroomApi) submitAttendance(ctx echo.Context) error {
	var data classroom.NewAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttendance")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	a, err := api.svc.SubmitAttendance(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting attendance")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *classroomApi) myAttendance(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	statuses, err := api.svc.StudentAttendance(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing student attendance")
	}
	return ctx.JSON(http.StatusOK, statuses)
}

// Leaves

func (api *classroomApi) leaves(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	leaves, err := api.svc.Leaves(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing leaves")
	}
	return ctx.JSON(http.StatusOK, leaves)
}

func (api *classroomApi) myLeaves(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	leaves, err := api.svc.MyLeaves(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing own leaves")
	}
	return ctx.JSON(http.StatusOK, leaves)
}

func (api *classroomApi) requestLeave(ctx echo.Context) error {
	var data classroom.NewLeave
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLeave")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	l, err := api.svc.RequestLeave(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "requesting leave")
	}
	return ctx.JSON(http.StatusCreated, l)
}

// Exam results

func (api *classroomApi) examResults(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	results, err := api.svc.ExamResults(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing exam results")
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *classroomApi) publishExam(ctx echo.Context) error {
	var data classroom.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	results, err := api.svc.PublishExam(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "publishing exam")
	}
	return ctx.JSON(http.StatusCreated, results)
}

// examStudents lists the students a teacher can grade in a class, for a subject.
func (api *classroomApi) examStudents(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	class := core.CleanString(ctx.QueryParam("class_id"))
	if !usr.Teaches(class) {
		return core.NewFieldError("class_id", classroom.ErrNotTeachingClass)
	}
	students, err := api.svc.StudentsOf(ctx.Request().Context(), usr, class, core.CleanString(ctx.QueryParam("subject")))
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	return ctx.JSON(http.StatusOK, students)
}
