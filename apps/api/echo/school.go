package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core/attendance"
	"github.com/trezcool/homeroom/core/school"
)

type schoolApi struct {
	svc       school.Service
	attendSvc attendance.Service
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, svc school.Service, attendSvc attendance.Service) {
	api := schoolApi{svc: svc, attendSvc: attendSvc}
	staff := staffMiddleware(auth)
	admin := adminMiddleware(auth)

	sg := g.Group("/students", jwt, staff)
	sg.GET("", api.queryStudents)
	sg.POST("", api.createStudent, admin)
	sg.GET("/:id", api.retrieveStudent)
	sg.PUT("/:id", api.updateStudent, admin)
	sg.DELETE("/:id", api.destroyStudent, admin)

	secg := g.Group("/sections", jwt, staff)
	secg.GET("", api.querySections)
	secg.POST("", api.createSection, admin)
	secg.GET("/:id", api.retrieveSection)
	secg.GET("/:id/students", api.sectionStudents)
	secg.PUT("/:id", api.updateSection, admin)
	secg.DELETE("/:id", api.destroySection, admin)

	subg := g.Group("/subjects", jwt, staff)
	subg.GET("", api.querySubjects)
	subg.POST("", api.createSubject, admin)
	subg.GET("/:id", api.retrieveSubject)
	subg.PUT("/:id", api.updateSubject, admin)
	subg.DELETE("/:id", api.destroySubject, admin)

	g.GET("/schedule", api.schedule, jwt, staff)
}

func (api *schoolApi) bindFilter(ctx echo.Context) school.QueryFilter {
	var filter school.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return school.QueryFilter{}
	}
	return filter
}

// Students

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	students, err := api.svc.QueryStudents(ctx.Request().Context(), api.bindFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students, err = bindOrdered(ctx, students); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) createStudent(ctx echo.Context) error {
	var data school.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	stu, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, stu)
}

func (api *schoolApi) retrieveStudent(ctx echo.Context) error {
	stu, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, stu)
}

func (api *schoolApi) updateStudent(ctx echo.Context) error {
	var data school.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	stu, err := api.svc.UpdateStudent(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, stu)
}

func (api *schoolApi) destroyStudent(ctx echo.Context) error {
	if err := api.svc.DeleteStudent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Sections

func (api *schoolApi) querySections(ctx echo.Context) error {
	sections, err := api.svc.QuerySections(ctx.Request().Context(), api.bindFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "querying sections")
	}
	if sections, err = bindOrdered(ctx, sections); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sections)
}

func (api *schoolApi) createSection(ctx echo.Context) error {
	var data school.NewSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	sec, err := api.svc.CreateSection(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating section")
	}
	return ctx.JSON(http.StatusCreated, sec)
}

func (api *schoolApi) retrieveSection(ctx echo.Context) error {
	sec, err := api.svc.GetSection(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting section")
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *schoolApi) sectionStudents(ctx echo.Context) error {
	sec, err := api.svc.GetSection(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting section")
	}
	students, err := api.svc.SectionStudents(ctx.Request().Context(), sec)
	if err != nil {
		return errors.Wrap(err, "getting section students")
	}
	if students == nil {
		students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) updateSection(ctx echo.Context) error {
	var data school.NewSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	sec, err := api.svc.UpdateSection(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating section")
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *schoolApi) destroySection(ctx echo.Context) error {
	if err := api.svc.DeleteSection(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting section")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Subjects

func (api *schoolApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.QuerySubjects(ctx.Request().Context(), api.bindFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects, err = bindOrdered(ctx, subjects); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *schoolApi) createSubject(ctx echo.Context) error {
	var data school.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	subj, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, subj)
}

func (api *schoolApi) retrieveSubject(ctx echo.Context) error {
	subj, err := api.svc.GetSubject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting subject")
	}
	return ctx.JSON(http.StatusOK, subj)
}

func (api *schoolApi) updateSubject(ctx echo.Context) error {
	var data school.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	subj, err := api.svc.UpdateSubject(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, subj)
}

func (api *schoolApi) destroySubject(ctx echo.Context) error {
	if err := api.svc.DeleteSubject(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// schedule lists the subjects scheduled on ?date= (today by default).
func (api *schoolApi) schedule(ctx echo.Context) error {
	date := ctx.QueryParam("date")
	if date == "" {
		date = attendance.FormatDate(api.attendSvc.Calendar().Date(attendance.NowFunc()))
	}
	subjects, err := api.attendSvc.ScheduledSubjects(ctx.Request().Context(), date)
	if err != nil {
		return errors.Wrap(err, "getting scheduled subjects")
	}
	if subjects == nil {
		subjects = []school.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}
