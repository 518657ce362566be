package echoapi

import (
	"bytes"
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/attendance"
	"github.com/trezcool/homeroom/core/school"
	"github.com/trezcool/homeroom/services/report"
)

type attendanceApi struct {
	svc       attendance.Service
	schoolSvc school.Service
	auth      *authenticator
	mailSvc   core.EmailService
	validate  *validator.Validate
	metrics   *Metrics
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	schoolSvc school.Service,
	svc attendance.Service,
	mailSvc core.EmailService,
	validate *validator.Validate,
	metrics *Metrics,
) {
	api := attendanceApi{
		svc:       svc,
		schoolSvc: schoolSvc,
		auth:      auth,
		mailSvc:   mailSvc,
		validate:  validate,
		metrics:   metrics,
	}

	ag := g.Group("/attendance", jwt, staffMiddleware(auth))
	ag.GET("/daily", api.daily)
	ag.GET("/weekly", api.weekly)
	ag.GET("/weekly.xlsx", api.weeklyWorkbook)
	ag.POST("/weekly/email", api.emailWeeklyWorkbook)
	ag.GET("/overall", api.overall)
	ag.GET("/cell", api.cell)

	sg := ag.Group("/sessions")
	sg.POST("", api.openSession)
	sg.GET("/:id", api.retrieveSession)
	sg.DELETE("/:id", api.closeSession)
	sg.PUT("/:id/records/:studentId", api.updateRecord)
	sg.POST("/:id/bulk", api.bulkUpdate)
	sg.POST("/:id/initialize", api.initialize)
	sg.POST("/:id/save", api.save)
}

type (
	BulkUpdateResponse struct {
		Updated []string        `json:"updated"`
		View    attendance.View `json:"view"`
	}

	SummaryQuery struct {
		Section   string `json:"section" query:"section"`
		Date      string `json:"date" query:"date"`
		WeekStart string `json:"weekStart" query:"weekStart"`
	}

	CellQuery struct {
		Student string `json:"student" query:"student" validate:"required"`
		Subject string `json:"subject" query:"subject" validate:"required"`
		Date    string `json:"date" query:"date" validate:"required,isodate"`
	}
)

// Sessions

func (api *attendanceApi) openSession(ctx echo.Context) error {
	var req attendance.OpenRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to OpenRequest")
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sess, err := api.svc.OpenSession(ctx.Request().Context(), req, usr.ID)
	if err != nil {
		return errors.Wrap(err, "opening attendance session")
	}
	return ctx.JSON(http.StatusOK, sess.View(attendance.Filter{}))
}

func (api *attendanceApi) session(ctx echo.Context) (*attendance.Session, error) {
	sess, err := api.svc.Session(ctx.Param("id"))
	return sess, errors.Wrap(err, "getting attendance session")
}

func (api *attendanceApi) retrieveSession(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	var filter attendance.Filter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to Filter")
	}
	return ctx.JSON(http.StatusOK, sess.View(filter))
}

func (api *attendanceApi) updateRecord(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data attendance.RecordUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordUpdate")
	}

	rec, err := data.Apply(api.validate, sess, ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "updating record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) bulkUpdate(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data attendance.BulkUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkUpdate")
	}

	ids, err := data.Apply(api.validate, sess)
	if err != nil {
		return errors.Wrap(err, "updating records")
	}
	return ctx.JSON(http.StatusOK, BulkUpdateResponse{Updated: ids, View: sess.View(data.Filter)})
}

// initialize resets every record of the session to blank, from the current roster.
func (api *attendanceApi) initialize(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	sec, err := api.schoolSvc.GetSection(ctx.Request().Context(), sess.SectionID)
	if err != nil {
		return errors.Wrap(err, "getting section")
	}
	students, err := api.schoolSvc.SectionStudents(ctx.Request().Context(), sec)
	if err != nil {
		return errors.Wrap(err, "getting section students")
	}
	if err = sess.Initialize(students); err != nil {
		return errors.Wrap(err, "initializing session")
	}
	return ctx.JSON(http.StatusOK, sess.View(attendance.Filter{}))
}

func (api *attendanceApi) save(ctx echo.Context) error {
	snap, err := api.svc.SaveSession(ctx.Request().Context(), ctx.Param("id"))
	api.metrics.observeSave(err)
	if err != nil {
		return errors.Wrap(err, "saving attendance session")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *attendanceApi) closeSession(ctx echo.Context) error {
	if err := api.svc.CloseSession(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "closing attendance session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Summaries

func (api *attendanceApi) bindSummaryQuery(ctx echo.Context) (SummaryQuery, error) {
	var q SummaryQuery
	if err := ctx.Bind(&q); err != nil {
		return q, errors.Wrap(err, "binding to SummaryQuery")
	}
	q.Section = core.CleanString(q.Section)
	if q.Section == "" {
		return q, core.NewValidationError(nil, core.FieldError{Field: "section", Error: "section is required"})
	}
	if q.Date == "" {
		q.Date = attendance.FormatDate(api.svc.Calendar().Date(attendance.NowFunc()))
	}
	if q.WeekStart == "" {
		q.WeekStart = q.Date
	}
	return q, nil
}

func (api *attendanceApi) daily(ctx echo.Context) error {
	q, err := api.bindSummaryQuery(ctx)
	if err != nil {
		return err
	}
	sum, err := api.svc.DailySummary(ctx.Request().Context(), q.Section, q.Date)
	if err != nil {
		return errors.Wrap(err, "computing daily summary")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *attendanceApi) weekly(ctx echo.Context) error {
	q, err := api.bindSummaryQuery(ctx)
	if err != nil {
		return err
	}
	days, err := api.svc.WeeklySummary(ctx.Request().Context(), q.Section, q.WeekStart)
	if err != nil {
		return errors.Wrap(err, "computing weekly summary")
	}
	return ctx.JSON(http.StatusOK, days)
}

type workbookFile struct {
	section  school.Section
	filename string
	content  []byte
}

func (api *attendanceApi) buildWeeklyWorkbook(ctx echo.Context) (workbookFile, error) {
	q, err := api.bindSummaryQuery(ctx)
	if err != nil {
		return workbookFile{}, err
	}
	days, err := api.svc.WeeklySummary(ctx.Request().Context(), q.Section, q.WeekStart)
	if err != nil {
		return workbookFile{}, errors.Wrap(err, "computing weekly summary")
	}
	sec, err := api.schoolSvc.GetSection(ctx.Request().Context(), q.Section)
	if err != nil {
		return workbookFile{}, errors.Wrap(err, "getting section")
	}

	buf, err := report.WeeklyWorkbook(sec.Name+" attendance", days)
	if err != nil {
		return workbookFile{}, errors.Wrap(err, "writing weekly workbook")
	}
	return workbookFile{section: sec, filename: report.WeeklyFilename(sec.Name, q.WeekStart), content: buf.Bytes()}, nil
}

func (api *attendanceApi) weeklyWorkbook(ctx echo.Context) error {
	wb, err := api.buildWeeklyWorkbook(ctx)
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+wb.filename+`"`)
	return ctx.Blob(http.StatusOK, report.ContentType, wb.content)
}

// emailWeeklyWorkbook sends the weekly workbook to the authenticated user.
func (api *attendanceApi) emailWeeklyWorkbook(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.Email == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "email", Error: "your account has no email address"})
	}
	wb, err := api.buildWeeklyWorkbook(ctx)
	if err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      wb.section.Name + " weekly attendance",
		TemplateName: "weekly_report",
		TemplateData: map[string]interface{}{
			"Name":     usr.Name,
			"Section":  wb.section.Name,
			"Filename": wb.filename,
		},
	}
	if err = msg.Attach(bytes.NewReader(wb.content), wb.filename, report.ContentType); err != nil {
		return errors.Wrap(err, "attaching weekly workbook")
	}
	api.mailSvc.SendMessages(msg)
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: "The workbook will be sent to " + usr.Email + "."})
}

func (api *attendanceApi) overall(ctx echo.Context) error {
	q, err := api.bindSummaryQuery(ctx)
	if err != nil {
		return err
	}
	sum, err := api.svc.OverallSummary(ctx.Request().Context(), q.Section, q.Date)
	if err != nil {
		return errors.Wrap(err, "computing overall summary")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *attendanceApi) cell(ctx echo.Context) error {
	var q CellQuery
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to CellQuery")
	}
	if err := api.validate.Struct(q); err != nil {
		return err
	}
	cell, err := api.svc.Cell(ctx.Request().Context(), q.Student, q.Subject, q.Date)
	if err != nil {
		return errors.Wrap(err, "resolving attendance cell")
	}
	return ctx.JSON(http.StatusOK, cell)
}
