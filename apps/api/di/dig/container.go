package dig_container

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/homeroom/apps/api/echo"
	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/attendance"
	"github.com/trezcool/homeroom/core/school"
	"github.com/trezcool/homeroom/core/user"
	authsvc "github.com/trezcool/homeroom/services/auth"
	emailsvc "github.com/trezcool/homeroom/services/email"
	logsvc "github.com/trezcool/homeroom/services/logger"
	"github.com/trezcool/homeroom/storage/database"
	docrepos "github.com/trezcool/homeroom/storage/repos"
)

const connectTimeout = 30 * time.Second

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newZapLogger(conf *core.Config) (*logsvc.ZapLogger, error) {
	return logsvc.NewZapLogger(conf)
}

func newLogger(conf *core.Config, zl *logsvc.ZapLogger) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZapLoggerFrom(zl.Zap().Named("api")), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config, zl *logsvc.ZapLogger) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZapLoggerFrom(zl.Zap().Named("db")), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) core.DocStore {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db, err := database.Open(ctx, conf, loggerParam.Logger)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newSchoolRepository(db core.DocStore, loggerParam DBLoggerParam) school.Repository {
	return docrepos.NewSchoolRepository(db, loggerParam.Logger)
}

func newAccountProvider(conf *core.Config) (user.AccountProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return authsvc.NewProvider(ctx, conf)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	attendance.RegisterValidators(validate, translator)
	return validate
}

func newAttendanceService(
	repo attendance.Repository,
	schoolSvc school.Service,
	cal *attendance.Calendar,
	conf *core.Config,
	validate *validator.Validate,
	logger core.Logger,
) attendance.Service {
	return attendance.NewService(repo, schoolSvc, cal, conf.Attendance, validate, logger)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(docrepos.NewUserRepository))
	must(c.Provide(newSchoolRepository))
	must(c.Provide(docrepos.NewAttendanceRepository))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(newAccountProvider))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(school.NewService))
	must(c.Provide(attendance.NewCalendarFromConfig))
	must(c.Provide(newAttendanceService))
	must(c.Provide(echoapi.NewMetrics))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
