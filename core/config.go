package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const dateLayout = "2006-01-02"

type (
	Config struct {
		AppName                   string
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmailAddress   string
		PasswordResetTimeoutDelta time.Duration
		RollbarToken              string

		Server     ServerConfig
		Database   DatabaseConfig
		Email      EmailConfig
		Auth       AuthConfig
		Attendance AttendanceConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string // memory, firestore, mongo, postgres
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool

		MongoURI string

		FirebaseProjectID       string
		FirebaseCredentialsFile string
	}

	EmailConfig struct {
		Provider       string // console, sendgrid, resend
		SendgridApiKey string
		ResendApiKey   string
	}

	AuthConfig struct {
		Provider string // local, firebase
	}

	AttendanceConfig struct {
		// SchoolStartDate anchors the week1/week2 alternation. There is no default.
		SchoolStartDate time.Time
		Location        *time.Location
		HomeroomName    string
		NotesMaxLen     int
		SaveTimeout     time.Duration
		SaveRetries     int
	}
)

func (dbc DatabaseConfig) Address() string {
	if dbc.Port == "" {
		return dbc.Host
	}
	return dbc.Host + ":" + dbc.Port
}

func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.DefaultFromEmailAddress); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.DefaultFromEmailAddress}
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Homeroom")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "Homeroom <noreply@localhost>")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.name", "homeroom")
	v.SetDefault("database.disableTLS", false)
	v.SetDefault("database.mongoURI", "mongodb://localhost:27017")
	v.SetDefault("database.firebaseProjectID", "")
	v.SetDefault("database.firebaseCredentialsFile", "")

	v.SetDefault("email.provider", "console")
	v.SetDefault("email.sendgridApiKey", "")
	v.SetDefault("email.resendApiKey", "")

	v.SetDefault("auth.provider", "local")

	v.SetDefault("attendance.schoolStartDate", "")
	v.SetDefault("attendance.timezone", "Local")
	v.SetDefault("attendance.homeroomName", "Homeroom")
	v.SetDefault("attendance.notesMaxLen", 500)
	v.SetDefault("attendance.saveTimeout", 10*time.Second)
	v.SetDefault("attendance.saveRetries", 2)
}

// NewConfig reads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the env name, e.g. DEV_ATTENDANCE_SCHOOLSTARTDATE.
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	confDir := os.Getenv("CONFIG_DIR")
	if confDir == "" {
		confDir = "config"
	}
	dotEnvPath := filepath.Join(confDir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:                   v.GetString("appName"),
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  env == "TEST",
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmailAddress:   v.GetString("defaultFromEmail"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		RollbarToken:              v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:                  strings.ToLower(v.GetString("database.engine")),
			Host:                    v.GetString("database.host"),
			Port:                    v.GetString("database.port"),
			User:                    v.GetString("database.user"),
			Password:                v.GetString("database.password"),
			AdminUser:               v.GetString("database.adminUser"),
			AdminPassword:           v.GetString("database.adminPassword"),
			Name:                    v.GetString("database.name"),
			DisableTLS:              v.GetBool("database.disableTLS"),
			MongoURI:                v.GetString("database.mongoURI"),
			FirebaseProjectID:       v.GetString("database.firebaseProjectID"),
			FirebaseCredentialsFile: v.GetString("database.firebaseCredentialsFile"),
		},
		Email: EmailConfig{
			Provider:       strings.ToLower(v.GetString("email.provider")),
			SendgridApiKey: v.GetString("email.sendgridApiKey"),
			ResendApiKey:   v.GetString("email.resendApiKey"),
		},
		Auth: AuthConfig{
			Provider: strings.ToLower(v.GetString("auth.provider")),
		},
		Attendance: AttendanceConfig{
			HomeroomName: v.GetString("attendance.homeroomName"),
			NotesMaxLen:  v.GetInt("attendance.notesMaxLen"),
			SaveTimeout:  v.GetDuration("attendance.saveTimeout"),
			SaveRetries:  v.GetInt("attendance.saveRetries"),
		},
	}

	loc, err := time.LoadLocation(v.GetString("attendance.timezone"))
	if err != nil {
		return nil, errors.Wrap(err, "loading attendance.timezone")
	}
	conf.Attendance.Location = loc

	if start := strings.TrimSpace(v.GetString("attendance.schoolStartDate")); start != "" {
		conf.Attendance.SchoolStartDate, err = time.ParseInLocation(dateLayout, start, loc)
		if err != nil {
			return nil, errors.Wrap(err, "parsing attendance.schoolStartDate")
		}
	}
	return conf, nil
}
