package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	AuthConfig struct {
		AllowedEmailDomain string // empty: any domain
		PhoneMinLen        int
	}

	BillingConfig struct {
		DefaultFeeAmount  int64
		ApprovalSalary    int64
		SalaryAutoDay     int // 0: disabled
		FeeAutoDay        int // 0: disabled
		SchedulerInterval time.Duration
		Location          *time.Location
	}

	StorageConfig struct {
		Driver        string // local | oss
		LocalDir      string
		PublicBaseURL string
		MaxUploadSize int64
		OSSEndpoint   string
		OSSAccessKey  string
		OSSSecretKey  string
		OSSBucket     string
	}

	CoursesConfig struct {
		OEmbedURL     string
		LookupTimeout time.Duration
	}

	Config struct {
		Env              string
		Build            string
		AppName          string
		Debug            bool
		TestMode         bool
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address

		Server   ServerConfig
		Database DatabaseConfig
		Auth     AuthConfig
		Billing  BillingConfig
		Storage  StorageConfig
		Courses  CoursesConfig
	}
)

// Address returns the "host:port" pair of the database server.
func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func newViper() (*viper.Viper, string) {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("build", "develop")
	conf.SetDefault("appName", "SchoolHub")
	conf.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("frontendBaseURL", "http://localhost:8081")
	conf.SetDefault("defaultFromEmail", "SchoolHub <noreply@localhost>")

	conf.SetDefault("server.host", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)
	conf.SetDefault("server.disableReqLogs", false)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "schoolhub")
	conf.SetDefault("database.user", "schoolhub")
	conf.SetDefault("database.password", "schoolhub")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "postgres")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("auth.allowedEmailDomain", "gmail.com")
	conf.SetDefault("auth.phoneMinLen", 10)

	conf.SetDefault("billing.defaultFeeAmount", 5000)
	conf.SetDefault("billing.approvalSalary", 15000)
	conf.SetDefault("billing.salaryAutoDay", 10)
	conf.SetDefault("billing.feeAutoDay", 0)
	conf.SetDefault("billing.schedulerInterval", time.Hour)
	conf.SetDefault("billing.timezone", "Asia/Kolkata")

	conf.SetDefault("storage.driver", "local")
	conf.SetDefault("storage.localDir", "uploads")
	conf.SetDefault("storage.publicBaseURL", "http://localhost:8000/uploads")
	conf.SetDefault("storage.maxUploadSize", 5*1024*1024)
	conf.SetDefault("storage.ossEndpoint", "")
	conf.SetDefault("storage.ossAccessKey", "")
	conf.SetDefault("storage.ossSecretKey", "")
	conf.SetDefault("storage.ossBucket", "")

	conf.SetDefault("courses.oembedURL", "https://www.youtube.com/oembed")
	conf.SetDefault("courses.lookupTimeout", 5*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()
	return conf, env
}

// NewConfig reads the application configuration from defaults, `config/.env.<env>` and the environment.
func NewConfig() *Config {
	v, env := newViper()

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config: invalid defaultFromEmail: %v", err)
	}
	loc, err := time.LoadLocation(v.GetString("billing.timezone"))
	if err != nil {
		log.Printf("config: unknown billing.timezone %q, falling back to UTC", v.GetString("billing.timezone"))
		loc = time.UTC
	}

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: *from,
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Auth: AuthConfig{
			AllowedEmailDomain: CleanString(v.GetString("auth.allowedEmailDomain"), true /* lower */),
			PhoneMinLen:        v.GetInt("auth.phoneMinLen"),
		},
		Billing: BillingConfig{
			DefaultFeeAmount:  v.GetInt64("billing.defaultFeeAmount"),
			ApprovalSalary:    v.GetInt64("billing.approvalSalary"),
			SalaryAutoDay:     v.GetInt("billing.salaryAutoDay"),
			FeeAutoDay:        v.GetInt("billing.feeAutoDay"),
			SchedulerInterval: v.GetDuration("billing.schedulerInterval"),
			Location:          loc,
		},
		Storage: StorageConfig{
			Driver:        v.GetString("storage.driver"),
			LocalDir:      v.GetString("storage.localDir"),
			PublicBaseURL: strings.TrimRight(v.GetString("storage.publicBaseURL"), "/"),
			MaxUploadSize: v.GetInt64("storage.maxUploadSize"),
			OSSEndpoint:   v.GetString("storage.ossEndpoint"),
			OSSAccessKey:  v.GetString("storage.ossAccessKey"),
			OSSSecretKey:  v.GetString("storage.ossSecretKey"),
			OSSBucket:     v.GetString("storage.ossBucket"),
		},
		Courses: CoursesConfig{
			OEmbedURL:     v.GetString("courses.oembedURL"),
			LookupTimeout: v.GetDuration("courses.lookupTimeout"),
		},
	}
}

// NewTestConfig returns the configuration used by tests: TEST env defaults, nothing read from disk.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Env = "TEST"
	conf.Debug = false
	conf.TestMode = true
	conf.Server.DisableReqLogs = true
	conf.Billing.Location = time.UTC
	return conf
}
