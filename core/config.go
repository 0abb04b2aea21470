package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		WorkDir          string
		FrontendBaseURL  string
		PortalBaseURL    string
		RollbarToken     string
		SendgridApiKey   string
		AccessCodeLength int
		defaultFromEmail string

		Server       serverConfig
		Database     databaseConfig
		Registration registrationConfig
		Reports      reportsConfig
		Mail         mailConfig
	}

	serverConfig struct {
		Address            string
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	databaseConfig struct {
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

	registrationConfig struct {
		TokenTTL      time.Duration
		SingleSession bool
	}

	reportsConfig struct {
		DefaultLimit int
		MaxLimit     int
	}

	mailConfig struct {
		Timeout     time.Duration
		Concurrency int
	}
)

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

func (db databaseConfig) Address() string {
	return db.Host + ":" + db.Port
}

// NewConfig reads the configuration from the environment.
// `config/.env.<env>` is loaded first when it exists; ENV selects DEV (default), TEST, QA or PROD.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "EVA")
	v.SetDefault("secretKey", "k2z8$w!qv3@r(m0o)pxn^7c#e-4u+y6t%j1h&d_l5sbf*g9a")
	v.SetDefault("defaultFromEmail", "EVA <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("portalBaseURL", "http://localhost:5173/register")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("accessCodeLength", 8)

	v.SetDefault("server.address", ":3000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 8*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "eva")
	v.SetDefault("database.user", "eva")
	v.SetDefault("database.password", "eva")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("registration.tokenTTL", 1440*time.Minute)
	v.SetDefault("registration.singleSession", false)

	v.SetDefault("reports.defaultLimit", 50)
	v.SetDefault("reports.maxLimit", 200)

	v.SetDefault("mail.timeout", 30*time.Second)
	v.SetDefault("mail.concurrency", 4)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		WorkDir:          wd,
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		PortalBaseURL:    v.GetString("portalBaseURL"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		AccessCodeLength: v.GetInt("accessCodeLength"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: serverConfig{
			Address:            v.GetString("server.address"),
			Host:               v.GetString("server.host"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Database: databaseConfig{
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
		Registration: registrationConfig{
			TokenTTL:      v.GetDuration("registration.tokenTTL"),
			SingleSession: v.GetBool("registration.singleSession"),
		},
		Reports: reportsConfig{
			DefaultLimit: v.GetInt("reports.defaultLimit"),
			MaxLimit:     v.GetInt("reports.maxLimit"),
		},
		Mail: mailConfig{
			Timeout:     v.GetDuration("mail.timeout"),
			Concurrency: v.GetInt("mail.concurrency"),
		},
	}
}
