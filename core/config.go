package core

import (
	"fmt"
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
	Config struct {
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		SecretKey       string
		FrontendBaseURL string
		SendgridApiKey  string
		RollbarToken    string

		// EmailSubjectFormat is a text/template rendered with .AppName and .Subject.
		EmailSubjectFormat string

		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Google   OAuthConfig
		Limits   RateLimitConfig

		defaultFromEmail string
	}

	ServerConfig struct {
		Host            string
		Port            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		AllowOrigins    []string
		BodyLimit       string
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		URL           string // takes precedence over the discrete fields below
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	OAuthConfig struct {
		ClientID     string
		ClientSecret string
		CallbackURL  string
	}

	RateLimitConfig struct {
		AuthRequests int
		AuthWindow   time.Duration
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// Addr is the address the API server listens on.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func (db DatabaseConfig) IsMemory() bool {
	return strings.EqualFold(db.Engine, "memory")
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("env", "DEV")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "YouPass")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "YouPass <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("emailSubjectFormat", "[{{.AppName}}] {{.Subject}}")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 30*24*time.Hour)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("port", "5000")
	v.SetDefault("server.host", "")
	v.SetDefault("server.debugHost", "localhost:5001")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.allowOrigins", []string{"*"})
	v.SetDefault("server.bodyLimit", "2M")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "youpass")
	v.SetDefault("database.user", "youpass")
	v.SetDefault("database.password", "youpass")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("google.clientID", "")
	v.SetDefault("google.clientSecret", "")
	v.SetDefault("google.callbackURL", "http://localhost:5000/api/v1/auth/google/callback")

	v.SetDefault("limits.authRequests", 20)
	v.SetDefault("limits.authWindow", 15*time.Minute)
}

// bindEnv maps config keys to the environment variable names used in deployments.
func bindEnv(v *viper.Viper) {
	keys := map[string]string{
		"env":                       "ENV",
		"build":                     "BUILD",
		"debug":                     "DEBUG",
		"testMode":                  "TEST_MODE",
		"appName":                   "APP_NAME",
		"secretKey":                 "SECRET_KEY",
		"frontendBaseURL":           "FRONTEND_BASE_URL",
		"defaultFromEmail":          "DEFAULT_FROM_EMAIL",
		"sendgridApiKey":            "SENDGRID_API_KEY",
		"emailSubjectFormat":        "EMAIL_SUBJECT_FORMAT",
		"rollbarToken":              "ROLLBAR_TOKEN",
		"jwtExpirationDelta":        "JWT_EXPIRATION_DELTA",
		"jwtRefreshExpirationDelta": "JWT_REFRESH_EXPIRATION_DELTA",
		"passwordResetTimeoutDelta": "PASSWORD_RESET_TIMEOUT_DELTA",
		"port":                      "PORT",
		"server.host":               "SERVER_HOST",
		"server.debugHost":          "SERVER_DEBUG_HOST",
		"server.shutdownTimeout":    "SERVER_SHUTDOWN_TIMEOUT",
		"server.allowOrigins":       "SERVER_ALLOW_ORIGINS",
		"database.engine":           "DATABASE_ENGINE",
		"database.url":              "DATABASE_URL",
		"database.host":             "DATABASE_HOST",
		"database.port":             "DATABASE_PORT",
		"database.name":             "DATABASE_NAME",
		"database.user":             "DATABASE_USER",
		"database.password":         "DATABASE_PASSWORD",
		"database.adminUser":        "DATABASE_ADMIN_USER",
		"database.adminPassword":    "DATABASE_ADMIN_PASSWORD",
		"database.disableTLS":       "DATABASE_DISABLE_TLS",
		"google.clientID":           "GOOGLE_CLIENT_ID",
		"google.clientSecret":       "GOOGLE_CLIENT_SECRET",
		"google.callbackURL":        "GOOGLE_CALLBACK_URL",
		"limits.authRequests":       "RATE_LIMIT_AUTH_REQUESTS",
		"limits.authWindow":         "RATE_LIMIT_AUTH_WINDOW",
	}
	for key, env := range keys {
		_ = v.BindEnv(key, env)
	}
}

// loadDotEnv loads config/.env.<env> if it exists (ignored if it does not).
func loadDotEnv(env string) {
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
}

// NewConfig reads the process configuration. It is meant to be called once at startup.
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	loadDotEnv(env)

	v := viper.New()
	setDefaults(v)
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	bindEnv(v)
	v.AutomaticEnv()

	return fromViper(v, env)
}

func fromViper(v *viper.Viper, env string) *Config {
	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		EmailSubjectFormat:        v.GetString("emailSubjectFormat"),
		RollbarToken:              v.GetString("rollbarToken"),
		JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
		JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetString("port"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			AllowOrigins:    v.GetStringSlice("server.allowOrigins"),
			BodyLimit:       v.GetString("server.bodyLimit"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			URL:           v.GetString("database.url"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Google: OAuthConfig{
			ClientID:     v.GetString("google.clientID"),
			ClientSecret: v.GetString("google.clientSecret"),
			CallbackURL:  v.GetString("google.callbackURL"),
		},
		Limits: RateLimitConfig{
			AuthRequests: v.GetInt("limits.authRequests"),
			AuthWindow:   v.GetDuration("limits.authWindow"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns the defaults with test mode on and the in-memory database.
func NewTestConfig() *Config {
	v := viper.New()
	setDefaults(v)
	v.Set("debug", false)
	v.Set("testMode", true)
	v.Set("secretKey", "secret")
	v.Set("database.engine", "memory")
	return fromViper(v, "TEST")
}

func (c *Config) String() string {
	return fmt.Sprintf("%s(env=%s, build=%s, debug=%t, db=%s)", c.AppName, c.Env, c.Build, c.Debug, c.Database.Engine)
}
