// Package config resolves the settings of a provisioning run from flags, FOODLIK_* environment variables and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "FOODLIK"

	HostKey           = "host"
	PortKey           = "port"
	UserKey           = "user"
	PasswordKey       = "password" //nolint:gosec
	SSLModeKey        = "sslmode"
	AdminDatabaseKey  = "admin-db"
	DatabaseKey       = "db"
	SchemaKey         = "schema"
	DataDirKey        = "data-dir"
	CategoriesFileKey = "categories-file"
	ProductsDirKey    = "products-dir"
	SeedKey           = "seed"
	BackupKey         = "backup"
	MaxBackupsKey     = "max-backups"
	ConnectTimeoutKey = "connect-timeout"
	NoInputKey        = "no-input"
	DebugKey          = "debug"

	DefaultHost           = "localhost"
	DefaultPort           = 5432
	DefaultSSLMode        = "prefer"
	DefaultAdminDatabase  = "postgres"
	DefaultDatabase       = "foodlik"
	DefaultSchemaPath     = "core/back/database/structure.sql"
	DefaultDataDir        = "core/back/requests/datas"
	DefaultCategoriesFile = "categories_fr.json"
	DefaultProductsDir    = "products"
	DefaultMaxBackups     = 5
	DefaultConnectTimeout = 30 * time.Second
)

const (
	// MaxIdentifierLen is PostgreSQL's NAMEDATALEN-1; longer names are truncated by the server.
	MaxIdentifierLen = 63
	// MaxBackupDatabaseLen leaves room for the "_bak_YYYYMMDD_HHMMSS" suffix of backup copies.
	MaxBackupDatabaseLen = MaxIdentifierLen - len("_bak_") - len("20060102_150405")
)

var ErrSameDatabase = errors.New("target database must differ from the admin database")

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string

	AdminDatabase string
	Database      string

	SchemaPath     string
	DataDir        string
	CategoriesFile string
	ProductsDir    string

	Seed           bool
	Backup         bool
	MaxBackups     int
	ConnectTimeout time.Duration
	NoInput        bool
	Debug          bool
}

// RegisterFlags declares every setting on fs with its default value.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(HostKey, DefaultHost, "PostgreSQL host")
	fs.Int(PortKey, DefaultPort, "PostgreSQL port")
	fs.String(UserKey, "", "PostgreSQL user (prompted when empty)")
	fs.String(PasswordKey, "", "PostgreSQL password (prompted when empty)")
	fs.String(SSLModeKey, DefaultSSLMode, "PostgreSQL sslmode")
	fs.String(AdminDatabaseKey, DefaultAdminDatabase, "Administrative database used to (re)create the target")
	fs.String(DatabaseKey, DefaultDatabase, "Name of the database to provision")
	fs.String(SchemaKey, DefaultSchemaPath, "Path to the SQL schema file; empty creates the tables from the models")
	fs.String(DataDirKey, DefaultDataDir, "Directory holding the seed data")
	fs.String(CategoriesFileKey, DefaultCategoriesFile, "Categories JSON file, relative to the data directory")
	fs.String(ProductsDirKey, DefaultProductsDir, "Products directory, relative to the data directory")
	fs.Bool(SeedKey, true, "Whether to load seed data into the database")
	fs.Bool(BackupKey, false, "Whether to copy the existing database before dropping it")
	fs.Int(MaxBackupsKey, DefaultMaxBackups, "Maximum number of database backups to retain")
	fs.Duration(ConnectTimeoutKey, DefaultConnectTimeout, "Timeout for each database connection attempt")
	fs.Bool(NoInputKey, false, "Fail instead of prompting when no user is set; an empty password is passed to the driver as is")
	fs.Bool(DebugKey, false, "Enable debug logging, including SQL statements")
}

// NewViper returns a viper instance bound to fs and to FOODLIK_* environment variables. A .env file in the working
// directory is loaded first when present; variables already set in the environment win.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv() // binds environment variables to viper config
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("config: binding flags: %w", err)
		}
	}
	return v, nil
}

// Load builds a Config from v. Keys with no flag, environment variable or explicit value fall back to the package
// defaults.
func Load(v *viper.Viper) (*Config, error) {
	v.SetDefault(HostKey, DefaultHost)
	v.SetDefault(PortKey, DefaultPort)
	v.SetDefault(SSLModeKey, DefaultSSLMode)
	v.SetDefault(AdminDatabaseKey, DefaultAdminDatabase)
	v.SetDefault(DatabaseKey, DefaultDatabase)
	v.SetDefault(SchemaKey, DefaultSchemaPath)
	v.SetDefault(DataDirKey, DefaultDataDir)
	v.SetDefault(CategoriesFileKey, DefaultCategoriesFile)
	v.SetDefault(ProductsDirKey, DefaultProductsDir)
	v.SetDefault(SeedKey, true)
	v.SetDefault(MaxBackupsKey, DefaultMaxBackups)
	v.SetDefault(ConnectTimeoutKey, DefaultConnectTimeout)

	cfg := &Config{
		Host:           v.GetString(HostKey),
		Port:           v.GetInt(PortKey),
		User:           v.GetString(UserKey),
		Password:       v.GetString(PasswordKey),
		SSLMode:        v.GetString(SSLModeKey),
		AdminDatabase:  v.GetString(AdminDatabaseKey),
		Database:       v.GetString(DatabaseKey),
		SchemaPath:     v.GetString(SchemaKey),
		DataDir:        v.GetString(DataDirKey),
		CategoriesFile: v.GetString(CategoriesFileKey),
		ProductsDir:    v.GetString(ProductsDirKey),
		Seed:           v.GetBool(SeedKey),
		Backup:         v.GetBool(BackupKey),
		MaxBackups:     v.GetInt(MaxBackupsKey),
		ConnectTimeout: v.GetDuration(ConnectTimeoutKey),
		NoInput:        v.GetBool(NoInputKey),
		Debug:          v.GetBool(DebugKey),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that would make the run fail halfway or destroy the wrong database.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("config: %s must not be empty", HostKey)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: %s %d out of range", PortKey, c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("config: %s must not be empty", DatabaseKey)
	}
	if c.AdminDatabase == "" {
		return fmt.Errorf("config: %s must not be empty", AdminDatabaseKey)
	}
	if len(c.Database) > MaxIdentifierLen {
		return fmt.Errorf("config: %s %q is longer than %d bytes", DatabaseKey, c.Database, MaxIdentifierLen)
	}
	if c.Backup && len(c.Database) > MaxBackupDatabaseLen {
		return fmt.Errorf("config: %s %q is longer than %d bytes, backup names would be truncated",
			DatabaseKey, c.Database, MaxBackupDatabaseLen)
	}
	if c.Database == c.AdminDatabase {
		return fmt.Errorf("config: %w (%s)", ErrSameDatabase, c.Database)
	}
	if c.MaxBackups < 0 {
		return fmt.Errorf("config: %s must not be negative", MaxBackupsKey)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("config: %s must not be negative", ConnectTimeoutKey)
	}
	return nil
}

// CategoriesPath returns the categories file location; relative names are resolved against DataDir.
func (c *Config) CategoriesPath() string {
	return underDir(c.DataDir, c.CategoriesFile)
}

// ProductsPath returns the products directory location; relative names are resolved against DataDir.
func (c *Config) ProductsPath() string {
	return underDir(c.DataDir, c.ProductsDir)
}

func underDir(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// AdminDSN returns the connection string for the administrative database.
func (c *Config) AdminDSN() string {
	return c.DSN(c.AdminDatabase)
}

// TargetDSN returns the connection string for the provisioned database.
func (c *Config) TargetDSN() string {
	return c.DSN(c.Database)
}

// DSN returns a postgres:// URL for database. Credentials are URL-escaped so passwords with special characters
// survive the round trip through pgx.ParseConfig.
func (c *Config) DSN(database string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + database,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.ConnectTimeout > 0 {
		secs := int(c.ConnectTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
