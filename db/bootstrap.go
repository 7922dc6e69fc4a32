package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"foodlik/config"
	"foodlik/model"
	"foodlik/seed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrEmptySchema = errors.New("schema file is empty")

// Summary counts the rows written by a seeding run.
type Summary struct {
	Categories int64
	Products   int64
	Links      int64
}

func newGormLogger(debug bool) logger.Interface {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true, // Ignore ErrRecordNotFound error for logger
			ParameterizedQueries:      true, // Don't include params in the SQL log
			Colorful:                  false,
		},
	)
}

// OpenPostgres opens the database at dsn through pgx. The pool is capped at a single connection.
func OpenPostgres(dsn string, debug bool) (*gorm.DB, error) {
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection config: %w", err)
	}
	sqlDB := stdlib.OpenDB(*connConfig)
	sqlDB.SetMaxOpenConns(1)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: newGormLogger(debug),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}
	return db, nil
}

// ReadSchema returns the contents of the SQL schema file at path.
func ReadSchema(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmptySchema)
	}
	return string(raw), nil
}

// ExecSchema runs schema as one statement batch. An empty schema creates the tables from the models instead.
func ExecSchema(ctx context.Context, db *gorm.DB, schema string) error {
	if strings.TrimSpace(schema) == "" {
		if err := db.WithContext(ctx).AutoMigrate(
			&model.Category{},
			&model.Product{},
			&model.CategoryPerProduct{},
		); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}
	return nil
}

// ApplySchema reads the schema file at path and executes it. An empty path creates the tables from the models.
func ApplySchema(ctx context.Context, db *gorm.DB, path string) error {
	var schema string
	if path != "" {
		var err error
		if schema, err = ReadSchema(path); err != nil {
			return err
		}
	}
	return ExecSchema(ctx, db, schema)
}

// SeedDataset inserts every category, product and category/product link of ds in a single transaction. Any failed
// insert rolls the whole seed back.
func SeedDataset(ctx context.Context, db *gorm.DB, ds *seed.Dataset, log *zap.SugaredLogger) (Summary, error) {
	var sum Summary
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range ds.Categories {
			if err := tx.Create(&model.Category{Title: name}).Error; err != nil {
				return fmt.Errorf("seed: failed to insert category %q: %w", name, err)
			}
			sum.Categories++
		}
		log.Infof("categories done (%d)", sum.Categories)

		for i, file := range ds.ProductFiles {
			for _, p := range file.Products {
				product := p
				if err := tx.Create(&product).Error; err != nil {
					return fmt.Errorf("seed: failed to insert product %q from %s: %w", p.Title, file.Name, err)
				}
				sum.Products++

				for _, category := range p.UniqueCategories() {
					link := model.CategoryPerProduct{CategoryTitle: category, ProductTitle: p.Title}
					if err := tx.Create(&link).Error; err != nil {
						return fmt.Errorf("seed: failed to link product %q to category %q: %w", p.Title, category, err)
					}
					sum.Links++
				}
			}
			log.Infof("file %d done (%s, %d products)", i+1, file.Name, len(file.Products))
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}

// Provisioner runs the whole provisioning routine: recreate the database, apply the schema, load the seed data.
type Provisioner struct {
	cfg *config.Config
	log *zap.SugaredLogger

	recreate func(ctx context.Context, adminDSN string, opts RecreateOptions, log *zap.SugaredLogger) error
	open     func(dsn string, debug bool) (*gorm.DB, error)
}

func NewProvisioner(cfg *config.Config, log *zap.SugaredLogger) *Provisioner {
	return &Provisioner{
		cfg:      cfg,
		log:      log,
		recreate: Recreate,
		open:     OpenPostgres,
	}
}

// Run provisions the configured database. The schema and seed files are read before anything is dropped, so a
// missing or malformed input leaves an existing database untouched.
func (p *Provisioner) Run(ctx context.Context) (*Summary, error) {
	cfg := p.cfg
	p.log.Infof("provisioning %s on %s:%d, this may take a few minutes", cfg.Database, cfg.Host, cfg.Port)

	var schema string
	if cfg.SchemaPath != "" {
		var err error
		if schema, err = ReadSchema(cfg.SchemaPath); err != nil {
			return nil, err
		}
	}

	var ds *seed.Dataset
	if cfg.Seed {
		var err error
		if ds, err = seed.Load(cfg.CategoriesPath(), cfg.ProductsPath()); err != nil {
			return nil, err
		}
		p.log.Debugf("loaded %d categories and %d products from %d files",
			len(ds.Categories), ds.ProductCount(), len(ds.ProductFiles))
	}

	err := p.recreate(ctx, cfg.AdminDSN(), RecreateOptions{
		User:       cfg.User,
		Database:   cfg.Database,
		Backup:     cfg.Backup,
		MaxBackups: cfg.MaxBackups,
	}, p.log)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	db, err := p.open(cfg.TargetDSN(), cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				p.log.Warnf("failed to close database: %v", err)
			}
		}
	}()

	if err := ExecSchema(ctx, db, schema); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	if !cfg.Seed {
		p.log.Info("bootstrap: database schema created but no seed data loaded")
		return &Summary{}, nil
	}

	sum, err := SeedDataset(ctx, db, ds, p.log)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	p.log.Infof("database ready for use: %d categories, %d products, %d links",
		sum.Categories, sum.Products, sum.Links)
	return &sum, nil
}
