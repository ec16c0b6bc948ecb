package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/veloraops/agency-api/internal/config"
	"github.com/veloraops/agency-api/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := cfg.ConnectionString()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// HealthCheck pings the database with a bounded context
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// HealthCheckWithStats pings the database and returns connection pool stats
func HealthCheckWithStats(ctx context.Context, db *gorm.DB) (sql.DBStats, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return sql.DBStats{}, fmt.Errorf("failed to get database instance: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return sql.DBStats{}, err
	}
	return sqlDB.Stats(), nil
}

// Models lists every persisted entity in migration order
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Client{},
		&domain.Service{},
		&domain.Offer{},
		&domain.Pack{},
		&domain.Plan{},
		&domain.PlanPrice{},
		&domain.PlanField{},
		&domain.Quote{},
		&domain.QuoteService{},
		&domain.QuoteSubscription{},
		&domain.Invoice{},
		&domain.InvoiceService{},
		&domain.InvoiceSubscription{},
		&domain.Payment{},
		&domain.PaymentAllocation{},
		&domain.Subscription{},
		&domain.SubscriptionFieldValue{},
		&domain.Project{},
		&domain.ProjectProgress{},
		&domain.Task{},
		&domain.Ticket{},
		&domain.Comment{},
		&domain.File{},
		&domain.ActivityLog{},
		&domain.NumberSequence{},
	}
}

// AutoMigrate runs automatic migrations (for development and tests)
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
