package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/holderrewards/dashboard/internal/models"
	"github.com/holderrewards/dashboard/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (*PostgresDB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)
	return NewPostgresDBFromDSN(dsn, logger)
}

// NewPostgresDBFromDSN connects using a ready DSN (key/value or URL form) and migrates the schema.
func NewPostgresDBFromDSN(dsn string, logger *logger.Logger) (*PostgresDB, error) {
	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.AutoMigrate(&models.LockEntry{}, &models.ClaimHistoryEntry{}, &models.PayoutConfig{}, &models.User{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	logger.Info("Successfully connected to PostgreSQL")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) GetLockEntries(ctx context.Context, walletAddress string) ([]*models.LockEntry, error) {
	var entries []*models.LockEntry
	if err := db.Conn.WithContext(ctx).Where("wallet_address = ?", walletAddress).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get lock entries: %w", err)
	}
	return entries, nil
}

func (db *PostgresDB) UpsertLockEntry(ctx context.Context, entry *models.LockEntry) error {
	err := db.Conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_address"}, {Name: "token_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"unlock_date", "transaction_hash"}),
	}).Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to upsert lock entry: %w", err)
	}
	return nil
}

func (db *PostgresDB) AddClaimHistory(ctx context.Context, entry *models.ClaimHistoryEntry) error {
	db.logger.Debug("Adding claim history entry", "wallet", entry.WalletAddress, "tx", entry.TransactionHash)
	if err := db.Conn.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrClaimAlreadyRecorded
		}
		return fmt.Errorf("failed to add claim history: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetClaimHistoryByHash(ctx context.Context, transactionHash string) (*models.ClaimHistoryEntry, error) {
	var entry models.ClaimHistoryEntry
	if err := db.Conn.WithContext(ctx).Where("transaction_hash = ?", transactionHash).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get claim history by hash: %w", err)
	}
	return &entry, nil
}

func (db *PostgresDB) GetClaimHistory(ctx context.Context, walletAddress string, limit int) ([]*models.ClaimHistoryEntry, error) {
	var entries []*models.ClaimHistoryEntry
	query := db.Conn.WithContext(ctx).
		Where("wallet_address = ?", walletAddress).
		Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get claim history: %w", err)
	}
	return entries, nil
}

func (db *PostgresDB) GetLatestPayoutConfig(ctx context.Context) (*models.PayoutConfig, error) {
	var config models.PayoutConfig
	if err := db.Conn.WithContext(ctx).Order("created_at DESC").Order("id DESC").First(&config).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payout config: %w", err)
	}
	return &config, nil
}

func (db *PostgresDB) AddPayoutConfig(ctx context.Context, config *models.PayoutConfig) error {
	if err := db.Conn.WithContext(ctx).Create(config).Error; err != nil {
		return fmt.Errorf("failed to add payout config: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetUser(ctx context.Context, address string) (*models.User, error) {
	var user models.User
	if err := db.Conn.WithContext(ctx).Where("address = ?", address).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (db *PostgresDB) UpsertUser(ctx context.Context, user *models.User) error {
	err := db.Conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "email_verified", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
