package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lunchbreak/internal/database/models"
)

func NewConnection(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DSN is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	return db, nil
}

var orderingModels = []interface{}{
	&models.Store{},
	&models.Region{},
	&models.OpeningPeriod{},
	&models.HolidayPeriod{},
	&models.User{},
	&models.Address{},
	&models.PaymentLink{},
	&models.Group{},
	&models.Menu{},
	&models.FoodType{},
	&models.Quantity{},
	&models.IngredientGroup{},
	&models.Ingredient{},
	&models.Food{},
	&models.IngredientRelation{},
	&models.GroupOrder{},
	&models.Order{},
	&models.OrderedFood{},
	&models.TemporaryOrder{},
	&models.OutboxJob{},
}

func MigrateOrderingDB(db *gorm.DB) error {
	for _, m := range orderingModels {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", m, err)
		}
	}
	logrus.Info("ordering database migrated")
	return nil
}
