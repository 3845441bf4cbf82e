package database

import (
	"fmt"
	"log"

	"github.com/mmo7amed2010/swenam-sis-sub001/internal/config"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models 需要迁移的全部表
var Models = []interface{}{
	&model.Course{},
	&model.Module{},
	&model.Lesson{},
	&model.ModuleItem{},
	&model.ItemProgress{},
	&model.Quiz{},
	&model.QuizQuestion{},
	&model.QuizAttempt{},
	&model.Assignment{},
	&model.Submission{},
	&model.SubmissionHistory{},
	&model.Grade{},
	&model.ModuleProgress{},
	&model.CourseGrade{},
	&model.AuditLog{},
}

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", config.DriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case config.DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		return postgres.Open(dsn), nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.Path), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func InitDB(cfg *config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if migrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		log.Println("Database migration completed")
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models...)
}

// OpenSQLiteMemory 打开一个独立的内存库并完成迁移，供测试使用
func OpenSQLiteMemory(name string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
