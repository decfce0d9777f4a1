package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"qa-smart-go/internal/config"
	"qa-smart-go/pkg/log"
)

var DB *gorm.DB

// Open 根据配置的 driver 打开数据库连接，支持 mysql 与 sqlite。
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	switch cfg.Driver {
	case "", "mysql":
		return gorm.Open(mysql.Open(cfg.MySQL.DSN), gormCfg)
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
			_ = os.MkdirAll(dir, os.ModePerm)
		}
		// sqlite 需要显式开启外键约束，many2many 关联表依赖级联删除
		return gorm.Open(sqlite.Open(cfg.SQLite.Path+"?_foreign_keys=on"), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// InitDB 初始化数据库连接并配置连接池
func InitDB(cfg config.DatabaseConfig) {
	var err error
	DB, err = Open(cfg)
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间

	log.Infof("%s database connected successfully", driverName(cfg.Driver))
}

func driverName(driver string) string {
	if driver == "" {
		return "mysql"
	}
	return driver
}
