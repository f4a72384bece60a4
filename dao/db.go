package dao

import (
	"github.com/pkg/errors"
	"gitlab.grandhoo.com/rock/rock_pattern/logger"
	"gitlab.grandhoo.com/rock/rock_pattern/rds_config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitGorm 打开数据库并建表, driver 为 sqlite 或 postgres
func InitGorm(driver, dsn string) error {
	var dialector gorm.Dialector
	switch driver {
	case rds_config.DbDriverSqlite, "":
		dialector = sqlite.Open(dsn)
	case rds_config.DbDriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return errors.Errorf("unsupported db driver %s", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return errors.Wrapf(err, "open %s", driver)
	}
	if err = db.AutoMigrate(&PatternTask{}, &PatternRule{}); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	DB = db
	logger.Infof("db inited, driver: %s", driver)
	return nil
}

func Enabled() bool {
	return DB != nil
}
