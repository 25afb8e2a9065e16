package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/glog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

type tileCacheRecord struct {
	TileKey   string `gorm:"primaryKey;size:128"`
	Data      []byte
	CreatedAt time.Time
}

func (tileCacheRecord) TableName() string {
	return "tile_cache"
}

// Tile cache persisted in a SQL database through gorm. All statements go through one mutex.
type DBTileCache struct {
	mu sync.Mutex
	db *gorm.DB
}

// Opens (and migrates) a cache database. For sqlite dsn is a file path, for postgres a
// connection string.
func OpenDBTileCache(driver string, dsn string) (*DBTileCache, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSqlite:
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return nil, err
			}
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open tile cache: %w", err)
	}

	if err := db.AutoMigrate(&tileCacheRecord{}); err != nil {
		return nil, fmt.Errorf("migrate tile cache: %w", err)
	}

	glog.Infof("tile cache opened (%s)", driver)
	return &DBTileCache{db: db}, nil
}

func (c *DBTileCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int64
	if err := c.db.Model(&tileCacheRecord{}).Where("tile_key = ?", key).Count(&count).Error; err != nil {
		glog.Warningf("tile cache lookup %s failed: %v", key, err)
		return false
	}
	return count > 0
}

func (c *DBTileCache) Get(key string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	var record tileCacheRecord
	err := c.db.Where("tile_key = ?", key).First(&record).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			glog.Warningf("tile cache read %s failed: %v", key, err)
		}
		return []byte{}
	}
	if record.Data == nil {
		return []byte{}
	}
	return record.Data
}

// Inserts the blob unless the key already exists
func (c *DBTileCache) Set(key string, value []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := tileCacheRecord{
		TileKey:   key,
		Data:      value,
		CreatedAt: time.Now(),
	}
	err := c.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
	if err != nil {
		glog.Warningf("tile cache write %s failed: %v", key, err)
		return false
	}
	return true
}

func (c *DBTileCache) Len() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int64
	c.db.Model(&tileCacheRecord{}).Count(&count)
	return count
}

func (c *DBTileCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
