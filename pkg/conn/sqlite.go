// Package conn wraps database connections used by the runtime.
package conn

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSQLitePath = "trader.db"

// Option defines connection options for the local SQLite database.
type Option struct {
	Path   string
	Config *gorm.Config
}

// Client wraps a SQLite connection pool.
type Client struct {
	opt Option
	db  *gorm.DB
}

// New opens the SQLite database at the configured path, creating the file
// if needed.
func New(option Option) (*Client, error) {
	path := option.Path
	if path == "" {
		path = defaultSQLitePath
	}

	config := option.Config
	if config == nil {
		config = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	}

	db, err := gorm.Open(sqlite.Open(path), config)
	if err != nil {
		return nil, err
	}

	return &Client{opt: option, db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	if c == nil {
		return nil
	}
	return c.db
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
