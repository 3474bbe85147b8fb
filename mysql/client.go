package mysql

import (
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Options configures NewClient. Loc defaults to UTC when nil.
type Options struct {
	DBName   string
	User     string
	Passwd   string
	Addr     string
	Loc      *time.Location
	MaxOpen  int
	MaxIdle  int
	ConnLife time.Duration
}

// NewClient opens a pooled connection to MySQL via jmoiron/sqlx, so the
// query builders in this package can use sqlx's ExecContext/SelectContext.
func NewClient(opts Options) (*sqlx.DB, error) {
	loc := opts.Loc
	if loc == nil {
		loc = time.UTC
	}

	cfg := mysql.Config{
		DBName:               opts.DBName,
		User:                 opts.User,
		Passwd:               opts.Passwd,
		Addr:                 opts.Addr,
		Net:                  "tcp",
		ParseTime:            true,
		Collation:            "utf8mb4_unicode_ci",
		AllowNativePasswords: true,
		Loc:                  loc,
	}

	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}

	maxOpen := opts.MaxOpen
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := opts.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 10
	}
	connLife := opts.ConnLife
	if connLife <= 0 {
		connLife = 10 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connLife)

	return db, nil
}
