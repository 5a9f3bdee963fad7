package conn

import (
	"fmt"
	"net/url"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Option describes how to reach a PostgreSQL server. ConnString, when
// set, wins over the individual fields.
type Option struct {
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	Params     map[string]string
	ConnString string
	Config     *gorm.Config
}

// Client owns one gorm connection pool.
type Client struct {
	opt Option
	db  *gorm.DB
}

// New opens a connection pool from the provided options.
func New(option Option) (*Client, error) {
	cfg := option.Config
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	db, err := gorm.Open(postgres.Open(option.dsn()), cfg)
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

func (opt Option) dsn() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	query := url.Values{"sslmode": {fallback(opt.SSLMode, "disable")}}
	for key, value := range opt.Params {
		if key != "" {
			query.Set(key, value)
		}
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", fallback(opt.Host, "localhost"), fallbackPort(opt.Port)),
		RawQuery: query.Encode(),
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}
	switch {
	case opt.User != "" && opt.Password != "":
		u.User = url.UserPassword(opt.User, opt.Password)
	case opt.User != "":
		u.User = url.User(opt.User)
	}
	return u.String()
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func fallbackPort(p int) int {
	if p == 0 {
		return 5432
	}
	return p
}
