// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
)

// MySQL builds a go-sql-driver DSN.
func MySQL(cfg config.DB) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		cfg.Extras,
	)
}

// Postgres builds a postgres:// connection URI.
func Postgres(cfg config.DB) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}

	q, err := url.ParseQuery(cfg.Extras)
	if err != nil {
		q = url.Values{}
	}

	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}

	u.RawQuery = q.Encode()

	return u.String()
}
