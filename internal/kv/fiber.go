package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/storage/mysql/v2"
	"github.com/gofiber/storage/postgres/v3"
)

// defaultTable is the table gofiber storage falls back to.
const defaultTable = "fiber_storage"

// MySQL is a gofiber MySQL storage that can list its keys.
type MySQL struct {
	*mysql.Storage
	sqlKeys string
}

var (
	_ Store  = (*MySQL)(nil)
	_ Lister = (*MySQL)(nil)
)

// NewMySQL returns a MySQL backed store using a go-sql-driver DSN.
// reset drops every existing entry of the table.
func NewMySQL(dsn, table string, reset bool) *MySQL {
	if table == "" {
		table = defaultTable
	}

	return &MySQL{
		Storage: mysql.New(mysql.Config{
			ConnectionURI: dsn,
			Table:         table,
			Reset:         reset,
		}),
		sqlKeys: fmt.Sprintf("SELECT k FROM %s WHERE k LIKE ? AND (e = 0 OR e > ?)", table),
	}
}

// Keys returns the unexpired keys starting with prefix.
func (s *MySQL) Keys(prefix string) ([]string, error) {
	rows, err := s.Conn().Query(s.sqlKeys, likePattern(prefix), time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string

	for rows.Next() {
		var k string
		if err = rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}

		keys = append(keys, k)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	return withPrefix(keys, prefix), nil
}

// Postgres is a gofiber PostgreSQL storage that can list its keys.
type Postgres struct {
	*postgres.Storage
	sqlKeys string
}

var (
	_ Store  = (*Postgres)(nil)
	_ Lister = (*Postgres)(nil)
)

// NewPostgres returns a PostgreSQL backed store using a postgres:// URI.
func NewPostgres(uri, table string, reset bool) *Postgres {
	if table == "" {
		table = defaultTable
	}

	return &Postgres{
		Storage: postgres.New(postgres.Config{
			ConnectionURI: uri,
			Table:         table,
			Reset:         reset,
		}),
		sqlKeys: fmt.Sprintf("SELECT k FROM %s WHERE k LIKE $1 AND (e = 0 OR e > $2)", table),
	}
}

// Keys returns the unexpired keys starting with prefix.
func (s *Postgres) Keys(prefix string) ([]string, error) {
	rows, err := s.Conn().Query(context.Background(), s.sqlKeys, likePattern(prefix), time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string

	for rows.Next() {
		var k string
		if err = rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}

		keys = append(keys, k)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	return withPrefix(keys, prefix), nil
}
