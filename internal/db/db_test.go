package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/adminauth/internal/config"
	"github.com/GoPowerDNS-Admin/adminauth/internal/db"
	"github.com/GoPowerDNS-Admin/adminauth/internal/db/models"
)

func TestOpenSQLite(t *testing.T) {
	conn, err := db.Open(config.DB{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)

	require.NoError(t, conn.Create(&models.User{Username: "admin", Active: true, Scope: "*"}).Error)

	var u models.User
	require.NoError(t, conn.Where("username = ?", "admin").Take(&u).Error)
	assert.Equal(t, "*", u.Scope)
	assert.Equal(t, models.AuthSourceLocal, u.AuthSource)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := db.Open(config.DB{Driver: "oracle"})
	assert.ErrorIs(t, err, db.ErrUnknownDriver)
}
