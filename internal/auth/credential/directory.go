package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/scope"
	"github.com/GoPowerDNS-Admin/adminauth/internal/db/models"
)

// ErrUserExists is returned when creating a user whose username is taken.
var ErrUserExists = errors.New("user already exists")

// Directory is a user source backed by the users table.
type Directory struct {
	db     *gorm.DB
	hasher *Hasher
}

// NewDirectory creates a directory over db.
func NewDirectory(db *gorm.DB, hasher *Hasher) *Directory {
	return &Directory{db: db, hasher: hasher}
}

// Lookup implements LookupFunc for local users.
func (d *Directory) Lookup(ctx context.Context, username string) (*Record, error) {
	var u models.User

	err := d.local(username).WithContext(ctx).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	attrs := make(map[string]string)
	if u.Email != "" {
		attrs[identity.AttrEmail] = u.Email
	}

	if u.Name != "" {
		attrs[identity.AttrName] = u.Name
	}

	return &Record{
		Username:   u.Username,
		Hash:       u.Password,
		Scope:      scope.Parse(u.Scope),
		Attributes: attrs,
		TOTPSecret: u.TOTPSecret,
		Disabled:   !u.Active,
	}, nil
}

// Create adds an active local user.
func (d *Directory) Create(ctx context.Context, username, password string, s scope.Scope) (*models.User, error) {
	var count int64

	if err := d.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	if count > 0 {
		return nil, ErrUserExists
	}

	hash, err := d.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	u := models.User{
		Active:     true,
		Username:   username,
		Password:   hash,
		Scope:      strings.Join(s.Values(), " "),
		AuthSource: models.AuthSourceLocal,
	}

	if err = d.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &u, nil
}

// SetPassword replaces the password hash of a local user.
func (d *Directory) SetPassword(ctx context.Context, username, password string) error {
	hash, err := d.hasher.Hash(password)
	if err != nil {
		return err
	}

	return d.update(ctx, d.local(username), "password", hash)
}

// SetActive enables or disables a user.
func (d *Directory) SetActive(ctx context.Context, username string, active bool) error {
	return d.update(ctx, d.db.Where("username = ?", username), "active", active)
}

// SetOTPSecret sets the TOTP secret of a local user, an empty secret turns the second factor off.
func (d *Directory) SetOTPSecret(ctx context.Context, username, secret string) error {
	return d.update(ctx, d.local(username), "totp_secret", secret)
}

func (d *Directory) local(username string) *gorm.DB {
	return d.db.Where("username = ? AND auth_source = ?", username, models.AuthSourceLocal)
}

func (d *Directory) update(ctx context.Context, where *gorm.DB, column string, value any) error {
	res := where.WithContext(ctx).Model(&models.User{}).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("failed to update %s: %w", column, res.Error)
	}

	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// Count returns the number of users.
func (d *Directory) Count(ctx context.Context) (int64, error) {
	var n int64
	err := d.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error

	return n, err //nolint:wrapcheck
}
