package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUnsupportedHash is returned for hashes that are neither argon2id nor bcrypt.
	ErrUnsupportedHash = errors.New("unsupported password hash")

	// ErrWeakHash is returned for hashes below the configured minimum work factor.
	ErrWeakHash = errors.New("password hash below minimum work factor")
)

// HashConfig sets the parameters of new hashes and the minimum accepted for stored ones.
type HashConfig struct {
	MinBcryptCost       int    `mapstructure:"minBcryptCost" validate:"gte=0,lte=31"`
	MinArgon2Memory     uint32 `mapstructure:"minArgon2Memory"`     // KiB
	MinArgon2Iterations uint32 `mapstructure:"minArgon2Iterations"` //nolint:tagliatelle
	Argon2Memory        uint32 `mapstructure:"argon2Memory"`
	Argon2Iterations    uint32 `mapstructure:"argon2Iterations"`
	Argon2Parallelism   uint8  `mapstructure:"argon2Parallelism"`
}

// Defaults for HashConfig.
const (
	DefaultMinBcryptCost       = 10
	DefaultMinArgon2Memory     = 19 * 1024
	DefaultMinArgon2Iterations = 1
)

// Hasher creates and compares password hashes.
type Hasher struct {
	cfg    HashConfig
	params *argon2id.Params
}

// NewHasher validates cfg. New hashes must themselves meet the minimums.
func NewHasher(cfg HashConfig) (*Hasher, error) {
	if cfg.MinBcryptCost == 0 {
		cfg.MinBcryptCost = DefaultMinBcryptCost
	}

	if cfg.MinArgon2Memory == 0 {
		cfg.MinArgon2Memory = DefaultMinArgon2Memory
	}

	if cfg.MinArgon2Iterations == 0 {
		cfg.MinArgon2Iterations = DefaultMinArgon2Iterations
	}

	params := *argon2id.DefaultParams
	if cfg.Argon2Memory != 0 {
		params.Memory = cfg.Argon2Memory
	}

	if cfg.Argon2Iterations != 0 {
		params.Iterations = cfg.Argon2Iterations
	}

	if cfg.Argon2Parallelism != 0 {
		params.Parallelism = cfg.Argon2Parallelism
	}

	if params.Memory < cfg.MinArgon2Memory || params.Iterations < cfg.MinArgon2Iterations {
		return nil, fmt.Errorf("%w: argon2 m=%d t=%d", ErrWeakHash, params.Memory, params.Iterations)
	}

	return &Hasher{cfg: cfg, params: &params}, nil
}

// Hash returns an argon2id hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	return argon2id.CreateHash(password, h.params) //nolint:wrapcheck
}

// Check validates that hash is supported and strong enough.
func (h *Hasher) Check(hash string) error {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		params, _, _, err := argon2id.DecodeHash(hash)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnsupportedHash, err)
		}

		if params.Memory < h.cfg.MinArgon2Memory || params.Iterations < h.cfg.MinArgon2Iterations {
			return fmt.Errorf("%w: argon2 m=%d t=%d", ErrWeakHash, params.Memory, params.Iterations)
		}
	case isBcrypt(hash):
		cost, err := bcrypt.Cost([]byte(hash))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnsupportedHash, err)
		}

		if cost < h.cfg.MinBcryptCost {
			return fmt.Errorf("%w: bcrypt cost %d", ErrWeakHash, cost)
		}
	default:
		return ErrUnsupportedHash
	}

	return nil
}

// Compare reports whether password matches hash in constant time.
func (h *Hasher) Compare(password, hash string) (bool, error) {
	if err := h.Check(hash); err != nil {
		return false, err
	}

	if isBcrypt(hash) {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}

		return err == nil, err //nolint:wrapcheck
	}

	return argon2id.ComparePasswordAndHash(password, hash) //nolint:wrapcheck
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

// profile is the scheme and work factor part of hash, without salt and digest.
func profile(hash string) string {
	n := 4 // $argon2id$v=19$m=...,t=...,p=...
	if isBcrypt(hash) {
		n = 3 // $2b$10
	}

	parts := strings.SplitN(hash, "$", n+1)
	if len(parts) <= n {
		return hash
	}

	return strings.Join(parts[:n], "$")
}

// mimic hashes password with the scheme and work factor of like.
func (h *Hasher) mimic(password, like string) (string, error) {
	if err := h.Check(like); err != nil {
		return "", err
	}

	if isBcrypt(like) {
		cost, err := bcrypt.Cost([]byte(like))
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrUnsupportedHash, err)
		}

		raw, err := bcrypt.GenerateFromPassword([]byte(password), cost)

		return string(raw), err //nolint:wrapcheck
	}

	params, _, _, err := argon2id.DecodeHash(like)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedHash, err)
	}

	return argon2id.CreateHash(password, params) //nolint:wrapcheck
}
