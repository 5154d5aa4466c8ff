package identitysvc

import "golang.org/x/crypto/bcrypt"

// IdentityConfig contains configuration parameters for the identity service.
type IdentityConfig struct {
	// BcryptCost is the work factor for password hashes
	BcryptCost int `env:"BCRYPT_COST" default:"10"`

	// Admin is the account ensured by SeedAdmin
	Admin AdminConfig `envPrefix:"ADMIN_"`
}

// AdminConfig describes the seeded administrator account.
type AdminConfig struct {
	ID       string `env:"ID" default:"u-admin"`
	Name     string `env:"NAME" default:"Site Admin"`
	Email    string `env:"EMAIL" default:"admin@example.com"`
	Password string `env:"PASSWORD" default:"Admin123!"`
}

func (cfg IdentityConfig) cost() int {
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}

	return cfg.BcryptCost
}
