package domain

import "context"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is the directory surface the core depends on. Registration, sessions
// and password management are out of scope; the vault only reads identity,
// role and MFA material.
type User struct {
	ID            int64
	Username      string
	Email         string
	Role          Role
	WalletAddress string

	TOTPSecret    string
	MFAConfigured bool
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// LedgerIdentity is the identity mirrored to the ledger: the wallet address
// when one is assigned, the username otherwise.
func (u User) LedgerIdentity() string {
	if u.WalletAddress != "" {
		return u.WalletAddress
	}
	return u.Username
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
}
