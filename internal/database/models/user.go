package models

// User roles. Admin bypasses ownership checks everywhere; the other roles
// are equivalent from the authorization point of view.
const (
	RoleAdmin    = "admin"
	RoleVendedor = "vendedor"
	RoleSuporte  = "suporte"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleVendedor, RoleSuporte:
		return true
	}
	return false
}

type User struct {
	Base
	Name         string `gorm:"size:100;not null" json:"name"`
	Username     string `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email        string `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         string `gorm:"size:20;default:'vendedor'" json:"role"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
