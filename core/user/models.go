package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/celsofranciscano/innotech/core"
)

// Role is the closed set of privileges a user may hold.
type Role string

// Roles
const (
	RoleSuperAdmin  Role = "Superadministrador"
	RoleCoordinator Role = "Coordinador"
	RoleStudent     Role = "Estudiante"
	RoleSupervisor  Role = "Supervisor"
	RoleGuest       Role = "Invitado"
	RoleTeacher     Role = "Docente"
	RoleJuror       Role = "Jurado"
)

var (
	AllRoles = []Role{RoleSuperAdmin, RoleCoordinator, RoleStudent, RoleSupervisor, RoleGuest, RoleTeacher, RoleJuror}

	// ReviewerRoles may open the dashboard of a call they own or are assigned to.
	ReviewerRoles = []Role{RoleCoordinator, RoleJuror, RoleTeacher, RoleSupervisor}
)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ParseRole maps a free-form privilege name onto the Role enumeration (case and space insensitive).
func ParseRole(s string) (Role, bool) {
	s = core.CleanString(s)
	for _, role := range AllRoles {
		if strings.EqualFold(s, string(role)) {
			return role, true
		}
	}
	return "", false
}

// RoleSet is the set of roles a route accepts.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Allows reports whether role is in the set. The superadmin is always allowed.
func (s RoleSet) Allows(role Role) bool {
	if role == RoleSuperAdmin {
		return true
	}
	_, ok := s[role]
	return ok
}

type Privilege struct {
	ID          int       `db:"id" json:"id"`
	Name        Role      `db:"name" json:"privilege"`
	Description string    `db:"description" json:"description"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

type User struct {
	ID           int       `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"firstName"`
	LastName     string    `db:"last_name" json:"lastName"`
	Email        string    `db:"email" json:"email"`
	PrivilegeID  int       `db:"privilege_id" json:"FK_privilege"`
	Role         Role      `db:"role" json:"role"` // privilege name
	IsActive     bool      `db:"is_active" json:"isActive"`
	IsOnline     bool      `db:"-" json:"isOnline"`
	PasswordHash []byte    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"` // UTC
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"` // UTC
	LastLogin    null.Time `db:"last_login" json:"lastLogin"` // UTC
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	FirstName       string `json:"firstName" validate:"required,notblank"`
	LastName        string `json:"lastName" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	PrivilegeID     int    `json:"FK_privilege" validate:"required,gt=0"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Only the fields present in the request are considered.
type UpdateUser struct {
	FirstName       *string `json:"firstName" validate:"omitempty,notblank"`
	LastName        *string `json:"lastName" validate:"omitempty,notblank"`
	Email           *string `json:"email" validate:"omitempty,email"`
	PrivilegeID     *int    `json:"FK_privilege" validate:"omitempty,gt=0"`
	IsActive        *bool   `json:"isActive"`
	Password        string  `json:"password" validate:"omitempty"`
	PasswordConfirm string  `json:"passwordConfirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate) error {
	if uu.FirstName != nil {
		*uu.FirstName = core.CleanString(*uu.FirstName)
	}
	if uu.LastName != nil {
		*uu.LastName = core.CleanString(*uu.LastName)
	}
	if uu.Email != nil {
		*uu.Email = core.CleanString(*uu.Email, true /* lower */)
	}
	return validate.Struct(uu)
}

type NewPrivilege struct {
	Name        string `json:"privilege" validate:"required,role"`
	Description string `json:"description"`
}

func (np *NewPrivilege) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Description = core.CleanString(np.Description)
	return validate.Struct(np)
}

type UpdatePrivilege struct {
	Name        *string `json:"privilege" validate:"omitempty,role"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

func (up *UpdatePrivilege) Validate(validate *validator.Validate) error {
	if up.Name != nil {
		*up.Name = core.CleanString(*up.Name)
	}
	if up.Description != nil {
		*up.Description = core.CleanString(*up.Description)
	}
	return validate.Struct(up)
}

// ResetPassword is the body of a password reset confirmation.
type ResetPassword struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (rp *ResetPassword) Validate(validate *validator.Validate) error {
	rp.UID = core.CleanString(rp.UID)
	rp.Token = core.CleanString(rp.Token)
	return validate.Struct(rp)
}

type QueryFilter struct {
	Search      string `query:"search"`
	PrivilegeID int    `query:"privilege"`
	IsActive    *bool  `query:"isActive"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
