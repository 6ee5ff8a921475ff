package user

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleMentor  = "mentor"
	RoleAdmin   = "admin"
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var Roles = []Role{
	{Name: "Student", Value: RoleStudent},
	{Name: "Teacher", Value: RoleTeacher},
	{Name: "Mentor", Value: RoleMentor},
	{Name: "Admin", Value: RoleAdmin},
}

// User is the profile as served by the platform API. It is replaced wholesale
// on every successful login or profile fetch; never mutated field by field.
type User struct {
	ID            int         `json:"id"`
	Username      string      `json:"username"`
	Email         string      `json:"email"`
	Role          string      `json:"role"`
	IsMentor      bool        `json:"isMentor"` // secondary flag; independent of Role
	EXP           int         `json:"exp"`
	Coins         int         `json:"coins"`
	Rank          int         `json:"rank"`
	Qualification null.String `json:"qualification,omitempty"`
	Institution   null.String `json:"institution,omitempty"`
	Interests     []string    `json:"interests,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"` // UTC
}

func (u User) IsStudent() bool { return u.Role == RoleStudent }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }

// MentorTagged reports whether the user carries the mentor tag, either as
// their literal role or via the secondary mentor flag.
func (u User) MentorTagged() bool {
	return u.IsMentor || u.Role == RoleMentor
}

// Clone returns a deep copy safe to hand out in snapshots.
func (u User) Clone() User {
	cp := u
	if u.Interests != nil {
		cp.Interests = append([]string(nil), u.Interests...)
	}
	return cp
}

// Credentials carries a login request. Validated before any network call.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate() error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	return core.Validate.Struct(c)
}
