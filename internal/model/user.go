package model

import (
	"time"

	"github.com/google/uuid"
)

// Capability is a single permission bit. Roles carry a closed set of these
// instead of one boolean column per permission.
type Capability uint32

const (
	CapViewTasks Capability = 1 << iota
	CapCreateTasks
	CapEditTasks
	CapDeleteTasks
	CapAssignTasks
	CapChangeTaskStatus
	CapAccessChat
	CapManageUsers
)

type Role struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name         string     `json:"name" gorm:"uniqueIndex;not null"`
	Capabilities Capability `json:"capabilities" gorm:"not null;default:0"`
}

func (r *Role) Has(c Capability) bool {
	return r.Capabilities&c != 0
}

type User struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Email          string     `json:"email" gorm:"uniqueIndex;not null"`
	HashedPassword string     `json:"-" gorm:"not null"`
	Name           string     `json:"name" gorm:"not null"`
	IsStaff        bool       `json:"is_staff" gorm:"not null;default:false"`
	RoleID         *uuid.UUID `json:"role" gorm:"type:uuid"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`

	Role *Role `json:"role_detail,omitempty" gorm:"foreignKey:RoleID"`
}

// Has reports whether the user holds the capability. Staff users hold every
// capability; users without a role hold none.
func (u *User) Has(c Capability) bool {
	if u.IsStaff {
		return true
	}
	if u.Role == nil {
		return false
	}
	return u.Role.Has(c)
}
