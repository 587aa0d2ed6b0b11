package models

import "time"

const (
	OrgRoleOwner  = "OWNER"
	OrgRoleAdmin  = "ADMIN"
	OrgRoleMember = "MEMBER"
)

type Organization struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex;type:varchar(100)" json:"slug"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrganizationMembership is read-only for the payments subsystem: it only
// needs "which orgs does this user belong to" and "who owns those orgs".
type OrganizationMembership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrgID     uint      `gorm:"not null;index:ux_org_memberships_org_user,unique,priority:1;index:idx_org_memberships_org_role,priority:1" json:"org_id"`
	UserID    uint      `gorm:"not null;index:ux_org_memberships_org_user,unique,priority:2;index" json:"user_id"`
	Role      string    `gorm:"type:varchar(16);not null;default:'MEMBER';index:idx_org_memberships_org_role,priority:2" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
