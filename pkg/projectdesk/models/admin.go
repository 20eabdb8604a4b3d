package models

import "time"

// Admin is a staff account. Its role decides what it can see and manage.
type Admin struct {
	ID           uint        `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	FirstName    string      `gorm:"not null" json:"first_name"`
	LastName     string      `gorm:"not null" json:"last_name"`
	Email        string      `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string      `gorm:"not null" json:"-"`
	AdminRoleID  AdminRoleID `gorm:"not null;index" json:"admin_role_id"`

	// Relationships
	AdminRole AdminRole `gorm:"foreignKey:AdminRoleID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

// FullName joins first and last name
func (a Admin) FullName() string {
	return a.FirstName + " " + a.LastName
}

// CoordinatorProject assigns a coordinator admin to a project
type CoordinatorProject struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	AdminID    uint      `gorm:"not null;uniqueIndex:idx_coordinator_project" json:"admin_id"`
	ProjectID  uint      `gorm:"not null;uniqueIndex:idx_coordinator_project" json:"project_id"`
	AssignedAt time.Time `gorm:"not null" json:"assigned_at"`

	// Relationships
	Admin   Admin   `gorm:"foreignKey:AdminID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
