package models

import "time"

// Group is a team of students working on a project
type Group struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_project_group_name" json:"project_id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_project_group_name" json:"name"`

	// Relationships
	Project Project       `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Members []GroupMember `gorm:"foreignKey:GroupID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// GroupMember places a student in a group with a role
type GroupMember struct {
	ID            uint          `gorm:"primarykey" json:"id"`
	GroupID       uint          `gorm:"not null;uniqueIndex:idx_group_student" json:"group_id"`
	StudentID     uint          `gorm:"not null;uniqueIndex:idx_group_student;index" json:"student_id"`
	StudentRoleID StudentRoleID `gorm:"not null" json:"student_role_id"`
	JoinedAt      time.Time     `gorm:"not null" json:"joined_at"`

	// Relationships
	Group       Group       `gorm:"foreignKey:GroupID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student     Student     `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	StudentRole StudentRole `gorm:"foreignKey:StudentRoleID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

// IsLeader reports whether the member leads the group
func (m GroupMember) IsLeader() bool {
	return m.StudentRoleID == StudentRoleGroupLeader
}

// Complaint is a message one group files about another
type Complaint struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	FromGroupID uint      `gorm:"not null;index" json:"from_group_id"`
	ToGroupID   uint      `gorm:"not null;index" json:"to_group_id"`
	Text        string    `gorm:"type:text;not null" json:"text"`

	// Relationships
	FromGroup Group `gorm:"foreignKey:FromGroupID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	ToGroup   Group `gorm:"foreignKey:ToGroupID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
