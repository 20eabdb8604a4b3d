package models

import "time"

// Project is a course project instance. Most other rows hang off a project
// and are removed with it.
type Project struct {
	ID                           uint       `gorm:"primarykey" json:"id"`
	CreatedAt                    time.Time  `json:"created_at"`
	UpdatedAt                    time.Time  `json:"updated_at"`
	Name                         string     `gorm:"not null;uniqueIndex:idx_project_name_year" json:"name"`
	Year                         int        `gorm:"not null;uniqueIndex:idx_project_name_year" json:"year"`
	MaxStudentUploads            int        `gorm:"not null" json:"max_student_uploads"`
	MaxGroupSize                 int        `gorm:"not null" json:"max_group_size"`
	MaxGroups                    int        `gorm:"not null;default:0" json:"max_groups"`
	DeliverableSelectionDeadline *time.Time `json:"deliverable_selection_deadline"`
	Active                       bool       `gorm:"not null;default:true" json:"active"`
}

// SelectionDeadlinePassed reports whether selections are frozen at now
func (p Project) SelectionDeadlinePassed(now time.Time) bool {
	return p.DeliverableSelectionDeadline != nil && now.After(*p.DeliverableSelectionDeadline)
}

// SecurityCode lets a student open a group in a project
type SecurityCode struct {
	ID            uint          `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	ProjectID     uint          `gorm:"not null;index" json:"project_id"`
	StudentRoleID StudentRoleID `gorm:"not null" json:"student_role_id"`
	Code          string        `gorm:"uniqueIndex;not null;size:7" json:"code"`
	Expiration    time.Time     `gorm:"not null" json:"expiration"`

	// Relationships
	Project     Project     `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	StudentRole StudentRole `gorm:"foreignKey:StudentRoleID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

// Expired reports whether the code can no longer be used at now
func (s SecurityCode) Expired(now time.Time) bool {
	return !now.Before(s.Expiration)
}

// Fair is a window during which groups trade deliverables
type Fair struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ProjectID uint      `gorm:"not null;index" json:"project_id"`
	Details   string    `json:"details"`
	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`

	// Relationships
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Running reports whether now is inside the fair window
func (f Fair) Running(now time.Time) bool {
	return !now.Before(f.StartDate) && now.Before(f.EndDate)
}
