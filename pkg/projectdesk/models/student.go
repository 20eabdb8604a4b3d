package models

import "time"

// Student is a self-registered account. New students stay pending until
// they confirm their email address.
type Student struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	FirstName    string    `gorm:"not null" json:"first_name"`
	LastName     string    `gorm:"not null" json:"last_name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	UniversityID string    `gorm:"uniqueIndex;not null" json:"university_id"`
	PasswordHash string    `gorm:"not null" json:"-"`
	IsPending    bool      `gorm:"not null;default:true" json:"is_pending"`

	// Relationships
	Memberships []GroupMember `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// FullName joins first and last name
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// BlacklistEntry bans a university id from signing up
type BlacklistEntry struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	UniversityID string    `gorm:"uniqueIndex;not null" json:"university_id"`
	Description  string    `json:"description"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	BannedAt     time.Time `gorm:"not null" json:"banned_at"`
}

// TableName keeps the historical singular table name
func (BlacklistEntry) TableName() string {
	return "blacklist"
}
