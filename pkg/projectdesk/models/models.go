package models

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns all models in dependency order
func AllModels() []interface{} {
	return []interface{}{
		&AdminRole{},
		&StudentRole{},
		&Admin{},
		&Student{},
		&BlacklistEntry{},
		&Project{},
		&CoordinatorProject{},
		&SecurityCode{},
		&Group{},
		&GroupMember{},
		&Complaint{},
		&Fair{},
		&GroupDeliverable{},
		&GroupDeliverableComponent{},
		&GroupDeliverablesComponent{},
		&GroupDeliverableSelection{},
		&GroupComponentImplementationDetail{},
		&Transaction{},
		&StudentDeliverable{},
		&StudentDeliverableComponent{},
		&StudentDeliverablesComponent{},
		&StudentDeliverableSelection{},
		&StudentUpload{},
	}
}

// AutoMigrate creates the current schema in one pass and seeds the role catalogs
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}
	return SeedRoles(db)
}

// SeedRoles inserts the fixed admin and student roles, leaving existing rows alone
func SeedRoles(db *gorm.DB) error {
	adminRoles := AdminRoles()
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&adminRoles).Error; err != nil {
		return err
	}
	studentRoles := StudentRoles()
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&studentRoles).Error
}
