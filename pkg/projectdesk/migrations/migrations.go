// Package migrations applies the schema as an ordered list of named steps.
// Each step runs once, inside a transaction, and is recorded in
// schema_migrations.
package migrations

import (
	"fmt"
	"time"

	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"github.com/shrimpsizemoose/trekker/logger"
	"gorm.io/gorm"
)

// Migration is one schema step
type Migration struct {
	ID string
	Up func(tx *gorm.DB) error
}

// SchemaMigration records an applied step
type SchemaMigration struct {
	ID        string    `gorm:"primarykey;size:191"`
	AppliedAt time.Time `gorm:"not null"`
}

// legacyGroupDeliverableSelection is the selection table as first shipped,
// with one link and description for the whole deliverable
type legacyGroupDeliverableSelection struct {
	ID                 uint `gorm:"primarykey"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
	GroupID            uint   `gorm:"not null;uniqueIndex"`
	GroupDeliverableID uint   `gorm:"not null;index"`
	Link               string `gorm:"not null;default:''"`
	MarkdownText       string `gorm:"type:text;not null;default:''"`

	Group            models.Group            `gorm:"foreignKey:GroupID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	GroupDeliverable models.GroupDeliverable `gorm:"foreignKey:GroupDeliverableID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (legacyGroupDeliverableSelection) TableName() string {
	return "group_deliverable_selections"
}

func create(values ...interface{}) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		return tx.AutoMigrate(values...)
	}
}

// All returns the steps in the order they must be applied
func All() []Migration {
	return []Migration{
		{ID: "0001_roles", Up: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&models.AdminRole{}, &models.StudentRole{}); err != nil {
				return err
			}
			return models.SeedRoles(tx)
		}},
		{ID: "0002_accounts", Up: create(&models.Admin{}, &models.Student{}, &models.BlacklistEntry{})},
		{ID: "0003_projects", Up: create(&models.Project{}, &models.CoordinatorProject{}, &models.SecurityCode{})},
		{ID: "0004_groups", Up: create(&models.Group{}, &models.GroupMember{}, &models.Complaint{})},
		{ID: "0005_fairs", Up: create(&models.Fair{})},
		{ID: "0006_group_catalog", Up: create(&models.GroupDeliverable{}, &models.GroupDeliverableComponent{}, &models.GroupDeliverablesComponent{})},
		{ID: "0007_group_selections", Up: create(&legacyGroupDeliverableSelection{})},
		{ID: "0008_transactions", Up: create(&models.Transaction{})},
		{ID: "0009_student_catalog", Up: create(
			&models.StudentDeliverable{},
			&models.StudentDeliverableComponent{},
			&models.StudentDeliverablesComponent{},
			&models.StudentDeliverableSelection{},
			&models.StudentUpload{},
		)},
		{ID: "0010_normalize_group_selection_details", Up: normalizeGroupSelectionDetails},
		{ID: "0011_unique_transactions", Up: uniqueTransactions},
	}
}

// normalizeGroupSelectionDetails moves the per-selection link and description
// onto every component of the selected deliverable, then drops the old columns
func normalizeGroupSelectionDetails(tx *gorm.DB) error {
	if err := tx.AutoMigrate(&models.GroupComponentImplementationDetail{}); err != nil {
		return err
	}

	m := tx.Migrator()
	if !m.HasColumn(&legacyGroupDeliverableSelection{}, "link") {
		return nil
	}

	var legacy []legacyGroupDeliverableSelection
	if err := tx.Where("link <> '' OR markdown_text <> ''").Find(&legacy).Error; err != nil {
		return err
	}
	for _, sel := range legacy {
		var links []models.GroupDeliverablesComponent
		if err := tx.Where("group_deliverable_id = ?", sel.GroupDeliverableID).Find(&links).Error; err != nil {
			return err
		}
		for _, l := range links {
			detail := models.GroupComponentImplementationDetail{
				GroupDeliverableSelectionID: sel.ID,
				GroupDeliverableComponentID: l.GroupDeliverableComponentID,
				MarkdownDescription:         sel.MarkdownText,
				RepositoryLink:              sel.Link,
			}
			if err := tx.Create(&detail).Error; err != nil {
				return err
			}
		}
	}

	// plain ALTER keeps SQLite from rebuilding the table, which would
	// cascade-delete transactions pointing at it
	for _, column := range []string{"link", "markdown_text"} {
		if err := tx.Exec(fmt.Sprintf("ALTER TABLE group_deliverable_selections DROP COLUMN %s", column)).Error; err != nil {
			return fmt.Errorf("drop column %s: %w", column, err)
		}
	}
	return nil
}

// uniqueTransactions drops repeated purchases, keeping the earliest, and adds
// the unique index databases created before it lack
func uniqueTransactions(tx *gorm.DB) error {
	const index = "idx_transaction_buyer_selection_fair"
	m := tx.Migrator()
	if m.HasIndex(&models.Transaction{}, index) {
		return nil
	}
	err := tx.Exec(`DELETE FROM transactions WHERE id NOT IN (
		SELECT MIN(id) FROM transactions
		GROUP BY buyer_group_id, group_deliverable_selection_id, fair_id)`).Error
	if err != nil {
		return fmt.Errorf("drop repeated transactions: %w", err)
	}
	return m.CreateIndex(&models.Transaction{}, index)
}

// Applied returns the ids of steps already recorded
func Applied(db *gorm.DB) (map[string]bool, error) {
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return nil, err
	}
	var rows []SchemaMigration
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(rows))
	for _, r := range rows {
		applied[r.ID] = true
	}
	return applied, nil
}

// Run applies every pending step in order and returns how many ran
func Run(db *gorm.DB) (int, error) {
	return RunSteps(db, All())
}

// RunSteps applies the pending steps of list in order
func RunSteps(db *gorm.DB, list []Migration) (int, error) {
	applied, err := Applied(db)
	if err != nil {
		return 0, fmt.Errorf("read applied migrations: %w", err)
	}

	ran := 0
	for _, step := range list {
		if applied[step.ID] {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := step.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{ID: step.ID, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return ran, fmt.Errorf("migration %s: %w", step.ID, err)
		}
		logger.Info.Printf("Applied migration %s", step.ID)
		ran++
	}
	return ran, nil
}
