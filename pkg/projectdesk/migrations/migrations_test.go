package migrations

import (
	"testing"
	"time"

	"github.com/mikepea/projectdesk/pkg/projectdesk/database"
	"github.com/mikepea/projectdesk/pkg/projectdesk/models"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	return db
}

func stepIndex(t *testing.T, steps []Migration, id string) int {
	t.Helper()
	for i, m := range steps {
		if m.ID == id {
			return i
		}
	}
	t.Fatalf("No migration %s", id)
	return 0
}

func TestRunCreatesSchema(t *testing.T) {
	db := setupTestDB(t)

	ran, err := Run(db)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if ran != len(All()) {
		t.Errorf("Expected %d migrations to run, got %d", len(All()), ran)
	}

	for _, model := range models.AllModels() {
		if !db.Migrator().HasTable(model) {
			t.Errorf("Expected table for %T", model)
		}
	}

	for _, column := range []string{"link", "markdown_text"} {
		if db.Migrator().HasColumn(&models.GroupDeliverableSelection{}, column) {
			t.Errorf("Expected column %s to be dropped", column)
		}
	}

	var roles int64
	db.Model(&models.AdminRole{}).Count(&roles)
	if roles != 4 {
		t.Errorf("Expected 4 seeded admin roles, got %d", roles)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	if _, err := Run(db); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	ran, err := Run(db)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if ran != 0 {
		t.Errorf("Expected no migrations on second run, got %d", ran)
	}

	applied, err := Applied(db)
	if err != nil {
		t.Fatalf("Applied failed: %v", err)
	}
	for _, m := range All() {
		if !applied[m.ID] {
			t.Errorf("Expected %s to be recorded", m.ID)
		}
	}
}

func TestNormalizeMovesLegacyDetails(t *testing.T) {
	db := setupTestDB(t)
	steps := All()
	normalize := stepIndex(t, steps, "0010_normalize_group_selection_details")

	if _, err := RunSteps(db, steps[:normalize]); err != nil {
		t.Fatalf("Partial run failed: %v", err)
	}
	if !db.Migrator().HasColumn(&legacyGroupDeliverableSelection{}, "link") {
		t.Fatal("Expected legacy link column before normalization")
	}

	project := models.Project{Name: "Compilers", Year: 2025, MaxStudentUploads: 1, MaxGroupSize: 3}
	db.Create(&project)
	group := models.Group{ProjectID: project.ID, Name: "alpha"}
	db.Create(&group)
	deliverable := models.GroupDeliverable{ProjectID: project.ID, Name: "Compiler"}
	db.Create(&deliverable)
	for _, name := range []string{"Lexer", "Parser"} {
		component := models.GroupDeliverableComponent{ProjectID: project.ID, Name: name}
		db.Create(&component)
		db.Create(&models.GroupDeliverablesComponent{GroupDeliverableID: deliverable.ID, GroupDeliverableComponentID: component.ID, Quantity: 1})
	}
	legacy := legacyGroupDeliverableSelection{
		GroupID:            group.ID,
		GroupDeliverableID: deliverable.ID,
		Link:               "https://git.example.com/alpha",
		MarkdownText:       "# Alpha",
	}
	if err := db.Create(&legacy).Error; err != nil {
		t.Fatalf("Failed to create legacy selection: %v", err)
	}

	ran, err := Run(db)
	if err != nil {
		t.Fatalf("Normalization failed: %v", err)
	}
	if ran != len(steps)-normalize {
		t.Errorf("Expected the steps from normalization on to run, got %d", ran)
	}

	var details []models.GroupComponentImplementationDetail
	db.Where("group_deliverable_selection_id = ?", legacy.ID).Find(&details)
	if len(details) != 2 {
		t.Fatalf("Expected a detail per component, got %d", len(details))
	}
	for _, d := range details {
		if d.RepositoryLink != "https://git.example.com/alpha" || d.MarkdownDescription != "# Alpha" {
			t.Errorf("Unexpected detail %+v", d)
		}
	}

	var selection models.GroupDeliverableSelection
	if err := db.First(&selection, legacy.ID).Error; err != nil {
		t.Errorf("Selection should survive normalization: %v", err)
	}
}

func TestUniqueTransactionsDropsRepeats(t *testing.T) {
	db := setupTestDB(t)
	if _, err := Run(db); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	const index = "idx_transaction_buyer_selection_fair"
	if !db.Migrator().HasIndex(&models.Transaction{}, index) {
		t.Fatal("Expected the unique transaction index on a fresh schema")
	}

	// rewind to a database from before the index existed
	if err := db.Migrator().DropIndex(&models.Transaction{}, index); err != nil {
		t.Fatalf("DropIndex failed: %v", err)
	}
	db.Where("id = ?", "0011_unique_transactions").Delete(&SchemaMigration{})

	project := models.Project{Name: "Compilers", Year: 2025, MaxStudentUploads: 1, MaxGroupSize: 3}
	db.Create(&project)
	buyer := models.Group{ProjectID: project.ID, Name: "buyer"}
	seller := models.Group{ProjectID: project.ID, Name: "seller"}
	db.Create(&buyer)
	db.Create(&seller)
	deliverable := models.GroupDeliverable{ProjectID: project.ID, Name: "Compiler"}
	db.Create(&deliverable)
	selection := models.GroupDeliverableSelection{GroupID: seller.ID, GroupDeliverableID: deliverable.ID}
	db.Create(&selection)
	now := time.Now()
	fair := models.Fair{ProjectID: project.ID, StartDate: now, EndDate: now.Add(time.Hour)}
	db.Create(&fair)

	var first uint
	for i := 0; i < 3; i++ {
		tx := models.Transaction{BuyerGroupID: buyer.ID, GroupDeliverableSelectionID: selection.ID, FairID: fair.ID, Timestamp: now}
		if err := db.Create(&tx).Error; err != nil {
			t.Fatalf("Failed to seed transaction: %v", err)
		}
		if i == 0 {
			first = tx.ID
		}
	}

	ran, err := Run(db)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if ran != 1 {
		t.Errorf("Expected 1 migration, got %d", ran)
	}

	var kept []models.Transaction
	db.Find(&kept)
	if len(kept) != 1 || kept[0].ID != first {
		t.Errorf("Expected only the earliest transaction to remain, got %+v", kept)
	}
	if !db.Migrator().HasIndex(&models.Transaction{}, index) {
		t.Error("Expected the unique transaction index to be created")
	}
}
