package models

import "time"

// GroupDeliverableSelection is the deliverable a group committed to. A group
// has at most one and it never changes once made.
type GroupDeliverableSelection struct {
	ID                 uint      `gorm:"primarykey" json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	GroupID            uint      `gorm:"not null;uniqueIndex" json:"group_id"`
	GroupDeliverableID uint      `gorm:"not null;index" json:"group_deliverable_id"`

	// Relationships
	Group            Group                              `gorm:"foreignKey:GroupID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	GroupDeliverable GroupDeliverable                   `gorm:"foreignKey:GroupDeliverableID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Details          []GroupComponentImplementationDetail `gorm:"foreignKey:GroupDeliverableSelectionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// GroupComponentImplementationDetail documents how a group implements one
// component of its selected deliverable
type GroupComponentImplementationDetail struct {
	ID                          uint      `gorm:"primarykey" json:"id"`
	CreatedAt                   time.Time `json:"created_at"`
	UpdatedAt                   time.Time `json:"updated_at"`
	GroupDeliverableSelectionID uint      `gorm:"not null;uniqueIndex:idx_selection_component" json:"group_deliverable_selection_id"`
	GroupDeliverableComponentID uint      `gorm:"not null;uniqueIndex:idx_selection_component;index" json:"group_deliverable_component_id"`
	MarkdownDescription         string    `gorm:"type:text;not null" json:"markdown_description"`
	RepositoryLink              string    `gorm:"not null" json:"repository_link"`

	// Relationships
	Selection GroupDeliverableSelection `gorm:"foreignKey:GroupDeliverableSelectionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Component GroupDeliverableComponent `gorm:"foreignKey:GroupDeliverableComponentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Transaction records a group buying another group's selection at a fair.
// A buyer buys a given selection at most once per fair.
type Transaction struct {
	ID                          uint      `gorm:"primarykey" json:"id"`
	BuyerGroupID                uint      `gorm:"not null;uniqueIndex:idx_transaction_buyer_selection_fair" json:"buyer_group_id"`
	GroupDeliverableSelectionID uint      `gorm:"not null;uniqueIndex:idx_transaction_buyer_selection_fair;index" json:"group_deliverable_selection_id"`
	FairID                      uint      `gorm:"not null;uniqueIndex:idx_transaction_buyer_selection_fair;index" json:"fair_id"`
	Timestamp                   time.Time `gorm:"not null" json:"timestamp"`

	// Relationships
	BuyerGroup Group                     `gorm:"foreignKey:BuyerGroupID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Selection  GroupDeliverableSelection `gorm:"foreignKey:GroupDeliverableSelectionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Fair       Fair                      `gorm:"foreignKey:FairID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// StudentDeliverableSelection is a student's chosen deliverable
type StudentDeliverableSelection struct {
	ID                   uint      `gorm:"primarykey" json:"id"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
	StudentID            uint      `gorm:"not null;uniqueIndex:idx_student_selection" json:"student_id"`
	StudentDeliverableID uint      `gorm:"not null;uniqueIndex:idx_student_selection;index" json:"student_deliverable_id"`

	// Relationships
	Student            Student            `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	StudentDeliverable StudentDeliverable `gorm:"foreignKey:StudentDeliverableID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// StudentUpload is a file a student attached to their selection
type StudentUpload struct {
	ID                            uint      `gorm:"primarykey" json:"id"`
	StudentDeliverableSelectionID uint      `gorm:"not null;index" json:"student_deliverable_selection_id"`
	Path                          string    `gorm:"uniqueIndex;not null" json:"path"`
	FileName                      string    `json:"file_name"`
	ContentType                   string    `json:"content_type"`
	SizeBytes                     int64     `json:"size_bytes"`
	Timestamp                     time.Time `gorm:"not null" json:"timestamp"`

	// Relationships
	Selection StudentDeliverableSelection `gorm:"foreignKey:StudentDeliverableSelectionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
