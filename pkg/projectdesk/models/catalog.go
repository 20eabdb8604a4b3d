package models

import "time"

// CatalogView is the shape shared by every deliverable and component row
type CatalogView struct {
	ID        uint      `json:"id"`
	ProjectID uint      `json:"project_id"`
	Name      string    `json:"name"`
	Sellable  *bool     `json:"sellable,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CatalogItem is implemented by the pointer types of the four catalog tables
type CatalogItem interface {
	View() CatalogView
	Assign(projectID uint, name string)
}

// LinkView is the shape shared by the deliverable/component join tables
type LinkView struct {
	ID            uint `json:"id"`
	DeliverableID uint `json:"deliverable_id"`
	ComponentID   uint `json:"component_id"`
	Quantity      int  `json:"quantity"`
}

// CatalogLink is implemented by the pointer types of the join tables
type CatalogLink interface {
	View() LinkView
	Assign(deliverableID, componentID uint, quantity int)
	SetQuantity(quantity int)
	Columns() (deliverable, component string)
}

// GroupDeliverable is something a group can choose to build
type GroupDeliverable struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_group_deliverable_name" json:"project_id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_group_deliverable_name" json:"name"`

	// Relationships
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (d *GroupDeliverable) View() CatalogView {
	return CatalogView{ID: d.ID, ProjectID: d.ProjectID, Name: d.Name, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func (d *GroupDeliverable) Assign(projectID uint, name string) {
	d.ProjectID, d.Name = projectID, name
}

// GroupDeliverableComponent is a part of a group deliverable. Sellable
// components can be traded at fairs.
type GroupDeliverableComponent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_group_component_name" json:"project_id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_group_component_name" json:"name"`
	Sellable  bool      `gorm:"not null;default:false" json:"sellable"`

	// Relationships
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (d *GroupDeliverableComponent) View() CatalogView {
	sellable := d.Sellable
	return CatalogView{ID: d.ID, ProjectID: d.ProjectID, Name: d.Name, Sellable: &sellable, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func (d *GroupDeliverableComponent) Assign(projectID uint, name string) {
	d.ProjectID, d.Name = projectID, name
}

// SetSellable marks the component tradeable
func (d *GroupDeliverableComponent) SetSellable(v bool) {
	d.Sellable = v
}

// GroupDeliverablesComponent says how many of a component a deliverable needs
type GroupDeliverablesComponent struct {
	ID                          uint `gorm:"primarykey" json:"id"`
	GroupDeliverableID          uint `gorm:"not null;uniqueIndex:idx_group_deliverable_component" json:"group_deliverable_id"`
	GroupDeliverableComponentID uint `gorm:"not null;uniqueIndex:idx_group_deliverable_component;index" json:"group_deliverable_component_id"`
	Quantity                    int  `gorm:"not null;default:1" json:"quantity"`

	// Relationships
	GroupDeliverable          GroupDeliverable          `gorm:"foreignKey:GroupDeliverableID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	GroupDeliverableComponent GroupDeliverableComponent `gorm:"foreignKey:GroupDeliverableComponentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (l *GroupDeliverablesComponent) View() LinkView {
	return LinkView{ID: l.ID, DeliverableID: l.GroupDeliverableID, ComponentID: l.GroupDeliverableComponentID, Quantity: l.Quantity}
}

func (l *GroupDeliverablesComponent) Assign(deliverableID, componentID uint, quantity int) {
	l.GroupDeliverableID, l.GroupDeliverableComponentID, l.Quantity = deliverableID, componentID, quantity
}

func (l *GroupDeliverablesComponent) SetQuantity(quantity int) { l.Quantity = quantity }

func (*GroupDeliverablesComponent) Columns() (string, string) {
	return "group_deliverable_id", "group_deliverable_component_id"
}

// StudentDeliverable is something a single student can choose to build
type StudentDeliverable struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_student_deliverable_name" json:"project_id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_student_deliverable_name" json:"name"`

	// Relationships
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (d *StudentDeliverable) View() CatalogView {
	return CatalogView{ID: d.ID, ProjectID: d.ProjectID, Name: d.Name, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func (d *StudentDeliverable) Assign(projectID uint, name string) {
	d.ProjectID, d.Name = projectID, name
}

// StudentDeliverableComponent is a part of a student deliverable
type StudentDeliverableComponent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_student_component_name" json:"project_id"`
	Name      string    `gorm:"not null;uniqueIndex:idx_student_component_name" json:"name"`

	// Relationships
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (d *StudentDeliverableComponent) View() CatalogView {
	return CatalogView{ID: d.ID, ProjectID: d.ProjectID, Name: d.Name, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func (d *StudentDeliverableComponent) Assign(projectID uint, name string) {
	d.ProjectID, d.Name = projectID, name
}

// StudentDeliverablesComponent says how many of a component a student deliverable needs
type StudentDeliverablesComponent struct {
	ID                            uint `gorm:"primarykey" json:"id"`
	StudentDeliverableID          uint `gorm:"not null;uniqueIndex:idx_student_deliverable_component" json:"student_deliverable_id"`
	StudentDeliverableComponentID uint `gorm:"not null;uniqueIndex:idx_student_deliverable_component;index" json:"student_deliverable_component_id"`
	Quantity                      int  `gorm:"not null;default:1" json:"quantity"`

	// Relationships
	StudentDeliverable          StudentDeliverable          `gorm:"foreignKey:StudentDeliverableID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	StudentDeliverableComponent StudentDeliverableComponent `gorm:"foreignKey:StudentDeliverableComponentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func (l *StudentDeliverablesComponent) View() LinkView {
	return LinkView{ID: l.ID, DeliverableID: l.StudentDeliverableID, ComponentID: l.StudentDeliverableComponentID, Quantity: l.Quantity}
}

func (l *StudentDeliverablesComponent) Assign(deliverableID, componentID uint, quantity int) {
	l.StudentDeliverableID, l.StudentDeliverableComponentID, l.Quantity = deliverableID, componentID, quantity
}

func (l *StudentDeliverablesComponent) SetQuantity(quantity int) { l.Quantity = quantity }

func (*StudentDeliverablesComponent) Columns() (string, string) {
	return "student_deliverable_id", "student_deliverable_component_id"
}
