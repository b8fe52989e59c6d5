package models

import (
	"time"

	"gorm.io/datatypes"
)

/* =============================== Enums ================================== */

// Role defines the type of user in the system.
type Role string

const (
	RoleClient   Role = "client"
	RoleDesigner Role = "designer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleDesigner, RoleAdmin:
		return true
	}
	return false
}

// ProjectStatus defines lifecycle states for a project.
type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "draft"
	ProjectPending    ProjectStatus = "pending"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectDraft, ProjectPending, ProjectInProgress, ProjectCompleted:
		return true
	}
	return false
}

// PhotoType tells existing-room photos apart from inspiration photos.
type PhotoType string

const (
	PhotoExisting    PhotoType = "existing"
	PhotoInspiration PhotoType = "inspiration"
)

// RelocationState tracks one staged object on its way into a project prefix.
type RelocationState string

const (
	RelocationCopied    RelocationState = "copied"    // committed; the source still has to go
	RelocationDiscarded RelocationState = "discarded" // rolled back; the copy still has to go
	RelocationDone      RelocationState = "done"
)

/* =============================== Entities =============================== */

// User represents a client, designer or admin.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         Role      `gorm:"type:varchar(20);not null" json:"role"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Tel          string    `json:"tel"`
	CreatedAt    time.Time `json:"created_at"`
}

// Project is a client's design engagement.
type Project struct {
	ID             uint  `gorm:"primaryKey"`
	UserID         uint  `gorm:"not null;index"`
	DesignerID     *uint `gorm:"index"`
	Name           string
	Status         ProjectStatus `gorm:"type:varchar(20);not null;default:'draft'"`
	DesignType     string
	HasFloorPlan   bool `gorm:"not null;default:false"`
	CurrentStep    int  `gorm:"not null;default:0"`
	Completed      bool `gorm:"not null;default:false"`
	CreatedAt      time.Time
	LastModifiedAt time.Time `gorm:"not null"`

	// Relations
	Owner        User  `gorm:"foreignKey:UserID"`
	Designer     *User `gorm:"foreignKey:DesignerID"`
	FloorPlan    *FloorPlan
	Rooms        []Room
	FinalDesigns []FinalDesign
}

// FloorPlan holds the three floor-plan variants of a project.
type FloorPlan struct {
	ID          uint `gorm:"primaryKey"`
	ProjectID   uint `gorm:"not null;uniqueIndex"`
	OriginalURL string
	TaggedURL   string
	DesignerURL string
	UpdatedAt   time.Time
}

// Room is one physical space within a project.
type Room struct {
	ID            uint   `gorm:"primaryKey"`
	ProjectID     uint   `gorm:"not null;index"`
	RoomType      string `gorm:"not null"`
	SquareFootage *float64
	Length        *float64
	Width         *float64
	Height        *float64
	CreatedAt     time.Time

	Preference *RoomDesignPreference
	Photos     []RoomPhoto
}

// RoomDesignPreference is the optional style brief of a room.
type RoomDesignPreference struct {
	ID          uint `gorm:"primaryKey"`
	RoomID      uint `gorm:"not null;uniqueIndex"`
	Style       string
	Description string `gorm:"type:text"`
}

// RoomPhoto is an existing or inspiration photo attached to a room.
type RoomPhoto struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uint      `gorm:"not null;index"`
	PhotoURL  string    `gorm:"not null"`
	PhotoType PhotoType `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time
}

// FinalDesign is a deliverable produced by the assigned designer.
type FinalDesign struct {
	ID        uint   `gorm:"primaryKey"`
	ProjectID uint   `gorm:"not null;index"`
	DesignURL string `gorm:"not null"`
	CreatedAt time.Time
}

// ProjectComment is a project-level comment (e.g. floor-plan discussion).
type ProjectComment struct {
	ID        uint   `gorm:"primaryKey"`
	ProjectID uint   `gorm:"not null;index"`
	UserID    uint   `gorm:"not null;index"`
	Text      string `gorm:"type:text;not null"`
	CreatedAt time.Time

	Author User `gorm:"foreignKey:UserID"`
}

// DesignComment is scoped to one final design.
type DesignComment struct {
	ID        uint   `gorm:"primaryKey"`
	ProjectID uint   `gorm:"not null;index"`
	DesignID  uint   `gorm:"not null;index"`
	UserID    uint   `gorm:"not null;index"`
	Text      string `gorm:"type:text;not null"`
	CreatedAt time.Time

	Author User `gorm:"foreignKey:UserID"`
}

// ProjectHistory is an audit log entry for important project changes.
type ProjectHistory struct {
	ID        uint           `gorm:"primaryKey"`
	ProjectID uint           `gorm:"not null;index"`
	ActorID   uint           `gorm:"not null;index"`            // who performed the action
	Action    string         `gorm:"type:varchar(50);not null"` // e.g. created, progress_saved, designer_assigned
	OldStatus ProjectStatus  `gorm:"type:varchar(20)"`
	NewStatus ProjectStatus  `gorm:"type:varchar(20)"`
	Meta      datatypes.JSON `gorm:"type:json"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

// Relocation journals one copy-then-delete move of a staged object.
// Rows are written after the workflow transaction ends, so they outlive a rollback.
type Relocation struct {
	ID        uint            `gorm:"primaryKey"`
	ProjectID uint            `gorm:"not null;index"`
	SourceKey string          `gorm:"not null"`
	DestKey   string          `gorm:"not null"`
	State     RelocationState `gorm:"type:varchar(20);not null;index"`
	Attempts  int             `gorm:"not null;default:0"`
	LastError string          `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{}, &Project{}, &FloorPlan{}, &Room{}, &RoomDesignPreference{}, &RoomPhoto{},
		&FinalDesign{}, &ProjectComment{}, &DesignComment{}, &ProjectHistory{}, &Relocation{},
	}
}
