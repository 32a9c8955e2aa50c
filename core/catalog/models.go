// Package catalog manages the lookup tables that classify projects: categories, project types
// and project statuses.
package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
)

// Kind identifies one of the catalogs.
type Kind string

// Kinds
const (
	KindCategory    Kind = "categories"
	KindProjectType Kind = "types"
	KindStatus      Kind = "status"
)

// Project statuses
const (
	StatusDraft    = "Borrador"
	StatusPending  = "Pendiente"
	StatusInReview = "En Revisión"
	StatusApproved = "Aprobado"
	StatusRejected = "Rechazado"
)

var (
	AllKinds    = []Kind{KindCategory, KindProjectType, KindStatus}
	AllStatuses = []string{StatusDraft, StatusPending, StatusInReview, StatusApproved, StatusRejected}

	notFoundErrors = map[Kind]error{
		KindCategory:    core.NewNotFoundError("categoría no encontrada"),
		KindProjectType: core.NewNotFoundError("tipo de proyecto no encontrado"),
		KindStatus:      core.NewNotFoundError("estado no encontrado"),
	}
)

func ParseKind(s string) (Kind, bool) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// EntityType is the audit entity type of the catalog items.
func (k Kind) EntityType() string {
	switch k {
	case KindCategory:
		return audit.EntityCategory
	case KindProjectType:
		return audit.EntityProjectType
	default:
		return audit.EntityProjectStatus
	}
}

// NotFound is the error returned when an item of this kind does not exist.
func (k Kind) NotFound() error {
	return notFoundErrors[k]
}

type Item struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

type NewItem struct {
	Name        string `json:"name" validate:"required,notblank"`
	Description string `json:"description"`
}

func (ni *NewItem) Validate(validate *validator.Validate) error {
	ni.Name = core.CleanString(ni.Name)
	ni.Description = core.CleanString(ni.Description)
	return validate.Struct(ni)
}

// UpdateItem holds the fields of the request body; absent fields are nil.
type UpdateItem struct {
	Name        *string `json:"name" validate:"omitempty,notblank"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

func (ui *UpdateItem) Validate(validate *validator.Validate) error {
	if ui.Name != nil {
		*ui.Name = core.CleanString(*ui.Name)
	}
	if ui.Description != nil {
		*ui.Description = core.CleanString(*ui.Description)
	}
	return validate.Struct(ui)
}
