package schema

import "time"

// AuditAction is the kind of mutation an audit entry describes.
type AuditAction string

const (
	ActionCreate AuditAction = "CREATE"
	ActionUpdate AuditAction = "UPDATE"
	ActionDelete AuditAction = "DELETE"
	ActionUpload AuditAction = "UPLOAD"
	ActionRemove AuditAction = "REMOVE"
	ActionToggle AuditAction = "TOGGLE"
)

// Valid reports whether a is one of the known actions.
func (a AuditAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionUpload, ActionRemove, ActionToggle:
		return true
	default:
		return false
	}
}

// AuditTable names a manageable entity table.
type AuditTable string

const (
	TableDeviceModels     AuditTable = "device_models"
	TableDeviceCategories AuditTable = "device_categories"
	TableServices         AuditTable = "services"
	TableCategoryServices AuditTable = "category_services"
	TablePrices           AuditTable = "prices"
	TableDeviceImages     AuditTable = "device_images"
)

// Valid reports whether t is one of the manageable tables.
func (t AuditTable) Valid() bool {
	switch t {
	case TableDeviceModels, TableDeviceCategories, TableServices,
		TableCategoryServices, TablePrices, TableDeviceImages:
		return true
	default:
		return false
	}
}

// AuditEntry is one immutable record of a privileged mutation.
// OldData and NewData hold serialized JSON snapshots.
type AuditEntry struct {
	ID        string      `json:"id"`
	AdminID   AdminID     `json:"admin_id"`
	Action    AuditAction `json:"action"`
	TableName AuditTable  `json:"table_name"`
	RecordID  *string     `json:"record_id,omitempty"`
	OldData   *string     `json:"old_data,omitempty"`
	NewData   *string     `json:"new_data,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
