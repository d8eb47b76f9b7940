// Package engine defines the storage contracts of repairdesk and the two
// implementations behind them: the embedded MemStore and the SQL-backed SQLStore.
package engine

import (
	"context"
	"errors"

	"github.com/celerix-dev/repairdesk/pkg/schema"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("record already exists")
)

// AdminReader looks up authorization grants.
type AdminReader interface {
	// FindActiveAdmin returns the canonical active admin row for userID, or
	// nil with a nil error when there is none. With several active rows the
	// oldest one wins.
	FindActiveAdmin(ctx context.Context, userID schema.SubjectID) (*schema.AdminRecord, error)
	GetAdmin(ctx context.Context, id schema.AdminID) (*schema.AdminRecord, error)
	ListAdmins(ctx context.Context) ([]schema.AdminRecord, error)
}

// AdminWriter provisions and deactivates admins. Admin rows are never deleted.
type AdminWriter interface {
	// CreateAdmin stores rec, assigning ID and CreatedAt when they are empty.
	CreateAdmin(ctx context.Context, rec *schema.AdminRecord) error
	SetAdminActive(ctx context.Context, id schema.AdminID, active bool) error
}

// UserStore keeps sign-in accounts.
type UserStore interface {
	// CreateUser stores u, assigning ID and CreatedAt when they are empty.
	// A duplicate email yields ErrConflict.
	CreateUser(ctx context.Context, u *schema.UserRecord) error
	GetUser(ctx context.Context, id schema.SubjectID) (*schema.UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (*schema.UserRecord, error)
	ListUsers(ctx context.Context) ([]schema.UserRecord, error)
}

// AuditWriter appends audit entries. Entries are never updated or deleted.
type AuditWriter interface {
	// AppendAudit assigns the entry ID (when empty) and CreatedAt, then
	// appends exactly one row.
	AppendAudit(ctx context.Context, e *schema.AuditEntry) error
}

// AuditFilter narrows ListAudit. Zero values match everything.
type AuditFilter struct {
	AdminID   schema.AdminID
	TableName schema.AuditTable
	RecordID  string
	Limit     int
}

// AuditReader lists audit entries, newest first.
type AuditReader interface {
	ListAudit(ctx context.Context, f AuditFilter) ([]schema.AuditEntry, error)
}

// CatalogReader reads the public price list. List calls return records in
// display order (sort_order, then id). An empty parent id lists everything.
type CatalogReader interface {
	ListCategories(ctx context.Context) ([]schema.Category, error)
	GetCategory(ctx context.Context, id string) (*schema.Category, error)
	ListModels(ctx context.Context, categoryID string) ([]schema.DeviceModel, error)
	GetModel(ctx context.Context, id string) (*schema.DeviceModel, error)
	ListServices(ctx context.Context) ([]schema.Service, error)
	GetService(ctx context.Context, id string) (*schema.Service, error)
	ListCategoryServices(ctx context.Context, categoryID string) ([]schema.CategoryService, error)
	GetCategoryService(ctx context.Context, id string) (*schema.CategoryService, error)
	ListPrices(ctx context.Context, modelID string) ([]schema.Price, error)
	GetPrice(ctx context.Context, id string) (*schema.Price, error)
	ListImages(ctx context.Context, modelID string) ([]schema.DeviceImage, error)
	GetImage(ctx context.Context, id string) (*schema.DeviceImage, error)
}

// CatalogWriter mutates the price list. Put* is an upsert keyed by ID;
// Delete* on a missing id returns ErrNotFound.
type CatalogWriter interface {
	PutCategory(ctx context.Context, c schema.Category) error
	DeleteCategory(ctx context.Context, id string) error
	PutModel(ctx context.Context, m schema.DeviceModel) error
	DeleteModel(ctx context.Context, id string) error
	PutService(ctx context.Context, s schema.Service) error
	DeleteService(ctx context.Context, id string) error
	PutCategoryService(ctx context.Context, cs schema.CategoryService) error
	DeleteCategoryService(ctx context.Context, id string) error
	PutPrice(ctx context.Context, p schema.Price) error
	DeletePrice(ctx context.Context, id string) error
	PutImage(ctx context.Context, img schema.DeviceImage) error
	DeleteImage(ctx context.Context, id string) error
}

// ContentReader reads announcements and articles.
type ContentReader interface {
	ListAnnouncements(ctx context.Context) ([]schema.Announcement, error)
	GetAnnouncement(ctx context.Context, id string) (*schema.Announcement, error)
	ListArticles(ctx context.Context) ([]schema.Article, error)
	GetArticleBySlug(ctx context.Context, slug string) (*schema.Article, error)
}

// ContentWriter mutates announcements and articles.
type ContentWriter interface {
	PutAnnouncement(ctx context.Context, a schema.Announcement) error
	DeleteAnnouncement(ctx context.Context, id string) error
	PutArticle(ctx context.Context, a schema.Article) error
	DeleteArticle(ctx context.Context, id string) error
}

// Store is the full contract. Both MemStore and SQLStore implement it.
type Store interface {
	AdminReader
	AdminWriter
	UserStore
	AuditWriter
	AuditReader
	CatalogReader
	CatalogWriter
	ContentReader
	ContentWriter
}
