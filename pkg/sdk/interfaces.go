package sdk

import (
	"context"
	"errors"

	"github.com/celerix-dev/repairdesk/pkg/schema"
)

var (
	// ErrNotFound is returned for 404 answers.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the session is missing or lacks the role.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized is returned for bad credentials or a missing session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited is returned when sign-in attempts are throttled.
	ErrRateLimited = errors.New("rate limited")
	// ErrConflict is returned when a unique key is taken or a record is still referenced.
	ErrConflict = errors.New("conflict")
	// ErrInvalid is returned when the server rejects the input.
	ErrInvalid = errors.New("invalid input")
)

// --- Functional Interfaces (Interface Segregation) ---

// PriceList reads the public catalog in the client's language.
type PriceList interface {
	Categories(ctx context.Context) ([]schema.CategoryView, error)
	Models(ctx context.Context, categoryID string) ([]schema.ModelView, error)
	Prices(ctx context.Context, modelID string) (*schema.PriceTable, error)
}

// ContentReader reads announcements and articles.
type ContentReader interface {
	Announcements(ctx context.Context) ([]schema.AnnouncementView, error)
	Articles(ctx context.Context) ([]schema.ArticleView, error)
	Article(ctx context.Context, slug string) (*schema.ArticleView, error)
}

// SessionHolder signs in and out.
type SessionHolder interface {
	SignIn(ctx context.Context, email, password string) (*Me, error)
	SignOut(ctx context.Context) error
	Me(ctx context.Context) (*Me, error)
}

// BackOffice performs audited catalog mutations as the signed-in admin.
type BackOffice interface {
	CreateCategory(ctx context.Context, c schema.Category) (*schema.Category, error)
	UpdateCategory(ctx context.Context, c schema.Category) (*schema.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	SetActive(ctx context.Context, table schema.AuditTable, id string, active bool) error
	CreateModel(ctx context.Context, m schema.DeviceModel) (*schema.DeviceModel, error)
	CreateService(ctx context.Context, s schema.Service) (*schema.Service, error)
	LinkService(ctx context.Context, categoryID, serviceID string) (*schema.CategoryService, error)
	SetPrice(ctx context.Context, p schema.Price) (*schema.Price, error)
	DeletePrice(ctx context.Context, id string) error
	AddImage(ctx context.Context, img schema.DeviceImage) (*schema.DeviceImage, error)
	RemoveImage(ctx context.Context, id string) error
	Audit(ctx context.Context, f AuditQuery) ([]schema.AuditEntry, error)
}

// --- Composite Interfaces ---

// RepairDesk is the full client surface.
type RepairDesk interface {
	PriceList
	ContentReader
	SessionHolder
	BackOffice
}

// Me describes the signed-in account.
type Me struct {
	User  schema.Subject `json:"user"`
	Admin *Grant         `json:"admin,omitempty"`
}

// Grant is the active admin grant of the signed-in account.
type Grant struct {
	ID   schema.AdminID `json:"id"`
	Role schema.Role    `json:"role"`
}

// AuditQuery filters Audit. Zero values match everything.
type AuditQuery struct {
	AdminID  schema.AdminID
	Table    schema.AuditTable
	RecordID string
	Limit    int
}
