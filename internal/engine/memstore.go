package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/celerix-dev/repairdesk/internal/log"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

// MemStore is the embedded, thread-safe Store. Every write snapshots the
// touched table and persists it in the background when a Persistence is set.
type MemStore struct {
	mu sync.RWMutex

	users            map[schema.SubjectID]StoredUser
	admins           map[schema.AdminID]schema.AdminRecord
	audit            []schema.AuditEntry
	categories       map[string]schema.Category
	models           map[string]schema.DeviceModel
	services         map[string]schema.Service
	categoryServices map[string]schema.CategoryService
	prices           map[string]schema.Price
	images           map[string]schema.DeviceImage
	announcements    map[string]schema.Announcement
	articles         map[string]schema.Article

	persister *Persistence
	versions  map[string]uint64
	logger    *log.Logger
	wg        sync.WaitGroup
}

var _ Store = (*MemStore)(nil)

// MemOption configures a MemStore.
type MemOption func(*MemStore)

// WithLogger reports background persistence failures to l.
func WithLogger(l *log.Logger) MemOption {
	return func(m *MemStore) { m.logger = l }
}

// NewMemStore builds a store from an optional snapshot (from LoadAll) and an
// optional persister.
func NewMemStore(snap *Snapshot, p *Persistence, opts ...MemOption) *MemStore {
	m := &MemStore{
		users:            make(map[schema.SubjectID]StoredUser),
		admins:           make(map[schema.AdminID]schema.AdminRecord),
		categories:       make(map[string]schema.Category),
		models:           make(map[string]schema.DeviceModel),
		services:         make(map[string]schema.Service),
		categoryServices: make(map[string]schema.CategoryService),
		prices:           make(map[string]schema.Price),
		images:           make(map[string]schema.DeviceImage),
		announcements:    make(map[string]schema.Announcement),
		articles:         make(map[string]schema.Article),
		persister:        p,
		versions:         make(map[string]uint64),
		logger:           log.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if snap == nil {
		return m
	}
	for _, u := range snap.Users {
		m.users[u.ID] = u
	}
	for _, a := range snap.Admins {
		m.admins[a.ID] = a
	}
	m.audit = append(m.audit, snap.Audit...)
	fill(m.categories, snap.Categories, func(v schema.Category) string { return v.ID })
	fill(m.models, snap.Models, func(v schema.DeviceModel) string { return v.ID })
	fill(m.services, snap.Services, func(v schema.Service) string { return v.ID })
	fill(m.categoryServices, snap.CategoryServices, func(v schema.CategoryService) string { return v.ID })
	fill(m.prices, snap.Prices, func(v schema.Price) string { return v.ID })
	fill(m.images, snap.Images, func(v schema.DeviceImage) string { return v.ID })
	fill(m.announcements, snap.Announcements, func(v schema.Announcement) string { return v.ID })
	fill(m.articles, snap.Articles, func(v schema.Article) string { return v.ID })
	return m
}

func fill[T any](dst map[string]T, src []T, key func(T) string) {
	for _, v := range src {
		dst[key(v)] = v
	}
}

// Wait waits for all background persistence tasks to complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

// persistLocked snapshots one table and saves it in the background.
// It MUST be called while holding m.mu.Lock.
func (m *MemStore) persistLocked(name string) {
	if m.persister == nil {
		return
	}
	var data any
	switch name {
	case fileUsers:
		data = sortedValues(m.users, func(a, b StoredUser) int { return cmp.Compare(a.ID, b.ID) })
	case fileAdmins:
		data = sortedValues(m.admins, func(a, b schema.AdminRecord) int { return cmp.Compare(a.ID, b.ID) })
	case fileAudit:
		data = slices.Clone(m.audit)
	case fileCategories:
		data = sortedValues(m.categories, byCategory)
	case fileModels:
		data = sortedValues(m.models, byModel)
	case fileServices:
		data = sortedValues(m.services, byService)
	case fileCategoryServices:
		data = sortedValues(m.categoryServices, func(a, b schema.CategoryService) int { return cmp.Compare(a.ID, b.ID) })
	case filePrices:
		data = sortedValues(m.prices, func(a, b schema.Price) int { return cmp.Compare(a.ID, b.ID) })
	case fileImages:
		data = sortedValues(m.images, byImage)
	case fileAnnouncements:
		data = sortedValues(m.announcements, byAnnouncement)
	case fileArticles:
		data = sortedValues(m.articles, byArticle)
	default:
		return
	}
	m.versions[name]++
	version := m.versions[name]

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.persister.SaveTable(name, version, data); err != nil {
			m.logger.WithError(err).Error("failed to persist table", "table", name)
		}
	}()
}

func sortedValues[K comparable, V any](src map[K]V, order func(a, b V) int) []V {
	out := make([]V, 0, len(src))
	for _, v := range src {
		out = append(out, v)
	}
	slices.SortFunc(out, order)
	return out
}

func byCategory(a, b schema.Category) int {
	return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.ID, b.ID))
}

func byModel(a, b schema.DeviceModel) int {
	return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.ID, b.ID))
}

func byService(a, b schema.Service) int {
	return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.ID, b.ID))
}

func byImage(a, b schema.DeviceImage) int {
	return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.ID, b.ID))
}

func byAnnouncement(a, b schema.Announcement) int {
	return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
}

func byArticle(a, b schema.Article) int {
	return cmp.Or(b.PublishedAt.Compare(a.PublishedAt), cmp.Compare(a.ID, b.ID))
}

func nowUTC() time.Time { return time.Now().UTC() }

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// --- Users & admins ---

func (m *MemStore) CreateUser(_ context.Context, u *schema.UserRecord) error {
	u.Email = normalizeEmail(u.Email)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("user %s: %w", u.Email, ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = schema.SubjectID(uuid.NewString())
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = nowUTC()
	}
	m.users[u.ID] = StoredUser{ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt}
	m.persistLocked(fileUsers)
	return nil
}

func (m *MemStore) GetUser(_ context.Context, id schema.SubjectID) (*schema.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.record(), nil
}

func (m *MemStore) GetUserByEmail(_ context.Context, email string) (*schema.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	email = normalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			return u.record(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) ListUsers(_ context.Context) ([]schema.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := sortedValues(m.users, func(a, b StoredUser) int { return cmp.Compare(a.ID, b.ID) })
	out := make([]schema.UserRecord, 0, len(stored))
	for _, u := range stored {
		out = append(out, *u.record())
	}
	return out, nil
}

func (u StoredUser) record() *schema.UserRecord {
	return &schema.UserRecord{ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt}
}

func (m *MemStore) FindActiveAdmin(_ context.Context, userID schema.SubjectID) (*schema.AdminRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *schema.AdminRecord
	for _, a := range m.admins {
		if a.UserID != userID || !a.IsActive {
			continue
		}
		if found == nil || a.CreatedAt.Before(found.CreatedAt) ||
			(a.CreatedAt.Equal(found.CreatedAt) && a.ID < found.ID) {
			rec := a
			found = &rec
		}
	}
	return found, nil
}

func (m *MemStore) GetAdmin(_ context.Context, id schema.AdminID) (*schema.AdminRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.admins[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *MemStore) ListAdmins(_ context.Context) ([]schema.AdminRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedValues(m.admins, func(a, b schema.AdminRecord) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	}), nil
}

func (m *MemStore) CreateAdmin(_ context.Context, rec *schema.AdminRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[rec.UserID]; !ok {
		return fmt.Errorf("admin user %s: %w", rec.UserID, ErrNotFound)
	}
	if rec.ID == "" {
		rec.ID = schema.AdminID(uuid.NewString())
	}
	if _, ok := m.admins[rec.ID]; ok {
		return fmt.Errorf("admin %s: %w", rec.ID, ErrConflict)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = nowUTC()
	}
	m.admins[rec.ID] = *rec
	m.persistLocked(fileAdmins)
	return nil
}

func (m *MemStore) SetAdminActive(_ context.Context, id schema.AdminID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.admins[id]
	if !ok {
		return ErrNotFound
	}
	a.IsActive = active
	m.admins[id] = a
	m.persistLocked(fileAdmins)
	return nil
}

// --- Audit ---

func (m *MemStore) AppendAudit(_ context.Context, e *schema.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.admins[e.AdminID]; !ok {
		return fmt.Errorf("audit admin %s: %w", e.AdminID, ErrNotFound)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = nowUTC()
	m.audit = append(m.audit, *e)
	m.persistLocked(fileAudit)
	return nil
}

func (m *MemStore) ListAudit(_ context.Context, f AuditFilter) ([]schema.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []schema.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if f.AdminID != "" && e.AdminID != f.AdminID {
			continue
		}
		if f.TableName != "" && e.TableName != f.TableName {
			continue
		}
		if f.RecordID != "" && (e.RecordID == nil || *e.RecordID != f.RecordID) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// --- Catalog ---

func (m *MemStore) ListCategories(_ context.Context) ([]schema.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedValues(m.categories, byCategory), nil
}

func (m *MemStore) GetCategory(_ context.Context, id string) (*schema.Category, error) {
	return get(&m.mu, m.categories, id)
}

func (m *MemStore) PutCategory(_ context.Context, c schema.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.categories {
		if existing.ID != c.ID && existing.Slug == c.Slug {
			return fmt.Errorf("category slug %s: %w", c.Slug, ErrConflict)
		}
	}
	m.categories[c.ID] = c
	m.persistLocked(fileCategories)
	return nil
}

func (m *MemStore) DeleteCategory(_ context.Context, id string) error {
	return remove(m, m.categories, id, fileCategories)
}

func (m *MemStore) ListModels(_ context.Context, categoryID string) ([]schema.DeviceModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := sortedValues(m.models, byModel)
	if categoryID == "" {
		return out, nil
	}
	return slices.DeleteFunc(out, func(v schema.DeviceModel) bool { return v.CategoryID != categoryID }), nil
}

func (m *MemStore) GetModel(_ context.Context, id string) (*schema.DeviceModel, error) {
	return get(&m.mu, m.models, id)
}

func (m *MemStore) PutModel(_ context.Context, v schema.DeviceModel) error {
	return put(m, m.models, v.ID, v, fileModels)
}

func (m *MemStore) DeleteModel(_ context.Context, id string) error {
	return remove(m, m.models, id, fileModels)
}

func (m *MemStore) ListServices(_ context.Context) ([]schema.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedValues(m.services, byService), nil
}

func (m *MemStore) GetService(_ context.Context, id string) (*schema.Service, error) {
	return get(&m.mu, m.services, id)
}

func (m *MemStore) PutService(_ context.Context, v schema.Service) error {
	return put(m, m.services, v.ID, v, fileServices)
}

func (m *MemStore) DeleteService(_ context.Context, id string) error {
	return remove(m, m.services, id, fileServices)
}

func (m *MemStore) ListCategoryServices(_ context.Context, categoryID string) ([]schema.CategoryService, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := sortedValues(m.categoryServices, func(a, b schema.CategoryService) int { return cmp.Compare(a.ID, b.ID) })
	if categoryID == "" {
		return out, nil
	}
	return slices.DeleteFunc(out, func(v schema.CategoryService) bool { return v.CategoryID != categoryID }), nil
}

func (m *MemStore) GetCategoryService(_ context.Context, id string) (*schema.CategoryService, error) {
	return get(&m.mu, m.categoryServices, id)
}

func (m *MemStore) PutCategoryService(_ context.Context, v schema.CategoryService) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.categoryServices {
		if existing.ID != v.ID && existing.CategoryID == v.CategoryID && existing.ServiceID == v.ServiceID {
			return fmt.Errorf("category service %s/%s: %w", v.CategoryID, v.ServiceID, ErrConflict)
		}
	}
	m.categoryServices[v.ID] = v
	m.persistLocked(fileCategoryServices)
	return nil
}

func (m *MemStore) DeleteCategoryService(_ context.Context, id string) error {
	return remove(m, m.categoryServices, id, fileCategoryServices)
}

func (m *MemStore) ListPrices(_ context.Context, modelID string) ([]schema.Price, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := sortedValues(m.prices, func(a, b schema.Price) int {
		return cmp.Or(cmp.Compare(a.ModelID, b.ModelID), cmp.Compare(a.ServiceID, b.ServiceID))
	})
	if modelID == "" {
		return out, nil
	}
	return slices.DeleteFunc(out, func(v schema.Price) bool { return v.ModelID != modelID }), nil
}

func (m *MemStore) GetPrice(_ context.Context, id string) (*schema.Price, error) {
	return get(&m.mu, m.prices, id)
}

func (m *MemStore) PutPrice(_ context.Context, v schema.Price) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.prices {
		if existing.ID != v.ID && existing.ModelID == v.ModelID && existing.ServiceID == v.ServiceID {
			return fmt.Errorf("price %s/%s: %w", v.ModelID, v.ServiceID, ErrConflict)
		}
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = nowUTC()
	}
	m.prices[v.ID] = v
	m.persistLocked(filePrices)
	return nil
}

func (m *MemStore) DeletePrice(_ context.Context, id string) error {
	return remove(m, m.prices, id, filePrices)
}

func (m *MemStore) ListImages(_ context.Context, modelID string) ([]schema.DeviceImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := sortedValues(m.images, byImage)
	if modelID == "" {
		return out, nil
	}
	return slices.DeleteFunc(out, func(v schema.DeviceImage) bool { return v.ModelID != modelID }), nil
}

func (m *MemStore) GetImage(_ context.Context, id string) (*schema.DeviceImage, error) {
	return get(&m.mu, m.images, id)
}

func (m *MemStore) PutImage(_ context.Context, v schema.DeviceImage) error {
	return put(m, m.images, v.ID, v, fileImages)
}

func (m *MemStore) DeleteImage(_ context.Context, id string) error {
	return remove(m, m.images, id, fileImages)
}

// --- Content ---

func (m *MemStore) ListAnnouncements(_ context.Context) ([]schema.Announcement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedValues(m.announcements, byAnnouncement), nil
}

func (m *MemStore) GetAnnouncement(_ context.Context, id string) (*schema.Announcement, error) {
	return get(&m.mu, m.announcements, id)
}

func (m *MemStore) PutAnnouncement(_ context.Context, v schema.Announcement) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = nowUTC()
	}
	return put(m, m.announcements, v.ID, v, fileAnnouncements)
}

func (m *MemStore) DeleteAnnouncement(_ context.Context, id string) error {
	return remove(m, m.announcements, id, fileAnnouncements)
}

func (m *MemStore) ListArticles(_ context.Context) ([]schema.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedValues(m.articles, byArticle), nil
}

func (m *MemStore) GetArticleBySlug(_ context.Context, slug string) (*schema.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.articles {
		if a.Slug == slug {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) PutArticle(_ context.Context, v schema.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.articles {
		if existing.ID != v.ID && existing.Slug == v.Slug {
			return fmt.Errorf("article slug %s: %w", v.Slug, ErrConflict)
		}
	}
	m.articles[v.ID] = v
	m.persistLocked(fileArticles)
	return nil
}

func (m *MemStore) DeleteArticle(_ context.Context, id string) error {
	return remove(m, m.articles, id, fileArticles)
}

// --- helpers ---

func get[T any](mu *sync.RWMutex, table map[string]T, id string) (*T, error) {
	mu.RLock()
	defer mu.RUnlock()

	v, ok := table[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func put[T any](m *MemStore, table map[string]T, id string, v T, file string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table[id] = v
	m.persistLocked(file)
	return nil
}

func remove[T any](m *MemStore, table map[string]T, id, file string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := table[id]; !ok {
		return ErrNotFound
	}
	delete(table, id)
	m.persistLocked(file)
	return nil
}
