package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/internal/session"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

// requiredRole is the lowest role allowed to perform action.
func requiredRole(action schema.AuditAction) schema.Role {
	switch action {
	case schema.ActionDelete:
		return schema.RoleAdmin
	case schema.ActionCreate, schema.ActionUpdate, schema.ActionUpload, schema.ActionRemove, schema.ActionToggle:
		return schema.RoleEditor
	default:
		return schema.RoleSuperadmin
	}
}

// Authorize resolves the acting admin and checks that their role reaches need.
func (s *Service) Authorize(ctx context.Context, sc session.Context, need schema.Role) (*schema.AdminRecord, error) {
	admin, ok := s.resolver.ResolveCurrentAdmin(ctx, sc)
	if !ok || !admin.Role.AtLeast(need) {
		return nil, ErrForbidden
	}
	return admin, nil
}

type change struct {
	table    schema.AuditTable
	action   schema.AuditAction
	recordID string
	before   any
	after    any
	apply    func(ctx context.Context) error
}

// commit applies c and records it. The mutation stands even when the audit
// write fails; the gap is logged.
func (s *Service) commit(ctx context.Context, sc session.Context, c change) error {
	if err := c.apply(ctx); err != nil {
		return err
	}
	s.metrics.RecordMutation(string(c.table), string(c.action))

	var recorded bool
	switch c.action {
	case schema.ActionCreate:
		recorded = s.recorder.LogCreate(ctx, sc, c.table, c.recordID, c.after)
	case schema.ActionUpdate:
		recorded = s.recorder.LogUpdate(ctx, sc, c.table, c.recordID, c.before, c.after)
	case schema.ActionDelete:
		recorded = s.recorder.LogDelete(ctx, sc, c.table, c.recordID, c.before)
	case schema.ActionUpload:
		recorded = s.recorder.LogUpload(ctx, sc, c.recordID, c.after)
	case schema.ActionRemove:
		recorded = s.recorder.LogRemove(ctx, sc, c.recordID, c.before)
	case schema.ActionToggle:
		recorded = s.recorder.LogToggle(ctx, sc, c.table, c.recordID, c.before, c.after)
	}
	if !recorded {
		s.logger.ErrorContext(ctx, "mutation applied without audit entry",
			"table", c.table, "action", c.action, "record_id", c.recordID)
	}
	return nil
}

func newID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

func requireName(field string, l schema.Localized) error {
	if l.RU == "" && l.EN == "" && l.CZ == "" {
		return fmt.Errorf("%w: %s needs at least one translation", ErrInvalid, field)
	}
	return nil
}

func requireSlug(slug string) error {
	if slug == "" || strings.ContainsAny(slug, " /?#") {
		return fmt.Errorf("%w: slug %q", ErrInvalid, slug)
	}
	return nil
}

// exists returns ErrInvalid when a referenced parent is missing.
func exists[T any](ctx context.Context, what, id string, get func(context.Context, string) (*T, error)) error {
	if _, err := get(ctx, id); err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			return fmt.Errorf("%w: unknown %s %q", ErrInvalid, what, id)
		}
		return err
	}
	return nil
}

// --- Categories ---

func (s *Service) CreateCategory(ctx context.Context, sc session.Context, c schema.Category) (*schema.Category, error) {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionCreate)); err != nil {
		return nil, err
	}
	c.ID = newID(c.ID)
	if err := requireSlug(c.Slug); err != nil {
		return nil, err
	}
	if err := requireName("name", c.Name); err != nil {
		return nil, err
	}
	if _, err := s.store.GetCategory(ctx, c.ID); err == nil {
		return nil, fmt.Errorf("category %s: %w", c.ID, engine.ErrConflict)
	}
	err := s.commit(ctx, sc, change{
		table: schema.TableDeviceCategories, action: schema.ActionCreate, recordID: c.ID, after: c,
		apply: func(ctx context.Context) error { return s.store.PutCategory(ctx, c) },
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCategory replaces the category's fields. The active flag is kept;
// use SetCategoryActive to change it.
func (s *Service) UpdateCategory(ctx context.Context, sc session.Context, c schema.Category) (*schema.Category, error) {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionUpdate)); err != nil {
		return nil, err
	}
	old, err := s.store.GetCategory(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if err := requireSlug(c.Slug); err != nil {
		return nil, err
	}
	if err := requireName("name", c.Name); err != nil {
		return nil, err
	}
	c.IsActive = old.IsActive
	err = s.commit(ctx, sc, change{
		table: schema.TableDeviceCategories, action: schema.ActionUpdate, recordID: c.ID, before: old, after: c,
		apply: func(ctx context.Context) error { return s.store.PutCategory(ctx, c) },
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCategory removes a category without models or service links.
func (s *Service) DeleteCategory(ctx context.Context, sc session.Context, id string) error {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionDelete)); err != nil {
		return err
	}
	old, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	models, err := s.store.ListModels(ctx, id)
	if err != nil {
		return err
	}
	links, err := s.store.ListCategoryServices(ctx, id)
	if err != nil {
		return err
	}
	if len(models) > 0 || len(links) > 0 {
		return fmt.Errorf("category %s has %d models and %d services: %w", id, len(models), len(links), ErrInUse)
	}
	return s.commit(ctx, sc, change{
		table: schema.TableDeviceCategories, action: schema.ActionDelete, recordID: id, before: old,
		apply: func(ctx context.Context) error { return s.store.DeleteCategory(ctx, id) },
	})
}

func (s *Service) SetCategoryActive(ctx context.Context, sc session.Context, id string, active bool) (*schema.Category, error) {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionToggle)); err != nil {
		return nil, err
	}
	old, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.IsActive == active {
		return old, nil
	}
	c := *old
	c.IsActive = active
	err = s.commit(ctx, sc, change{
		table: schema.TableDeviceCategories, action: schema.ActionToggle, recordID: id, before: old, after: c,
		apply: func(ctx context.Context) error { return s.store.PutCategory(ctx, c) },
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// --- Models ---

func (s *Service) validateModel(ctx context.Context, m schema.DeviceModel) error {
	if err := requireSlug(m.Slug); err != nil {
		return err
	}
	if err := requireName("name", m.Name); err != nil {
		return err
	}
	return exists(ctx, "category", m.CategoryID, s.store.GetCategory)
}

func (s *Service) CreateModel(ctx context.Context, sc session.Context, m schema.DeviceModel) (*schema.DeviceModel, error) {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionCreate)); err != nil {
		return nil, err
	}
	m.ID = newID(m.ID)
	if err := s.validateModel(ctx, m); err != nil {
		return nil, err
	}
	if _, err := s.store.GetModel(ctx, m.ID); err == nil {
		return nil, fmt.Errorf("model %s: %w", m.ID, engine.ErrConflict)
	}
	err := s.commit(ctx, sc, change{
		table: schema.TableDeviceModels, action: schema.ActionCreate, recordID: m.ID, after: m,
		apply: func(ctx context.Context) error { return s.store.PutModel(ctx, m) },
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) UpdateModel(ctx context.Context, sc session.Context, m schema.DeviceModel) (*schema.DeviceModel, error) {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionUpdate)); err != nil {
		return nil, err
	}
	old, err := s.store.GetModel(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if err := s.validateModel(ctx, m); err != nil {
		return nil, err
	}
	m.IsActive = old.IsActive
	err = s.commit(ctx, sc, change{
		table: schema.TableDeviceModels, action: schema.ActionUpdate, recordID: m.ID, before: old, after: m,
		apply: func(ctx context.Context) error { return s.store.PutModel(ctx, m) },
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteModel removes a model without prices or images.
func (s *Service) DeleteModel(ctx context.Context, sc session.Context, id string) error {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionDelete)); err != nil {
		return err
	}
	old, err := s.store.GetModel(ctx, id)
	if err != nil {
		return err
	}
	prices, err := s.store.ListPrices(ctx, id)
	if err != nil {
		return err
	}
	images, err := s.store.ListImages(ctx, id)
	if err != nil {
		return err
	}
	if len(prices) > 0 || len(images) > 0 {
		return fmt.Errorf("model %s has %d prices and %d images: %w", id, len(prices), len(images), ErrInUse)
	}
	return s.commit(ctx, sc, change{
		table: schema.TableDeviceModels, action: schema.ActionDelete, recordID: id, before: old,
		apply: func(ctx context.Context) error { return s.store.DeleteModel(ctx, id) },
	})
}

func (s *Service) SetModelActive(ctx context.Context, sc session.Context, id string, active bool) (*schema.DeviceModel, error) {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionToggle)); err != nil {
		return nil, err
	}
	old, err := s.store.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.IsActive == active {
		return old, nil
	}
	m := *old
	m.IsActive = active
	err = s.commit(ctx, sc, change{
		table: schema.TableDeviceModels, action: schema.ActionToggle, recordID: id, before: old, after: m,
		apply: func(ctx context.Context) error { return s.store.PutModel(ctx, m) },
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// --- Services ---

func (s *Service) CreateService(ctx context.Context, sc session.Context, svc schema.Service) (*schema.Service, error) {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionCreate)); err != nil {
		return nil, err
	}
	svc.ID = newID(svc.ID)
	if err := requireName("name", svc.Name); err != nil {
		return nil, err
	}
	if _, err := s.store.GetService(ctx, svc.ID); err == nil {
		return nil, fmt.Errorf("service %s: %w", svc.ID, engine.ErrConflict)
	}
	err := s.commit(ctx, sc, change{
		table: schema.TableServices, action: schema.ActionCreate, recordID: svc.ID, after: svc,
		apply: func(ctx context.Context) error { return s.store.PutService(ctx, svc) },
	})
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *Service) UpdateService(ctx context.Context, sc session.Context, svc schema.Service) (*schema.Service, error) {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionUpdate)); err != nil {
		return nil, err
	}
	old, err := s.store.GetService(ctx, svc.ID)
	if err != nil {
		return nil, err
	}
	if err := requireName("name", svc.Name); err != nil {
		return nil, err
	}
	svc.IsActive = old.IsActive
	err = s.commit(ctx, sc, change{
		table: schema.TableServices, action: schema.ActionUpdate, recordID: svc.ID, before: old, after: svc,
		apply: func(ctx context.Context) error { return s.store.PutService(ctx, svc) },
	})
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// DeleteService removes a service that no category offers and no model prices.
func (s *Service) DeleteService(ctx context.Context, sc session.Context, id string) error {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionDelete)); err != nil {
		return err
	}
	old, err := s.store.GetService(ctx, id)
	if err != nil {
		return err
	}
	links, err := s.store.ListCategoryServices(ctx, "")
	if err != nil {
		return err
	}
	prices, err := s.store.ListPrices(ctx, "")
	if err != nil {
		return err
	}
	refs := 0
	for _, l := range links {
		if l.ServiceID == id {
			refs++
		}
	}
	for _, p := range prices {
		if p.ServiceID == id {
			refs++
		}
	}
	if refs > 0 {
		return fmt.Errorf("service %s has %d references: %w", id, refs, ErrInUse)
	}
	return s.commit(ctx, sc, change{
		table: schema.TableServices, action: schema.ActionDelete, recordID: id, before: old,
		apply: func(ctx context.Context) error { return s.store.DeleteService(ctx, id) },
	})
}

func (s *Service) SetServiceActive(ctx context.Context, sc session.Context, id string, active bool) (*schema.Service, error) {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionToggle)); err != nil {
		return nil, err
	}
	old, err := s.store.GetService(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.IsActive == active {
		return old, nil
	}
	svc := *old
	svc.IsActive = active
	err = s.commit(ctx, sc, change{
		table: schema.TableServices, action: schema.ActionToggle, recordID: id, before: old, after: svc,
		apply: func(ctx context.Context) error { return s.store.PutService(ctx, svc) },
	})
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// --- Category services ---

// LinkService offers a service for every model of a category.
func (s *Service) LinkService(ctx context.Context, sc session.Context, categoryID, serviceID string) (*schema.CategoryService, error) {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionCreate)); err != nil {
		return nil, err
	}
	if err := exists(ctx, "category", categoryID, s.store.GetCategory); err != nil {
		return nil, err
	}
	if err := exists(ctx, "service", serviceID, s.store.GetService); err != nil {
		return nil, err
	}
	link := schema.CategoryService{ID: newID(""), CategoryID: categoryID, ServiceID: serviceID}
	err := s.commit(ctx, sc, change{
		table: schema.TableCategoryServices, action: schema.ActionCreate, recordID: link.ID, after: link,
		apply: func(ctx context.Context) error { return s.store.PutCategoryService(ctx, link) },
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *Service) UnlinkService(ctx context.Context, sc session.Context, id string) error {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionDelete)); err != nil {
		return err
	}
	old, err := s.store.GetCategoryService(ctx, id)
	if err != nil {
		return err
	}
	return s.commit(ctx, sc, change{
		table: schema.TableCategoryServices, action: schema.ActionDelete, recordID: id, before: old,
		apply: func(ctx context.Context) error { return s.store.DeleteCategoryService(ctx, id) },
	})
}

// --- Prices ---

// SetPrice creates or replaces the price of a service on a model. The
// price is looked up by model and service; p.ID is ignored when one exists.
func (s *Service) SetPrice(ctx context.Context, sc session.Context, p schema.Price) (*schema.Price, error) {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionUpdate)); err != nil {
		return nil, err
	}
	if p.Amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalid)
	}
	if err := validateDiscount(p.Discount); err != nil {
		return nil, err
	}
	if err := exists(ctx, "model", p.ModelID, s.store.GetModel); err != nil {
		return nil, err
	}
	if err := exists(ctx, "service", p.ServiceID, s.store.GetService); err != nil {
		return nil, err
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	p.Currency = strings.ToUpper(p.Currency)
	p.UpdatedAt = s.now().UTC()

	current, err := s.store.ListPrices(ctx, p.ModelID)
	if err != nil {
		return nil, err
	}
	c := change{table: schema.TablePrices, action: schema.ActionCreate}
	for _, existing := range current {
		if existing.ServiceID == p.ServiceID {
			old := existing
			c.action, c.before, p.ID = schema.ActionUpdate, &old, existing.ID
			break
		}
	}
	if c.action == schema.ActionCreate {
		p.ID = newID(p.ID)
	}
	c.recordID, c.after = p.ID, p
	c.apply = func(ctx context.Context) error { return s.store.PutPrice(ctx, p) }
	if err := s.commit(ctx, sc, c); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) DeletePrice(ctx context.Context, sc session.Context, id string) error {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionDelete)); err != nil {
		return err
	}
	old, err := s.store.GetPrice(ctx, id)
	if err != nil {
		return err
	}
	return s.commit(ctx, sc, change{
		table: schema.TablePrices, action: schema.ActionDelete, recordID: id, before: old,
		apply: func(ctx context.Context) error { return s.store.DeletePrice(ctx, id) },
	})
}

// --- Images ---

// AddImage registers image metadata for a model. The file itself is stored
// elsewhere and referenced by URL.
func (s *Service) AddImage(ctx context.Context, sc session.Context, img schema.DeviceImage) (*schema.DeviceImage, error) {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionUpload)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(img.URL) == "" {
		return nil, fmt.Errorf("%w: image url is required", ErrInvalid)
	}
	if err := exists(ctx, "model", img.ModelID, s.store.GetModel); err != nil {
		return nil, err
	}
	img.ID = newID(img.ID)
	if _, err := s.store.GetImage(ctx, img.ID); err == nil {
		return nil, fmt.Errorf("image %s: %w", img.ID, engine.ErrConflict)
	}
	err := s.commit(ctx, sc, change{
		table: schema.TableDeviceImages, action: schema.ActionUpload, recordID: img.ID, after: img,
		apply: func(ctx context.Context) error { return s.store.PutImage(ctx, img) },
	})
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (s *Service) RemoveImage(ctx context.Context, sc session.Context, id string) error {
	if _, err := s.Authorize(ctx, sc, requiredRole(schema.ActionRemove)); err != nil {
		return err
	}
	old, err := s.store.GetImage(ctx, id)
	if err != nil {
		return err
	}
	return s.commit(ctx, sc, change{
		table: schema.TableDeviceImages, action: schema.ActionRemove, recordID: id, before: old,
		apply: func(ctx context.Context) error { return s.store.DeleteImage(ctx, id) },
	})
}

// --- Audit trail ---

// AuditTrail lists audit entries, newest first. Only admins and above may read it.
func (s *Service) AuditTrail(ctx context.Context, sc session.Context, f engine.AuditFilter) ([]schema.AuditEntry, error) {
	if _, err := s.Authorize(ctx, sc, schema.RoleAdmin); err != nil {
		return nil, err
	}
	if f.TableName != "" && !f.TableName.Valid() {
		return nil, fmt.Errorf("%w: unknown table %q", ErrInvalid, f.TableName)
	}
	switch {
	case f.Limit <= 0:
		f.Limit = 100
	case f.Limit > 500:
		f.Limit = 500
	}
	return s.store.ListAudit(ctx, f)
}
