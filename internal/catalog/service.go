// Package catalog serves the public price list and the back-office
// mutations on it. Every mutation resolves the acting admin, checks the
// role, applies the change and records it in the audit log.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/celerix-dev/repairdesk/internal/audit"
	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/internal/log"
	"github.com/celerix-dev/repairdesk/internal/metrics"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

// Store is the part of engine.Store the catalog needs.
type Store interface {
	engine.CatalogReader
	engine.CatalogWriter
	engine.ContentReader
	engine.AuditReader
}

// Service is the catalog facade used by the HTTP layer.
type Service struct {
	store    Store
	resolver *audit.Resolver
	recorder *audit.Recorder
	logger   *log.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService creates a Service. logger and m may be nil.
func NewService(store Store, resolver *audit.Resolver, recorder *audit.Recorder, logger *log.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		resolver: resolver,
		recorder: recorder,
		logger:   logger.With("component", "catalog"),
		metrics:  m,
		now:      time.Now,
	}
}

// Categories lists active categories in display order.
func (s *Service) Categories(ctx context.Context, lang schema.Lang) ([]schema.CategoryView, error) {
	all, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]schema.CategoryView, 0, len(all))
	for _, c := range all {
		if !c.IsActive {
			continue
		}
		out = append(out, schema.CategoryView{ID: c.ID, Slug: c.Slug, Name: c.Name.Pick(lang), SortOrder: c.SortOrder})
	}
	return out, nil
}

// Models lists the active models of an active category.
func (s *Service) Models(ctx context.Context, categoryID string, lang schema.Lang) ([]schema.ModelView, error) {
	c, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, engine.ErrNotFound
	}
	models, err := s.store.ListModels(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	out := make([]schema.ModelView, 0, len(models))
	for _, m := range models {
		if !m.IsActive {
			continue
		}
		view, err := s.modelView(ctx, m, lang)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *Service) modelView(ctx context.Context, m schema.DeviceModel, lang schema.Lang) (schema.ModelView, error) {
	images, err := s.store.ListImages(ctx, m.ID)
	if err != nil {
		return schema.ModelView{}, err
	}
	view := schema.ModelView{ID: m.ID, CategoryID: m.CategoryID, Slug: m.Slug, Name: m.Name.Pick(lang), Images: make([]schema.ImageView, 0, len(images))}
	for _, img := range images {
		view.Images = append(view.Images, schema.ImageView{URL: img.URL, Alt: img.Alt.Pick(lang)})
	}
	return view, nil
}

// PriceTable lists every active service offered for the model's category,
// with the model's price and the discounted final price where one is set.
func (s *Service) PriceTable(ctx context.Context, modelID string, lang schema.Lang) (*schema.PriceTable, error) {
	m, err := s.store.GetModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCategory(ctx, m.CategoryID)
	if err != nil {
		return nil, err
	}
	if !m.IsActive || !c.IsActive {
		return nil, engine.ErrNotFound
	}

	view, err := s.modelView(ctx, *m, lang)
	if err != nil {
		return nil, err
	}
	links, err := s.store.ListCategoryServices(ctx, m.CategoryID)
	if err != nil {
		return nil, err
	}
	prices, err := s.store.ListPrices(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	byService := make(map[string]schema.Price, len(prices))
	for _, p := range prices {
		byService[p.ServiceID] = p
	}
	linked := make(map[string]bool, len(links))
	for _, l := range links {
		linked[l.ServiceID] = true
	}

	services, err := s.store.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	table := &schema.PriceTable{Model: view, Rows: []schema.PriceRow{}}
	for _, svc := range services {
		if !svc.IsActive || !linked[svc.ID] {
			continue
		}
		row := schema.PriceRow{ServiceID: svc.ID, Service: svc.Name.Pick(lang), Description: svc.Description.Pick(lang)}
		if p, ok := byService[svc.ID]; ok {
			amount, final := p.Amount, FinalPrice(p.Amount, p.Discount, now)
			row.Amount, row.Final, row.Currency = &amount, &final, p.Currency
			if DiscountActive(p.Discount, now) {
				row.Discount = p.Discount
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// Announcements lists the banners that are active now, newest first.
func (s *Service) Announcements(ctx context.Context, lang schema.Lang) ([]schema.AnnouncementView, error) {
	all, err := s.store.ListAnnouncements(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]schema.AnnouncementView, 0, len(all))
	for _, a := range all {
		if !a.IsActive || (a.StartsAt != nil && now.Before(*a.StartsAt)) || (a.EndsAt != nil && !now.Before(*a.EndsAt)) {
			continue
		}
		out = append(out, schema.AnnouncementView{
			ID:        a.ID,
			Title:     a.Title.Pick(lang),
			Body:      a.Body.Pick(lang),
			StartsAt:  a.StartsAt,
			EndsAt:    a.EndsAt,
			CreatedAt: a.CreatedAt,
		})
	}
	return out, nil
}

// Articles lists published articles without their bodies, newest first.
func (s *Service) Articles(ctx context.Context, lang schema.Lang) ([]schema.ArticleView, error) {
	all, err := s.store.ListArticles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]schema.ArticleView, 0, len(all))
	for _, a := range all {
		if !a.Published {
			continue
		}
		out = append(out, schema.ArticleView{Slug: a.Slug, Title: a.Title.Pick(lang), Summary: a.Summary.Pick(lang), PublishedAt: a.PublishedAt})
	}
	return out, nil
}

// Article returns a published article by slug. Drafts are not found.
func (s *Service) Article(ctx context.Context, slug string, lang schema.Lang) (*schema.ArticleView, error) {
	a, err := s.store.GetArticleBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !a.Published {
		return nil, engine.ErrNotFound
	}
	return &schema.ArticleView{
		Slug:        a.Slug,
		Title:       a.Title.Pick(lang),
		Summary:     a.Summary.Pick(lang),
		Body:        a.Body.Pick(lang),
		PublishedAt: a.PublishedAt,
	}, nil
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool { return errors.Is(err, engine.ErrNotFound) }
