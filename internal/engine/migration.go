package engine

import (
	"context"
	"errors"
	"fmt"
)

// Migrate copies users, admins, catalog and content from src into dst.
// This works for:
// - Embedded -> SQL (the "Upgrade")
// - SQL -> Embedded (the "Backup/Offline")
// Audit entries are not copied: only the recorder creates them.
// Existing users (same email) and admins (same id) in dst are left as they are.
func Migrate(ctx context.Context, src, dst Store) error {
	users, err := src.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range users {
		if err := dst.CreateUser(ctx, &u); err != nil && !errors.Is(err, ErrConflict) {
			return fmt.Errorf("failed to copy user %s: %w", u.Email, err)
		}
	}

	admins, err := src.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}
	for _, a := range admins {
		if _, err := dst.GetAdmin(ctx, a.ID); err == nil {
			continue
		}
		if err := dst.CreateAdmin(ctx, &a); err != nil {
			return fmt.Errorf("failed to copy admin %s: %w", a.ID, err)
		}
	}

	// Parents before children so foreign keys hold on SQL destinations.
	categories, err := src.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}
	for _, c := range categories {
		if err := dst.PutCategory(ctx, c); err != nil {
			return fmt.Errorf("failed to copy category %s: %w", c.ID, err)
		}
	}

	services, err := src.ListServices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list services: %w", err)
	}
	for _, s := range services {
		if err := dst.PutService(ctx, s); err != nil {
			return fmt.Errorf("failed to copy service %s: %w", s.ID, err)
		}
	}

	models, err := src.ListModels(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	for _, m := range models {
		if err := dst.PutModel(ctx, m); err != nil {
			return fmt.Errorf("failed to copy model %s: %w", m.ID, err)
		}
	}

	links, err := src.ListCategoryServices(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list category services: %w", err)
	}
	for _, l := range links {
		if err := dst.PutCategoryService(ctx, l); err != nil {
			return fmt.Errorf("failed to copy category service %s: %w", l.ID, err)
		}
	}

	prices, err := src.ListPrices(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list prices: %w", err)
	}
	for _, p := range prices {
		if err := dst.PutPrice(ctx, p); err != nil {
			return fmt.Errorf("failed to copy price %s: %w", p.ID, err)
		}
	}

	images, err := src.ListImages(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	for _, img := range images {
		if err := dst.PutImage(ctx, img); err != nil {
			return fmt.Errorf("failed to copy image %s: %w", img.ID, err)
		}
	}

	announcements, err := src.ListAnnouncements(ctx)
	if err != nil {
		return fmt.Errorf("failed to list announcements: %w", err)
	}
	for _, a := range announcements {
		if err := dst.PutAnnouncement(ctx, a); err != nil {
			return fmt.Errorf("failed to copy announcement %s: %w", a.ID, err)
		}
	}

	articles, err := src.ListArticles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list articles: %w", err)
	}
	for _, a := range articles {
		if err := dst.PutArticle(ctx, a); err != nil {
			return fmt.Errorf("failed to copy article %s: %w", a.ID, err)
		}
	}

	return nil
}
