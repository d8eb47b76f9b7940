package catalog

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/celerix-dev/repairdesk/internal/engine"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

// Seed is the content of a catalog seed file.
type Seed struct {
	Categories    []schema.Category        `yaml:"categories"`
	Services      []schema.Service         `yaml:"services"`
	Models        []schema.DeviceModel     `yaml:"models"`
	Links         []schema.CategoryService `yaml:"links"`
	Prices        []schema.Price           `yaml:"prices"`
	Images        []schema.DeviceImage     `yaml:"images"`
	Announcements []schema.Announcement    `yaml:"announcements"`
	Articles      []schema.Article         `yaml:"articles"`
}

// SeedTarget receives seed records.
type SeedTarget interface {
	engine.CatalogWriter
	engine.ContentWriter
}

// LoadSeed decodes a YAML seed. Unknown keys are rejected.
func LoadSeed(r io.Reader) (*Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Seed
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadSeedFile reads a YAML seed from path.
func LoadSeedFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadSeed(f)
}

func (s *Seed) validate() error {
	seen := map[string]bool{}
	check := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%w: %s without id", ErrInvalid, kind)
		}
		if seen[kind+"/"+id] {
			return fmt.Errorf("%w: duplicate %s %q", ErrInvalid, kind, id)
		}
		seen[kind+"/"+id] = true
		return nil
	}
	ref := func(kind, id, parent, parentID string) error {
		if !seen[parent+"/"+parentID] {
			return fmt.Errorf("%w: %s %q references unknown %s %q", ErrInvalid, kind, id, parent, parentID)
		}
		return nil
	}

	for _, c := range s.Categories {
		if err := check("category", c.ID); err != nil {
			return err
		}
		if err := requireSlug(c.Slug); err != nil {
			return err
		}
	}
	for _, v := range s.Services {
		if err := check("service", v.ID); err != nil {
			return err
		}
	}
	for _, m := range s.Models {
		if err := check("model", m.ID); err != nil {
			return err
		}
		if err := ref("model", m.ID, "category", m.CategoryID); err != nil {
			return err
		}
	}
	for _, l := range s.Links {
		if err := check("link", l.ID); err != nil {
			return err
		}
		if err := ref("link", l.ID, "category", l.CategoryID); err != nil {
			return err
		}
		if err := ref("link", l.ID, "service", l.ServiceID); err != nil {
			return err
		}
	}
	for _, p := range s.Prices {
		if err := check("price", p.ID); err != nil {
			return err
		}
		if err := ref("price", p.ID, "model", p.ModelID); err != nil {
			return err
		}
		if err := ref("price", p.ID, "service", p.ServiceID); err != nil {
			return err
		}
		if err := validateDiscount(p.Discount); err != nil {
			return fmt.Errorf("price %q: %w", p.ID, err)
		}
	}
	for _, img := range s.Images {
		if err := check("image", img.ID); err != nil {
			return err
		}
		if err := ref("image", img.ID, "model", img.ModelID); err != nil {
			return err
		}
	}
	for _, a := range s.Announcements {
		if err := check("announcement", a.ID); err != nil {
			return err
		}
	}
	for _, a := range s.Articles {
		if err := check("article", a.ID); err != nil {
			return err
		}
		if err := requireSlug(a.Slug); err != nil {
			return err
		}
	}
	return nil
}

// Apply upserts every seed record into dst, parents first. Seeding is a
// maintenance operation and is not audited.
func (s *Seed) Apply(ctx context.Context, dst SeedTarget) error {
	for _, c := range s.Categories {
		if err := dst.PutCategory(ctx, c); err != nil {
			return fmt.Errorf("seed category %s: %w", c.ID, err)
		}
	}
	for _, v := range s.Services {
		if err := dst.PutService(ctx, v); err != nil {
			return fmt.Errorf("seed service %s: %w", v.ID, err)
		}
	}
	for _, m := range s.Models {
		if err := dst.PutModel(ctx, m); err != nil {
			return fmt.Errorf("seed model %s: %w", m.ID, err)
		}
	}
	for _, l := range s.Links {
		if err := dst.PutCategoryService(ctx, l); err != nil {
			return fmt.Errorf("seed link %s: %w", l.ID, err)
		}
	}
	for _, p := range s.Prices {
		if p.Currency == "" {
			p.Currency = DefaultCurrency
		}
		if err := dst.PutPrice(ctx, p); err != nil {
			return fmt.Errorf("seed price %s: %w", p.ID, err)
		}
	}
	for _, img := range s.Images {
		if err := dst.PutImage(ctx, img); err != nil {
			return fmt.Errorf("seed image %s: %w", img.ID, err)
		}
	}
	for _, a := range s.Announcements {
		if err := dst.PutAnnouncement(ctx, a); err != nil {
			return fmt.Errorf("seed announcement %s: %w", a.ID, err)
		}
	}
	for _, a := range s.Articles {
		if err := dst.PutArticle(ctx, a); err != nil {
			return fmt.Errorf("seed article %s: %w", a.ID, err)
		}
	}
	return nil
}
