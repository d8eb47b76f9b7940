package schema

import "time"

// Lang is a supported content language.
type Lang string

const (
	LangRU Lang = "ru"
	LangEN Lang = "en"
	LangCZ Lang = "cz"
)

// DefaultLang is used when a request names no language or an unknown one.
const DefaultLang = LangRU

// ParseLang maps a language tag to a supported Lang, falling back to DefaultLang.
// "cs" is accepted as an alias for Czech.
func ParseLang(s string) Lang {
	switch s {
	case "ru", "RU":
		return LangRU
	case "en", "EN":
		return LangEN
	case "cz", "CZ", "cs", "CS":
		return LangCZ
	default:
		return DefaultLang
	}
}

// Localized holds one text in every supported language.
type Localized struct {
	RU string `json:"ru" yaml:"ru"`
	EN string `json:"en" yaml:"en"`
	CZ string `json:"cz" yaml:"cz"`
}

// Pick returns the text for lang, falling back to Russian, then English,
// then Czech when the requested translation is empty.
func (l Localized) Pick(lang Lang) string {
	var s string
	switch lang {
	case LangEN:
		s = l.EN
	case LangCZ:
		s = l.CZ
	default:
		s = l.RU
	}
	if s != "" {
		return s
	}
	for _, fallback := range []string{l.RU, l.EN, l.CZ} {
		if fallback != "" {
			return fallback
		}
	}
	return ""
}

// Category groups device models (phones, laptops, consoles...).
type Category struct {
	ID        string    `json:"id" yaml:"id"`
	Slug      string    `json:"slug" yaml:"slug"`
	Name      Localized `json:"name" yaml:"name"`
	SortOrder int       `json:"sort_order" yaml:"sort_order"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
}

// DeviceModel is a concrete device within a category.
type DeviceModel struct {
	ID         string    `json:"id" yaml:"id"`
	CategoryID string    `json:"category_id" yaml:"category_id"`
	Slug       string    `json:"slug" yaml:"slug"`
	Name       Localized `json:"name" yaml:"name"`
	SortOrder  int       `json:"sort_order" yaml:"sort_order"`
	IsActive   bool      `json:"is_active" yaml:"is_active"`
}

// Service is a repair operation offered by the shop.
type Service struct {
	ID          string    `json:"id" yaml:"id"`
	Name        Localized `json:"name" yaml:"name"`
	Description Localized `json:"description" yaml:"description"`
	SortOrder   int       `json:"sort_order" yaml:"sort_order"`
	IsActive    bool      `json:"is_active" yaml:"is_active"`
}

// CategoryService makes a service available for every model of a category.
type CategoryService struct {
	ID         string `json:"id" yaml:"id"`
	CategoryID string `json:"category_id" yaml:"category_id"`
	ServiceID  string `json:"service_id" yaml:"service_id"`
}

// DiscountKind selects how a discount value is applied.
type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

// Discount lowers a base price, optionally only within a date range.
type Discount struct {
	Kind     DiscountKind `json:"kind" yaml:"kind"`
	Value    int64        `json:"value" yaml:"value"`
	StartsAt *time.Time   `json:"starts_at,omitempty" yaml:"starts_at,omitempty"`
	EndsAt   *time.Time   `json:"ends_at,omitempty" yaml:"ends_at,omitempty"`
}

// Price is the cost of one service on one model, in whole currency units.
type Price struct {
	ID        string    `json:"id" yaml:"id"`
	ModelID   string    `json:"model_id" yaml:"model_id"`
	ServiceID string    `json:"service_id" yaml:"service_id"`
	Amount    int64     `json:"amount" yaml:"amount"`
	Currency  string    `json:"currency" yaml:"currency"`
	Discount  *Discount `json:"discount,omitempty" yaml:"discount,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// DeviceImage is image metadata for a model. The bytes live elsewhere.
type DeviceImage struct {
	ID        string    `json:"id" yaml:"id"`
	ModelID   string    `json:"model_id" yaml:"model_id"`
	URL       string    `json:"url" yaml:"url"`
	Alt       Localized `json:"alt" yaml:"alt"`
	SortOrder int       `json:"sort_order" yaml:"sort_order"`
}

// Announcement is a promotional banner shown while active and within its dates.
type Announcement struct {
	ID        string     `json:"id" yaml:"id"`
	Title     Localized  `json:"title" yaml:"title"`
	Body      Localized  `json:"body" yaml:"body"`
	IsActive  bool       `json:"is_active" yaml:"is_active"`
	StartsAt  *time.Time `json:"starts_at,omitempty" yaml:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty" yaml:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
}

// Article is a blog post.
type Article struct {
	ID          string    `json:"id" yaml:"id"`
	Slug        string    `json:"slug" yaml:"slug"`
	Title       Localized `json:"title" yaml:"title"`
	Summary     Localized `json:"summary" yaml:"summary"`
	Body        Localized `json:"body" yaml:"body"`
	Published   bool      `json:"published" yaml:"published"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
}
