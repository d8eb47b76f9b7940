package schema

import "time"

// Public read models. Localized fields are resolved to one language.

// CategoryView is a category as shown to visitors.
type CategoryView struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

// ModelView is a device model as shown to visitors.
type ModelView struct {
	ID         string      `json:"id"`
	CategoryID string      `json:"category_id"`
	Slug       string      `json:"slug"`
	Name       string      `json:"name"`
	Images     []ImageView `json:"images"`
}

// ImageView is an image reference with localized alt text.
type ImageView struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// PriceRow is one service line of a model's price table. Amount is nil
// when the service is offered but not priced yet.
type PriceRow struct {
	ServiceID   string    `json:"service_id"`
	Service     string    `json:"service"`
	Description string    `json:"description"`
	Amount      *int64    `json:"amount"`
	Final       *int64    `json:"final"`
	Currency    string    `json:"currency,omitempty"`
	Discount    *Discount `json:"discount,omitempty"`
}

// PriceTable is the price list of one model.
type PriceTable struct {
	Model ModelView  `json:"model"`
	Rows  []PriceRow `json:"rows"`
}

// AnnouncementView is a banner in one language.
type AnnouncementView struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ArticleView is an article in one language. Body is empty in listings.
type ArticleView struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Body        string    `json:"body,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
