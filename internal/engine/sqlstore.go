package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/celerix-dev/repairdesk/internal/db"
	"github.com/celerix-dev/repairdesk/pkg/schema"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		// rows written by hand may use plain RFC 3339
		t, err = time.Parse(time.RFC3339Nano, raw)
	}
	return t.UTC(), err
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func ptrString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SQLStore implements Store on database/sql for Postgres and SQLite.
type SQLStore struct {
	db *db.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open, migrated database.
func NewSQLStore(d *db.DB) *SQLStore {
	return &SQLStore{db: d}
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.db.Rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.db.Rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.db.Rebind(query), args...)
}

// mapErr turns driver-level outcomes into the package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// --- Users & admins ---

func (s *SQLStore) CreateUser(ctx context.Context, u *schema.UserRecord) error {
	u.Email = normalizeEmail(u.Email)
	if u.ID == "" {
		u.ID = schema.SubjectID(uuid.NewString())
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = nowUTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		string(u.ID), u.Email, u.PasswordHash, formatTime(u.CreatedAt))
	return mapErr(err)
}

func scanUser(row scanner) (*schema.UserRecord, error) {
	var (
		u       schema.UserRecord
		id      string
		created string
	)
	if err := row.Scan(&id, &u.Email, &u.PasswordHash, &created); err != nil {
		return nil, mapErr(err)
	}
	u.ID = schema.SubjectID(id)
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = t
	return &u, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id schema.SubjectID) (*schema.UserRecord, error) {
	return scanUser(s.queryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, string(id)))
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*schema.UserRecord, error) {
	return scanUser(s.queryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, normalizeEmail(email)))
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]schema.UserRecord, error) {
	rows, err := s.query(ctx, `SELECT id, email, password_hash, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.UserRecord
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

const adminColumns = `id, user_id, email, role, is_active, created_at`

func scanAdmin(row scanner) (*schema.AdminRecord, error) {
	var (
		a             schema.AdminRecord
		id, uid, role string
		created       string
	)
	if err := row.Scan(&id, &uid, &a.Email, &role, &a.IsActive, &created); err != nil {
		return nil, mapErr(err)
	}
	a.ID = schema.AdminID(id)
	a.UserID = schema.SubjectID(uid)
	a.Role = schema.Role(role)
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = t
	return &a, nil
}

func (s *SQLStore) FindActiveAdmin(ctx context.Context, userID schema.SubjectID) (*schema.AdminRecord, error) {
	a, err := scanAdmin(s.queryRow(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE user_id = ? AND is_active = ? ORDER BY created_at, id LIMIT 1`,
		string(userID), true))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return a, err
}

func (s *SQLStore) GetAdmin(ctx context.Context, id schema.AdminID) (*schema.AdminRecord, error) {
	return scanAdmin(s.queryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = ?`, string(id)))
}

func (s *SQLStore) ListAdmins(ctx context.Context) ([]schema.AdminRecord, error) {
	rows, err := s.query(ctx, `SELECT `+adminColumns+` FROM admins ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.AdminRecord
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateAdmin(ctx context.Context, rec *schema.AdminRecord) error {
	if rec.ID == "" {
		rec.ID = schema.AdminID(uuid.NewString())
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = nowUTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO admins (`+adminColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		string(rec.ID), string(rec.UserID), rec.Email, string(rec.Role), rec.IsActive, formatTime(rec.CreatedAt))
	return mapErr(err)
}

func (s *SQLStore) SetAdminActive(ctx context.Context, id schema.AdminID, active bool) error {
	return expectOne(s.exec(ctx, `UPDATE admins SET is_active = ? WHERE id = ?`, active, string(id)))
}

// --- Audit ---

func (s *SQLStore) AppendAudit(ctx context.Context, e *schema.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	created := nowUTC()
	_, err := s.exec(ctx,
		`INSERT INTO audit_log (id, admin_id, action, table_name, record_id, old_data, new_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.AdminID), string(e.Action), string(e.TableName),
		nullString(e.RecordID), nullString(e.OldData), nullString(e.NewData), formatTime(created))
	if err != nil {
		return mapErr(err)
	}
	e.CreatedAt = created
	return nil
}

func (s *SQLStore) ListAudit(ctx context.Context, f AuditFilter) ([]schema.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.AdminID != "" {
		where = append(where, "admin_id = ?")
		args = append(args, string(f.AdminID))
	}
	if f.TableName != "" {
		where = append(where, "table_name = ?")
		args = append(args, string(f.TableName))
	}
	if f.RecordID != "" {
		where = append(where, "record_id = ?")
		args = append(args, f.RecordID)
	}
	q := `SELECT id, admin_id, action, table_name, record_id, old_data, new_data, created_at FROM audit_log`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.AuditEntry
	for rows.Next() {
		var (
			e                          schema.AuditEntry
			adminID, action, table     string
			recordID, oldData, newData sql.NullString
			created                    string
		)
		if err := rows.Scan(&e.ID, &adminID, &action, &table, &recordID, &oldData, &newData, &created); err != nil {
			return nil, err
		}
		e.AdminID = schema.AdminID(adminID)
		e.Action = schema.AuditAction(action)
		e.TableName = schema.AuditTable(table)
		e.RecordID = ptrString(recordID)
		e.OldData = ptrString(oldData)
		e.NewData = ptrString(newData)
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Catalog ---

func scanLocalized(raw string) (schema.Localized, error) {
	var l schema.Localized
	err := json.Unmarshal([]byte(raw), &l)
	return l, err
}

const categoryColumns = `id, slug, name, sort_order, is_active`

func scanCategory(row scanner) (*schema.Category, error) {
	var (
		c    schema.Category
		name string
	)
	if err := row.Scan(&c.ID, &c.Slug, &name, &c.SortOrder, &c.IsActive); err != nil {
		return nil, mapErr(err)
	}
	var err error
	if c.Name, err = scanLocalized(name); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLStore) ListCategories(ctx context.Context) ([]schema.Category, error) {
	return listRows(ctx, s, scanCategory,
		`SELECT `+categoryColumns+` FROM device_categories ORDER BY sort_order, id`)
}

func (s *SQLStore) GetCategory(ctx context.Context, id string) (*schema.Category, error) {
	return scanCategory(s.queryRow(ctx, `SELECT `+categoryColumns+` FROM device_categories WHERE id = ?`, id))
}

func (s *SQLStore) PutCategory(ctx context.Context, c schema.Category) error {
	name, err := encodeJSON(c.Name)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO device_categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET slug = excluded.slug, name = excluded.name,
		 sort_order = excluded.sort_order, is_active = excluded.is_active`,
		c.ID, c.Slug, name, c.SortOrder, c.IsActive)
	return mapErr(err)
}

func (s *SQLStore) DeleteCategory(ctx context.Context, id string) error {
	return expectOne(s.exec(ctx, `DELETE FROM device_categories WHERE id = ?`, id))
}

const modelColumns = `id, category_id, slug, name, sort_order, is_active`

func scanModel(row scanner) (*schema.DeviceModel, error) {
	var (
		m    schema.DeviceModel
		name string
	)
	if err := row.Scan(&m.ID, &m.CategoryID, &m.Slug, &name, &m.SortOrder, &m.IsActive); err != nil {
		return nil, mapErr(err)
	}
	var err error
	if m.Name, err = scanLocalized(name); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLStore) ListModels(ctx context.Context, categoryID string) ([]schema.DeviceModel, error) {
	if categoryID == "" {
		return listRows(ctx, s, scanModel, `SELECT `+modelColumns+` FROM device_models ORDER BY sort_order, id`)
	}
	return listRows(ctx, s, scanModel,
		`SELECT `+modelColumns+` FROM device_models WHERE category_id = ? ORDER BY sort_order, id`, categoryID)
}

func (s *SQLStore) GetModel(ctx context.Context, id string) (*schema.DeviceModel, error) {
	return scanModel(s.queryRow(ctx, `SELECT `+modelColumns+` FROM device_models WHERE id = ?`, id))
}

func (s *SQLStore) PutModel(ctx context.Context, m schema.DeviceModel) error {
	name, err := encodeJSON(m.Name)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO device_models (`+modelColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET category_id = excluded.category_id, slug = excluded.slug,
		 name = excluded.name, sort_order = excluded.sort_order, is_active = excluded.is_active`,
		m.ID, m.CategoryID, m.Slug, name, m.SortOrder, m.IsActive)
	return mapErr(err)
}

func (s *SQLStore) DeleteModel(ctx context.Context, id string) error {
	return expectOne(s.exec(ctx, `DELETE FROM device_models WHERE id = ?`, id))
}

const serviceColumns = `id, name, description, sort_order, is_active`

func scanService(row scanner) (*schema.Service, error) {
	var (
		v          schema.Service
		name, desc string
	)
	if err := row.Scan(&v.ID, &name, &desc, &v.SortOrder, &v.IsActive); err != nil {
		return nil, mapErr(err)
	}
	var err error
	if v.Name, err = scanLocalized(name); err != nil {
		return nil, err
	}
	if v.Description, err = scanLocalized(desc); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *SQLStore) ListServices(ctx context.Context) ([]schema.Service, error) {
	return listRows(ctx, s, scanService, `SELECT `+serviceColumns+` FROM services ORDER BY sort_order, id`)
}

func (s *SQLStore) GetService(ctx context.Context, id string) (*schema.Service, error) {
	return scanService(s.queryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id))
}

func (s *SQLStore) PutService(ctx context.Context, v schema.Service) error {
	name, err := encodeJSON(v.Name)
	if err != nil {
		return err
	}
	desc, err := encodeJSON(v.Description)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO services (`+serviceColumns+`) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, description = excluded.description,
		 sort_order = excluded.sort_order, is_active = excluded.is_active`,
		v.ID, name, desc, v.SortOrder, v.IsActive)
	return mapErr(err)
}

func (s *SQLStore) DeleteService(ctx context.Context, id string) error {
	return expectOne(s.exec(ctx, `DELETE FROM services WHERE id = ?`, id))
}

func scanCategoryService(row scanner) (*schema.CategoryService, error) {
	var cs schema.CategoryService
	if err := row.Scan(&cs.ID, &cs.CategoryID, &cs.ServiceID); err != nil {
		return nil, mapErr(err)
	}
	return &cs, nil
}

func (s *SQLStore) ListCategoryServices(ctx context.Context, categoryID string) ([]schema.CategoryService, error) {
	if categoryID == "" {
		return listRows(ctx, s, scanCategoryService,
			`SELECT id, category_id, service_id FROM category_services ORDER BY id`)
	}
	return listRows(ctx, s, scanCategoryService,
		`SELECT id, category_id, service_id FROM category_services WHERE category_id = ? ORDER BY id`, categoryID)
}

func (s *SQLStore) GetCategoryService(ctx context.Context, id string) (*schema.CategoryService, error) {
	return scanCategoryService(s.queryRow(ctx,
		`SELECT id, category_id, service_id FROM category_services WHERE id = ?`, id))
}

func (s *SQLStore) PutCategoryService(ctx context.Context, cs schema.CategoryService) error {
	_, err := s.exec(ctx,
		`INSERT INTO category_services (id, category_id, service_id) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET category_id = excluded.category_id, service_id = excluded.service_id`,
		cs.ID, cs.CategoryID, cs.ServiceID)
	return mapErr(err)
}

func (s *SQLStore) DeleteCategoryService(ctx context.Context, id string) error {
	return expectOne(s.exec(ctx, `DELETE FROM category_services WHERE id = ?`, id))
}

const priceColumns = `id, model_id, service_id, amount, currency, discount, updated_at`

func scanPrice(row scanner) (*schema.Price, error) {
	var (
		p        schema.Price
		discount sql.NullString
		updated  string
	)
	if err := row.Scan(&p.ID, &p.ModelID, &p.ServiceID, &p.Amount, &p.Currency, &discount, &updated); err != nil {
		return nil, mapErr(err)
	}
	if discount.Valid && discount.String != "" {
		p.Discount = &schema.Discount{}
		if err := json.Unmarshal([]byte(discount.String), p.Discount); err != nil {
			return nil, fmt.Errorf("decode discount of price %s: %w", p.ID, err)
		}
	}
	var err error
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLStore) ListPrices(ctx context.Context, modelID string) ([]schema.Price, error) {
	if modelID == "" {
		return listRows(ctx, s, scanPrice, `SELECT `+priceColumns+` FROM prices ORDER BY model_id, service_id`)
	}
	return listRows(ctx, s, scanPrice,
		`SELECT `+priceColumns+` FROM prices WHERE model_id = ? ORDER BY model_id, service_id`, modelID)
}

func (s *SQLStore) GetPrice(ctx context.Context, id string) (*schema.Price, error) {
	return scanPrice(s.queryRow(ctx, `SELECT `+priceColumns+` FROM prices WHERE id = ?`, id))
}

func (s *SQLStore) PutPrice(ctx context.Context, p schema.Price) error {
	var discount sql.NullString
	if p.Discount != nil {
		raw, err := encodeJSON(p.Discount)
		if err != nil {
			return err
		}
		discount = sql.NullString{String: raw, Valid: true}
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = nowUTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO prices (`+priceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET model_id = excluded.model_id, service_id = excluded.service_id,
		 amount = excluded.amount, currency = excluded.currency, discount = excluded.discount,
		 updated_at = excluded.updated_at`,
		p.ID, p.ModelID, p.ServiceID, p.Amount, p.Currency, discount, formatTime(p.UpdatedAt))
	return mapErr(err)
}

func (s *SQLStore) DeletePrice(ctx context.Context, id string) error {
	return expectOne(s.exec(ctx, `DELETE FROM prices WHERE id = ?`, id))
}

const imageColumns = `id, model_id, url, alt, sort_order`

func scanImage(row scanner) (*schema.DeviceImage, error) {
	var (
		img schema.DeviceImage
		alt string
	)
	if err := row.Scan(&img.ID, &img.ModelID, &img.URL, &alt, &img.SortOrder); err != nil {
		return nil, mapErr(err)
	}
	var err error
	if img.Alt, err = scanLocalized(alt); err != nil {
		return nil, err
	}
	return &img, nil
}

func (s *SQLStore) ListImages(ctx context.Context, modelID string) ([]schema.DeviceImage, error) {
	if modelID == "" {
		return listRows(ctx, s, scanImage, `SELECT `+imageColumns+` FROM device_images ORDER BY sort_order, id`)
	}
	return listRows(ctx, s, scanImage,
		`SELECT `+imageColumns+` FROM device_images WHERE model_id = ? ORDER BY sort_order, id`, modelID)
}

func (s *SQLStore) GetImage(ctx context.Context, id string) (*schema.DeviceImage, error) {
	return scanImage(s.queryRow(ctx, `SELECT `+imageColumns+` FROM device_images WHERE id = ?`, id))
}

func (s *SQLStore) PutImage(ctx context.Context, img schema.DeviceImage) error {
	alt, err := encodeJSON(img.Alt)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO device_images (`+imageColumns+`) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET model_id = excluded.model_id, url = excluded.url,
		 alt = excluded.alt, sort_order = excluded.sort_order`,
		img.ID, img.ModelID, img.URL, alt, img.SortOrder)
	return mapErr(err)
}

func (s *SQLStore) DeleteImage(ctx context.Context, id string) error {
	return expectOne(s.exec(ctx, `DELETE FROM device_images WHERE id = ?`, id))
}

// --- Content ---

const announcementColumns = `id, title, body, is_active, starts_at, ends_at, created_at`

func scanAnnouncement(row scanner) (*schema.Announcement, error) {
	var (
		a            schema.Announcement
		title, body  string
		starts, ends sql.NullString
		created      string
	)
	if err := row.Scan(&a.ID, &title, &body, &a.IsActive, &starts, &ends, &created); err != nil {
		return nil, mapErr(err)
	}
	var err error
	if a.Title, err = scanLocalized(title); err != nil {
		return nil, err
	}
	if a.Body, err = scanLocalized(body); err != nil {
		return nil, err
	}
	if a.StartsAt, err = parseNullTime(starts); err != nil {
		return nil, err
	}
	if a.EndsAt, err = parseNullTime(ends); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLStore) ListAnnouncements(ctx context.Context) ([]schema.Announcement, error) {
	return listRows(ctx, s, scanAnnouncement,
		`SELECT `+announcementColumns+` FROM announcements ORDER BY created_at DESC, id`)
}

func (s *SQLStore) GetAnnouncement(ctx context.Context, id string) (*schema.Announcement, error) {
	return scanAnnouncement(s.queryRow(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id = ?`, id))
}

func (s *SQLStore) PutAnnouncement(ctx context.Context, a schema.Announcement) error {
	title, err := encodeJSON(a.Title)
	if err != nil {
		return err
	}
	body, err := encodeJSON(a.Body)
	if err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = nowUTC()
	}
	_, err = s.exec(ctx,
		`INSERT INTO announcements (`+announcementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET title = excluded.title, body = excluded.body,
		 is_active = excluded.is_active, starts_at = excluded.starts_at, ends_at = excluded.ends_at`,
		a.ID, title, body, a.IsActive, formatNullTime(a.StartsAt), formatNullTime(a.EndsAt), formatTime(a.CreatedAt))
	return mapErr(err)
}

func (s *SQLStore) DeleteAnnouncement(ctx context.Context, id string) error {
	return expectOne(s.exec(ctx, `DELETE FROM announcements WHERE id = ?`, id))
}

const articleColumns = `id, slug, title, summary, body, published, published_at`

func scanArticle(row scanner) (*schema.Article, error) {
	var (
		a                    schema.Article
		title, summary, body string
		published            string
	)
	if err := row.Scan(&a.ID, &a.Slug, &title, &summary, &body, &a.Published, &published); err != nil {
		return nil, mapErr(err)
	}
	var err error
	if a.Title, err = scanLocalized(title); err != nil {
		return nil, err
	}
	if a.Summary, err = scanLocalized(summary); err != nil {
		return nil, err
	}
	if a.Body, err = scanLocalized(body); err != nil {
		return nil, err
	}
	if a.PublishedAt, err = parseTime(published); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLStore) ListArticles(ctx context.Context) ([]schema.Article, error) {
	return listRows(ctx, s, scanArticle,
		`SELECT `+articleColumns+` FROM articles ORDER BY published_at DESC, id`)
}

func (s *SQLStore) GetArticleBySlug(ctx context.Context, slug string) (*schema.Article, error) {
	return scanArticle(s.queryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE slug = ?`, slug))
}

func (s *SQLStore) PutArticle(ctx context.Context, a schema.Article) error {
	title, err := encodeJSON(a.Title)
	if err != nil {
		return err
	}
	summary, err := encodeJSON(a.Summary)
	if err != nil {
		return err
	}
	body, err := encodeJSON(a.Body)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO articles (`+articleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET slug = excluded.slug, title = excluded.title,
		 summary = excluded.summary, body = excluded.body, published = excluded.published,
		 published_at = excluded.published_at`,
		a.ID, a.Slug, title, summary, body, a.Published, formatTime(a.PublishedAt))
	return mapErr(err)
}

func (s *SQLStore) DeleteArticle(ctx context.Context, id string) error {
	return expectOne(s.exec(ctx, `DELETE FROM articles WHERE id = ?`, id))
}

func listRows[T any](ctx context.Context, s *SQLStore, scan func(scanner) (*T, error), query string, args ...any) ([]T, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}
