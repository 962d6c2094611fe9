package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"poimap-server/models"
)

// SQLStore keeps everything in three tables. Booleans are stored as 0/1
// integers and times as unix milliseconds so one schema serves both drivers.
type SQLStore struct {
	db *sqlx.DB
}

const sqlSchema = `
CREATE TABLE IF NOT EXISTS categories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	color TEXT NOT NULL,
	icon TEXT NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS points (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	name_key TEXT NOT NULL,
	category TEXT NOT NULL,
	lat DOUBLE PRECISION NOT NULL,
	lon DOUBLE PRECISION NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	hidden INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0,
	deleted_at BIGINT,
	created_by TEXT NOT NULL DEFAULT '',
	reviewed_by TEXT NOT NULL DEFAULT '',
	reviewed_at BIGINT,
	review_note TEXT NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_points_category ON points(category);
CREATE INDEX IF NOT EXISTS idx_points_name_key ON points(name_key);
CREATE TABLE IF NOT EXISTS users (
	public_id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	created_at BIGINT NOT NULL
);
`

// NewSQLStore opens driver ("sqlite" or "postgres") at dsn and creates the schema.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	if driver == "sqlite" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		// a :memory: database lives in a single connection
		db.SetMaxOpenConns(1)
	}
	for _, stmt := range strings.Split(sqlSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close(context.Context) error { return s.db.Close() }

type pointRow struct {
	ID          string        `db:"id"`
	Name        string        `db:"name"`
	NameKey     string        `db:"name_key"`
	Category    string        `db:"category"`
	Lat         float64       `db:"lat"`
	Lon         float64       `db:"lon"`
	Description string        `db:"description"`
	Address     string        `db:"address"`
	Phone       string        `db:"phone"`
	Website     string        `db:"website"`
	Tags        string        `db:"tags"`
	Status      string        `db:"status"`
	Hidden      int           `db:"hidden"`
	Deleted     int           `db:"deleted"`
	DeletedAt   sql.NullInt64 `db:"deleted_at"`
	CreatedBy   string        `db:"created_by"`
	ReviewedBy  string        `db:"reviewed_by"`
	ReviewedAt  sql.NullInt64 `db:"reviewed_at"`
	ReviewNote  string        `db:"review_note"`
	CreatedAt   int64         `db:"created_at"`
	UpdatedAt   int64         `db:"updated_at"`
}

const pointColumns = `id, name, name_key, category, lat, lon, description, address, phone, website, tags,
	status, hidden, deleted, deleted_at, created_by, reviewed_by, reviewed_at, review_note, created_at, updated_at`

func toPointRow(p models.Point) (pointRow, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return pointRow{}, err
	}
	return pointRow{
		ID:          p.ID,
		Name:        p.Name,
		NameKey:     p.NameKey,
		Category:    p.Category,
		Lat:         p.Lat(),
		Lon:         p.Lon(),
		Description: p.Description,
		Address:     p.Address,
		Phone:       p.Phone,
		Website:     p.Website,
		Tags:        string(tagsJSON),
		Status:      string(p.Status),
		Hidden:      boolInt(p.Hidden),
		Deleted:     boolInt(p.Deleted),
		DeletedAt:   nullMillis(p.DeletedAt),
		CreatedBy:   p.CreatedBy,
		ReviewedBy:  p.ReviewedBy,
		ReviewedAt:  nullMillis(p.ReviewedAt),
		ReviewNote:  p.ReviewNote,
		CreatedAt:   p.CreatedAt.UnixMilli(),
		UpdatedAt:   p.UpdatedAt.UnixMilli(),
	}, nil
}

func (r pointRow) point() (models.Point, error) {
	var tags []string
	if err := json.Unmarshal([]byte(r.Tags), &tags); err != nil {
		return models.Point{}, fmt.Errorf("point %s: bad tags column: %w", r.ID, err)
	}
	return models.Point{
		ID:          r.ID,
		Name:        r.Name,
		NameKey:     r.NameKey,
		Category:    r.Category,
		Location:    models.NewGeoPoint(r.Lat, r.Lon),
		Description: r.Description,
		Address:     r.Address,
		Phone:       r.Phone,
		Website:     r.Website,
		Tags:        tags,
		Status:      models.PointStatus(r.Status),
		Hidden:      r.Hidden != 0,
		Deleted:     r.Deleted != 0,
		DeletedAt:   fromNullMillis(r.DeletedAt),
		CreatedBy:   r.CreatedBy,
		ReviewedBy:  r.ReviewedBy,
		ReviewedAt:  fromNullMillis(r.ReviewedAt),
		ReviewNote:  r.ReviewNote,
		CreatedAt:   time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(r.UpdatedAt).UTC(),
	}, nil
}

func (s *SQLStore) InsertPoint(ctx context.Context, p models.Point) error {
	row, err := toPointRow(p)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO points (`+pointColumns+`) VALUES (
		:id, :name, :name_key, :category, :lat, :lon, :description, :address, :phone, :website, :tags,
		:status, :hidden, :deleted, :deleted_at, :created_by, :reviewed_by, :reviewed_at, :review_note, :created_at, :updated_at)`, row)
	return translateSQLError(err)
}

func (s *SQLStore) GetPoint(ctx context.Context, id string) (models.Point, error) {
	var row pointRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+pointColumns+` FROM points WHERE id = ?`), id)
	if err != nil {
		return models.Point{}, translateSQLError(err)
	}
	return row.point()
}

func (s *SQLStore) UpdatePoint(ctx context.Context, p models.Point) error {
	row, err := toPointRow(p)
	if err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `UPDATE points SET
		name = :name, name_key = :name_key, category = :category, lat = :lat, lon = :lon,
		description = :description, address = :address, phone = :phone, website = :website, tags = :tags,
		status = :status, hidden = :hidden, deleted = :deleted, deleted_at = :deleted_at,
		created_by = :created_by, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at,
		review_note = :review_note, created_at = :created_at, updated_at = :updated_at
		WHERE id = :id`, row)
	return expectOneRow(res, err)
}

func (s *SQLStore) DeletePoint(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM points WHERE id = ?`), id)
	return expectOneRow(res, err)
}

func (s *SQLStore) FindPoints(ctx context.Context, q PointQuery) ([]models.Point, error) {
	var (
		where []string
		args  []any
	)
	if len(q.IDs) > 0 {
		where = append(where, "id IN (?)")
		args = append(args, q.IDs)
	}
	if len(q.Categories) > 0 {
		where = append(where, "category IN (?)")
		args = append(args, q.Categories)
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, "status IN (?)")
		args = append(args, statuses)
	}
	if q.Deleted != nil {
		where = append(where, "deleted = ?")
		args = append(args, boolInt(*q.Deleted))
	}
	if q.NameKey != "" {
		where = append(where, "name_key = ?")
		args = append(args, q.NameKey)
	}
	if q.CreatedBy != "" {
		where = append(where, "created_by = ?")
		args = append(args, q.CreatedBy)
	}
	if q.BBox != nil {
		where = append(where, "lat >= ? AND lat <= ? AND lon >= ? AND lon <= ?")
		args = append(args, q.BBox.MinLat, q.BBox.MaxLat, q.BBox.MinLon, q.BBox.MaxLon)
	}

	query := `SELECT ` + pointColumns + ` FROM points`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	var rows []pointRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	points := make([]models.Point, 0, len(rows))
	for _, row := range rows {
		p, err := row.point()
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

type categoryRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Color     string `db:"color"`
	Icon      string `db:"icon"`
	CreatedAt int64  `db:"created_at"`
}

func (r categoryRow) category() models.Category {
	return models.Category{ID: r.ID, Name: r.Name, Color: r.Color, Icon: r.Icon, CreatedAt: time.UnixMilli(r.CreatedAt).UTC()}
}

func toCategoryRow(c models.Category) categoryRow {
	return categoryRow{ID: c.ID, Name: c.Name, Color: c.Color, Icon: c.Icon, CreatedAt: c.CreatedAt.UnixMilli()}
}

func (s *SQLStore) InsertCategory(ctx context.Context, c models.Category) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO categories (id, name, color, icon, created_at) VALUES (:id, :name, :color, :icon, :created_at)`,
		toCategoryRow(c))
	return translateSQLError(err)
}

func (s *SQLStore) GetCategory(ctx context.Context, id string) (models.Category, error) {
	var row categoryRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT id, name, color, icon, created_at FROM categories WHERE id = ?`), id); err != nil {
		return models.Category{}, translateSQLError(err)
	}
	return row.category(), nil
}

func (s *SQLStore) UpdateCategory(ctx context.Context, c models.Category) error {
	res, err := s.db.NamedExecContext(ctx,
		`UPDATE categories SET name = :name, color = :color, icon = :icon WHERE id = :id`, toCategoryRow(c))
	return expectOneRow(res, err)
}

func (s *SQLStore) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM categories WHERE id = ?`), id)
	return expectOneRow(res, err)
}

func (s *SQLStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []categoryRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, color, icon, created_at FROM categories ORDER BY name, id`); err != nil {
		return nil, err
	}
	out := make([]models.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.category())
	}
	return out, nil
}

type userRow struct {
	PublicID     string `db:"public_id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
	CreatedAt    int64  `db:"created_at"`
}

func (r userRow) user() models.User {
	return models.User{
		ID:           r.PublicID,
		PublicID:     r.PublicID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Role:         models.Role(r.Role),
		CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
	}
}

const userColumns = `public_id, username, password_hash, role, created_at`

func (s *SQLStore) InsertUser(ctx context.Context, u models.User) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (:public_id, :username, :password_hash, :role, :created_at)`,
		userRow{PublicID: u.PublicID, Username: u.Username, PasswordHash: u.PasswordHash, Role: string(u.Role), CreatedAt: u.CreatedAt.UnixMilli()})
	return translateSQLError(err)
}

func (s *SQLStore) getUser(ctx context.Context, column, value string) (models.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`), value); err != nil {
		return models.User{}, translateSQLError(err)
	}
	return row.user(), nil
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.getUser(ctx, "username", username)
}

func (s *SQLStore) GetUserByPublicID(ctx context.Context, publicID string) (models.User, error) {
	return s.getUser(ctx, "public_id", publicID)
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY username`); err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.user())
	}
	return out, nil
}

func (s *SQLStore) UpdateUserRole(ctx context.Context, publicID string, role models.Role) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET role = ? WHERE public_id = ?`), string(role), publicID)
	return expectOneRow(res, err)
}

func expectOneRow(res sql.Result, err error) error {
	if err != nil {
		return translateSQLError(err)
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

func translateSQLError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Message)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
