package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"review_studio/internal/domain"
)

const errDupEntry = 1062

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
func valTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// listJSON stores nil slices as [] so readers never see null.
func listJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Open connects with parseTime and UTC forced on, whatever the DSN says.
func Open(dsn string) (*sql.DB, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["charset"] = "utf8mb4"
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// mapDupErr turns a duplicate-key error into the matching domain sentinel.
func mapDupErr(err error) error {
	var me *driver.MySQLError
	if !errors.As(err, &me) || me.Number != errDupEntry {
		return err
	}
	key := me.Message
	if i := strings.LastIndex(key, "for key"); i >= 0 {
		key = key[i:]
	}
	if strings.Contains(key, "slug") {
		return fmt.Errorf("%w: %s", domain.ErrSlugTaken, me.Message)
	}
	return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, me.Message)
}

/********** reviews **********/

func (r *Repo) CreateReview(ctx context.Context, rv *domain.Review) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, insertReviewSQL,
		rv.Title,
		rv.TitleEN,
		rv.Slug,
		string(rv.Category),
		rv.Content,
		rv.ContentEN,
		rv.Score,
		listJSON(rv.Pros),
		listJSON(rv.Cons),
		listJSON(rv.ProsEN),
		listJSON(rv.ConsEN),
		listJSON(rv.Images),
		listJSON(rv.YouTubeVideos),
		string(rv.Status),
		valInt64(rv.IGDBID),
		valInt64(rv.TMDBID),
		valStr(rv.AmazonASIN),
		valInt64(rv.HardwareID),
		valJSON(rv.SpecsJSON),
		valJSON(rv.MetadataJSON),
		now,
		now,
	)
	if err != nil {
		return mapDupErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rv.ID = id
	rv.CreatedAt, rv.UpdatedAt = now, now
	return nil
}

func (r *Repo) UpdateReviewStatus(ctx context.Context, id int64, status domain.ReviewStatus) error {
	res, err := r.db.ExecContext(ctx, updateReviewStatusSQL, string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) GetReview(ctx context.Context, id int64) (domain.Review, error) {
	return scanReview(r.db.QueryRowContext(ctx, getReviewSQL, id))
}

func (r *Repo) GetReviewBySlug(ctx context.Context, slug string) (domain.Review, error) {
	return scanReview(r.db.QueryRowContext(ctx, getReviewBySlugSQL, slug))
}

func (r *Repo) FindByExternalID(ctx context.Context, c domain.Category, externalID string) (domain.Review, error) {
	var col string
	var arg any
	switch c {
	case domain.CategoryGame, domain.CategoryMovie, domain.CategorySeries:
		id, err := strconv.ParseInt(strings.TrimSpace(externalID), 10, 64)
		if err != nil {
			return domain.Review{}, domain.ErrNotFound
		}
		col, arg = "tmdb_id", id
		if c == domain.CategoryGame {
			col = "igdb_id"
		}
	case domain.CategoryAmazon:
		col, arg = "amazon_asin", strings.TrimSpace(externalID)
	default:
		return domain.Review{}, domain.ErrNotFound
	}
	q := `SELECT ` + reviewCols + ` FROM reviews WHERE category = ? AND ` + col + ` = ? LIMIT 1`
	return scanReview(r.db.QueryRowContext(ctx, q, string(c), arg))
}

func (r *Repo) FindByTitle(ctx context.Context, c domain.Category, title string) (domain.Review, error) {
	return scanReview(r.db.QueryRowContext(ctx, findReviewByTitleSQL, string(c), title, title))
}

func (r *Repo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, slugExistsSQL, slug).Scan(&ok)
	return ok, err
}

func (r *Repo) ListReviews(ctx context.Context, q domain.ReviewQuery) ([]domain.Review, error) {
	var (
		where []string
		args  []any
	)
	if q.Category != nil {
		where = append(where, "category = ?")
		args = append(args, string(*q.Category))
	}
	if q.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*q.Status))
	}
	stmt := `SELECT ` + reviewCols + ` FROM reviews`
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY id DESC LIMIT ?"
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (domain.Review, error) {
	var rv domain.Review
	var (
		category, status                       string
		content, contentEN                     sql.NullString
		pros, cons, prosEN, consEN, imgs, vids []byte
		igdbID, tmdbID, hardwareID             sql.NullInt64
		asin                                   sql.NullString
		specs, metadata                        []byte
	)
	if err := row.Scan(
		&rv.ID,
		&rv.Title,
		&rv.TitleEN,
		&rv.Slug,
		&category,
		&content,
		&contentEN,
		&rv.Score,
		&pros, &cons, &prosEN, &consEN,
		&imgs, &vids,
		&status,
		&igdbID, &tmdbID, &asin, &hardwareID,
		&specs, &metadata,
		&rv.CreatedAt, &rv.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Review{}, domain.ErrNotFound
		}
		return domain.Review{}, err
	}
	rv.Category = domain.Category(category)
	rv.Status = domain.ReviewStatus(status)
	rv.Content, rv.ContentEN = content.String, contentEN.String

	_ = json.Unmarshal(pros, &rv.Pros)
	_ = json.Unmarshal(cons, &rv.Cons)
	_ = json.Unmarshal(prosEN, &rv.ProsEN)
	_ = json.Unmarshal(consEN, &rv.ConsEN)
	_ = json.Unmarshal(imgs, &rv.Images)
	_ = json.Unmarshal(vids, &rv.YouTubeVideos)

	if igdbID.Valid {
		v := igdbID.Int64
		rv.IGDBID = &v
	}
	if tmdbID.Valid {
		v := tmdbID.Int64
		rv.TMDBID = &v
	}
	if asin.Valid {
		s := asin.String
		rv.AmazonASIN = &s
	}
	if hardwareID.Valid {
		v := hardwareID.Int64
		rv.HardwareID = &v
	}
	if len(specs) > 0 {
		rv.SpecsJSON = append([]byte(nil), specs...)
	}
	if len(metadata) > 0 {
		rv.MetadataJSON = append([]byte(nil), metadata...)
	}
	return rv, nil
}

/********** hardware **********/

func (r *Repo) CreateHardware(ctx context.Context, h *domain.Hardware) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, insertHardwareSQL,
		h.Name,
		h.NameEN,
		h.Slug,
		string(h.Type),
		h.Manufacturer,
		h.Model,
		h.Description,
		valJSON(h.SpecsJSON),
		listJSON(h.Images),
		valTime(h.ReleaseDate),
		valF64(h.MSRP),
		now,
	)
	if err != nil {
		return mapDupErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = id
	h.CreatedAt = now
	return nil
}

func (r *Repo) GetHardwareBySlug(ctx context.Context, slug string) (domain.Hardware, error) {
	var h domain.Hardware
	var (
		typ         string
		desc        sql.NullString
		specs, imgs []byte
		releaseDate sql.NullTime
		msrp        sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, getHardwareBySlugSQL, slug).Scan(
		&h.ID, &h.Name, &h.NameEN, &h.Slug, &typ, &h.Manufacturer, &h.Model, &desc,
		&specs, &imgs, &releaseDate, &msrp, &h.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Hardware{}, domain.ErrNotFound
		}
		return domain.Hardware{}, err
	}
	h.Type = domain.HardwareType(typ)
	h.Description = desc.String
	if len(specs) > 0 {
		h.SpecsJSON = append([]byte(nil), specs...)
	}
	_ = json.Unmarshal(imgs, &h.Images)
	if releaseDate.Valid {
		t := releaseDate.Time
		h.ReleaseDate = &t
	}
	if msrp.Valid {
		f := msrp.Float64
		h.MSRP = &f
	}
	return h, nil
}
