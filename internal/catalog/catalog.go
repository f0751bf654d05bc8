// Package catalog 用 SQLite 保存驾照类型、文章和站点设置。
// 图片字段在导入后为公开URL，未上传成功时保留原始本地路径
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // 注册 sqlite 驱动

	"github.com/ysicing/AutoEcoleMedia/pkg/utils"
)

// SiteSettingsID 站点设置单例记录的固定主键
const SiteSettingsID = "00000000-0000-0000-0000-000000000001"

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("记录不存在")

// LicenseType 驾照类型
type LicenseType struct {
	Code         string    `json:"code"`
	NameAr       string    `json:"name_ar"`
	NameFr       string    `json:"name_fr"`
	Description  string    `json:"description"`
	ImagePath    string    `json:"image_path"`
	Details      []string  `json:"details"`
	Note         *string   `json:"note"`
	Offers       []string  `json:"offers"`
	CallToAction string    `json:"call_to_action"`
	VideoLink    *string   `json:"video_link"`
	ExtraImages  []string  `json:"extra_images"`
	Text         *string   `json:"text"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Article 文章
type Article struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	VideoLink   *string   `json:"video_link"`
	Text        string    `json:"text"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FormElement 报名表单字段配置
type FormElement struct {
	Label    string `json:"label" yaml:"label"`
	Required bool   `json:"required" yaml:"required"`
	Visible  bool   `json:"visible" yaml:"visible"`
}

// SiteSettings 站点设置
type SiteSettings struct {
	ID               string                 `json:"id"`
	Logo             string                 `json:"logo"`
	Name             string                 `json:"name"`
	Description      string                 `json:"description"`
	FormElements     map[string]FormElement `json:"form_elements"`
	CertificateHero  *string                `json:"certificate_hero"`
	CertificateBadge *string                `json:"certificate_badge"`
	HeroBanner       *string                `json:"hero_banner"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// Store SQLite 存储
type Store struct {
	db *sql.DB
}

// Open 打开（或创建）数据库并建表
func Open(dbPath string) (*Store, error) {
	if err := utils.EnsureDirExists(filepath.Dir(dbPath)); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库 %q 失败: %w", dbPath, err)
	}

	// WAL 允许读写并发
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置数据库参数失败: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("建表失败: %w", err)
	}
	return s, nil
}

// Close 释放数据库资源
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS license_types (
    code           TEXT PRIMARY KEY,
    name_ar        TEXT NOT NULL DEFAULT '',
    name_fr        TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    image_path     TEXT NOT NULL DEFAULT '',
    details        TEXT NOT NULL DEFAULT '[]',
    note           TEXT,
    offers         TEXT NOT NULL DEFAULT '[]',
    call_to_action TEXT NOT NULL DEFAULT '',
    video_link     TEXT,
    extra_images   TEXT NOT NULL DEFAULT '[]',
    text           TEXT,
    updated_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS articles (
    slug        TEXT PRIMARY KEY,
    title       TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    image       TEXT NOT NULL DEFAULT '',
    video_link  TEXT,
    text        TEXT NOT NULL DEFAULT '',
    updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS site_settings (
    id                TEXT PRIMARY KEY,
    logo              TEXT NOT NULL DEFAULT '',
    name              TEXT NOT NULL DEFAULT '',
    description       TEXT NOT NULL DEFAULT '',
    form_elements     TEXT NOT NULL DEFAULT '{}',
    certificate_hero  TEXT,
    certificate_badge TEXT,
    hero_banner       TEXT,
    updated_at        INTEGER NOT NULL
);
`)
	return err
}

// UpsertLicenseType 按 code 插入或更新驾照类型
func (s *Store) UpsertLicenseType(ctx context.Context, lt LicenseType) error {
	details, offers, extra, err := marshalLists(lt.Details, lt.Offers, lt.ExtraImages)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO license_types (code, name_ar, name_fr, description, image_path, details, note, offers,
                           call_to_action, video_link, extra_images, text, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(code) DO UPDATE SET
    name_ar = excluded.name_ar,
    name_fr = excluded.name_fr,
    description = excluded.description,
    image_path = excluded.image_path,
    details = excluded.details,
    note = excluded.note,
    offers = excluded.offers,
    call_to_action = excluded.call_to_action,
    video_link = excluded.video_link,
    extra_images = excluded.extra_images,
    text = excluded.text,
    updated_at = excluded.updated_at`,
		lt.Code, lt.NameAr, lt.NameFr, lt.Description, lt.ImagePath, details, lt.Note, offers,
		lt.CallToAction, lt.VideoLink, extra, lt.Text, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("写入驾照类型 %q 失败: %w", lt.Code, err)
	}
	return nil
}

// UpsertArticle 按 slug 插入或更新文章
func (s *Store) UpsertArticle(ctx context.Context, a Article) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO articles (slug, title, description, image, video_link, text, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(slug) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    image = excluded.image,
    video_link = excluded.video_link,
    text = excluded.text,
    updated_at = excluded.updated_at`,
		a.Slug, a.Title, a.Description, a.Image, a.VideoLink, a.Text, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("写入文章 %q 失败: %w", a.Slug, err)
	}
	return nil
}

// UpsertSiteSettings 按 id 插入或更新站点设置
func (s *Store) UpsertSiteSettings(ctx context.Context, st SiteSettings) error {
	if st.ID == "" {
		st.ID = SiteSettingsID
	}
	if st.FormElements == nil {
		st.FormElements = map[string]FormElement{}
	}
	form, err := json.Marshal(st.FormElements)
	if err != nil {
		return fmt.Errorf("序列化表单字段失败: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO site_settings (id, logo, name, description, form_elements, certificate_hero,
                           certificate_badge, hero_banner, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    logo = excluded.logo,
    name = excluded.name,
    description = excluded.description,
    form_elements = excluded.form_elements,
    certificate_hero = excluded.certificate_hero,
    certificate_badge = excluded.certificate_badge,
    hero_banner = excluded.hero_banner,
    updated_at = excluded.updated_at`,
		st.ID, st.Logo, st.Name, st.Description, string(form), st.CertificateHero,
		st.CertificateBadge, st.HeroBanner, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("写入站点设置失败: %w", err)
	}
	return nil
}

// ListLicenseTypes 按 code 排序返回全部驾照类型
func (s *Store) ListLicenseTypes(ctx context.Context) ([]LicenseType, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT code, name_ar, name_fr, description, image_path, details, note, offers,
       call_to_action, video_link, extra_images, text, updated_at
FROM license_types ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("查询驾照类型失败: %w", err)
	}
	defer rows.Close()

	var out []LicenseType
	for rows.Next() {
		var (
			lt                     LicenseType
			details, offers, extra string
			updated                int64
		)
		if err := rows.Scan(&lt.Code, &lt.NameAr, &lt.NameFr, &lt.Description, &lt.ImagePath, &details,
			&lt.Note, &offers, &lt.CallToAction, &lt.VideoLink, &extra, &lt.Text, &updated); err != nil {
			return nil, err
		}
		if err := unmarshalLists(details, &lt.Details, offers, &lt.Offers, extra, &lt.ExtraImages); err != nil {
			return nil, fmt.Errorf("解析驾照类型 %q 失败: %w", lt.Code, err)
		}
		lt.UpdatedAt = time.Unix(updated, 0)
		out = append(out, lt)
	}
	return out, rows.Err()
}

// ListArticles 按 slug 排序返回全部文章
func (s *Store) ListArticles(ctx context.Context) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT slug, title, description, image, video_link, text, updated_at
FROM articles ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("查询文章失败: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		var (
			a       Article
			updated int64
		)
		if err := rows.Scan(&a.Slug, &a.Title, &a.Description, &a.Image, &a.VideoLink, &a.Text, &updated); err != nil {
			return nil, err
		}
		a.UpdatedAt = time.Unix(updated, 0)
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetSiteSettings 读取站点设置单例
func (s *Store) GetSiteSettings(ctx context.Context) (SiteSettings, error) {
	var (
		st      SiteSettings
		form    string
		updated int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, logo, name, description, form_elements, certificate_hero, certificate_badge, hero_banner, updated_at
FROM site_settings WHERE id = ?`, SiteSettingsID).Scan(
		&st.ID, &st.Logo, &st.Name, &st.Description, &form, &st.CertificateHero,
		&st.CertificateBadge, &st.HeroBanner, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return SiteSettings{}, ErrNotFound
	}
	if err != nil {
		return SiteSettings{}, fmt.Errorf("查询站点设置失败: %w", err)
	}
	if err := json.Unmarshal([]byte(form), &st.FormElements); err != nil {
		return SiteSettings{}, fmt.Errorf("解析表单字段失败: %w", err)
	}
	st.UpdatedAt = time.Unix(updated, 0)
	return st, nil
}

func marshalLists(lists ...[]string) (string, string, string, error) {
	var out [3]string
	for i, l := range lists {
		if l == nil {
			l = []string{}
		}
		b, err := json.Marshal(l)
		if err != nil {
			return "", "", "", err
		}
		out[i] = string(b)
	}
	return out[0], out[1], out[2], nil
}

func unmarshalLists(pairs ...any) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		raw := pairs[i].(string)
		if err := json.Unmarshal([]byte(raw), pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}
