// Package seed 批量导入公开目录下的图片，并把生成的URL写回目录记录
package seed

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ysicing/AutoEcoleMedia/internal/catalog"
	"github.com/ysicing/AutoEcoleMedia/internal/media"
	"github.com/ysicing/AutoEcoleMedia/pkg/metrics"
	"github.com/ysicing/AutoEcoleMedia/pkg/utils"
)

// DefaultDirs 默认扫描的公开子目录
var DefaultDirs = []string{"articles", "certifciate", "images", "illustration", "types"}

// ErrSeedRunning 已有导入任务在执行
var ErrSeedRunning = errors.New("导入任务正在执行")

// Processor 单张图片的处理入口
type Processor interface {
	ProcessFile(ctx context.Context, absPath, relPath string) media.Result
}

// Store 目录记录的持久化
type Store interface {
	UpsertLicenseType(ctx context.Context, lt catalog.LicenseType) error
	UpsertArticle(ctx context.Context, a catalog.Article) error
	UpsertSiteSettings(ctx context.Context, st catalog.SiteSettings) error
}

// Options 导入器选项
type Options struct {
	Processor Processor
	// Store 为空时只上传图片，不写目录
	Store     Store
	PublicDir string
	Dirs      []string
	// Workers 并发处理的图片数，小于等于1时顺序处理
	Workers   int
	Catalogue *Catalogue
	Logger    *zap.SugaredLogger
	Metrics   *metrics.Metrics
}

// Report 一次导入的结果
type Report struct {
	Discovered   int               `json:"discovered"`
	Uploaded     int               `json:"uploaded"`
	Failed       []string          `json:"failed"`
	URLs         map[string]string `json:"urls"`
	UpsertErrors int               `json:"upsertErrors"`
	StartedAt    time.Time         `json:"startedAt"`
	Duration     time.Duration     `json:"duration"`
}

// Seeder 批量导入器。同一时间只允许一个任务
type Seeder struct {
	opts Options
	log  *zap.SugaredLogger

	running sync.Mutex

	mu   sync.RWMutex
	last *Report
}

// NewSeeder 创建导入器
func NewSeeder(opts Options) (*Seeder, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if len(opts.Dirs) == 0 {
		opts.Dirs = DefaultDirs
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Catalogue == nil {
		c, err := DefaultCatalogue()
		if err != nil {
			return nil, err
		}
		opts.Catalogue = c
	}
	return &Seeder{opts: opts, log: opts.Logger}, nil
}

// LastReport 最近一次完成的导入结果
func (s *Seeder) LastReport() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Run 执行一次完整导入：发现图片、逐张处理、写回目录。
// 单张图片失败只记录日志；ctx 取消时停止处理剩余图片并跳过目录写入。
func (s *Seeder) Run(ctx context.Context) (*Report, error) {
	if !s.running.TryLock() {
		return nil, ErrSeedRunning
	}
	defer s.running.Unlock()

	report := &Report{StartedAt: time.Now()}

	if !utils.FileExists(s.opts.PublicDir) {
		s.log.Warnf("公开目录不存在: %s", s.opts.PublicDir)
	}
	s.log.Infof("扫描公开目录: %s", s.opts.PublicDir)
	paths := s.Discover()
	report.Discovered = len(paths)
	s.log.Infof("发现 %d 张图片", len(paths))

	report.URLs, report.Failed = s.processAll(ctx, paths)
	report.Uploaded = len(report.URLs)

	if len(report.Failed) > 0 {
		s.log.Warnf("%d 张图片处理失败: %v", len(report.Failed), report.Failed)
	}
	s.log.Infof("已上传 %d 张图片", report.Uploaded)

	if err := ctx.Err(); err != nil {
		report.Duration = time.Since(report.StartedAt)
		return report, err
	}

	if s.opts.Store != nil {
		report.UpsertErrors = s.upsertCatalogue(ctx, Resolver{urls: report.URLs, log: s.log})
	}

	report.Duration = time.Since(report.StartedAt)
	if s.opts.Metrics != nil {
		s.opts.Metrics.SeedDuration.Observe(report.Duration.Seconds())
	}
	s.log.Infof("导入完成，耗时 %v", report.Duration)

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	return report, nil
}

// Discover 按目录顺序返回所有图片的相对路径（以 / 分隔）。
// 无法遍历的目录记录警告后跳过
func (s *Seeder) Discover() []string {
	var out []string
	for _, dir := range s.opts.Dirs {
		root := filepath.Join(s.opts.PublicDir, dir)
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() || !utils.IsImageFile(d.Name()) {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			out = append(out, dir+"/"+filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			s.log.Warnf("无法遍历目录 %s: %v", dir, err)
		}
	}
	return out
}

func (s *Seeder) processAll(ctx context.Context, paths []string) (map[string]string, []string) {
	var (
		mu     sync.Mutex
		urls   = make(map[string]string, len(paths))
		failed []string
		g      errgroup.Group
	)
	g.SetLimit(s.opts.Workers)

	for _, rel := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			abs := filepath.Join(s.opts.PublicDir, filepath.FromSlash(rel))
			res := s.opts.Processor.ProcessFile(ctx, abs, rel)

			mu.Lock()
			defer mu.Unlock()
			if res.OK() {
				urls[utils.NormalizePath(rel)] = res.URL
			} else {
				failed = append(failed, rel)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(failed)
	return urls, failed
}

// Resolver 把实体中的本地图片路径替换为已上传的URL
type Resolver struct {
	urls map[string]string
	log  *zap.SugaredLogger
}

// NewResolver 基于路径到URL的映射创建解析器
func NewResolver(urls map[string]string, log *zap.SugaredLogger) Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return Resolver{urls: urls, log: log}
}

// Image 解析必填图片，未命中时保留原路径
func (r Resolver) Image(entityPath string) string {
	if url, ok := r.urls[utils.NormalizePath(entityPath)]; ok {
		return url
	}
	r.log.Warnf("未找到图片URL: %s，保留原路径", entityPath)
	return entityPath
}

// Optional 解析可选图片，未命中时返回 nil
func (r Resolver) Optional(entityPath string) *string {
	if entityPath == "" {
		return nil
	}
	if url, ok := r.urls[utils.NormalizePath(entityPath)]; ok {
		return &url
	}
	return nil
}

// upsertCatalogue 写回目录，返回失败的记录数
func (s *Seeder) upsertCatalogue(ctx context.Context, r Resolver) int {
	c := s.opts.Catalogue
	failures := 0

	s.log.Info("写入驾照类型")
	for _, row := range c.LicenseTypes {
		err := s.opts.Store.UpsertLicenseType(ctx, catalog.LicenseType{
			Code:         row.Code,
			NameAr:       row.NameAr,
			NameFr:       row.NameFr,
			Description:  row.Description,
			ImagePath:    r.Image(row.ImagePath),
			Details:      row.Details,
			Note:         row.Note,
			Offers:       row.Offers,
			CallToAction: row.CallToAction,
			VideoLink:    row.VideoLink,
			ExtraImages:  []string{},
		})
		if err != nil {
			failures++
			s.log.Errorf("写入驾照类型 %s 失败: %v", row.Code, err)
		}
	}

	s.log.Info("写入文章")
	for _, row := range c.Articles {
		err := s.opts.Store.UpsertArticle(ctx, catalog.Article{
			Slug:        row.Slug,
			Title:       row.Title,
			Description: row.Description,
			Image:       r.Image(row.Image),
			Text:        row.Text,
		})
		if err != nil {
			failures++
			s.log.Errorf("写入文章 %s 失败: %v", row.Slug, err)
		}
	}

	s.log.Info("写入站点设置")
	st := c.Settings
	err := s.opts.Store.UpsertSiteSettings(ctx, catalog.SiteSettings{
		ID:               catalog.SiteSettingsID,
		Logo:             r.Image(st.Logo),
		Name:             st.Name,
		Description:      st.Description,
		FormElements:     st.FormElements,
		CertificateHero:  r.Optional(st.CertificateHero),
		CertificateBadge: r.Optional(st.CertificateBadge),
		HeroBanner:       r.Optional(st.HeroBanner),
	})
	if err != nil {
		failures++
		s.log.Errorf("写入站点设置失败: %v", err)
	}

	return failures
}
