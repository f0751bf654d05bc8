package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ysicing/AutoEcoleMedia/config"
	"github.com/ysicing/AutoEcoleMedia/internal/catalog"
	"github.com/ysicing/AutoEcoleMedia/internal/logger"
	"github.com/ysicing/AutoEcoleMedia/internal/media"
	"github.com/ysicing/AutoEcoleMedia/internal/seed"
	"github.com/ysicing/AutoEcoleMedia/pkg/utils"
)

// MaxUploadSize 单个上传文件的大小上限
const MaxUploadSize = 10 << 20

// multipartOverhead 为 multipart 边界和其它字段预留的请求体空间
const multipartOverhead = 1 << 20

// AllowedFolders 允许上传的目标目录
var AllowedFolders = map[string]bool{
	"types":        true,
	"articles":     true,
	"images":       true,
	"illustration": true,
	"certificate":  true,
}

// AllowedContentTypes 允许上传的 MIME 类型
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/avif": true,
}

// Uploader 处理单个上传文件
type Uploader interface {
	ProcessBuffer(ctx context.Context, data []byte, originalName, folder string) media.Result
}

// SeedRunner 手动触发导入
type SeedRunner interface {
	Run(ctx context.Context) (*seed.Report, error)
	LastReport() *seed.Report
}

// CatalogReader 目录只读查询
type CatalogReader interface {
	ListLicenseTypes(ctx context.Context) ([]catalog.LicenseType, error)
	ListArticles(ctx context.Context) ([]catalog.Article, error)
	GetSiteSettings(ctx context.Context) (catalog.SiteSettings, error)
}

// Handler API处理器
type Handler struct {
	log      *zap.SugaredLogger
	cfg      *config.Config
	uploader Uploader
	seeder   SeedRunner
	catalog  CatalogReader
}

// NewHandler 创建新的API处理器
func NewHandler(cfg *config.Config, uploader Uploader, seeder SeedRunner, catalog CatalogReader) *Handler {
	return &Handler{
		log:      logger.GetLogger("api-handler"),
		cfg:      cfg,
		uploader: uploader,
		seeder:   seeder,
		catalog:  catalog,
	}
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// UploadImage 接收 multipart 上传（字段 file 和 folder），转换后返回公开URL。
// 所有校验都在调用图片流水线之前完成
func (h *Handler) UploadImage(c *gin.Context) {
	if c.Request.ContentLength > MaxUploadSize+multipartOverhead {
		abortError(c, http.StatusBadRequest, "File too large (max 10MB)")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortError(c, http.StatusBadRequest, "File too large (max 10MB)")
			return
		}
		if !errors.Is(err, http.ErrMissingFile) {
			h.log.Warnf("解析上传请求失败: %v", err)
		}
		abortError(c, http.StatusBadRequest, "Missing file")
		return
	}

	folder := c.DefaultPostForm("folder", "images")
	if folder == "" {
		folder = "images"
	}
	if !AllowedFolders[folder] {
		abortError(c, http.StatusBadRequest, "Invalid folder")
		return
	}

	if header.Size > MaxUploadSize {
		abortError(c, http.StatusBadRequest, "File too large (max 10MB)")
		return
	}

	if !AllowedContentTypes[header.Header.Get("Content-Type")] && !utils.IsImageFile(header.Filename) {
		abortError(c, http.StatusBadRequest, "Invalid file type")
		return
	}

	f, err := header.Open()
	if err != nil {
		h.log.Errorf("打开上传文件失败: %v", err)
		abortError(c, http.StatusInternalServerError, "Upload failed")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.log.Errorf("读取上传文件失败: %v", err)
		abortError(c, http.StatusInternalServerError, "Upload failed")
		return
	}

	res := h.uploader.ProcessBuffer(c.Request.Context(), data, header.Filename, folder)
	if !res.OK() {
		abortError(c, http.StatusInternalServerError, "Upload failed")
		return
	}

	h.log.Infof("上传完成: %s -> %s", header.Filename, res.URL)
	c.JSON(http.StatusOK, gin.H{"url": res.URL})
}

// ListLicenseTypes 获取所有驾照类型
func (h *Handler) ListLicenseTypes(c *gin.Context) {
	items, err := h.catalog.ListLicenseTypes(c.Request.Context())
	if err != nil {
		h.log.Errorf("查询驾照类型失败: %v", err)
		abortError(c, http.StatusInternalServerError, "服务器内部错误")
		return
	}
	if items == nil {
		items = []catalog.LicenseType{}
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, items)
}

// ListArticles 获取所有文章
func (h *Handler) ListArticles(c *gin.Context) {
	items, err := h.catalog.ListArticles(c.Request.Context())
	if err != nil {
		h.log.Errorf("查询文章失败: %v", err)
		abortError(c, http.StatusInternalServerError, "服务器内部错误")
		return
	}
	if items == nil {
		items = []catalog.Article{}
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, items)
}

// GetSettings 获取站点设置
func (h *Handler) GetSettings(c *gin.Context) {
	st, err := h.catalog.GetSiteSettings(c.Request.Context())
	if errors.Is(err, catalog.ErrNotFound) {
		abortError(c, http.StatusNotFound, "未找到站点设置")
		return
	}
	if err != nil {
		h.log.Errorf("查询站点设置失败: %v", err)
		abortError(c, http.StatusInternalServerError, "服务器内部错误")
		return
	}
	c.JSON(http.StatusOK, st)
}

// TriggerSeed 手动触发一次批量导入，同步返回结果
func (h *Handler) TriggerSeed(c *gin.Context) {
	// 客户端断开不应中断导入
	report, err := h.seeder.Run(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, seed.ErrSeedRunning) {
		abortError(c, http.StatusConflict, "Seed already running")
		return
	}
	if err != nil {
		h.log.Errorf("导入失败: %v", err)
		abortError(c, http.StatusInternalServerError, "Seed failed")
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetSeedReport 获取最近一次导入结果
func (h *Handler) GetSeedReport(c *gin.Context) {
	report := h.seeder.LastReport()
	if report == nil {
		abortError(c, http.StatusNotFound, "尚未执行导入")
		return
	}
	c.JSON(http.StatusOK, report)
}

// HealthCheck 健康检查端点
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"version":   "1.0.0",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// SetupRoutes 设置路由。adminMiddleware 作用于上传和导入接口
func (h *Handler) SetupRoutes(router *gin.Engine, adminMiddleware ...gin.HandlerFunc) {
	api := router.Group(h.cfg.API.BasePath)
	{
		api.GET("/license-types", h.ListLicenseTypes)
		api.GET("/articles", h.ListArticles)
		api.GET("/settings", h.GetSettings)
		api.GET("/health", h.HealthCheck)
	}

	admin := api.Group("/admin", adminMiddleware...)
	{
		admin.POST("/upload-image", h.UploadImage)
		admin.POST("/seed", h.TriggerSeed)
		admin.GET("/seed", h.GetSeedReport)
	}

	router.GET("/health", h.HealthCheck)

	// 添加404处理
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "资源不存在"})
	})
}
