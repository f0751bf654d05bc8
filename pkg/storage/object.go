package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// ObjectStorageConfig 对象存储配置
type ObjectStorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	BaseURL         string // 可选，用于CDN
	PathPrefix      string // 路径前缀
}

// ObjectStorage 实现S3兼容的对象存储
type ObjectStorage struct {
	useSSL     bool
	client     *minio.Client
	bucketName string
	region     string
	baseURL    string
	pathPrefix string
	mutex      sync.RWMutex // 用于保护客户端重新初始化
}

// publicReadPolicy 公共读取策略
const publicReadPolicy = `{
	"Version": "2012-10-17",
	"Statement": [
		{
			"Effect": "Allow",
			"Principal": {"AWS": ["*"]},
			"Action": ["s3:GetObject"],
			"Resource": ["arn:aws:s3:::%s/*"]
		}
	]
}`

// NewObjectStorage 创建新的对象存储提供者，并确保媒体桶存在且公开可读
func NewObjectStorage(cfg ObjectStorageConfig) (*ObjectStorage, error) {
	client, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}

	s := &ObjectStorage{client: client}
	s.apply(cfg)

	if err := s.EnsureBucket(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

func newMinioClient(cfg ObjectStorageConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("创建对象存储客户端失败: %w", err)
	}
	return client, nil
}

func (s *ObjectStorage) apply(cfg ObjectStorageConfig) {
	if len(cfg.BaseURL) == 0 {
		cfg.BaseURL = cfg.Endpoint
	}
	s.bucketName = cfg.BucketName
	s.region = cfg.Region
	s.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	s.pathPrefix = strings.Trim(cfg.PathPrefix, "/")
	s.useSSL = cfg.UseSSL
}

// EnsureBucket 检查桶是否存在，不存在则创建并设置为公共读取。可重复调用
func (s *ObjectStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("检查桶是否存在失败: %w", err)
	}
	if exists {
		return nil
	}

	logrus.Infof("桶 %s 不存在，正在创建...", s.bucketName)
	if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region}); err != nil {
		// 并发创建时对方可能已经建好
		code := minio.ToErrorResponse(err).Code
		if code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
			return fmt.Errorf("创建桶失败: %w", err)
		}
		logrus.Infof("桶 %s 已存在", s.bucketName)
		return nil
	}

	if err := s.client.SetBucketPolicy(ctx, s.bucketName, fmt.Sprintf(publicReadPolicy, s.bucketName)); err != nil {
		logrus.Warnf("设置桶策略失败: %v", err)
	}
	return nil
}

// objectKey 为逻辑 key 加上路径前缀。不同的逻辑 key 总是得到不同的对象名
func (s *ObjectStorage) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.pathPrefix != "" {
		key = path.Join(s.pathPrefix, key)
	}
	return key
}

// Upload 上传对象。Upsert 为 true 时直接覆盖同名对象
func (s *ObjectStorage) Upload(ctx context.Context, key string, data io.Reader, size int64, opts UploadOptions) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	objectName := s.objectKey(key)

	if !opts.Upsert {
		_, err := s.client.StatObject(ctx, s.bucketName, objectName, minio.StatObjectOptions{})
		if err == nil {
			return "", fmt.Errorf("%w: %s", ErrObjectExists, objectName)
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return "", fmt.Errorf("%w: %v", ErrObjectStorageAccess, err)
		}
	}

	info, err := s.client.PutObject(ctx, s.bucketName, objectName, data, size, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	logrus.Infof("上传文件到对象存储: %s/%s (%d bytes)", s.bucketName, objectName, info.Size)
	return objectName, nil
}

// PublicURL 获取对象的公开URL。key 为 Upload 返回的对象名，已包含路径前缀
func (s *ObjectStorage) PublicURL(key string) string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	escaped := (&url.URL{Path: strings.TrimLeft(key, "/")}).EscapedPath()

	// 带协议的 baseURL 视为已指向桶的 CDN 地址
	if strings.Contains(s.baseURL, "://") {
		return s.baseURL + "/" + escaped
	}

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.baseURL, s.bucketName, escaped)
}

// Name 返回存储提供者名称
func (s *ObjectStorage) Name() string {
	return "object"
}

// Reconnect 重新连接对象存储
func (s *ObjectStorage) Reconnect(cfg ObjectStorageConfig) error {
	client, err := newMinioClient(cfg)
	if err != nil {
		return fmt.Errorf("重新创建对象存储客户端失败: %w", err)
	}

	s.mutex.Lock()
	s.client = client
	s.apply(cfg)
	s.mutex.Unlock()

	// 验证连接和桶配置
	if err := s.EnsureBucket(context.Background()); err != nil {
		return err
	}

	logrus.Info("对象存储客户端已重新连接")
	return nil
}
