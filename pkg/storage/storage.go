package storage

import (
	"context"
	"errors"
	"io"
)

// 定义常见的存储错误
var (
	ErrObjectExists        = errors.New("对象已存在")
	ErrObjectStorageAccess = errors.New("对象存储访问错误")
	ErrUploadFailed        = errors.New("对象上传失败")
)

// UploadOptions 上传选项
type UploadOptions struct {
	ContentType string
	// Upsert 为 true 时覆盖同名对象，否则对象已存在时返回 ErrObjectExists
	Upsert bool
}

// Provider 定义存储提供者接口
type Provider interface {
	// Upload 上传数据到指定 key，返回实际存储的 key
	Upload(ctx context.Context, key string, data io.Reader, size int64, opts UploadOptions) (string, error)

	// PublicURL 获取 Upload 返回的 key 的公开访问 URL
	PublicURL(key string) string

	// Name 返回存储提供者名称
	Name() string
}
