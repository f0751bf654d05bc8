package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ysicing/AutoEcoleMedia/pkg/utils"
)

// LocalStorage 实现本地文件系统存储，开发环境下替代对象存储
type LocalStorage struct {
	basePath string
	baseURL  string
}

// NewLocalStorage 创建新的本地存储提供者
func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	// 确保存储目录存在
	if err := utils.EnsureDirExists(basePath); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

// Upload 保存数据到本地文件系统
func (s *LocalStorage) Upload(ctx context.Context, key string, data io.Reader, size int64, opts UploadOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := utils.EnsureDirExists(filepath.Dir(fullPath)); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	// 先写临时文件再重命名，读者不会看到写了一半的文件
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("%w: 写入文件失败: %v", ErrUploadFailed, err)
	}

	if !opts.Upsert {
		// 占位创建，已存在则拒绝
		f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				return "", fmt.Errorf("%w: %s", ErrObjectExists, key)
			}
			return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		f.Close()
	}

	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("%w: 重命名文件失败: %v", ErrUploadFailed, err)
	}

	logrus.Infof("保存文件到本地: %s (%d bytes)", fullPath, written)
	return key, nil
}

// PublicURL 获取文件的公开URL
func (s *LocalStorage) PublicURL(key string) string {
	escaped := (&url.URL{Path: strings.TrimLeft(key, "/")}).EscapedPath()
	return s.baseURL + "/" + escaped
}

// Root 返回本地存储根目录，供静态文件路由使用
func (s *LocalStorage) Root() string {
	return s.basePath
}

// Name 返回存储提供者名称
func (s *LocalStorage) Name() string {
	return "local"
}
