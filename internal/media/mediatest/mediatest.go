// Package mediatest 提供图片流水线测试用的内存编码器和存储
package mediatest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/ysicing/AutoEcoleMedia/internal/media"
	"github.com/ysicing/AutoEcoleMedia/pkg/storage"
)

// Always 该格式的每次编码都失败
const Always = -1

// Encoder 可编排的编码器。Failures[f] 为格式 f 开始成功前失败的次数，Always 表示一直失败
type Encoder struct {
	mu       sync.Mutex
	Failures map[media.Format]int
	ProbeErr error
	calls    map[media.Format]int
	probes   int
}

// NewEncoder 创建所有格式都立即成功的编码器
func NewEncoder() *Encoder {
	return &Encoder{Failures: map[media.Format]int{}, calls: map[media.Format]int{}}
}

func (e *Encoder) Probe(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.probes++
	return e.ProbeErr
}

func (e *Encoder) Encode(data []byte, format media.Format, quality int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls == nil {
		e.calls = map[media.Format]int{}
	}
	e.calls[format]++

	switch n := e.Failures[format]; {
	case n == Always:
		return nil, fmt.Errorf("%s 编码器不可用", format)
	case n > 0:
		e.Failures[format] = n - 1
		return nil, fmt.Errorf("%s 临时失败", format)
	}
	return []byte(fmt.Sprintf("%s:q%d:%d", format, quality, len(data))), nil
}

// Calls 返回该格式的编码次数
func (e *Encoder) Calls(format media.Format) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[format]
}

// Probes 返回探测次数
func (e *Encoder) Probes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.probes
}

// Upload 记录的一次上传
type Upload struct {
	Key         string
	ContentType string
	Upsert      bool
	Data        []byte
}

// Storage 记录每次上传的内存存储。
// Block 为 true 时上传一直阻塞到 ctx 结束
type Storage struct {
	mu      sync.Mutex
	BaseURL string
	Err     error
	Block   bool
	uploads []Upload
	objects map[string][]byte
}

// NewStorage 创建空的内存存储
func NewStorage() *Storage {
	return &Storage{BaseURL: "https://cdn.test/media", objects: map[string][]byte{}}
}

func (s *Storage) Upload(ctx context.Context, key string, data io.Reader, size int64, opts storage.UploadOptions) (string, error) {
	if s.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, Upload{Key: key, ContentType: opts.ContentType, Upsert: opts.Upsert, Data: body})
	if s.Err != nil {
		return "", s.Err
	}
	if _, exists := s.objects[key]; exists && !opts.Upsert {
		return "", storage.ErrObjectExists
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = body
	return key, nil
}

func (s *Storage) PublicURL(key string) string {
	return s.BaseURL + "/" + key
}

func (s *Storage) Name() string { return "memory" }

// Uploads 返回已记录上传的副本
func (s *Storage) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// Keys 按顺序返回已存储的 key
func (s *Storage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrRejected 预置的上传失败
var ErrRejected = errors.New("存储拒绝上传")

var (
	_ media.Encoder    = (*Encoder)(nil)
	_ storage.Provider = (*Storage)(nil)
)
