package media

import (
	"path"
	"regexp"
	"strings"

	"github.com/ysicing/AutoEcoleMedia/pkg/utils"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	disallowedRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	hyphenRunRe  = regexp.MustCompile(`-+`)
)

// SanitizeBaseName 将文件名转为小写连字符形式，只保留 [a-z0-9._-]，结果为空时返回 "image"
func SanitizeBaseName(name string) string {
	s := whitespaceRe.ReplaceAllString(name, "-")
	s = disallowedRe.ReplaceAllString(s, "-")
	s = hyphenRunRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	s = strings.ToLower(s)
	if s == "" {
		return "image"
	}
	return s
}

// StoragePath 由逻辑路径和输出格式推导存储 key。
// 目录部分原样保留，只清洗文件名，例如 "types/categorie A.jpg" -> "types/categorie-a.avif"。
func StoragePath(logicalPath string, format Format) string {
	dir, file := path.Split(utils.NormalizePath(logicalPath))
	base := strings.TrimSuffix(file, path.Ext(file))
	name := SanitizeBaseName(base) + format.Ext()

	dir = strings.TrimSuffix(dir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
