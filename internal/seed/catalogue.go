package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ysicing/AutoEcoleMedia/internal/catalog"
)

//go:embed catalogue.yaml
var defaultCatalogue []byte

// LicenseTypeSeed 驾照类型种子数据
type LicenseTypeSeed struct {
	Code         string   `yaml:"code"`
	NameAr       string   `yaml:"nameAr"`
	NameFr       string   `yaml:"nameFr"`
	Description  string   `yaml:"description"`
	ImagePath    string   `yaml:"imagePath"`
	Details      []string `yaml:"details"`
	Note         *string  `yaml:"note"`
	Offers       []string `yaml:"offers"`
	CallToAction string   `yaml:"callToAction"`
	VideoLink    *string  `yaml:"videoLink"`
}

// ArticleSeed 文章种子数据
type ArticleSeed struct {
	Slug        string `yaml:"slug"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
	Text        string `yaml:"text"`
}

// SettingsSeed 站点设置种子数据。
// 三个可选图片未上传成功时写入 null，logo 未命中时保留原路径
type SettingsSeed struct {
	Logo             string                         `yaml:"logo"`
	Name             string                         `yaml:"name"`
	Description      string                         `yaml:"description"`
	FormElements     map[string]catalog.FormElement `yaml:"formElements"`
	CertificateHero  string                         `yaml:"certificateHero"`
	CertificateBadge string                         `yaml:"certificateBadge"`
	HeroBanner       string                         `yaml:"heroBanner"`
}

// Catalogue 种子目录
type Catalogue struct {
	LicenseTypes []LicenseTypeSeed `yaml:"licenseTypes"`
	Articles     []ArticleSeed     `yaml:"articles"`
	Settings     SettingsSeed      `yaml:"settings"`
}

// ParseCatalogue 解析 YAML 格式的目录
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("解析目录失败: %w", err)
	}
	return &c, nil
}

// DefaultCatalogue 内置目录
func DefaultCatalogue() (*Catalogue, error) {
	return ParseCatalogue(defaultCatalogue)
}
