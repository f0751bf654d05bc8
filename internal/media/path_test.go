package media_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ysicing/AutoEcoleMedia/internal/media"
)

func TestSanitizeBaseName(t *testing.T) {
	cases := map[string]string{
		"Categorie A":                 "categorie-a",
		"   ":                         "image",
		"":                            "image",
		"a--b":                        "a-b",
		"--lead and trail--":          "lead-and-trail",
		"guy wiht the car":            "guy-wiht-the-car",
		"logo auto echole lahcen":     "logo-auto-echole-lahcen",
		"photo(1)":                    "photo-1",
		"ÉCOLE été":                   "cole-t",
		"رخصة":                        "image",
		"v1.2_final":                  "v1.2_final",
		"tab\tand\nnewline":           "tab-and-newline",
		"mixed  -- separators !! end": "mixed-separators-end",
	}
	for in, want := range cases {
		assert.Equal(t, want, media.SanitizeBaseName(in), "input %q", in)
	}
}

func TestSanitizeBaseNameAlphabet(t *testing.T) {
	allowed := regexp.MustCompile(`^[a-z0-9._-]+$`)
	inputs := []string{"Hero Section 2", "ü∑ß", "A/B\\C", "x y z", "!!!", "Über—Straße", "😀 smile"}
	for _, in := range inputs {
		out := media.SanitizeBaseName(in)
		assert.Regexp(t, allowed, out, "input %q", in)
		assert.NotRegexp(t, `^-|-$|--`, out, "input %q", in)
	}
}

func TestStoragePath(t *testing.T) {
	cases := []struct {
		in     string
		format media.Format
		want   string
	}{
		{"types/categorie A.jpg", media.FormatAVIF, "types/categorie-a.avif"},
		{"/types/categorie b.jpg", media.FormatWEBP, "types/categorie-b.webp"},
		{`articles\new laws.jpg`, media.FormatAVIF, "articles/new-laws.avif"},
		{"certifciate/guy handing out the certifcate.png", media.FormatAVIF, "certifciate/guy-handing-out-the-certifcate.avif"},
		{"images/nested/Dir Name/Logo.PNG", media.FormatWEBP, "images/nested/Dir Name/logo.webp"},
		{"photo.webp", media.FormatWEBP, "photo.webp"},
		{"   .png", media.FormatAVIF, "image.avif"},
		{"images/.png", media.FormatAVIF, "images/image.avif"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, media.StoragePath(tc.in, tc.format), "input %q", tc.in)
	}
}

func TestStoragePathIdempotent(t *testing.T) {
	inputs := []string{"types/categorie A.jpg", "x", "a/b/c d.gif", "//lead/slash.png", "images/image-1700000000000-abc1234.jpeg"}
	for _, in := range inputs {
		for _, f := range []media.Format{media.FormatAVIF, media.FormatWEBP} {
			assert.Equal(t, media.StoragePath(in, f), media.StoragePath(in, f))
		}
	}
}
