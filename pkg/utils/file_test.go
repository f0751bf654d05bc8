package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/types/categorie A.jpg":   "types/categorie A.jpg",
		"//images/logo.png":        "images/logo.png",
		`articles\new laws.jpg`:    "articles/new laws.jpg",
		`\certifciate\image.png`:   "certifciate/image.png",
		"types/hero section 2.jpg": "types/hero section 2.jpg",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePath(in), in)
	}
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.png", "b.JPG", "c.jpeg", "d.gif", "e.WebP", "f.avif"} {
		assert.True(t, IsImageFile(name), name)
	}
	for _, name := range []string{"a.txt", "b", "c.svg", "d.png.bak"} {
		assert.False(t, IsImageFile(name), name)
	}
}

func TestEnsureDirExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDirExists(dir))
	assert.True(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
}
