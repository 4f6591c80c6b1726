// internal/catalog/categories_test.go
package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugFromURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://kingfoodmart.com/rau-cu-qua", "rau-cu-qua"},
		{"https://kingfoodmart.com/rau-cu-qua/", "rau-cu-qua"},
		{"https://kingfoodmart.com/a/b/thit-tuoi?x=1", "thit-tuoi"},
		{"  https://kingfoodmart.com/sua-tuoi  ", "sua-tuoi"},
		{"bua-an-san-tien-loi", "bua-an-san-tien-loi"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SlugFromURL(tc.in), tc.in)
	}
}

func TestLoadCategoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "category_url.txt")
	content := "# categories\nhttps://kingfoodmart.com/rau-cu\n\nhttp://insecure.example/skip\nhttps://kingfoodmart.com/sua-tuoi/\nhttps://kingfoodmart.com/rau-cu\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	slugs, err := LoadCategoryFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"rau-cu", "sua-tuoi"}, slugs)
}

func TestLoadCategoryFileMissing(t *testing.T) {
	_, err := LoadCategoryFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestDiscoverCategories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><nav>
			<a href="/rau-cu-qua">Rau</a>
			<a href="/rau-cu-qua/">Rau again</a>
			<a href="/thit-ca">Thit</a>
			<a href="/products/sua-123">Product</a>
			<a href="/">Home</a>
			<a href="/Bad_Slug">Bad</a>
			<a href="https://other.example/banh">Elsewhere</a>
		</nav></body></html>`))
	}))
	defer server.Close()

	slugs, err := DiscoverCategories(context.Background(), server.URL, "", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, []string{"rau-cu-qua", "thit-ca"}, slugs)
}
