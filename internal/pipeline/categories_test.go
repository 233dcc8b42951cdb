package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCategories(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCategories(t *testing.T) {
	path := writeCategories(t, `# categories to mirror
Cats

Category:Dogs
  Big cats
`)
	cats, err := LoadCategories(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cats", "Dogs", "Big_cats"}, cats)
}

func TestLoadCategoriesDeduplicates(t *testing.T) {
	path := writeCategories(t, "Cats\nCategory:Cats\n Cats \nDogs\n")

	cats, err := LoadCategories(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cats", "Dogs"}, cats)
}

func TestLoadCategoriesEmptyFileFails(t *testing.T) {
	path := writeCategories(t, "# only comments\n\n")

	_, err := LoadCategories(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no categories")
}

func TestLoadCategoriesMissingFileFails(t *testing.T) {
	_, err := LoadCategories(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}
