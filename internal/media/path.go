package media

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RecipeImagePrefix is the key namespace of recipe images.
const RecipeImagePrefix = "uploads/recipe/"

// RecipeImagePath returns a fresh storage key for an uploaded recipe image:
// a random UUID plus the lower-cased extension of the client's filename.
// When the filename has no extension the decoded format is used instead.
func RecipeImagePath(filename, format string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" || ext == "." || strings.ContainsAny(ext, `/\ `) {
		ext = ""
		if format != "" {
			ext = "." + strings.ToLower(format)
		}
	}
	return path.Join(RecipeImagePrefix, uuid.NewString()+ext)
}
