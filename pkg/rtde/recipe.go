package rtde

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Recipe is an ordered list of named fields exchanged in one direction.
// Order matters: it defines the field layout of every data packet.
type Recipe struct {
	Fields []string
}

// LoadRecipe reads a recipe file: one field name per line, blank lines
// and '#' comments ignored.
func LoadRecipe(path string) (Recipe, error) {
	f, err := os.Open(path)
	if err != nil {
		return Recipe{}, fmt.Errorf("open recipe: %w", err)
	}
	defer f.Close()

	var fields []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields = append(fields, line)
	}
	if err := scanner.Err(); err != nil {
		return Recipe{}, fmt.Errorf("read recipe: %w", err)
	}

	recipe := Recipe{Fields: fields}
	if err := recipe.Validate(); err != nil {
		return Recipe{}, fmt.Errorf("recipe %s: %w", path, err)
	}
	return recipe, nil
}

// Validate checks that the recipe is non-empty and free of duplicates.
func (r Recipe) Validate() error {
	if len(r.Fields) == 0 {
		return fmt.Errorf("recipe has no fields")
	}
	seen := make(map[string]struct{}, len(r.Fields))
	for _, f := range r.Fields {
		if _, dup := seen[f]; dup {
			return fmt.Errorf("duplicate field %q", f)
		}
		seen[f] = struct{}{}
	}
	return nil
}

// String returns the wire form: field names joined by commas.
func (r Recipe) String() string {
	return strings.Join(r.Fields, ",")
}
