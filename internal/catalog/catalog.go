package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kapu/sitcom-match-go/internal/domain"
)

//go:embed characters.yaml
var defaultCatalog []byte

// Catalog is the immutable list of characters a user can be matched to.
type Catalog struct {
	characters []domain.CharacterProfile
	byName     map[string]int
}

type catalogFile struct {
	Characters []domain.CharacterProfile `yaml:"characters"`
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		data = content
	}
	return Parse(data)
}

// Default returns the embedded catalog. It panics if the embedded file is invalid.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(file.Characters)
}

// New validates characters and builds a catalog preserving their order.
func New(characters []domain.CharacterProfile) (*Catalog, error) {
	if len(characters) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one character")
	}

	c := &Catalog{
		characters: make([]domain.CharacterProfile, 0, len(characters)),
		byName:     make(map[string]int, len(characters)),
	}
	for i, ch := range characters {
		ch.Name = strings.TrimSpace(ch.Name)
		ch.Show = strings.TrimSpace(ch.Show)
		if ch.Name == "" || ch.Show == "" {
			return nil, fmt.Errorf("catalog entry %d: name and show are required", i)
		}
		key := strings.ToLower(ch.Name)
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate character %q", i, ch.Name)
		}
		ch.Traits = append([]string(nil), ch.Traits...)
		c.byName[key] = len(c.characters)
		c.characters = append(c.characters, ch)
	}

	return c, nil
}

// Characters returns a copy of the catalog in catalog order.
func (c *Catalog) Characters() []domain.CharacterProfile {
	out := make([]domain.CharacterProfile, len(c.characters))
	for i, ch := range c.characters {
		ch.Traits = append([]string(nil), ch.Traits...)
		out[i] = ch
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.characters)
}

// At returns the i-th character.
func (c *Catalog) At(i int) domain.CharacterProfile {
	ch := c.characters[i]
	ch.Traits = append([]string(nil), ch.Traits...)
	return ch
}

// Lookup resolves name case-insensitively after trimming whitespace.
func (c *Catalog) Lookup(name string) (domain.CharacterProfile, bool) {
	idx, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return domain.CharacterProfile{}, false
	}
	return c.At(idx), true
}
