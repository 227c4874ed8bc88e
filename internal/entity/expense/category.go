package expense

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// OtherKey is the bucket for anything no keyword matches.
const OtherKey = "otros"

//go:embed catalog.yaml
var defaultCatalog []byte

type Category struct {
	Key      string   `yaml:"key"`
	Name     string   `yaml:"name"`
	Emoji    string   `yaml:"emoji"`
	Keywords []string `yaml:"keywords"`
}

func (c Category) Label() string {
	if c.Emoji == "" {
		return c.Name
	}
	return c.Emoji + " " + c.Name
}

// Catalog is the fixed set of categories an expense may belong to.
type Catalog struct {
	categories []Category
	byKey      map[string]int
}

type catalogFile struct {
	Categories []Category `yaml:"categories"`
}

// LoadCatalog reads the catalog from path, or the embedded default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	raw := defaultCatalog
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading categories file")
		}
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrap(err, "parsing categories")
	}
	return NewCatalog(file.Categories)
}

func NewCatalog(categories []Category) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]int, len(categories))}
	for _, cat := range categories {
		cat.Key = fold(cat.Key)
		if cat.Key == "" || cat.Name == "" {
			return nil, fmt.Errorf("category %q needs a key and a name", cat.Name)
		}
		if _, dup := c.byKey[cat.Key]; dup {
			return nil, fmt.Errorf("duplicate category %s", cat.Key)
		}
		keywords := make([]string, 0, len(cat.Keywords))
		for _, kw := range cat.Keywords {
			if kw = fold(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		cat.Keywords = keywords
		c.byKey[cat.Key] = len(c.categories)
		c.categories = append(c.categories, cat)
	}
	if _, ok := c.byKey[OtherKey]; !ok {
		return nil, fmt.Errorf("catalog must contain the %q category", OtherKey)
	}
	return c, nil
}

func (c *Catalog) All() []Category {
	res := make([]Category, len(c.categories))
	copy(res, c.categories)
	return res
}

func (c *Catalog) Names() []string {
	res := make([]string, 0, len(c.categories))
	for _, cat := range c.categories {
		res = append(res, cat.Name)
	}
	return res
}

func (c *Catalog) Other() Category {
	return c.categories[c.byKey[OtherKey]]
}

func (c *Catalog) ByKey(key string) (Category, bool) {
	i, ok := c.byKey[fold(key)]
	if !ok {
		return Category{}, false
	}
	return c.categories[i], true
}

// Lookup resolves a key or display name, ignoring case, accents and emoji.
func (c *Catalog) Lookup(name string) (Category, bool) {
	folded := fold(name)
	if folded == "" {
		return Category{}, false
	}
	for _, cat := range c.categories {
		if folded == cat.Key || folded == fold(cat.Name) {
			return cat, true
		}
	}
	return Category{}, false
}

// Match picks the category whose keyword appears as whole words in text.
// The longest keyword wins, ties go to the earlier category.
func (c *Catalog) Match(text string) Category {
	padded := " " + fold(text) + " "
	best, bestLen := c.Other(), 0
	for _, cat := range c.categories {
		for _, kw := range cat.Keywords {
			if len(kw) > bestLen && strings.Contains(padded, " "+kw+" ") {
				best, bestLen = cat, len(kw)
			}
		}
	}
	return best
}

// fold lower-cases, strips accents and reduces everything but letters and
// digits to single spaces.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		stripped = strings.ToLower(s)
	}
	return strings.Join(strings.FieldsFunc(stripped, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
