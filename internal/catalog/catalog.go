// Package catalog holds the portfolio content tree: categories grouped into
// site sections, each holding galleries of albums of items, plus the
// character universe and the fixture roll shown in the camera album.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/onnwee/viewfinder/internal/camera"
	"github.com/onnwee/viewfinder/internal/color"
)

// Section is a top-level area of the site.
type Section string

// Sections.
const (
	SectionPhotography Section = "photography"
	SectionFilms       Section = "films"
	SectionAIArt       Section = "ai-art"
	SectionUniverse    Section = "universe"
)

// Sections lists every section in navigation order.
var Sections = []Section{SectionPhotography, SectionFilms, SectionAIArt, SectionUniverse}

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	switch s {
	case SectionPhotography, SectionFilms, SectionAIArt, SectionUniverse:
		return true
	}
	return false
}

// Item kinds.
const (
	KindImage = "image"
	KindVideo = "video"
)

// Errors returned by lookups and validation.
var (
	ErrNotFound = errors.New("catalog entry not found")
	ErrInvalid  = errors.New("invalid catalog")
)

// Item is a single photo, still or video.
type Item struct {
	ID      string    `yaml:"id" json:"id"`
	Title   string    `yaml:"title" json:"title"`
	Kind    string    `yaml:"kind" json:"kind"`
	Src     string    `yaml:"src" json:"src"`
	Key     string    `yaml:"key" json:"-"`
	Caption string    `yaml:"caption" json:"caption,omitempty"`
	Date    time.Time `yaml:"date" json:"date"`
}

// Album is an ordered set of items.
type Album struct {
	ID    string    `yaml:"id" json:"id"`
	Title string    `yaml:"title" json:"title"`
	Cover string    `yaml:"cover" json:"cover,omitempty"`
	Date  time.Time `yaml:"date" json:"date"`
	Items []Item    `yaml:"items" json:"items"`
}

// Gallery groups albums.
type Gallery struct {
	ID          string  `yaml:"id" json:"id"`
	Title       string  `yaml:"title" json:"title"`
	Description string  `yaml:"description" json:"description,omitempty"`
	Albums      []Album `yaml:"albums" json:"albums"`
}

// Category is the entry point of the galleria.
type Category struct {
	ID        string    `yaml:"id" json:"id"`
	Title     string    `yaml:"title" json:"title"`
	Section   Section   `yaml:"section" json:"section"`
	Galleries []Gallery `yaml:"galleries" json:"galleries"`
}

// Character is a member of the character universe.
type Character struct {
	ID    string   `yaml:"id" json:"id"`
	Name  string   `yaml:"name" json:"name"`
	Role  string   `yaml:"role" json:"role,omitempty"`
	Bio   string   `yaml:"bio" json:"bio,omitempty"`
	Image string   `yaml:"image" json:"image,omitempty"`
	Tags  []string `yaml:"tags" json:"tags,omitempty"`
	// Accent tints the character card and must stay legible on the HUD.
	Accent string `yaml:"accent" json:"accent,omitempty"`
}

// Catalog is the whole content tree. A loaded Catalog is read-only.
type Catalog struct {
	Categories []Category     `yaml:"categories" json:"categories"`
	Characters []Character    `yaml:"characters" json:"characters"`
	Roll       []camera.Frame `yaml:"roll" json:"roll"`
}

// Digest returns a hex SHA-256 of the catalog's JSON form. Equal catalogs
// have equal digests.
func (c *Catalog) Digest() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode catalog: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Decode reads a YAML catalog and validates it. Unknown keys are rejected.
func Decode(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every ID is unique across the tree, every entry has a
// title and every category names a known section. Character accents are
// normalized to lowercase #rrggbb.
func (c *Catalog) Validate() error {
	var errs []error
	seen := make(map[string]string)
	check := func(kind, id, title string) {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, fmt.Errorf("%s with title %q has no id", kind, title))
			return
		}
		if prev, ok := seen[id]; ok {
			errs = append(errs, fmt.Errorf("duplicate id %q (%s and %s)", id, prev, kind))
		}
		seen[id] = kind
		if strings.TrimSpace(title) == "" {
			errs = append(errs, fmt.Errorf("%s %q has no title", kind, id))
		}
	}

	for _, cat := range c.Categories {
		check("category", cat.ID, cat.Title)
		if !cat.Section.Valid() {
			errs = append(errs, fmt.Errorf("category %q has unknown section %q", cat.ID, cat.Section))
		}
		for _, g := range cat.Galleries {
			check("gallery", g.ID, g.Title)
			for _, a := range g.Albums {
				check("album", a.ID, a.Title)
				for _, it := range a.Items {
					check("item", it.ID, it.Title)
					if it.Kind != "" && it.Kind != KindImage && it.Kind != KindVideo {
						errs = append(errs, fmt.Errorf("item %q has unknown kind %q", it.ID, it.Kind))
					}
					if it.Src == "" && it.Key == "" {
						errs = append(errs, fmt.Errorf("item %q has neither src nor key", it.ID))
					}
				}
			}
		}
	}
	for i := range c.Characters {
		ch := &c.Characters[i]
		check("character", ch.ID, ch.Name)
		accent, err := color.Accent(ch.Accent)
		if err != nil {
			errs = append(errs, fmt.Errorf("character %q: %w", ch.ID, err))
			continue
		}
		ch.Accent = accent
	}
	for _, f := range c.Roll {
		check("frame", f.ID, f.Title)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Category returns the category with id.
func (c *Catalog) Category(id string) (*Category, error) {
	for i := range c.Categories {
		if c.Categories[i].ID == id {
			return &c.Categories[i], nil
		}
	}
	return nil, fmt.Errorf("%w: category %q", ErrNotFound, id)
}

// Gallery returns the gallery with id and the category holding it.
func (c *Catalog) Gallery(id string) (*Gallery, *Category, error) {
	for i := range c.Categories {
		cat := &c.Categories[i]
		for j := range cat.Galleries {
			if cat.Galleries[j].ID == id {
				return &cat.Galleries[j], cat, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("%w: gallery %q", ErrNotFound, id)
}

// Album returns the album with id and the gallery holding it.
func (c *Catalog) Album(id string) (*Album, *Gallery, error) {
	for i := range c.Categories {
		for j := range c.Categories[i].Galleries {
			g := &c.Categories[i].Galleries[j]
			for k := range g.Albums {
				if g.Albums[k].ID == id {
					return &g.Albums[k], g, nil
				}
			}
		}
	}
	return nil, nil, fmt.Errorf("%w: album %q", ErrNotFound, id)
}

// Character returns the character with id.
func (c *Catalog) Character(id string) (*Character, error) {
	for i := range c.Characters {
		if c.Characters[i].ID == id {
			return &c.Characters[i], nil
		}
	}
	return nil, fmt.Errorf("%w: character %q", ErrNotFound, id)
}

// MediaEntry is an item flattened out of the tree with its location.
type MediaEntry struct {
	Item
	Section    Section `json:"section"`
	CategoryID string  `json:"category_id"`
	GalleryID  string  `json:"gallery_id"`
	AlbumID    string  `json:"album_id"`
}

// Media lists every item in section, or in all sections when section is
// empty, in tree order.
func (c *Catalog) Media(section Section) []MediaEntry {
	var out []MediaEntry
	for _, cat := range c.Categories {
		if section != "" && cat.Section != section {
			continue
		}
		for _, g := range cat.Galleries {
			for _, a := range g.Albums {
				for _, it := range a.Items {
					out = append(out, MediaEntry{
						Item:       it,
						Section:    cat.Section,
						CategoryID: cat.ID,
						GalleryID:  g.ID,
						AlbumID:    a.ID,
					})
				}
			}
		}
	}
	return out
}

// MediaItem finds a single item anywhere in the tree.
func (c *Catalog) MediaItem(id string) (MediaEntry, error) {
	for _, m := range c.Media("") {
		if m.ID == id {
			return m, nil
		}
	}
	return MediaEntry{}, fmt.Errorf("%w: item %q", ErrNotFound, id)
}
