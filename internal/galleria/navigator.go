// Package galleria implements the nested gallery navigator. A navigator walks
// a strict stack of view levels, galleria → gallery → album → single, and
// moves between siblings at each level with wraparound.
package galleria

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/onnwee/viewfinder/internal/catalog"
)

// Level is a depth in the navigation stack.
type Level string

// View levels, outermost first.
const (
	LevelGalleria Level = "galleria"
	LevelGallery  Level = "gallery"
	LevelAlbum    Level = "album"
	LevelSingle   Level = "single"
)

// SortField orders albums and items.
type SortField string

// Sort fields.
const (
	SortByDate  SortField = "date"
	SortByTitle SortField = "title"
)

// SortOrder is the sort direction.
type SortOrder string

// Sort orders.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Zoom limits for the single view.
const (
	MinZoom  = 1.0
	MaxZoom  = 4.0
	ZoomStep = 0.5
)

// Slideshow intervals. DefaultSlideInterval is used when a slideshow is
// started without one; other values are clamped to [MinSlideInterval,
// MaxSlideInterval].
const (
	DefaultSlideInterval = 4 * time.Second
	MinSlideInterval     = 500 * time.Millisecond
	MaxSlideInterval     = 10 * time.Minute
)

// Navigation errors. A failed command leaves the navigator unchanged.
var (
	ErrInvalidTransition = errors.New("invalid galleria transition")
	ErrNotFound          = errors.New("galleria target not found")
)

// State is the navigator position. The zero value is not usable; build one
// with New.
type State struct {
	Level         Level         `json:"level"`
	CategoryID    string        `json:"category_id"`
	GalleryID     string        `json:"gallery_id,omitempty"`
	AlbumID       string        `json:"album_id,omitempty"`
	ItemID        string        `json:"item_id,omitempty"`
	Zoom          float64       `json:"zoom"`
	Slideshow     bool          `json:"slideshow"`
	SlideInterval time.Duration `json:"-"`
	SortField     SortField     `json:"sort_field"`
	SortOrder     SortOrder     `json:"sort_order"`
}

// Navigator walks a catalog. It is not safe for concurrent use; the session
// controller owns it.
type Navigator struct {
	cat   *catalog.Catalog
	state State
}

// New returns a navigator at the galleria level with the first category
// selected.
func New(c *catalog.Catalog) *Navigator {
	n := &Navigator{cat: c}
	n.state = State{
		Level:     LevelGalleria,
		Zoom:      MinZoom,
		SortField: SortByDate,
		SortOrder: SortDesc,
	}
	if len(c.Categories) > 0 {
		n.state.CategoryID = c.Categories[0].ID
	}
	return n
}

// State returns a copy of the current position.
func (n *Navigator) State() State {
	return n.state
}

// Catalog returns the catalog being navigated.
func (n *Navigator) Catalog() *catalog.Catalog {
	return n.cat
}

// SetCatalog swaps the catalog after a reload. The position is kept as deep
// as it still resolves; anything that vanished pops the stack back to the
// nearest surviving level.
func (n *Navigator) SetCatalog(c *catalog.Catalog) {
	prev := n.state
	n.cat = c
	n.state.Level = LevelGalleria
	n.state.GalleryID, n.state.AlbumID, n.state.ItemID = "", "", ""

	if _, err := c.Category(prev.CategoryID); err != nil {
		n.state.CategoryID = ""
		if len(c.Categories) > 0 {
			n.state.CategoryID = c.Categories[0].ID
		}
		n.stopSingle()
		return
	}
	if prev.Level == LevelGalleria {
		return
	}
	if _, cat, err := c.Gallery(prev.GalleryID); err != nil || cat.ID != prev.CategoryID {
		n.stopSingle()
		return
	}
	n.state.Level, n.state.GalleryID = LevelGallery, prev.GalleryID
	if prev.Level == LevelGallery {
		return
	}
	if _, g, err := c.Album(prev.AlbumID); err != nil || g.ID != prev.GalleryID {
		n.stopSingle()
		return
	}
	n.state.Level, n.state.AlbumID = LevelAlbum, prev.AlbumID
	if prev.Level == LevelAlbum {
		return
	}
	if n.itemIndex(prev.ItemID) < 0 {
		n.stopSingle()
		return
	}
	n.state.Level, n.state.ItemID = LevelSingle, prev.ItemID
}

// SelectCategory highlights a category at the galleria level.
func (n *Navigator) SelectCategory(id string) (bool, error) {
	if n.state.Level != LevelGalleria {
		return false, fmt.Errorf("%w: select category from %s", ErrInvalidTransition, n.state.Level)
	}
	if _, err := n.cat.Category(id); err != nil {
		return false, fmt.Errorf("%w: category %q", ErrNotFound, id)
	}
	if n.state.CategoryID == id {
		return false, nil
	}
	n.state.CategoryID = id
	return true, nil
}

// EnterGallery opens a gallery from the galleria level. The gallery's
// category becomes the selected category.
func (n *Navigator) EnterGallery(id string) (bool, error) {
	if n.state.Level != LevelGalleria {
		return false, fmt.Errorf("%w: enter gallery from %s", ErrInvalidTransition, n.state.Level)
	}
	g, cat, err := n.cat.Gallery(id)
	if err != nil {
		return false, fmt.Errorf("%w: gallery %q", ErrNotFound, id)
	}
	n.state.Level = LevelGallery
	n.state.CategoryID = cat.ID
	n.state.GalleryID = g.ID
	return true, nil
}

// EnterAlbum opens an album of the current gallery.
func (n *Navigator) EnterAlbum(id string) (bool, error) {
	if n.state.Level != LevelGallery {
		return false, fmt.Errorf("%w: enter album from %s", ErrInvalidTransition, n.state.Level)
	}
	a, g, err := n.cat.Album(id)
	if err != nil || g.ID != n.state.GalleryID {
		return false, fmt.Errorf("%w: album %q in gallery %q", ErrNotFound, id, n.state.GalleryID)
	}
	n.state.Level = LevelAlbum
	n.state.AlbumID = a.ID
	return true, nil
}

// EnterSingle opens the item at index of the current album, in the current
// sort order.
func (n *Navigator) EnterSingle(index int) (bool, error) {
	if n.state.Level != LevelAlbum {
		return false, fmt.Errorf("%w: enter single from %s", ErrInvalidTransition, n.state.Level)
	}
	items := n.items()
	if index < 0 || index >= len(items) {
		return false, fmt.Errorf("%w: item %d of %d", ErrNotFound, index, len(items))
	}
	n.state.Level = LevelSingle
	n.state.ItemID = items[index].ID
	n.state.Zoom = MinZoom
	return true, nil
}

// GoBack pops one level. It is a no-op at the galleria level.
func (n *Navigator) GoBack() (bool, error) {
	switch n.state.Level {
	case LevelSingle:
		n.stopSingle()
		n.state.Level = LevelAlbum
		n.state.ItemID = ""
	case LevelAlbum:
		n.state.Level = LevelGallery
		n.state.AlbumID = ""
	case LevelGallery:
		n.state.Level = LevelGalleria
		n.state.GalleryID = ""
	default:
		return false, nil
	}
	return true, nil
}

// Next moves to the following sibling at the current level, wrapping from
// the last to the first.
func (n *Navigator) Next() (bool, error) {
	return n.step(1)
}

// Prev moves to the preceding sibling at the current level, wrapping from
// the first to the last.
func (n *Navigator) Prev() (bool, error) {
	return n.step(-1)
}

func (n *Navigator) step(delta int) (bool, error) {
	ids := n.siblings()
	if len(ids) < 2 {
		return false, nil
	}
	cur := slices.Index(ids, n.currentID())
	if cur < 0 {
		cur = 0
		delta = 0
	}
	next := ids[wrap(cur+delta, len(ids))]
	if next == n.currentID() {
		return false, nil
	}
	switch n.state.Level {
	case LevelGalleria:
		n.state.CategoryID = next
	case LevelGallery:
		n.state.GalleryID = next
	case LevelAlbum:
		n.state.AlbumID = next
	case LevelSingle:
		n.state.ItemID = next
		n.state.Zoom = MinZoom
	}
	return true, nil
}

// StartSlideshow starts auto-advance in the single view. A non-positive
// interval uses DefaultSlideInterval.
func (n *Navigator) StartSlideshow(interval time.Duration) (bool, error) {
	if n.state.Level != LevelSingle {
		return false, fmt.Errorf("%w: slideshow outside single view", ErrInvalidTransition)
	}
	if interval <= 0 {
		interval = DefaultSlideInterval
	}
	interval = min(max(interval, MinSlideInterval), MaxSlideInterval)
	if n.state.Slideshow && n.state.SlideInterval == interval {
		return false, nil
	}
	n.state.Slideshow = true
	n.state.SlideInterval = interval
	return true, nil
}

// StopSlideshow stops auto-advance.
func (n *Navigator) StopSlideshow() (bool, error) {
	if !n.state.Slideshow {
		return false, nil
	}
	n.state.Slideshow = false
	n.state.SlideInterval = 0
	return true, nil
}

// SetZoom sets the single view zoom, clamped to [MinZoom, MaxZoom].
func (n *Navigator) SetZoom(z float64) (bool, error) {
	if n.state.Level != LevelSingle {
		return false, fmt.Errorf("%w: zoom outside single view", ErrInvalidTransition)
	}
	if math.IsNaN(z) {
		return false, nil
	}
	z = min(max(z, MinZoom), MaxZoom)
	if z == n.state.Zoom {
		return false, nil
	}
	n.state.Zoom = z
	return true, nil
}

// ZoomIn zooms in one step.
func (n *Navigator) ZoomIn() (bool, error) {
	return n.SetZoom(n.state.Zoom + ZoomStep)
}

// ZoomOut zooms out one step.
func (n *Navigator) ZoomOut() (bool, error) {
	return n.SetZoom(n.state.Zoom - ZoomStep)
}

// SetSort changes the album and item order. The open album and item stay
// selected.
func (n *Navigator) SetSort(field SortField, order SortOrder) (bool, error) {
	if field != SortByDate && field != SortByTitle {
		return false, fmt.Errorf("%w: sort field %q", ErrInvalidTransition, field)
	}
	if order != SortAsc && order != SortDesc {
		return false, fmt.Errorf("%w: sort order %q", ErrInvalidTransition, order)
	}
	if n.state.SortField == field && n.state.SortOrder == order {
		return false, nil
	}
	n.state.SortField = field
	n.state.SortOrder = order
	return true, nil
}

func (n *Navigator) stopSingle() {
	n.state.Slideshow = false
	n.state.SlideInterval = 0
	n.state.Zoom = MinZoom
}

func (n *Navigator) currentID() string {
	switch n.state.Level {
	case LevelGalleria:
		return n.state.CategoryID
	case LevelGallery:
		return n.state.GalleryID
	case LevelAlbum:
		return n.state.AlbumID
	default:
		return n.state.ItemID
	}
}

// siblings returns the IDs that Next/Prev cycle through at the current level.
func (n *Navigator) siblings() []string {
	var ids []string
	switch n.state.Level {
	case LevelGalleria:
		for _, c := range n.cat.Categories {
			ids = append(ids, c.ID)
		}
	case LevelGallery:
		if cat, err := n.cat.Category(n.state.CategoryID); err == nil {
			for _, g := range cat.Galleries {
				ids = append(ids, g.ID)
			}
		}
	case LevelAlbum:
		for _, a := range n.albums() {
			ids = append(ids, a.ID)
		}
	case LevelSingle:
		for _, it := range n.items() {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// albums returns the current gallery's albums in sort order.
func (n *Navigator) albums() []catalog.Album {
	g, _, err := n.cat.Gallery(n.state.GalleryID)
	if err != nil {
		return nil
	}
	out := slices.Clone(g.Albums)
	slices.SortStableFunc(out, func(a, b catalog.Album) int {
		return n.compare(a.Title, b.Title, a.Date, b.Date)
	})
	return out
}

// items returns the current album's items in sort order.
func (n *Navigator) items() []catalog.Item {
	a, _, err := n.cat.Album(n.state.AlbumID)
	if err != nil {
		return nil
	}
	out := slices.Clone(a.Items)
	slices.SortStableFunc(out, func(a, b catalog.Item) int {
		return n.compare(a.Title, b.Title, a.Date, b.Date)
	})
	return out
}

func (n *Navigator) compare(titleA, titleB string, dateA, dateB time.Time) int {
	var c int
	if n.state.SortField == SortByTitle {
		c = cmp.Compare(strings.ToLower(titleA), strings.ToLower(titleB))
	} else {
		c = dateA.Compare(dateB)
	}
	if n.state.SortOrder == SortDesc {
		return -c
	}
	return c
}

func (n *Navigator) itemIndex(id string) int {
	return slices.IndexFunc(n.items(), func(it catalog.Item) bool { return it.ID == id })
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}
