package galleria

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/onnwee/viewfinder/internal/catalog"
)

// Crumb is one step of the breadcrumb trail.
type Crumb struct {
	Level Level  `json:"level"`
	ID    string `json:"id"`
	Title string `json:"title"`
}

// View is a render-ready snapshot of the navigator.
type View struct {
	State
	SlideIntervalMS int64         `json:"slide_interval_ms,omitempty"`
	Breadcrumbs     []Crumb       `json:"breadcrumbs"`
	Position        int           `json:"position"`
	Count           int           `json:"count"`
	Item            *catalog.Item `json:"item,omitempty"`
}

// View returns the current snapshot. Position is the zero-based index of the
// current entry among its siblings, -1 when nothing is selected.
func (n *Navigator) View() View {
	v := View{State: n.state, SlideIntervalMS: n.state.SlideInterval.Milliseconds()}
	if cat, err := n.cat.Category(n.state.CategoryID); err == nil {
		v.Breadcrumbs = append(v.Breadcrumbs, Crumb{Level: LevelGalleria, ID: cat.ID, Title: cat.Title})
	}
	if n.state.GalleryID != "" {
		if g, _, err := n.cat.Gallery(n.state.GalleryID); err == nil {
			v.Breadcrumbs = append(v.Breadcrumbs, Crumb{Level: LevelGallery, ID: g.ID, Title: g.Title})
		}
	}
	if n.state.AlbumID != "" {
		if a, _, err := n.cat.Album(n.state.AlbumID); err == nil {
			v.Breadcrumbs = append(v.Breadcrumbs, Crumb{Level: LevelAlbum, ID: a.ID, Title: a.Title})
		}
	}
	if n.state.Level == LevelSingle {
		items := n.items()
		if i := n.itemIndex(n.state.ItemID); i >= 0 {
			it := items[i]
			v.Item = &it
			v.Breadcrumbs = append(v.Breadcrumbs, Crumb{Level: LevelSingle, ID: it.ID, Title: it.Title})
		}
	}

	ids := n.siblings()
	v.Count = len(ids)
	v.Position = slices.Index(ids, n.currentID())
	return v
}

// Command ops accepted by Apply.
const (
	OpSelectCategory = "select_category"
	OpEnterGallery   = "enter_gallery"
	OpEnterAlbum     = "enter_album"
	OpEnterSingle    = "enter_single"
	OpBack           = "back"
	OpNext           = "next"
	OpPrev           = "prev"
	OpStartSlideshow = "start_slideshow"
	OpStopSlideshow  = "stop_slideshow"
	OpZoom           = "zoom"
	OpZoomIn         = "zoom_in"
	OpZoomOut        = "zoom_out"
	OpSort           = "sort"
)

// Command is a navigation request as received over the API.
type Command struct {
	Op         string    `json:"op"`
	ID         string    `json:"id,omitempty"`
	Index      int       `json:"index,omitempty"`
	Zoom       float64   `json:"zoom,omitempty"`
	IntervalMS int       `json:"interval_ms,omitempty"`
	Field      SortField `json:"field,omitempty"`
	Order      SortOrder `json:"order,omitempty"`
}

// DecodeCommand parses a JSON command.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	return cmd, nil
}

// Apply runs cmd against the navigator.
func (n *Navigator) Apply(cmd Command) (bool, error) {
	switch cmd.Op {
	case OpSelectCategory:
		return n.SelectCategory(cmd.ID)
	case OpEnterGallery:
		return n.EnterGallery(cmd.ID)
	case OpEnterAlbum:
		return n.EnterAlbum(cmd.ID)
	case OpEnterSingle:
		return n.EnterSingle(cmd.Index)
	case OpBack:
		return n.GoBack()
	case OpNext:
		return n.Next()
	case OpPrev:
		return n.Prev()
	case OpStartSlideshow:
		if int64(cmd.IntervalMS) > math.MaxInt64/int64(time.Millisecond) {
			return false, fmt.Errorf("%w: slideshow interval %dms out of range", ErrInvalidTransition, cmd.IntervalMS)
		}
		return n.StartSlideshow(time.Duration(cmd.IntervalMS) * time.Millisecond)
	case OpStopSlideshow:
		return n.StopSlideshow()
	case OpZoom:
		return n.SetZoom(cmd.Zoom)
	case OpZoomIn:
		return n.ZoomIn()
	case OpZoomOut:
		return n.ZoomOut()
	case OpSort:
		return n.SetSort(cmd.Field, cmd.Order)
	default:
		return false, fmt.Errorf("%w: unknown op %q", ErrInvalidTransition, cmd.Op)
	}
}
