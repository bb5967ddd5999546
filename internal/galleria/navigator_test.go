package galleria

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/onnwee/viewfinder/internal/catalog/catalogtest"
)

// mustChange returns a checker for a (changed, err) pair that fails the test
// unless the command succeeded and changed something.
func mustChange(t *testing.T) func(bool, error) {
	t.Helper()
	return func(changed bool, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !changed {
			t.Fatal("expected navigator to change")
		}
	}
}

// openSingle walks the fixture down to the first item of night-walks.
func openSingle(t *testing.T) *Navigator {
	t.Helper()
	n := New(catalogtest.Catalog())
	mustChange(t)(n.EnterGallery("city"))
	mustChange(t)(n.EnterAlbum("night-walks"))
	mustChange(t)(n.EnterSingle(0))
	return n
}

func TestNew(t *testing.T) {
	n := New(catalogtest.Catalog())

	want := State{
		Level:      LevelGalleria,
		CategoryID: "street",
		Zoom:       1,
		SortField:  SortByDate,
		SortOrder:  SortDesc,
	}
	if diff := cmp.Diff(want, n.State()); diff != "" {
		t.Errorf("initial state mismatch (-want +got):\n%s", diff)
	}
}

func TestNextPrev_WrapAtEveryLevel(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) *Navigator
		next  []string
		prev  string
	}{
		{
			name:  "categories",
			setup: func(t *testing.T) *Navigator { return New(catalogtest.Catalog()) },
			next:  []string{"shorts", "prompts", "street"},
			prev:  "prompts",
		},
		{
			name: "galleries",
			setup: func(t *testing.T) *Navigator {
				n := New(catalogtest.Catalog())
				mustChange(t)(n.EnterGallery("city"))
				return n
			},
			next: []string{"coast", "city"},
			prev: "coast",
		},
		{
			name: "albums",
			setup: func(t *testing.T) *Navigator {
				n := New(catalogtest.Catalog())
				mustChange(t)(n.EnterGallery("city"))
				mustChange(t)(n.EnterAlbum("night-walks"))
				return n
			},
			next: []string{"rooftops", "night-walks"},
			prev: "rooftops",
		},
		{
			name:  "items",
			setup: openSingle,
			next:  []string{"nw-b", "nw-a", "nw-c"},
			prev:  "nw-a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := tt.setup(t)
			for _, want := range tt.next {
				mustChange(t)(n.Next())
				if got := n.currentID(); got != want {
					t.Fatalf("Next: expected %q, got %q", want, got)
				}
			}
			mustChange(t)(n.Prev())
			if got := n.currentID(); got != tt.prev {
				t.Errorf("Prev: expected %q, got %q", tt.prev, got)
			}
		})
	}
}

func TestNext_SingleSiblingIsNoop(t *testing.T) {
	n := New(catalogtest.Catalog())
	mustChange(t)(n.EnterGallery("coast"))
	mustChange(t)(n.EnterAlbum("tides"))
	mustChange(t)(n.EnterSingle(0))

	before := n.State()
	changed, err := n.Next()
	if err != nil || changed {
		t.Errorf("expected no-op, got changed=%v err=%v", changed, err)
	}
	if diff := cmp.Diff(before, n.State()); diff != "" {
		t.Errorf("state changed (-before +after):\n%s", diff)
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		run     func(n *Navigator) (bool, error)
		wantErr error
	}{
		{"album from galleria", func(n *Navigator) (bool, error) { return n.EnterAlbum("night-walks") }, ErrInvalidTransition},
		{"single from galleria", func(n *Navigator) (bool, error) { return n.EnterSingle(0) }, ErrInvalidTransition},
		{"unknown gallery", func(n *Navigator) (bool, error) { return n.EnterGallery("nope") }, ErrNotFound},
		{"unknown category", func(n *Navigator) (bool, error) { return n.SelectCategory("nope") }, ErrNotFound},
		{"slideshow at galleria", func(n *Navigator) (bool, error) { return n.StartSlideshow(time.Second) }, ErrInvalidTransition},
		{"zoom at galleria", func(n *Navigator) (bool, error) { return n.SetZoom(2) }, ErrInvalidTransition},
		{"bad sort field", func(n *Navigator) (bool, error) { return n.SetSort("size", SortAsc) }, ErrInvalidTransition},
		{"bad sort order", func(n *Navigator) (bool, error) { return n.SetSort(SortByTitle, "sideways") }, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(catalogtest.Catalog())
			before := n.State()

			changed, err := tt.run(n)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if changed {
				t.Error("failed command reported a change")
			}
			if diff := cmp.Diff(before, n.State()); diff != "" {
				t.Errorf("state changed (-before +after):\n%s", diff)
			}
		})
	}
}

func TestEnterAlbum_MustBelongToGallery(t *testing.T) {
	n := New(catalogtest.Catalog())
	mustChange(t)(n.EnterGallery("city"))

	if _, err := n.EnterAlbum("tides"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an album of another gallery, got %v", err)
	}
	if n.State().Level != LevelGallery {
		t.Errorf("expected to stay at gallery level, got %s", n.State().Level)
	}
}

func TestEnterSingle_OutOfRange(t *testing.T) {
	n := New(catalogtest.Catalog())
	mustChange(t)(n.EnterGallery("city"))
	mustChange(t)(n.EnterAlbum("night-walks"))

	for _, idx := range []int{-1, 3} {
		if _, err := n.EnterSingle(idx); !errors.Is(err, ErrNotFound) {
			t.Errorf("EnterSingle(%d): expected ErrNotFound, got %v", idx, err)
		}
	}
}

func TestEnterGallery_SelectsParentCategory(t *testing.T) {
	n := New(catalogtest.Catalog())
	mustChange(t)(n.EnterGallery("festival"))

	if n.State().CategoryID != "shorts" {
		t.Errorf("expected category shorts, got %q", n.State().CategoryID)
	}
}

func TestGoBack_PopsOneLevel(t *testing.T) {
	n := openSingle(t)

	levels := []Level{LevelAlbum, LevelGallery, LevelGalleria}
	for _, want := range levels {
		mustChange(t)(n.GoBack())
		if got := n.State().Level; got != want {
			t.Fatalf("expected level %s, got %s", want, got)
		}
	}

	changed, err := n.GoBack()
	if err != nil || changed {
		t.Errorf("GoBack at galleria should be a no-op, got changed=%v err=%v", changed, err)
	}
	st := n.State()
	if st.GalleryID != "" || st.AlbumID != "" || st.ItemID != "" {
		t.Errorf("expected selections below galleria to be cleared, got %+v", st)
	}
	if st.CategoryID != "street" {
		t.Errorf("expected category to survive, got %q", st.CategoryID)
	}
}

func TestSlideshow(t *testing.T) {
	n := openSingle(t)

	mustChange(t)(n.StartSlideshow(0))
	if got := n.State().SlideInterval; got != DefaultSlideInterval {
		t.Errorf("expected default interval, got %v", got)
	}
	if changed, _ := n.StartSlideshow(DefaultSlideInterval); changed {
		t.Error("restarting with the same interval should be a no-op")
	}
	mustChange(t)(n.StartSlideshow(2*time.Second))

	mustChange(t)(n.GoBack())
	if n.State().Slideshow {
		t.Error("leaving single view should stop the slideshow")
	}
	if changed, _ := n.StopSlideshow(); changed {
		t.Error("stopping a stopped slideshow should be a no-op")
	}
}

func TestStartSlideshow_ClampsInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		want     time.Duration
	}{
		{"below floor", time.Millisecond, MinSlideInterval},
		{"at floor", MinSlideInterval, MinSlideInterval},
		{"in range", 2 * time.Second, 2 * time.Second},
		{"above ceiling", 24 * time.Hour, MaxSlideInterval},
		{"zero uses default", 0, DefaultSlideInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := openSingle(t)
			mustChange(t)(n.StartSlideshow(tt.interval))
			if got := n.State().SlideInterval; got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestApply_SlideshowIntervalBounds(t *testing.T) {
	n := openSingle(t)

	mustChange(t)(n.Apply(Command{Op: OpStartSlideshow, IntervalMS: 1}))
	if got := n.State().SlideInterval; got != MinSlideInterval {
		t.Errorf("expected interval clamped to %v, got %v", MinSlideInterval, got)
	}

	before := n.State()
	_, err := n.Apply(Command{Op: OpStartSlideshow, IntervalMS: 9223372036855})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for overflowing interval, got %v", err)
	}
	if diff := cmp.Diff(before, n.State()); diff != "" {
		t.Errorf("rejected command changed state (-before +after):\n%s", diff)
	}
}

func TestZoom(t *testing.T) {
	n := openSingle(t)

	mustChange(t)(n.ZoomIn())
	mustChange(t)(n.ZoomIn())
	if got := n.State().Zoom; got != 2 {
		t.Errorf("expected zoom 2, got %v", got)
	}

	mustChange(t)(n.SetZoom(10))
	if got := n.State().Zoom; got != MaxZoom {
		t.Errorf("expected zoom clamped to %v, got %v", MaxZoom, got)
	}
	if changed, _ := n.ZoomIn(); changed {
		t.Error("zooming past the maximum should be a no-op")
	}

	mustChange(t)(n.Next())
	if got := n.State().Zoom; got != MinZoom {
		t.Errorf("changing item should reset zoom, got %v", got)
	}
	if changed, _ := n.ZoomOut(); changed {
		t.Error("zooming below the minimum should be a no-op")
	}
}

func TestSetSort_KeepsCurrentItem(t *testing.T) {
	n := openSingle(t)
	mustChange(t)(n.Next()) // nw-b, "Alley"

	mustChange(t)(n.SetSort(SortByTitle, SortAsc))
	v := n.View()
	if v.Item == nil || v.Item.ID != "nw-b" {
		t.Fatalf("expected nw-b to stay selected, got %+v", v.Item)
	}
	if v.Position != 0 {
		t.Errorf("expected Alley first in title order, got position %d", v.Position)
	}

	mustChange(t)(n.Next())
	if got := n.currentID(); got != "nw-c" {
		t.Errorf("expected Bridge after Alley, got %q", got)
	}

	if changed, _ := n.SetSort(SortByTitle, SortAsc); changed {
		t.Error("same sort should be a no-op")
	}
}

func TestView(t *testing.T) {
	n := openSingle(t)
	mustChange(t)(n.StartSlideshow(3*time.Second))

	v := n.View()
	wantCrumbs := []Crumb{
		{Level: LevelGalleria, ID: "street", Title: "Street"},
		{Level: LevelGallery, ID: "city", Title: "City"},
		{Level: LevelAlbum, ID: "night-walks", Title: "Night Walks"},
		{Level: LevelSingle, ID: "nw-c", Title: "Bridge"},
	}
	if diff := cmp.Diff(wantCrumbs, v.Breadcrumbs); diff != "" {
		t.Errorf("breadcrumbs mismatch (-want +got):\n%s", diff)
	}
	if v.Count != 3 || v.Position != 0 {
		t.Errorf("expected position 0 of 3, got %d of %d", v.Position, v.Count)
	}
	if v.SlideIntervalMS != 3000 {
		t.Errorf("expected 3000ms interval, got %d", v.SlideIntervalMS)
	}
}

func TestSetCatalog_FallsBackToSurvivingLevel(t *testing.T) {
	n := openSingle(t)

	c := catalogtest.Catalog()
	c.Categories[0].Galleries[0].Albums = c.Categories[0].Galleries[0].Albums[1:]
	n.SetCatalog(c)

	st := n.State()
	if st.Level != LevelGallery || st.GalleryID != "city" {
		t.Errorf("expected to land in gallery city, got %+v", st)
	}
	if st.AlbumID != "" || st.ItemID != "" {
		t.Errorf("expected vanished selections to be cleared, got %+v", st)
	}
}

func TestSetCatalog_KeepsPosition(t *testing.T) {
	n := openSingle(t)
	before := n.State()

	n.SetCatalog(catalogtest.Catalog())
	if diff := cmp.Diff(before, n.State()); diff != "" {
		t.Errorf("position lost across identical reload (-before +after):\n%s", diff)
	}
}

func TestApply(t *testing.T) {
	n := New(catalogtest.Catalog())

	cmds := []string{
		`{"op":"enter_gallery","id":"city"}`,
		`{"op":"enter_album","id":"night-walks"}`,
		`{"op":"enter_single","index":1}`,
		`{"op":"zoom","zoom":2.5}`,
		`{"op":"sort","field":"title","order":"desc"}`,
		`{"op":"start_slideshow","interval_ms":1500}`,
	}
	for _, raw := range cmds {
		cmd, err := DecodeCommand([]byte(raw))
		if err != nil {
			t.Fatalf("DecodeCommand(%s) failed: %v", raw, err)
		}
		mustChange(t)(n.Apply(cmd))
	}

	st := n.State()
	if st.ItemID != "nw-b" || st.Zoom != 2.5 || st.SlideInterval != 1500*time.Millisecond {
		t.Errorf("unexpected state after commands: %+v", st)
	}

	if _, err := n.Apply(Command{Op: "teleport"}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for unknown op, got %v", err)
	}
	if _, err := DecodeCommand([]byte("{")); err == nil {
		t.Error("expected error for malformed command")
	}
}
