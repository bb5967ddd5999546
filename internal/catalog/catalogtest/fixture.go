// Package catalogtest provides a small, fully populated catalog for tests.
package catalogtest

import (
	"time"

	"github.com/onnwee/viewfinder/internal/camera"
	"github.com/onnwee/viewfinder/internal/catalog"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func items(prefix string, titles ...string) []catalog.Item {
	out := make([]catalog.Item, len(titles))
	for i, title := range titles {
		id := prefix + "-" + string(rune('a'+i))
		out[i] = catalog.Item{
			ID:    id,
			Title: title,
			Kind:  catalog.KindImage,
			Key:   "media/" + id + ".jpg",
			Date:  day(i + 1),
		}
	}
	return out
}

// Catalog returns a fresh fixture catalog:
//
//	street (photography)
//	  city: night-walks [3 items], rooftops [2 items]
//	  coast: tides [1 item]
//	shorts (films)
//	  festival: reel [2 items]
//	prompts (ai-art)
//	  dreams: latent [1 item]
//
// plus two characters and a three-frame roll.
func Catalog() *catalog.Catalog {
	return &catalog.Catalog{
		Categories: []catalog.Category{
			{
				ID: "street", Title: "Street", Section: catalog.SectionPhotography,
				Galleries: []catalog.Gallery{
					{
						ID: "city", Title: "City",
						Albums: []catalog.Album{
							{ID: "night-walks", Title: "Night Walks", Date: day(3), Items: items("nw", "Neon", "Alley", "Bridge")},
							{ID: "rooftops", Title: "Rooftops", Date: day(1), Items: items("rt", "Water Tower", "Antenna")},
						},
					},
					{
						ID: "coast", Title: "Coast",
						Albums: []catalog.Album{
							{ID: "tides", Title: "Tides", Date: day(2), Items: items("td", "Low Tide")},
						},
					},
				},
			},
			{
				ID: "shorts", Title: "Shorts", Section: catalog.SectionFilms,
				Galleries: []catalog.Gallery{
					{
						ID: "festival", Title: "Festival",
						Albums: []catalog.Album{
							{ID: "reel", Title: "Reel", Date: day(5), Items: []catalog.Item{
								{ID: "rl-a", Title: "Opening", Kind: catalog.KindVideo, Src: "https://video.example.com/opening.mp4", Date: day(5)},
								{ID: "rl-b", Title: "Credits", Kind: catalog.KindVideo, Src: "https://video.example.com/credits.mp4", Date: day(6)},
							}},
						},
					},
				},
			},
			{
				ID: "prompts", Title: "Prompts", Section: catalog.SectionAIArt,
				Galleries: []catalog.Gallery{
					{
						ID: "dreams", Title: "Dreams",
						Albums: []catalog.Album{
							{ID: "latent", Title: "Latent", Date: day(4), Items: items("lt", "Static")},
						},
					},
				},
			},
		},
		Characters: []catalog.Character{
			{ID: "iris", Name: "Iris", Role: "Archivist", Tags: []string{"lead"}},
			{ID: "moth", Name: "Moth", Role: "Courier"},
		},
		Roll: []camera.Frame{
			{ID: "roll-1", Title: "Contact Sheet 1", Src: "/roll/1.jpg", Lens: camera.LensWide, ISO: 200, Timestamp: day(1)},
			{ID: "roll-2", Title: "Contact Sheet 2", Src: "/roll/2.jpg", Lens: camera.LensTelephoto, ISO: 800, Timestamp: day(2)},
			{ID: "roll-3", Title: "Contact Sheet 3", Src: "/roll/3.jpg", Lens: camera.LensUltraWide, ISO: 100, Timestamp: day(3)},
		},
	}
}
