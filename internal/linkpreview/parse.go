package linkpreview

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/onnwee/viewfinder/internal/validate"
)

// Preview is the metadata shown for an external link.
type Preview struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"siteName,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Type        string `json:"type,omitempty"`
	// Partial is set when the page could not be fetched or parsed and the
	// preview was built from the URL alone.
	Partial bool `json:"partial,omitempty"`
}

const maxTextLen = 500

// Fallback builds a minimal preview from the URL: the hostname becomes the
// title.
func Fallback(u *url.URL) Preview {
	return Preview{
		URL:     u.String(),
		Title:   strings.TrimPrefix(u.Hostname(), "www."),
		Partial: true,
	}
}

// Parse extracts preview metadata from an HTML document. Relative image and
// icon references are resolved against base. OpenGraph values win over
// Twitter card values, which win over plain HTML.
func Parse(r io.Reader, base *url.URL) (Preview, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Preview{}, err
	}

	var (
		meta      = make(map[string]string)
		title     string
		icon      string
		canonical string
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Meta:
				key := strings.ToLower(attr(n, "property"))
				if key == "" {
					key = strings.ToLower(attr(n, "name"))
				}
				if key != "" {
					if _, seen := meta[key]; !seen {
						meta[key] = attr(n, "content")
					}
				}
			case atom.Title:
				if title == "" && n.FirstChild != nil {
					title = n.FirstChild.Data
				}
			case atom.Link:
				rel := strings.ToLower(attr(n, "rel"))
				href := attr(n, "href")
				switch {
				case href == "":
				case rel == "canonical":
					canonical = href
				case icon == "" && strings.Contains(rel, "icon"):
					icon = href
				}
			case atom.Body:
				// Metadata lives in <head>; skip the page content.
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	first := func(keys ...string) string {
		for _, k := range keys {
			if v := validate.CollapseSpace(meta[k]); v != "" {
				return v
			}
		}
		return ""
	}

	p := Preview{
		URL:         base.String(),
		Title:       first("og:title", "twitter:title"),
		Description: truncate(first("og:description", "twitter:description", "description"), maxTextLen),
		Image:       resolve(base, first("og:image", "og:image:url", "twitter:image", "twitter:image:src")),
		SiteName:    first("og:site_name", "application-name"),
		Type:        first("og:type"),
		Icon:        resolve(base, icon),
	}
	if p.Title == "" {
		p.Title = validate.CollapseSpace(title)
	}
	p.Title = truncate(p.Title, maxTextLen)
	if u := resolve(base, first("og:url")); u != "" {
		p.URL = u
	} else if u := resolve(base, canonical); u != "" {
		p.URL = u
	}
	if p.Icon == "" {
		p.Icon = resolve(base, "/favicon.ico")
	}
	if p.Title == "" {
		fb := Fallback(base)
		p.Title = fb.Title
		p.Partial = true
	}
	return p, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// resolve turns ref into an absolute http(s) URL, or "" when it is not one.
func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
