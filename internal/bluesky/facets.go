package bluesky

import (
	"strings"

	"mvdan.cc/xurls/v2"
)

const typeLinkFacet = "app.bsky.richtext.facet#link"

var urlPattern = xurls.Strict()

type Facet struct {
	Index    FacetIndex     `json:"index"`
	Features []FacetFeature `json:"features"`
}

// FacetIndex holds UTF-8 byte offsets into the post text.
type FacetIndex struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type FacetFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
}

// linkFacets marks every http(s) URL in text. When the text was truncated a
// URL running into the ellipsis is incomplete and is skipped.
func linkFacets(text string, truncated bool) []Facet {
	cut := -1
	if truncated {
		cut = len(text) - len(ellipsis)
	}

	var facets []Facet

	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		uri := text[loc[0]:loc[1]]

		if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
			continue
		}

		if loc[1] == cut {
			continue
		}

		facets = append(facets, Facet{
			Index: FacetIndex{ByteStart: loc[0], ByteEnd: loc[1]},
			Features: []FacetFeature{{
				Type: typeLinkFacet,
				URI:  uri,
			}},
		})
	}

	return facets
}
