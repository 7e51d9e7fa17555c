// Package types holds the record shapes exchanged between the ingestion
// pipeline, the graph store, and the external knowledge bases.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChunkRecord is one line of a chunks JSONL file. All chunks of one file
// must share the same ArticleID.
type ChunkRecord struct {
	ArticleID string `json:"articleId"`
	ChunkID   string `json:"chunkId"`
	Seq       int    `json:"seq"`
	Text      string `json:"text"`
}

// ArticleMeta is the metadata record for one article.
type ArticleMeta struct {
	ArticleID string   `json:"articleId"`
	Title     string   `json:"title"`
	Year      *int     `json:"year"`
	Journal   string   `json:"journal"`
	URL       string   `json:"url"`
	Authors   []Author `json:"authors"`
}

// Author is an author entry from article metadata. The source format allows
// either a bare name string or a structured record; both decode into this
// one shape. Order defaults to the 1-based position in the authors list and
// Role to "author" when the source omits them.
type Author struct {
	Name          string   `json:"name"`
	Order         int      `json:"order"`
	Role          string   `json:"role"`
	Corresponding bool     `json:"corresponding"`
	Aliases       []string `json:"aliases,omitempty"`
	ORCID         string   `json:"orcid,omitempty"`
	WikidataID    string   `json:"wikidataId,omitempty"`
	Birth         string   `json:"birth,omitempty"`
	Death         string   `json:"death,omitempty"`
}

// UnmarshalJSON accepts both author shapes: "Alexander Jones" and
// {"name": "Alexander Jones", "order": 1, ...}.
func (a *Author) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*a = Author{Name: name}
		return nil
	}

	type structured Author
	var s structured
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("author entry is neither a string nor an object: %w", err)
	}
	*a = Author(s)
	return nil
}

// Normalize fills defaults for an author at 1-based position idx and reports
// whether the entry is usable (it must carry a non-empty name).
func (a *Author) Normalize(idx int) bool {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return false
	}
	if a.Order == 0 {
		a.Order = idx
	}
	if a.Role == "" {
		a.Role = "author"
	}
	return true
}

// PlaceRecord is one gazetteer place after shape-specific unwrapping.
// Fields beyond the identifier are optional; a record that yields no
// identifier (neither ID nor a URI the ID can be derived from) is skipped.
type PlaceRecord struct {
	ID          string
	URI         string
	Title       string
	Description string
	PlaceTypes  []string
	Subject     []string
	AltNames    []string
	Languages   []string
	ReviewState string

	// ConnectsWith holds bare related-place URIs; Connections holds the
	// richer typed records. Both may be present on one record.
	ConnectsWith []string
	Connections  []PlaceConnection
}

// PlaceConnection is a typed connection from one gazetteer place to another.
type PlaceConnection struct {
	ConnectsTo           string `json:"connectsTo"`
	ConnectionType       string `json:"connectionType"`
	Title                string `json:"title"`
	AssociationCertainty string `json:"associationCertainty"`
	URI                  string `json:"uri"`
}

// Mentions is the result of entity extraction over one chunk's text.
type Mentions struct {
	Persons  []string
	Concepts []string
}

// KBEntity is one external knowledge-base entity resolved during enrichment.
type KBEntity struct {
	QID        string
	Label      string
	InstanceOf string
	Lat        *float64
	Lon        *float64
}
