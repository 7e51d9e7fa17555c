package gazetteer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/argos-kg/argos/pkg/types"
)

var placeURIPattern = regexp.MustCompile(`/places/(\d+)`)

// PlaceIDFromURI extracts the stable place identifier from a gazetteer
// URI, e.g. "https://pleiades.stoa.org/places/423025" yields "423025".
// Returns "" when the URI carries no identifier.
func PlaceIDFromURI(uri string) string {
	m := placeURIPattern.FindStringSubmatch(uri)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParsePlace maps one raw gazetteer record into a PlaceRecord. The record
// identifier comes from an explicit id field or, failing that, from the
// record's URI; a record with neither yields ID == "".
func ParsePlace(raw map[string]any) types.PlaceRecord {
	var p types.PlaceRecord

	p.URI = stringField(raw, "uri")
	if id, ok := raw["id"]; ok && id != nil {
		p.ID = idString(id)
	}
	if p.ID == "" {
		p.ID = PlaceIDFromURI(p.URI)
	}
	if p.ID == "" {
		return p
	}
	if p.URI == "" {
		p.URI = "https://pleiades.stoa.org/places/" + p.ID
	}

	p.Title = firstString(raw, "title", "name", "label")
	p.Description = stringField(raw, "description")
	p.PlaceTypes = firstStringList(raw, "placeTypes", "placeType", "place_type", "placeTypeURIs")
	p.Subject = stringListField(raw, "subject")
	p.ReviewState = stringField(raw, "review_state")
	p.AltNames, p.Languages = collectNames(raw)

	for _, v := range listField(raw, "connectsWith") {
		if uri, ok := v.(string); ok && uri != "" {
			p.ConnectsWith = append(p.ConnectsWith, uri)
		}
	}

	for _, v := range listField(raw, "connections") {
		c, ok := v.(map[string]any)
		if !ok {
			continue
		}
		p.Connections = append(p.Connections, types.PlaceConnection{
			ConnectsTo:           stringField(c, "connectsTo"),
			ConnectionType:       stringField(c, "connectionType"),
			Title:                stringField(c, "title"),
			AssociationCertainty: stringField(c, "associationCertainty"),
			URI:                  stringField(c, "uri"),
		})
	}

	return p
}

// collectNames gathers alternate names from the record's "names" list
// (attested, romanized, title and name variants, comma-split) plus the
// top-level label/placename fields, deduplicated preserving order, along
// with the distinct languages seen.
func collectNames(raw map[string]any) (altNames, languages []string) {
	var collected []string

	for _, v := range listField(raw, "names") {
		n, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"attested", "romanized", "title", "name"} {
			val := stringField(n, key)
			if val == "" {
				continue
			}
			for _, part := range strings.Split(val, ",") {
				if part = strings.TrimSpace(part); part != "" {
					collected = append(collected, part)
				}
			}
		}
		if lang := stringField(n, "language"); lang != "" && !containsString(languages, lang) {
			languages = append(languages, lang)
		}
	}

	for _, key := range []string{"label", "placename"} {
		if val := strings.TrimSpace(stringField(raw, key)); val != "" {
			collected = append(collected, val)
		}
	}

	seen := make(map[string]struct{}, len(collected))
	for _, name := range collected {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		altNames = append(altNames, name)
	}
	return altNames, languages
}

// idString renders an id value as a stable string; JSON numbers arrive as
// float64 and must not pick up a fractional suffix.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	default:
		return ""
	}
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringField(raw, key); s != "" {
			return s
		}
	}
	return ""
}

func listField(raw map[string]any, key string) []any {
	l, _ := raw[key].([]any)
	return l
}

func stringListField(raw map[string]any, key string) []string {
	var out []string
	for _, v := range listField(raw, key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func firstStringList(raw map[string]any, keys ...string) []string {
	for _, key := range keys {
		if _, ok := raw[key]; ok {
			if l := stringListField(raw, key); l != nil {
				return l
			}
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
