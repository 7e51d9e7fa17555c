package gazetteer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argos-kg/argos/pkg/gazetteer"
)

func TestPlaceIDFromURI(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{"canonical", "https://pleiades.stoa.org/places/423025", "423025"},
		{"with suffix", "https://pleiades.stoa.org/places/423025/json", "423025"},
		{"relative", "/places/579885", "579885"},
		{"no id", "https://pleiades.stoa.org/help", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gazetteer.PlaceIDFromURI(tt.uri))
		})
	}
}

func TestParsePlace(t *testing.T) {
	raw := map[string]any{
		"id":           "423025",
		"uri":          "https://pleiades.stoa.org/places/423025",
		"title":        "Roma",
		"description":  "The capital of the Roman Empire.",
		"placeTypes":   []any{"settlement", "urban"},
		"subject":      []any{"dare:ancient=1"},
		"review_state": "published",
		"names": []any{
			map[string]any{"attested": "Ῥώμη", "romanized": "Rhome, Roma", "language": "grc"},
			map[string]any{"attested": "Roma", "language": "la"},
		},
		"connectsWith": []any{"https://pleiades.stoa.org/places/423012"},
		"connections": []any{
			map[string]any{
				"connectsTo":           "https://pleiades.stoa.org/places/423057",
				"connectionType":       "part_of_physical",
				"title":                "Tiber",
				"associationCertainty": "certain",
			},
		},
	}

	p := gazetteer.ParsePlace(raw)
	assert.Equal(t, "423025", p.ID)
	assert.Equal(t, "https://pleiades.stoa.org/places/423025", p.URI)
	assert.Equal(t, "Roma", p.Title)
	assert.Equal(t, []string{"settlement", "urban"}, p.PlaceTypes)
	assert.Equal(t, "published", p.ReviewState)

	// Comma-split romanizations, order preserved, duplicates collapsed.
	assert.Equal(t, []string{"Ῥώμη", "Rhome", "Roma"}, p.AltNames)
	assert.Equal(t, []string{"grc", "la"}, p.Languages)

	assert.Equal(t, []string{"https://pleiades.stoa.org/places/423012"}, p.ConnectsWith)
	require.Len(t, p.Connections, 1)
	assert.Equal(t, "part_of_physical", p.Connections[0].ConnectionType)
	assert.Equal(t, "Tiber", p.Connections[0].Title)
}

func TestParsePlaceIDFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		wantID  string
		wantURI string
	}{
		{
			name:    "numeric id without fractional suffix",
			raw:     map[string]any{"id": float64(423025)},
			wantID:  "423025",
			wantURI: "https://pleiades.stoa.org/places/423025",
		},
		{
			name:    "id derived from uri",
			raw:     map[string]any{"uri": "https://pleiades.stoa.org/places/579885"},
			wantID:  "579885",
			wantURI: "https://pleiades.stoa.org/places/579885",
		},
		{
			name:   "no id at all",
			raw:    map[string]any{"title": "Atlantis"},
			wantID: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := gazetteer.ParsePlace(tt.raw)
			assert.Equal(t, tt.wantID, p.ID)
			if tt.wantID != "" {
				assert.Equal(t, tt.wantURI, p.URI)
			}
		})
	}
}

func TestParsePlaceAlternateFieldNames(t *testing.T) {
	raw := map[string]any{
		"id":         "77",
		"name":       "Thebai",
		"place_type": []any{"settlement"},
		"label":      "Thebes",
	}

	p := gazetteer.ParsePlace(raw)
	assert.Equal(t, "Thebai", p.Title)
	assert.Equal(t, []string{"settlement"}, p.PlaceTypes)
	assert.Contains(t, p.AltNames, "Thebes")
}
