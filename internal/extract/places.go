package extract

import (
	"regexp"
	"strings"
)

// place pairs a lowercase match key with its canonical display form.
type place struct {
	match     string
	canonical string
}

// builtinPlaces is the fixed gazetteer of known place names, including
// unaccented spellings users type on phone keyboards. Order matters:
// first match wins.
var builtinPlaces = []place{
	{"são caetano", "São Caetano"},
	{"sao caetano", "São Caetano"},
	{"guarulhos", "Guarulhos"},
	{"anália franco", "Anália Franco"},
	{"analia franco", "Anália Franco"},
	{"tatuapé", "Tatuapé"},
	{"tatuape", "Tatuapé"},
	{"são paulo", "São Paulo"},
	{"sao paulo", "São Paulo"},
}

// prepositionRe extracts a capitalized phrase following "em/no/na" when the
// gazetteer has no hit, e.g. "consulta na Vila Mariana".
var prepositionRe = regexp.MustCompile(`(?:^|[^\p{L}])(?:em|no|na)\s+([A-ZÀ-Ú][a-zà-ú]+(?:\s+[A-ZÀ-Ú][a-zà-ú]+)*)`)

// buildGazetteer appends configured extra places to the built-in list.
func buildGazetteer(extra []string) []place {
	places := make([]place, 0, len(builtinPlaces)+len(extra))
	places = append(places, builtinPlaces...)
	for _, name := range extra {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		places = append(places, place{match: strings.ToLower(name), canonical: name})
	}
	return places
}

// extractLocation finds a place name in the text: gazetteer first
// (case-insensitive substring, normalized to the canonical form), then the
// preposition heuristic. Returns "" when nothing matches.
func (e *Extractor) extractLocation(text string) string {
	lower := strings.ToLower(text)
	for _, p := range e.places {
		if strings.Contains(lower, p.match) {
			return p.canonical
		}
	}

	if m := prepositionRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
