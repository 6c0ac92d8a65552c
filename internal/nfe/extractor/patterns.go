package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"frota/internal/nfe/models"
)

// platePattern pairs a free-text pattern with the km normalization that goes
// with it. Group 1 is the plate, group 2 the odometer reading.
type platePattern struct {
	name   string
	re     *regexp.Regexp
	cleanK func(string) string
}

// platePatterns are tried in order; the first match wins.
var platePatterns = []platePattern{
	{
		// "Placa: ABC-1234 - KM: 62.876" / "KM: 62.876,5"
		name:   "placa-km",
		re:     regexp.MustCompile(`(?is)placa:\s*([\p{L}\p{N}_-]+).*?km:\s*(\d[\d.]*(?:,\d+)?)`),
		cleanK: normalizeThousands,
	},
	{
		// "PLACA: ABC1234 ODOMETRO: 62876"
		name:   "placa-odometro",
		re:     regexp.MustCompile(`(?is)placa:\s*([\p{L}\p{N}_-]+).*?odometro:\s*(\d+)`),
		cleanK: func(s string) string { return s },
	},
}

// matchPlate returns the plate and km found in free text, or NotAvailable for
// both when no pattern matches.
func matchPlate(text string) (plate, km string) {
	if text == "" {
		return models.NotAvailable, models.NotAvailable
	}
	folded := foldDiacritics(text)
	for _, p := range platePatterns {
		m := p.re.FindStringSubmatch(folded)
		if m == nil {
			continue
		}
		return strings.ToUpper(m[1]), p.cleanK(m[2])
	}
	return models.NotAvailable, models.NotAvailable
}

// normalizeThousands drops "." thousands separators and turns a "," decimal
// separator into ".".
func normalizeThousands(s string) string {
	s = strings.ReplaceAll(s, ".", "")
	return strings.ReplaceAll(s, ",", ".")
}

// foldDiacritics maps "ODÔMETRO" to "ODOMETRO" so accented operator input
// still matches the ASCII patterns.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
