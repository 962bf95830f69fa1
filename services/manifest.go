package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"wildlife-challenge-service/models"

	"golang.org/x/text/cases"
)

// TextOracle is the AI text-generation backend asked for sighting probabilities.
type TextOracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CatalogSource lists the canonical animal names a manifest must cover.
type CatalogSource interface {
	ListCatalogNames(ctx context.Context) ([]string, error)
}

// ManifestResult is a validated manifest plus the oracle reply it came from.
type ManifestResult struct {
	Entries []models.ManifestEntry
	Raw     string
}

type ManifestGenerator struct {
	Oracle  TextOracle
	Catalog CatalogSource
}

func NewManifestGenerator(oracle TextOracle, catalog CatalogSource) *ManifestGenerator {
	return &ManifestGenerator{Oracle: oracle, Catalog: catalog}
}

// Generate asks the oracle for per-animal probabilities in location and
// returns a manifest with exactly one entry per catalog animal.
func (g *ManifestGenerator) Generate(ctx context.Context, location string) (*ManifestResult, error) {
	names, err := g.Catalog.ListCatalogNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	if len(names) == 0 {
		return nil, ErrEmptyCatalog
	}

	raw, err := g.Oracle.Complete(ctx, BuildManifestPrompt(location, names))
	if err != nil {
		return nil, fmt.Errorf("oracle completion for %q: %w", location, err)
	}

	parsed, err := ParseManifestReply(raw)
	if err != nil {
		return nil, err
	}

	return &ManifestResult{Entries: ValidateManifest(parsed, names), Raw: raw}, nil
}

// BuildManifestPrompt renders the oracle request for one locality.
func BuildManifestPrompt(location string, names []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a wildlife ecologist estimating what people can see around %s.\n\n", location)
	b.WriteString("For EACH animal below, give an integer from 0 to 100: the chance that an average person ")
	b.WriteString("who spends 1-2 hours outdoors in this area sees the animal at least once.\n\n")
	b.WriteString("Calibration:\n")
	b.WriteString("- Most species should be under 30.\n")
	b.WriteString("- Only ubiquitous urban species (pigeons, house sparrows, squirrels) may reach 60-80.\n")
	b.WriteString("- Animals that do not live in this area must be 0.\n\n")
	b.WriteString("Animals:\n")
	for _, n := range names {
		b.WriteString("- ")
		b.WriteString(n)
		b.WriteByte('\n')
	}
	b.WriteString("\nRespond with ONLY a JSON array, no commentary, in this exact shape:\n")
	b.WriteString(`[{"name": "Animal Name", "probability": 42}]`)
	b.WriteByte('\n')
	return b.String()
}

type rawManifestEntry struct {
	Name        string `json:"name"`
	Probability any    `json:"probability"`
}

var (
	codeFenceRe     = regexp.MustCompile("```[a-zA-Z]*")
	trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)
	singleKeyRe     = regexp.MustCompile(`([{,]\s*)'([^']*)'(\s*:)`)
	singleValueRe   = regexp.MustCompile(`(:\s*)'([^']*)'(\s*[,}])`)
	smartQuotes     = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
)

// ParseManifestReply extracts the first JSON array of {name, probability}
// objects from an oracle reply, repairing common formatting slips.
func ParseManifestReply(reply string) ([]rawManifestEntry, error) {
	text := codeFenceRe.ReplaceAllString(reply, "")
	text = smartQuotes.Replace(text)

	var lastErr error
	for start := strings.IndexByte(text, '['); start != -1; {
		candidate, ok := balancedArray(text[start:])
		if !ok {
			break
		}
		entries, err := decodeManifest(candidate)
		if err == nil {
			return entries, nil
		}
		if entries, err = decodeManifest(repairJSON(candidate)); err == nil {
			return entries, nil
		}
		lastErr = err

		next := strings.IndexByte(text[start+1:], '[')
		if next == -1 {
			break
		}
		start += next + 1
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestParse, lastErr)
	}
	return nil, fmt.Errorf("%w: no JSON array in reply", ErrManifestParse)
}

func decodeManifest(s string) ([]rawManifestEntry, error) {
	var entries []rawManifestEntry
	if err := json.Unmarshal([]byte(s), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func repairJSON(s string) string {
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = singleKeyRe.ReplaceAllString(s, `$1"$2"$3`)
	s = singleValueRe.ReplaceAllString(s, `$1"$2"$3`)
	return s
}

// balancedArray returns the prefix of s (starting at '[') up to its matching
// ']', honoring double- and single-quoted strings.
func balancedArray(s string) (string, bool) {
	depth := 0
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '"':
			quote = ch
		case '\'':
			// apostrophes inside bare words ("Cooper's") are not string delimiters
			if i > 0 && isWordByte(s[i-1]) {
				continue
			}
			quote = ch
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// ValidateManifest keeps entries naming a catalog animal (case-insensitive,
// first mention wins), clamps probabilities to whole numbers in [0,100], and
// appends every unmentioned catalog animal with probability 0.
func ValidateManifest(parsed []rawManifestEntry, catalog []string) []models.ManifestEntry {
	canonical := make(map[string]string, len(catalog))
	for _, name := range catalog {
		key := foldName(name)
		if _, dup := canonical[key]; !dup {
			canonical[key] = name
		}
	}

	out := make([]models.ManifestEntry, 0, len(canonical))
	seen := make(map[string]bool, len(canonical))
	for _, e := range parsed {
		key := foldName(e.Name)
		name, ok := canonical[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.ManifestEntry{Name: name, Probability: clampProbability(e.Probability)})
	}

	for _, name := range catalog {
		key := foldName(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.ManifestEntry{Name: name, Probability: 0})
	}
	return out
}

func clampProbability(v any) int {
	var f float64
	switch p := v.(type) {
	case float64:
		f = p
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(p), "%"), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	f = math.Round(f)
	switch {
	case f < 0:
		return 0
	case f > 100:
		return 100
	}
	return int(f)
}

// foldName normalizes an animal name for case-insensitive comparison.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
