package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"review_studio/internal/adapters/observability"
	"review_studio/internal/domain"
	"review_studio/internal/jsonrepair"
)

type LocalizedContent struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Pros    []string `json:"pros"`
	Cons    []string `json:"cons"`
}

// GeneratedReview is the decoded bilingual model answer.
type GeneratedReview struct {
	DE       LocalizedContent `json:"de"`
	EN       LocalizedContent `json:"en"`
	Score    int              `json:"score"`
	Specs    map[string]any   `json:"specs,omitempty"`
	Tier     jsonrepair.Tier  `json:"-"`
	Fallback bool             `json:"fallback,omitempty"`
}

const conciseSuffix = "\n\nWICHTIG: Deine letzte Antwort war zu lang und wurde abgeschnitten. " +
	"Fasse dich kürzer (höchstens 500 Wörter pro Sprache) und gib vollständiges JSON zurück. " +
	"IMPORTANT: be more concise and return complete JSON."

type Generator struct {
	llm domain.Completer
}

func NewGenerator(llm domain.Completer) *Generator { return &Generator{llm: llm} }

// GenerateContent asks the model for a review of itemName and decodes the
// answer. Malformed output that no repair tier can rescue yields an error
// wrapping domain.ErrInvalidOutput and the original parse error. When the
// English body is missing the request is re-issued once with a request
// to be more concise.
func (g *Generator) GenerateContent(ctx context.Context, prompt, itemName string) (GeneratedReview, error) {
	return g.generate(ctx, prompt, itemName, 0)
}

func (g *Generator) generate(ctx context.Context, prompt, itemName string, retry int) (GeneratedReview, error) {
	start := time.Now()
	raw, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		observability.ObserveGeneration("error", time.Since(start))
		return GeneratedReview{}, fmt.Errorf("generate %q: %w", itemName, err)
	}

	obj, tier, err := ParseReviewJSON(raw)
	if err != nil {
		observability.ObserveGeneration("invalid", time.Since(start))
		log.Warn().Err(err).
			Str("item", itemName).
			Int("attempt", retry).
			Str("preview", observability.Preview(raw, 200)).
			Msg("unrepairable model output")
		return GeneratedReview{}, fmt.Errorf("%w: %w", domain.ErrInvalidOutput, err)
	}
	observability.ObserveRepair(tier.String())
	if tier != jsonrepair.TierNone {
		log.Info().Str("item", itemName).Str("repair_tier", tier.String()).Msg("repaired model output")
	}

	rev := decodeReview(obj)
	rev.Tier = tier
	if strings.TrimSpace(rev.EN.Content) == "" {
		if retry < 1 {
			log.Warn().Str("item", itemName).Msg("en.content missing, re-issuing with concise prompt")
			return g.generate(ctx, prompt+conciseSuffix, itemName, retry+1)
		}
		observability.ObserveGeneration("invalid", time.Since(start))
		return GeneratedReview{}, fmt.Errorf("%w: en.content missing for %q", domain.ErrInvalidOutput, itemName)
	}
	observability.ObserveGeneration("ok", time.Since(start))
	return rev, nil
}

// ParseReviewJSON runs the repair pipeline with the review shape check.
func ParseReviewJSON(raw string) (map[string]any, jsonrepair.Tier, error) {
	obj, tier, err := jsonrepair.Parse(raw, jsonrepair.Options{Validate: validReviewShape})
	if err != nil {
		return nil, tier, err
	}
	if !validReviewShape(obj) {
		return nil, tier, errors.New("missing de/en or score")
	}
	return obj, tier, nil
}

// validReviewShape requires de and en objects and either a score or de.content.
func validReviewShape(m map[string]any) bool {
	de, ok := m["de"].(map[string]any)
	if !ok {
		return false
	}
	if _, ok := m["en"].(map[string]any); !ok {
		return false
	}
	if _, ok := m["score"]; ok {
		return true
	}
	s, _ := de["content"].(string)
	return s != ""
}

func decodeReview(m map[string]any) GeneratedReview {
	de, _ := m["de"].(map[string]any)
	en, _ := m["en"].(map[string]any)
	rev := GeneratedReview{
		DE:    decodeLocalized(de),
		EN:    decodeLocalized(en),
		Score: decodeScore(m["score"]),
	}
	if specs, ok := m["specs"].(map[string]any); ok && len(specs) > 0 {
		rev.Specs = specs
	}
	return rev
}

func decodeLocalized(m map[string]any) LocalizedContent {
	if m == nil {
		return LocalizedContent{}
	}
	title, _ := m["title"].(string)
	content, _ := m["content"].(string)
	return LocalizedContent{
		Title:   strings.TrimSpace(title),
		Content: strings.TrimSpace(content),
		Pros:    toStringList(m["pros"]),
		Cons:    toStringList(m["cons"]),
	}
}

// toStringList accepts a JSON array or a newline/bullet separated string.
func toStringList(v any) []string {
	var parts []string
	switch t := v.(type) {
	case []any:
		for _, it := range t {
			if s, ok := it.(string); ok {
				parts = append(parts, s)
			}
		}
	case string:
		parts = strings.Split(t, "\n")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(p), "-*•"))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decodeScore clamps to 0..100. Scores on a ten point scale are scaled up;
// missing or unparseable scores return 0.
func decodeScore(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(t, ",", ".")), 64)
		if err != nil {
			return 0
		}
		f = x
	default:
		return 0
	}
	if f > 0 && f <= 10 {
		f *= 10
	}
	return int(math.Round(math.Max(0, math.Min(100, f))))
}

// FallbackReview is the generic bilingual template used when the model
// output cannot be recovered.
func FallbackReview(item domain.SourceItem) GeneratedReview {
	name := item.Name
	deNoun, enNoun := categoryNouns(item.Category)
	score := 70
	if item.Rating != nil && *item.Rating > 0 {
		score = int(math.Round(*item.Rating))
	}
	summary := strings.TrimSpace(item.Summary)
	deBody := fmt.Sprintf("## %s im Test\n\n![[IMAGE_1]]\n\n%s ist %s. In diesem Test sehen wir genauer hin.", name, name, deNoun)
	enBody := fmt.Sprintf("## %s review\n\n![[IMAGE_1]]\n\n%s is %s we take a closer look at in this review.", name, name, enNoun)
	if summary != "" {
		deBody += "\n\n" + summary
		enBody += "\n\n" + summary
	}
	deBody += "\n\n## Fazit\n\nEin ausführlicher Testbericht folgt in Kürze."
	enBody += "\n\n## Verdict\n\nA detailed review will follow shortly."
	return GeneratedReview{
		DE: LocalizedContent{
			Title:   name + " im Test",
			Content: deBody,
			Pros:    []string{"Solide Gesamtleistung"},
			Cons:    []string{"Noch kein ausführlicher Test"},
		},
		EN: LocalizedContent{
			Title:   name + " review",
			Content: enBody,
			Pros:    []string{"Solid overall performance"},
			Cons:    []string{"No in-depth review yet"},
		},
		Score:    score,
		Fallback: true,
	}
}

func categoryNouns(c domain.Category) (de, en string) {
	switch c {
	case domain.CategoryHardware, domain.CategoryAmazon:
		return "ein Produkt", "a product"
	case domain.CategoryMovie:
		return "ein Film", "a film"
	case domain.CategorySeries:
		return "eine Serie", "a series"
	default:
		return "ein Spiel", "a game"
	}
}
