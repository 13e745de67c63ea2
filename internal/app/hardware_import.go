package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"review_studio/internal/domain"
)

// HardwareImporter creates Hardware rows for products mentioned in feeds.
type HardwareImporter struct {
	repo domain.HardwareRepository
}

func NewHardwareImporter(r domain.HardwareRepository) *HardwareImporter {
	return &HardwareImporter{repo: r}
}

var headlineCut = regexp.MustCompile(`\s*(:|\||–|—|\s-\s).*$`)
var headlineNoise = regexp.MustCompile(`(?i)\s+(im\s+test|test|review|angekündigt|vorgestellt|offiziell|leak|gerücht)\b.*$`)

// ProductName reduces a news headline to the product it is about.
func ProductName(headline string) string {
	s := headlineCut.ReplaceAllString(strings.TrimSpace(headline), "")
	s = headlineNoise.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

type ImportResult struct {
	Created []domain.Hardware
	Skipped int
	Ignored int
}

// Import creates hardware for every entry whose headline names a known
// manufacturer. Entries resolving to an existing slug are skipped.
func (h *HardwareImporter) Import(ctx context.Context, entries []domain.FeedEntry) (ImportResult, error) {
	var res ImportResult
	seen := map[string]struct{}{}
	for _, e := range entries {
		name := ProductName(e.Title)
		manufacturer, model := ParseManufacturer(name)
		if manufacturer == "" || model == "" {
			res.Ignored++
			continue
		}
		slug := Slugify(manufacturer + " " + model)
		if _, dup := seen[slug]; dup {
			res.Skipped++
			continue
		}
		seen[slug] = struct{}{}

		_, err := h.repo.GetHardwareBySlug(ctx, slug)
		if err == nil {
			res.Skipped++
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return res, fmt.Errorf("lookup %s: %w", slug, err)
		}

		hw := domain.Hardware{
			Name:         name,
			NameEN:       name,
			Slug:         slug,
			Type:         GuessHardwareType(name),
			Manufacturer: manufacturer,
			Model:        model,
			Description:  e.Summary,
		}
		if e.Image != "" {
			hw.Images = []string{e.Image}
		}
		if !e.Published.IsZero() {
			d := e.Published.UTC().Truncate(24 * time.Hour)
			hw.ReleaseDate = &d
		}
		if err := h.repo.CreateHardware(ctx, &hw); err != nil {
			if domain.IsAlreadyExists(err) || errors.Is(err, domain.ErrSlugTaken) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("create %s: %w", slug, err)
		}
		log.Info().Str("slug", slug).Str("manufacturer", manufacturer).Str("type", string(hw.Type)).Msg("hardware created")
		res.Created = append(res.Created, hw)
	}
	return res, nil
}

// HardwareSource turns a hardware row into a review job input.
func HardwareSource(hw domain.Hardware) domain.SourceItem {
	it := domain.SourceItem{
		Name:         strings.TrimSpace(hw.Manufacturer + " " + hw.Model),
		Category:     domain.CategoryHardware,
		Summary:      hw.Description,
		Images:       hw.Images,
		Manufacturer: hw.Manufacturer,
		Model:        hw.Model,
		HardwareType: hw.Type,
		Price:        hw.MSRP,
	}
	if hw.ReleaseDate != nil {
		it.ReleaseDate = hw.ReleaseDate.Format("2006-01-02")
	}
	return it
}
