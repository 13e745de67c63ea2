package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"review_studio/internal/domain"
)

// ContentGenerator is satisfied by *Generator.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt, itemName string) (GeneratedReview, error)
}

type ProcessOptions struct {
	Status       domain.ReviewStatus
	SkipExisting bool
}

// ItemResult is the outcome of one ProcessItem call. Skipped results are
// successful; Error is set only when Success is false.
type ItemResult struct {
	Success  bool
	Skipped  bool
	ReviewID int64
	Slug     string
	Title    string
	Warning  string
	Error    error
}

// ProcessorDeps wires the processor. Catalogs, image sources and the object
// store are optional.
type ProcessorDeps struct {
	Reviews         domain.ReviewRepository
	Hardware        domain.HardwareRepository
	Generator       ContentGenerator
	Games           domain.GameCatalog
	Media           domain.MediaCatalog
	ImageSearch     domain.ImageSearcher
	ImageGen        domain.ImageGenerator
	Store           domain.ObjectStore
	ImagesPerReview int
}

type Processor struct {
	d ProcessorDeps
}

func NewProcessor(d ProcessorDeps) *Processor {
	if d.ImagesPerReview <= 0 {
		d.ImagesPerReview = 3
	}
	return &Processor{d: d}
}

const maxSlugAttempts = 5

var placeholderPattern = regexp.MustCompile(`!\[\[IMAGE_(\d+)\]\]`)

// ProcessItem turns one source item into a persisted review.
func (p *Processor) ProcessItem(ctx context.Context, item domain.SourceItem, opts ProcessOptions) ItemResult {
	item.Name = strings.TrimSpace(item.Name)
	if !item.Category.Valid() {
		return failed(fmt.Errorf("%w: %q", domain.ErrInvalidCategory, item.Category))
	}
	if item.Name == "" && item.ExternalID == "" {
		return failed(errors.New("item has neither name nor external id"))
	}
	if !opts.Status.Valid() {
		opts.Status = domain.ReviewDraft
	}

	if opts.SkipExisting {
		existing, found, err := p.findExisting(ctx, item)
		if err != nil {
			return failed(fmt.Errorf("skip check: %w", err))
		}
		if found {
			return ItemResult{Success: true, Skipped: true, ReviewID: existing.ID, Slug: existing.Slug, Title: existing.Title}
		}
	}

	item = p.enrich(ctx, item)
	if item.Name == "" {
		return failed(fmt.Errorf("%w: no catalog entry for id %s", domain.ErrNotFound, item.ExternalID))
	}
	if opts.SkipExisting && item.ExternalID != "" {
		// enrichment may have produced the name an existing review was stored under
		if existing, found, err := p.findExisting(ctx, item); err == nil && found {
			return ItemResult{Success: true, Skipped: true, ReviewID: existing.ID, Slug: existing.Slug, Title: existing.Title}
		}
	}

	candidates := p.imageCandidates(ctx, item)

	var warning string
	gen, err := p.d.Generator.GenerateContent(ctx, BuildPrompt(item, len(candidates)), item.Name)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidOutput) {
			return failed(err)
		}
		log.Warn().Err(err).Str("item", item.Name).Msg("using fallback review template")
		gen = FallbackReview(item)
		warning = "generation output unusable, fallback template used"
	}
	if gen.Score == 0 && item.Rating != nil {
		gen.Score = int(math.Round(*item.Rating))
	}

	base := Slugify(item.Name)
	if base == "" {
		base = Slugify(gen.EN.Title)
	}
	if base == "" {
		base = "review-" + RandomSuffix(5)
	}

	images := p.uploadImages(ctx, base, candidates)

	rv := buildReview(item, gen, images, opts.Status)
	if item.Category == domain.CategoryHardware && p.d.Hardware != nil {
		hw, err := p.ensureHardware(ctx, item, gen, images)
		if err != nil {
			return failed(fmt.Errorf("hardware: %w", err))
		}
		rv.HardwareID = &hw.ID
	}

	if err := p.createWithUniqueSlug(ctx, &rv, base); err != nil {
		return failed(err)
	}
	return ItemResult{Success: true, ReviewID: rv.ID, Slug: rv.Slug, Title: rv.Title, Warning: warning}
}

func failed(err error) ItemResult { return ItemResult{Error: err} }

// findExisting matches by external id and category, then by slug, then by
// normalised title.
func (p *Processor) findExisting(ctx context.Context, item domain.SourceItem) (domain.Review, bool, error) {
	if item.ExternalID != "" {
		r, err := p.d.Reviews.FindByExternalID(ctx, item.Category, item.ExternalID)
		switch {
		case err == nil:
			return r, true, nil
		case !errors.Is(err, domain.ErrNotFound):
			return domain.Review{}, false, err
		}
	}
	if item.Name == "" {
		return domain.Review{}, false, nil
	}
	if slug := Slugify(item.Name); slug != "" {
		r, err := p.d.Reviews.GetReviewBySlug(ctx, slug)
		switch {
		case err == nil && r.Category == item.Category:
			return r, true, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return domain.Review{}, false, err
		}
	}
	r, err := p.d.Reviews.FindByTitle(ctx, item.Category, item.Name)
	switch {
	case err == nil:
		return r, true, nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.Review{}, false, nil
	default:
		return domain.Review{}, false, err
	}
}

// enrich fills missing facts from the catalogs and the product heuristics.
// Catalog errors are logged, the item proceeds with what it has.
func (p *Processor) enrich(ctx context.Context, item domain.SourceItem) domain.SourceItem {
	id, idErr := strconv.ParseInt(item.ExternalID, 10, 64)
	needsLookup := item.ExternalID != "" && idErr == nil && (item.Summary == "" || item.Name == "")

	var payload map[string]any
	var err error
	switch {
	case !needsLookup:
	case item.Category == domain.CategoryGame && p.d.Games != nil:
		payload, err = p.d.Games.GetGame(ctx, id)
		if err == nil {
			item = mergeSource(item, MapGame(payload))
		}
	case item.Category == domain.CategoryMovie && p.d.Media != nil:
		payload, err = p.d.Media.GetMovie(ctx, id)
		if err == nil {
			item = mergeSource(item, MapMedia(domain.CategoryMovie, payload))
		}
	case item.Category == domain.CategorySeries && p.d.Media != nil:
		payload, err = p.d.Media.GetSeries(ctx, id)
		if err == nil {
			item = mergeSource(item, MapMedia(domain.CategorySeries, payload))
		}
	}
	if err != nil {
		log.Warn().Err(err).Str("item", item.Name).Str("external_id", item.ExternalID).Msg("catalog enrichment failed")
	}

	if item.Category == domain.CategoryHardware || item.Category == domain.CategoryAmazon {
		if item.Manufacturer == "" {
			m, model := ParseManufacturer(item.Name)
			item.Manufacturer = m
			if item.Model == "" {
				item.Model = model
			}
		}
		if item.HardwareType == "" {
			item.HardwareType = GuessHardwareType(item.Name)
		}
	}
	return item
}

// mergeSource keeps what the caller supplied and fills the gaps from c.
func mergeSource(in, c domain.SourceItem) domain.SourceItem {
	if in.Name == "" {
		in.Name = c.Name
	}
	if in.Summary == "" {
		in.Summary = c.Summary
	}
	if in.ReleaseDate == "" {
		in.ReleaseDate = c.ReleaseDate
	}
	if len(in.Genres) == 0 {
		in.Genres = c.Genres
	}
	if len(in.Platforms) == 0 {
		in.Platforms = c.Platforms
	}
	if in.Developer == "" {
		in.Developer = c.Developer
	}
	if in.Rating == nil {
		in.Rating = c.Rating
	}
	if len(in.Images) == 0 {
		in.Images = c.Images
	}
	if len(in.Videos) == 0 {
		in.Videos = c.Videos
	}
	if in.URL == "" {
		in.URL = c.URL
	}
	if in.Facts == nil {
		in.Facts = c.Facts
	}
	return in
}

// imageCandidates prefers catalog media, then web search, then a generated image.
func (p *Processor) imageCandidates(ctx context.Context, item domain.SourceItem) []string {
	n := p.d.ImagesPerReview
	out := make([]string, 0, n)
	for _, u := range item.Images {
		if len(out) == n {
			return out
		}
		if u != "" {
			out = append(out, u)
		}
	}
	if len(out) < n && p.d.ImageSearch != nil {
		urls, err := p.d.ImageSearch.SearchImages(ctx, ImageQuery(item), n-len(out))
		if err != nil {
			log.Warn().Err(err).Str("item", item.Name).Msg("image search failed")
		}
		for _, u := range urls {
			if len(out) == n {
				break
			}
			out = append(out, u)
		}
	}
	if len(out) == 0 && p.d.ImageGen != nil {
		u, err := p.d.ImageGen.GenerateImage(ctx, ImagePrompt(item))
		if err != nil {
			log.Warn().Err(err).Str("item", item.Name).Msg("image generation failed")
		} else if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// uploadImages persists candidates through the object store. Failed uploads
// are dropped, so the result may be shorter than the input.
func (p *Processor) uploadImages(ctx context.Context, base string, candidates []string) []string {
	if p.d.Store == nil {
		return candidates
	}
	out := make([]string, 0, len(candidates))
	for i, src := range candidates {
		name := fmt.Sprintf("%s-%d-%d", base, time.Now().Unix(), i+1)
		u, err := p.d.Store.Upload(ctx, src, name)
		if err != nil {
			log.Warn().Err(err).Str("source", truncateURL(src)).Msg("image upload failed")
			continue
		}
		out = append(out, u)
	}
	return out
}

func (p *Processor) ensureHardware(ctx context.Context, item domain.SourceItem, gen GeneratedReview, images []string) (domain.Hardware, error) {
	slug := Slugify(strings.TrimSpace(item.Manufacturer + " " + item.Model))
	if item.Manufacturer == "" || item.Model == "" {
		slug = Slugify(item.Name)
	}
	hw, err := p.d.Hardware.GetHardwareBySlug(ctx, slug)
	if err == nil {
		return hw, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Hardware{}, err
	}
	hw = domain.Hardware{
		Name:         item.Name,
		NameEN:       item.Name,
		Slug:         slug,
		Type:         item.HardwareType,
		Manufacturer: item.Manufacturer,
		Model:        item.Model,
		Description:  item.Summary,
		Images:       images,
		MSRP:         item.Price,
	}
	if hw.Type == "" {
		hw.Type = domain.HardwareOther
	}
	if len(gen.Specs) > 0 {
		hw.SpecsJSON, _ = json.Marshal(gen.Specs)
	}
	if err := p.d.Hardware.CreateHardware(ctx, &hw); err != nil {
		if domain.IsAlreadyExists(err) || errors.Is(err, domain.ErrSlugTaken) {
			return p.d.Hardware.GetHardwareBySlug(ctx, slug)
		}
		return domain.Hardware{}, err
	}
	return hw, nil
}

// createWithUniqueSlug suffixes the slug up front when it is taken and again
// whenever the insert loses a race on the unique index.
func (p *Processor) createWithUniqueSlug(ctx context.Context, rv *domain.Review, base string) error {
	slug, err := p.UniqueSlug(ctx, base)
	if err != nil {
		return err
	}
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		rv.Slug = slug
		err = p.d.Reviews.CreateReview(ctx, rv)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSlugTaken) {
			return err
		}
		log.Debug().Str("slug", slug).Int("attempt", attempt).Msg("slug collision on insert")
		slug = suffixedSlug(base)
	}
	return fmt.Errorf("create review %q: %w", base, err)
}

// UniqueSlug returns base when free, otherwise base with a random suffix.
func (p *Processor) UniqueSlug(ctx context.Context, base string) (string, error) {
	slug := base
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		taken, err := p.d.Reviews.SlugExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("slug check: %w", err)
		}
		if !taken {
			return slug, nil
		}
		slug = suffixedSlug(base)
	}
	return slug, nil
}

func buildReview(item domain.SourceItem, gen GeneratedReview, images []string, status domain.ReviewStatus) domain.Review {
	rv := domain.Review{
		Title:         firstNonEmpty(gen.DE.Title, item.Name),
		TitleEN:       firstNonEmpty(gen.EN.Title, gen.DE.Title, item.Name),
		Category:      item.Category,
		Content:       StripExcessPlaceholders(gen.DE.Content, len(images)),
		ContentEN:     StripExcessPlaceholders(gen.EN.Content, len(images)),
		Score:         gen.Score,
		Pros:          gen.DE.Pros,
		Cons:          gen.DE.Cons,
		ProsEN:        gen.EN.Pros,
		ConsEN:        gen.EN.Cons,
		Images:        images,
		YouTubeVideos: item.Videos,
		Status:        status,
	}
	if item.ExternalID != "" {
		switch item.Category {
		case domain.CategoryGame:
			if id, err := strconv.ParseInt(item.ExternalID, 10, 64); err == nil {
				rv.IGDBID = &id
			}
		case domain.CategoryMovie, domain.CategorySeries:
			if id, err := strconv.ParseInt(item.ExternalID, 10, 64); err == nil {
				rv.TMDBID = &id
			}
		case domain.CategoryAmazon:
			asin := item.ExternalID
			rv.AmazonASIN = &asin
		}
	}
	if len(gen.Specs) > 0 {
		rv.SpecsJSON, _ = json.Marshal(gen.Specs)
	}
	meta := map[string]any{
		"name":         item.Name,
		"release_date": item.ReleaseDate,
		"genres":       item.Genres,
		"platforms":    item.Platforms,
		"developer":    item.Developer,
		"rating":       item.Rating,
		"url":          item.URL,
		"facts":        item.Facts,
		"repair_tier":  gen.Tier.String(),
		"fallback":     gen.Fallback,
	}
	rv.MetadataJSON, _ = json.Marshal(meta)
	return rv
}

// StripExcessPlaceholders removes ![[IMAGE_n]] markers that point past the
// available images.
func StripExcessPlaceholders(content string, images int) string {
	out := placeholderPattern.ReplaceAllStringFunc(content, func(m string) string {
		n, err := strconv.Atoi(placeholderPattern.FindStringSubmatch(m)[1])
		if err != nil || n < 1 || n > images {
			return ""
		}
		return m
	})
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(out)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncateURL(u string) string {
	if strings.HasPrefix(u, "data:") {
		return "data:..."
	}
	if len(u) > 120 {
		return u[:120]
	}
	return u
}
