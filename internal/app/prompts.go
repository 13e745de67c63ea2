package app

import (
	"fmt"
	"sort"
	"strings"

	"review_studio/internal/domain"
)

var categoryBriefs = map[domain.Category]string{
	domain.CategoryGame:     "ein Videospiel. Bewerte Gameplay, Grafik, Sound, Umfang und Technik.",
	domain.CategoryHardware: "ein Hardware-Produkt. Bewerte Leistung, Verarbeitung, Lautstärke, Preis-Leistung und Ausstattung.",
	domain.CategoryMovie:    "einen Kinofilm. Bewerte Handlung, Inszenierung, Schauspiel, Musik und Wiederschauwert.",
	domain.CategorySeries:   "eine Serie. Bewerte Handlung, Figuren, Inszenierung, Pacing und Staffelverlauf.",
	domain.CategoryAmazon:   "ein Amazon-Produkt. Bewerte Nutzen, Qualität, Handhabung und Preis-Leistung.",
}

const reviewSchema = `{
  "de": {"title": "...", "content": "Markdown", "pros": ["..."], "cons": ["..."]},
  "en": {"title": "...", "content": "Markdown", "pros": ["..."], "cons": ["..."]},
  "score": 0-100,
  "specs": {"key": "value"}
}`

// BuildPrompt renders the bilingual review prompt for one source item.
// imageCount tells the model how many ![[IMAGE_n]] slots exist.
func BuildPrompt(item domain.SourceItem, imageCount int) string {
	var b strings.Builder
	brief, ok := categoryBriefs[item.Category]
	if !ok {
		brief = categoryBriefs[domain.CategoryGame]
	}
	fmt.Fprintf(&b, "Du bist Redakteur eines deutschen Gaming- und Tech-Magazins. Schreibe einen ausführlichen Testbericht über %q, %s\n\n", item.Name, brief)

	b.WriteString("Bekannte Fakten:\n")
	writeFact(&b, "Beschreibung", item.Summary)
	writeFact(&b, "Erscheinungsdatum", item.ReleaseDate)
	writeFact(&b, "Genres", strings.Join(item.Genres, ", "))
	writeFact(&b, "Plattformen", strings.Join(item.Platforms, ", "))
	writeFact(&b, "Entwickler/Studio", item.Developer)
	writeFact(&b, "Hersteller", item.Manufacturer)
	writeFact(&b, "Modell", item.Model)
	if item.HardwareType != "" {
		writeFact(&b, "Produkttyp", string(item.HardwareType))
	}
	if item.Rating != nil {
		writeFact(&b, "Community-Wertung", fmt.Sprintf("%.0f/100", *item.Rating))
	}
	if item.Price != nil {
		writeFact(&b, "Preis", fmt.Sprintf("%.2f EUR", *item.Price))
	}
	keys := make([]string, 0, len(item.Facts))
	for k := range item.Facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeFact(&b, k, fmt.Sprint(item.Facts[k]))
	}

	b.WriteString("\nAnforderungen:\n")
	b.WriteString("- Deutscher Text in \"de\", englische Übersetzung in \"en\".\n")
	b.WriteString("- Gliedere den Inhalt mit Markdown-Überschriften (##) und schließe mit einem Fazit.\n")
	b.WriteString("- Nenne jeweils 3 bis 5 Pro- und Contra-Punkte.\n")
	b.WriteString("- \"score\" ist eine ganze Zahl von 0 bis 100.\n")
	if item.Category == domain.CategoryHardware {
		b.WriteString("- Fülle \"specs\" mit den wichtigsten technischen Daten.\n")
	}
	if imageCount > 0 {
		fmt.Fprintf(&b, "- Platziere die Bildmarker ![[IMAGE_1]] bis ![[IMAGE_%d]] an passenden Stellen, jeden höchstens einmal.\n", imageCount)
	} else {
		b.WriteString("- Verwende keine Bildmarker.\n")
	}
	b.WriteString("\nAntworte ausschließlich mit einem JSON-Objekt in diesem Format:\n")
	b.WriteString(reviewSchema)
	return b.String()
}

// ImagePrompt describes a header image for the image generation fallback.
func ImagePrompt(item domain.SourceItem) string {
	subject := productSubject(item)
	switch item.Category {
	case domain.CategoryHardware, domain.CategoryAmazon:
		return fmt.Sprintf("Professional product photo of %s on a dark desk, studio lighting, 16:9, no text", subject)
	case domain.CategoryMovie, domain.CategorySeries:
		return fmt.Sprintf("Cinematic key art inspired by %s, dramatic lighting, 16:9, no text, no logos", subject)
	default:
		return fmt.Sprintf("Atmospheric video game key art inspired by %s, 16:9, no text, no logos", subject)
	}
}

// ImageQuery is the web image search query for an item.
func ImageQuery(item domain.SourceItem) string {
	switch item.Category {
	case domain.CategoryHardware, domain.CategoryAmazon:
		return productSubject(item) + " product photo"
	case domain.CategoryMovie:
		return item.Name + " movie still"
	case domain.CategorySeries:
		return item.Name + " tv series still"
	default:
		return item.Name + " gameplay screenshot"
	}
}

// productSubject prefixes the manufacturer unless the name already carries it.
func productSubject(item domain.SourceItem) string {
	if item.Manufacturer != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(item.Manufacturer)) {
		return item.Manufacturer + " " + item.Name
	}
	return item.Name
}

func writeFact(b *strings.Builder, label, value string) {
	if v := strings.TrimSpace(value); v != "" {
		fmt.Fprintf(b, "- %s: %s\n", label, v)
	}
}
