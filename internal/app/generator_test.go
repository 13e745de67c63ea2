package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_studio/internal/app"
	"review_studio/internal/domain"
	"review_studio/internal/jsonrepair"
)

const goodReview = `{"de":{"title":"Elden Ring im Test","content":"## Einleitung\nGroß.","pros":["Welt","Bosse"],"cons":["Technik"]},` +
	`"en":{"title":"Elden Ring review","content":"## Intro\nHuge.","pros":["World"],"cons":["Tech"]},"score":94}`

func TestGenerateContent_WellFormed(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"```json\n" + goodReview + "\n```"}}
	g := app.NewGenerator(llm)

	rev, err := g.GenerateContent(context.Background(), "prompt", "Elden Ring")
	require.NoError(t, err)
	assert.Equal(t, jsonrepair.TierNone, rev.Tier)
	assert.Equal(t, "Elden Ring im Test", rev.DE.Title)
	assert.Equal(t, "## Intro\nHuge.", rev.EN.Content)
	assert.Equal(t, []string{"Welt", "Bosse"}, rev.DE.Pros)
	assert.Equal(t, 94, rev.Score)
	assert.False(t, rev.Fallback)
	assert.Equal(t, 1, llm.calls())
}

func TestGenerateContent_RepairsTruncation(t *testing.T) {
	raw := `{"de":{"title":"A","content":"x"},"en":{"title":"B","content":"y"},"score":80,"specs":{"vram":24`
	g := app.NewGenerator(&fakeCompleter{responses: []string{raw}})

	rev, err := g.GenerateContent(context.Background(), "p", "A")
	require.NoError(t, err)
	assert.Equal(t, jsonrepair.TierBasic, rev.Tier)
	assert.Equal(t, "y", rev.EN.Content)
	assert.Equal(t, map[string]any{"vram": float64(24)}, rev.Specs)
}

func TestGenerateContent_ReissuesOnceWhenEnglishMissing(t *testing.T) {
	truncated := `{"de":{"title":"A","content":"sehr langer Text"},"en":{"title":"B"},"score":70}`
	llm := &fakeCompleter{responses: []string{truncated, goodReview}}
	g := app.NewGenerator(llm)

	rev, err := g.GenerateContent(context.Background(), "base prompt", "A")
	require.NoError(t, err)
	assert.Equal(t, "## Intro\nHuge.", rev.EN.Content)
	require.Equal(t, 2, llm.calls())
	assert.True(t, strings.HasPrefix(llm.prompts[1], "base prompt"))
	assert.Contains(t, llm.prompts[1], "concise")
}

func TestGenerateContent_GivesUpAfterOneReissue(t *testing.T) {
	truncated := `{"de":{"title":"A","content":"x"},"en":{"title":"B"},"score":70}`
	llm := &fakeCompleter{responses: []string{truncated}}
	g := app.NewGenerator(llm)

	_, err := g.GenerateContent(context.Background(), "p", "A")
	assert.ErrorIs(t, err, domain.ErrInvalidOutput)
	assert.Equal(t, 2, llm.calls())
}

func TestGenerateContent_UnrepairableKeepsParseError(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"Sorry, I cannot help with that."}}
	g := app.NewGenerator(llm)

	_, err := g.GenerateContent(context.Background(), "p", "A")
	assert.ErrorIs(t, err, domain.ErrInvalidOutput)
	assert.ErrorIs(t, err, jsonrepair.ErrNoObject)
	assert.Equal(t, 1, llm.calls())
}

func TestGenerateContent_TransportErrorIsNotInvalidOutput(t *testing.T) {
	boom := errors.New("503 from upstream")
	g := app.NewGenerator(&fakeCompleter{err: boom})

	_, err := g.GenerateContent(context.Background(), "p", "A")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrInvalidOutput)
}

func TestGenerateContent_LenientFields(t *testing.T) {
	raw := `{"de":{"title":"T","content":"c","pros":"- schnell\n- leise\n","cons":"• teuer"},"en":{"title":"T","content":"c"},"score":"8,5"}`
	g := app.NewGenerator(&fakeCompleter{responses: []string{raw}})

	rev, err := g.GenerateContent(context.Background(), "p", "T")
	require.NoError(t, err)
	assert.Equal(t, []string{"schnell", "leise"}, rev.DE.Pros)
	assert.Equal(t, []string{"teuer"}, rev.DE.Cons)
	assert.Equal(t, 85, rev.Score)
}

func TestParseReviewJSON_RejectsWrongShape(t *testing.T) {
	_, _, err := app.ParseReviewJSON(`{"title":"x","content":"y"}`)
	assert.Error(t, err)

	obj, _, err := app.ParseReviewJSON(`{"de":{"content":"x"},"en":{}}`)
	require.NoError(t, err)
	assert.Contains(t, obj, "de")
}

func TestFallbackReview(t *testing.T) {
	r := 87.4
	rev := app.FallbackReview(domain.SourceItem{Name: "Hades II", Category: domain.CategoryGame, Rating: &r, Summary: "Roguelike."})
	assert.True(t, rev.Fallback)
	assert.Equal(t, 87, rev.Score)
	assert.Contains(t, rev.DE.Content, "Hades II")
	assert.Contains(t, rev.EN.Content, "Roguelike.")
	assert.NotEmpty(t, rev.EN.Pros)
}
