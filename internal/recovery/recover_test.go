package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverCleanJSON(t *testing.T) {
	rec, err := Recover(`{"name": "Widget Rental", "opportunity_score": 8}`)
	require.NoError(t, err)
	assert.Equal(t, "Widget Rental", rec["name"])
	assert.Equal(t, 8.0, rec["opportunity_score"])
}

func TestRecoverFencedBlock(t *testing.T) {
	raw := "Here is the analysis you asked for:\n```json\n{\"name\": \"Pet Telehealth\"}\n```\nLet me know if you need more detail."
	rec, err := Recover(raw)
	require.NoError(t, err)
	assert.Equal(t, "Pet Telehealth", rec["name"])
}

func TestRecoverFenceWithoutClosing(t *testing.T) {
	raw := "```json\n{\"name\": \"Solar Audits\", \"industry\": \"Energy\"}"
	rec, err := Recover(raw)
	require.NoError(t, err)
	assert.Equal(t, "Solar Audits", rec["name"])
	assert.Equal(t, "Energy", rec["industry"])
}

func TestRecoverSurroundingProse(t *testing.T) {
	raw := `Sure! {"name": "Bulk Compost"} Hope that helps.`
	rec, err := Recover(raw)
	require.NoError(t, err)
	assert.Equal(t, "Bulk Compost", rec["name"])
}

func TestRecoverControlCharsInStrings(t *testing.T) {
	raw := "{\"description\": \"line one\nline two\tend\"}"
	rec, err := Recover(raw)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\tend", rec["description"])
}

func TestRecoverTruncatedMidString(t *testing.T) {
	raw := `{"name": "Micro SaaS", "pain_points": ["expensive tools", "steep lear`
	rec, err := Recover(raw)
	require.NoError(t, err)
	assert.Equal(t, "Micro SaaS", rec["name"])
	assert.Equal(t, []any{"expensive tools"}, rec["pain_points"])
}

func TestRecoverTruncatedAfterComma(t *testing.T) {
	raw := `{"name": "Ghost Kitchens", "opportunity_score": 7.5,`
	rec, err := Recover(raw)
	require.NoError(t, err)
	assert.Equal(t, "Ghost Kitchens", rec["name"])
	assert.Equal(t, 7.5, rec["opportunity_score"])
}

func TestRecoverTruncatedAfterKey(t *testing.T) {
	raw := `{"name": "Night Markets", "description":`
	rec, err := Recover(raw)
	require.NoError(t, err)
	assert.Equal(t, "Night Markets", rec["name"])
	_, hasDesc := rec["description"]
	assert.False(t, hasDesc, "half-written member must be dropped")
}

func TestRecoverTruncatedPartialLiteral(t *testing.T) {
	raw := `{"name": "Repair Cafes", "is_published": tru`
	rec, err := Recover(raw)
	require.NoError(t, err)
	assert.Equal(t, "Repair Cafes", rec["name"])
}

func TestRecoverTruncatedNestedStructures(t *testing.T) {
	raw := `{"name": "AgTech Sensors", "monetization_ideas": ["hardware sales", "data subscriptions"`
	rec, err := Recover(raw)
	require.NoError(t, err)
	assert.Equal(t, []any{"hardware sales", "data subscriptions"}, rec["monetization_ideas"])
}

func TestRecoverEscapedQuotesSurvive(t *testing.T) {
	raw := `{"one_liner": "The \"Uber\" of lawn care", "industry": "Services"}`
	rec, err := Recover(raw)
	require.NoError(t, err)
	assert.Equal(t, `The "Uber" of lawn care`, rec["one_liner"])
}

func TestRecoverNoStructure(t *testing.T) {
	_, err := Recover("I'm unable to produce a recommendation today.")
	assert.ErrorIs(t, err, ErrNoStructure)
}

func TestRecoverUnrepairable(t *testing.T) {
	_, err := Recover(`{"name": totally not json at all]]]`)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoStructure, "a found-but-unparseable object keeps the parse error")
}

func TestRepairTruncationBalanced(t *testing.T) {
	s := `{"a": 1}`
	assert.Equal(t, s, repairTruncation(s), "balanced input passes through untouched")
}

func TestCutTrailingString(t *testing.T) {
	assert.Equal(t, `{"a": 1, `, cutTrailingString(`{"a": 1, "key"`))
	assert.Equal(t, `x`, cutTrailingString(`x"has \" escape"`))
}

func TestCutPartialLiteral(t *testing.T) {
	got, ok := cutPartialLiteral(`{"a": fal`)
	assert.True(t, ok)
	assert.Equal(t, `{"a": `, got)

	_, ok = cutPartialLiteral(`{"a": false`)
	assert.False(t, ok, "complete literal must survive")

	_, ok = cutPartialLiteral(`{"a": 12`)
	assert.False(t, ok)
}
