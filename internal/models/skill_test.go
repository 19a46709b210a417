package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSkill(t *testing.T) {
	for _, s := range AllSkills {
		parsed, err := ParseSkill(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseSkill("segment")
	assert.Error(t, err)
}

func TestDecodeParamsDetectDefaultsAndClamps(t *testing.T) {
	p, err := DecodeParams(SkillDetect, nil)
	require.NoError(t, err)
	d, ok := p.(DetectParams)
	require.True(t, ok)
	assert.Equal(t, 0.5, d.Threshold)

	p, err = DecodeParams(SkillDetect, json.RawMessage(`{"threshold": 2.0, "target": "car"}`))
	require.NoError(t, err)
	d = p.(DetectParams)
	assert.Equal(t, 0.9, d.Threshold)
	assert.Equal(t, "car", d.Target)
}

func TestDecodeParamsPerSkill(t *testing.T) {
	p, err := DecodeParams(SkillPoint, json.RawMessage(`{"query": "the door"}`))
	require.NoError(t, err)
	assert.Equal(t, PointParams{Query: "the door"}, p)

	p, err = DecodeParams(SkillQuery, json.RawMessage(`{"question": "how many?", "detailed": true}`))
	require.NoError(t, err)
	assert.Equal(t, QueryParams{Question: "how many?", Detailed: true}, p)

	p, err = DecodeParams(SkillCaption, json.RawMessage(`{"style": "brief"}`))
	require.NoError(t, err)
	assert.Equal(t, CaptionParams{Style: "brief"}, p)
}

func TestDecodeParamsRejectsGarbage(t *testing.T) {
	_, err := DecodeParams(SkillDetect, json.RawMessage(`"not an object"`))
	assert.Error(t, err)

	_, err = DecodeParams(Skill("segment"), nil)
	assert.Error(t, err)
}

func TestSkillParamsRoundTripTheirSkill(t *testing.T) {
	assert.Equal(t, SkillDetect, DetectParams{}.Skill())
	assert.Equal(t, SkillPoint, PointParams{}.Skill())
	assert.Equal(t, SkillQuery, QueryParams{}.Skill())
	assert.Equal(t, SkillCaption, CaptionParams{}.Skill())
}

func TestExtractConfidencePrecedence(t *testing.T) {
	top := 0.9
	r := &VisionResult{
		Confidence: &top,
		Objects:    []DetectedObject{{Confidence: 0.5}},
	}
	require.NotNil(t, r.ExtractConfidence())
	assert.Equal(t, 0.9, *r.ExtractConfidence())

	r = &VisionResult{Objects: []DetectedObject{{Confidence: 0.5}}}
	assert.Equal(t, 0.5, *r.ExtractConfidence())

	r = &VisionResult{Points: []Point{{Confidence: 0.3}}}
	assert.Equal(t, 0.3, *r.ExtractConfidence())

	assert.Nil(t, (&VisionResult{}).ExtractConfidence())
	assert.Nil(t, (*VisionResult)(nil).ExtractConfidence())
}

func TestTruncatePrompt(t *testing.T) {
	assert.Equal(t, "short", TruncatePrompt("short"))

	long := strings.Repeat("a", 150)
	truncated := TruncatePrompt(long)
	assert.Len(t, truncated, 103)
	assert.True(t, strings.HasSuffix(truncated, "..."))
}

func TestParamsJSONB(t *testing.T) {
	j := ParamsJSONB(DetectParams{Threshold: 0.7, Target: "cat"})
	require.NotNil(t, j)
	assert.Equal(t, "cat", j["target"])

	assert.Nil(t, ParamsJSONB(nil))
}
