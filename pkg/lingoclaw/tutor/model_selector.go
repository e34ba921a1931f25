// Package tutor – model_selector.go maps (tier, intent, depth) to a model.
package tutor

import "fmt"

// ModelLevel is the abstract strength of a model.
type ModelLevel string

const (
	LevelCheap    ModelLevel = "cheap"
	LevelStandard ModelLevel = "standard"
	LevelPremium  ModelLevel = "premium"
)

type selectionKey struct {
	tier        Tier
	educational bool
	detailed    bool
}

// selectionTable is the complete decision table. Every recognized tier has
// all four (educational, detailed) combinations.
var selectionTable = map[selectionKey]ModelLevel{
	{TierFree, false, false}: LevelCheap,
	{TierFree, false, true}:  LevelCheap,
	{TierFree, true, false}:  LevelCheap,
	{TierFree, true, true}:   LevelStandard,

	{TierPro, false, false}: LevelStandard,
	{TierPro, false, true}:  LevelPremium,
	{TierPro, true, false}:  LevelPremium,
	{TierPro, true, true}:   LevelPremium,
}

// ModelSelector resolves model levels to configured model identifiers.
type ModelSelector struct {
	models ModelsConfig
}

// NewModelSelector creates a selector over the configured models.
func NewModelSelector(models ModelsConfig) *ModelSelector {
	return &ModelSelector{models: models}
}

// SelectLevel returns the model level for the request. Empty intent and
// depth count as non-educational and normal.
func SelectLevel(tier Tier, intent Intent, depth Depth) (ModelLevel, error) {
	t, ok := ParseTier(string(tier))
	if !ok {
		return "", notFound("tier %q", tier)
	}
	return selectionTable[selectionKey{t, intent.IsEducational(), depth.IsDetailed()}], nil
}

// SelectModel returns the model identifier for the request.
func (s *ModelSelector) SelectModel(tier Tier, intent Intent, depth Depth) (string, error) {
	level, err := SelectLevel(tier, intent, depth)
	if err != nil {
		return "", err
	}
	return s.Model(level)
}

// Model returns the identifier configured for level.
func (s *ModelSelector) Model(level ModelLevel) (string, error) {
	switch level {
	case LevelCheap:
		return s.models.Cheap, nil
	case LevelStandard:
		return s.models.Standard, nil
	case LevelPremium:
		return s.models.Premium, nil
	default:
		return "", fmt.Errorf("unknown model level %q", level)
	}
}
