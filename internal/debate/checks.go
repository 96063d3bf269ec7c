package debate

import (
	"strings"

	"github.com/athenslab/athens/internal/core"
)

// qualityWindow is how many trailing scores feed the degradation check.
const qualityWindow = 4

// consensusPhrases are agreement markers scanned case-insensitively as
// substrings. The list covers the languages debates have shipped in.
var consensusPhrases = []string{
	"i agree with your conclusion",
	"you have convinced me",
	"we have reached consensus",
	"we have reached an agreement",
	"我同意你的结论",
	"你说服了我",
	"我们达成了共识",
	"estoy de acuerdo con tu conclusión",
}

// checkTermination runs the three continuation checks in fixed order:
// content repetition, quality degradation, consensus. The first hit wins;
// checks are mutually exclusive per call.
func (m *Manager) checkTermination() (core.TerminationReason, bool) {
	if m.detectRepetition() {
		return core.ReasonContentRepetition, true
	}
	if m.detectQualityDegradation() {
		return core.ReasonQualityDegradation, true
	}
	if m.detectConsensus() {
		return core.ReasonConsensusReached, true
	}
	return "", false
}

// detectRepetition flags the debate when any two messages in the recent
// window exceed the similarity threshold.
func (m *Manager) detectRepetition() bool {
	window := m.settings.RepetitionWindow * 2
	if m.conv.Len() < window {
		return false
	}
	recent := m.conv.Recent(window)
	for i := 0; i < len(recent)-1; i++ {
		for j := i + 1; j < len(recent); j++ {
			if Similarity(recent[i].Content, recent[j].Content) > m.settings.SimilarityLimit {
				return true
			}
		}
	}
	return false
}

// detectQualityDegradation flags the debate when the trailing quality
// scores' mean falls below the configured floor.
func (m *Manager) detectQualityDegradation() bool {
	trailing := m.metrics.TrailingQuality(qualityWindow)
	return trailing >= 0 && trailing < m.settings.QualityFloor
}

// detectConsensus scans the recent window for an agreement phrase from
// either participant.
func (m *Manager) detectConsensus() bool {
	recent := m.conv.Recent(m.settings.RepetitionWindow)
	for _, msg := range recent {
		if msg.Sender != m.first.Name() && msg.Sender != m.second.Name() {
			continue
		}
		content := strings.ToLower(msg.Content)
		for _, phrase := range consensusPhrases {
			if strings.Contains(content, phrase) {
				return true
			}
		}
	}
	return false
}

// Similarity computes character-set Jaccard similarity between two texts,
// lowercased. Two empty texts are fully similar; one empty text is fully
// dissimilar.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	setA := runeSet(strings.ToLower(a))
	setB := runeSet(strings.ToLower(b))

	intersection := 0
	for r := range setA {
		if setB[r] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func runeSet(s string) map[rune]bool {
	set := make(map[rune]bool)
	for _, r := range s {
		set[r] = true
	}
	return set
}

// quality scores a response: a blend of length-normalized score and the
// lexical-diversity ratio of unique to total tokens.
func (m *Manager) quality(content string) float64 {
	return Quality(content)
}

// Quality is the default response-quality heuristic, pure so tests can
// substitute deterministic inputs.
func Quality(content string) float64 {
	if content == "" {
		return 0.0
	}

	lengthScore := float64(len(content)) / 200
	if lengthScore > 1.0 {
		lengthScore = 1.0
	}

	words := strings.Fields(content)
	diversity := 0.0
	if len(words) > 0 {
		unique := make(map[string]bool, len(words))
		for _, w := range words {
			unique[w] = true
		}
		diversity = float64(len(unique)) / float64(len(words))
	}

	score := lengthScore*0.3 + diversity*0.7
	if score > 1.0 {
		score = 1.0
	}
	return score
}
