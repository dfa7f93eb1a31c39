package activities

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/retrieval"
)

// Markers that usually signal a source contradicting or superseding
// another authority on the same point.
var conflictMarkers = regexp.MustCompile(`(?i)\b(revogad[oa]|superad[oa]|cancelad[oa]|n[ãa]o se aplica|entendimento contr[áa]rio|divergência|overruling)\b`)

// RefineEvidence is deterministic: it drops empty excerpts, deduplicates,
// caps to the top scored items, and flags conflicts. No model call, so it
// never fails the pass.
func (a *Activities) RefineEvidence(_ context.Context, in RefineInput) (RefineResult, error) {
	maxItems := in.MaxItems
	if maxItems <= 0 {
		maxItems = a.cfg.Reasoning.TopEvidencePerQuestion
	}
	if maxItems <= 0 {
		maxItems = 8
	}

	seen := make(map[string]bool)
	var kept []retrieval.Evidence
	for _, ev := range in.Evidence {
		excerpt := strings.TrimSpace(ev.Excerpt)
		if excerpt == "" {
			continue
		}
		key := strings.ToLower(excerpt)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, ev)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > maxItems {
		kept = kept[:maxItems]
	}

	var quality float64
	conflicts := false
	for _, ev := range kept {
		quality += ev.Score
		if conflictMarkers.MatchString(ev.Excerpt) {
			conflicts = true
		}
	}
	if len(kept) > 0 {
		quality /= float64(len(kept))
	}

	a.logger.Debug("Refined evidence",
		zap.String("sub_question", in.SubQuestion),
		zap.Int("in", len(in.Evidence)),
		zap.Int("out", len(kept)),
		zap.Bool("conflicts", conflicts),
	)
	return RefineResult{
		SubQuestion:  in.SubQuestion,
		Evidence:     kept,
		QualityScore: clamp01(quality),
		HasConflicts: conflicts,
	}, nil
}
