package activities

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/memory"
)

// CheckConsultationMemory looks up prior passes for the same tenant. A
// lookup failure is logged and treated as a miss; memory is a hint, not
// a dependency.
func (a *Activities) CheckConsultationMemory(ctx context.Context, in MemoryCheckInput) (MemoryCheckResult, error) {
	if a.memStore == nil {
		return MemoryCheckResult{}, nil
	}
	threshold := in.Threshold
	if threshold <= 0 {
		threshold = a.cfg.Memory.SimilarityThreshold
	}
	limit := in.Limit
	if limit <= 0 {
		limit = a.cfg.Memory.MaxResults
	}

	matches, err := a.memStore.FindSimilar(ctx, in.Query, in.TenantID, threshold, limit)
	if err != nil {
		a.logger.Warn("Consultation memory lookup failed",
			zap.String("tenant_id", in.TenantID),
			zap.Error(err),
		)
		return MemoryCheckResult{}, nil
	}
	return MemoryCheckResult{Matches: matches}, nil
}

// StoreConsultationMemory persists the completed pass for reuse and
// archives it durably when an archive is wired.
func (a *Activities) StoreConsultationMemory(ctx context.Context, in MemoryStoreInput) (MemoryStoreResult, error) {
	if a.memStore == nil {
		return MemoryStoreResult{}, nil
	}
	entry := memory.Entry{
		Query:         in.Query,
		TenantID:      in.TenantID,
		MindMap:       in.MindMap,
		SubQuestions:  in.SubQuestions,
		EvidenceMap:   in.EvidenceMap,
		AnswerSummary: in.AnswerSummary,
	}

	id, err := a.memStore.Store(ctx, entry)
	if err != nil {
		a.logger.Warn("Consultation memory store failed",
			zap.String("tenant_id", in.TenantID),
			zap.Error(err),
		)
		return MemoryStoreResult{}, nil
	}

	if a.archive != nil {
		entry.ID = id
		entry.QueryHash = memory.QueryHash(in.Query)
		entry.CreatedAt = time.Now().UTC()
		if err := a.archive.Archive(ctx, entry); err != nil {
			a.logger.Warn("Consultation archive write failed",
				zap.String("entry_id", id),
				zap.Error(err),
			)
		}
	}
	return MemoryStoreResult{EntryID: id}, nil
}
