package workflows

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/NicholasJacob1990/iudex0-sub007/internal/activities"
)

const (
	defaultMaxRethink      = 2
	defaultMaxSubQuestions = 5
	defaultTopEvidence     = 8
	defaultRetrievalTopK   = 10
	defaultMemoryThreshold = 0.65
	defaultMemoryLimit     = 3
)

// CognitiveWorkflow runs one full reasoning pass as a state machine.
// Steps degrade rather than abort: an activity failure downgrades the
// pass (empty plan, skipped memory, auto-approved verification) and the
// workflow still reaches the done state with a non-empty answer when
// grounded sub-answers exist.
func CognitiveWorkflow(ctx workflow.Context, in PassInput) (PassResult, error) {
	logger := workflow.GetLogger(ctx)
	start := workflow.Now(ctx)
	normalizeInput(&in)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger.Info("Cognitive pass starting",
		"tenant_id", in.TenantID,
		"mode", in.Mode,
		"max_rethink", in.MaxRethink,
	)

	var result PassResult
	result.VerificationStatus = "pending"

	// Routing happens before the state machine proper; its decision is
	// immutable for the rest of the pass.
	var routeOut activities.RouteQueryResult
	if err := workflow.ExecuteActivity(ctx, "RouteQuery", activities.RouteQueryInput{
		Query:         in.Query,
		TenantID:      in.TenantID,
		Mode:          in.Mode,
		GraphHops:     in.GraphHops,
		AllowGraph:    in.AllowGraph,
		AllowArgument: in.AllowArgument,
		RiskLevel:     in.RiskLevel,
	}).Get(ctx, &routeOut); err != nil {
		logger.Warn("Routing failed, continuing with retrieval only", "error", err)
		routeOut.Decision.RagMode = "retrieval_only"
		routeOut.Decision.Reasons = []string{"router_unavailable"}
	}
	result.Decision = routeOut.Decision

	graphHops := 0
	if routeOut.Decision.GraphRAGEnabled {
		graphHops = routeOut.Decision.GraphHops
	}

	var (
		state            = StatePlanning
		plan             activities.PlanResult
		themes           []string
		retrievalQueries []string
		refined          []activities.RefineResult
		subAnswers       []activities.SubAnswer
		verification     activities.VerifyResult
		priorSummary     string
		memoryMatches    int
		rethinkCount     = 0
		evidenceTotal    = 0
		integrated       activities.IntegrateResult
	)

	for state != StateDone {
		switch state {

		case StatePlanning:
			if err := workflow.ExecuteActivity(ctx, "PlanQuery", activities.PlanInput{
				Query:           in.Query,
				TenantID:        in.TenantID,
				MaxSubQuestions: in.MaxSubQuestions,
			}).Get(ctx, &plan); err != nil {
				logger.Warn("Planning failed, treating query as a single question", "error", err)
				plan = activities.PlanResult{SubQuestions: []string{in.Query}}
			}
			if len(plan.SubQuestions) == 0 {
				plan.SubQuestions = []string{in.Query}
			}
			retrievalQueries = plan.SubQuestions
			state = StateThemeActivation

		case StateThemeActivation:
			var themeOut activities.ThemeResult
			if err := workflow.ExecuteActivity(ctx, "ActivateThemes", activities.ThemeInput{
				Query:        in.Query,
				SubQuestions: plan.SubQuestions,
			}).Get(ctx, &themeOut); err != nil {
				logger.Warn("Theme activation failed, retrieving without themes", "error", err)
			}
			themes = themeOut.Themes
			state = StateRetrieval

		case StateRetrieval:
			// One retrieval per query, dispatched concurrently and
			// collected in order so replay stays deterministic.
			futures := make([]workflow.Future, len(retrievalQueries))
			for i, q := range retrievalQueries {
				futures[i] = workflow.ExecuteActivity(ctx, "RetrieveEvidence", activities.RetrieveInput{
					SubQuestion: q,
					Themes:      themes,
					TenantID:    in.TenantID,
					TopK:        in.RetrievalTopK,
					GraphHops:   graphHops,
				})
			}
			retrieved := make([]activities.RetrieveResult, 0, len(retrievalQueries))
			failed := 0
			for i, f := range futures {
				var out activities.RetrieveResult
				if err := f.Get(ctx, &out); err != nil {
					logger.Warn("Retrieval failed for sub-question",
						"sub_question", retrievalQueries[i], "error", err)
					failed++
					retrieved = append(retrieved, activities.RetrieveResult{SubQuestion: retrievalQueries[i]})
					continue
				}
				retrieved = append(retrieved, out)
			}
			if failed == len(retrievalQueries) {
				logger.Warn("All retrieval attempts failed, reasoning without evidence")
			}
			refined = refined[:0]
			for _, r := range retrieved {
				refined = append(refined, activities.RefineResult{
					SubQuestion: r.SubQuestion,
					Evidence:    r.Evidence,
				})
			}
			state = StateEvidenceRefinement

		case StateEvidenceRefinement:
			evidenceTotal = 0
			for i := range refined {
				var out activities.RefineResult
				if err := workflow.ExecuteActivity(ctx, "RefineEvidence", activities.RefineInput{
					SubQuestion: refined[i].SubQuestion,
					Evidence:    refined[i].Evidence,
					MaxItems:    in.TopEvidencePerQuestion,
				}).Get(ctx, &out); err != nil {
					logger.Warn("Evidence refinement failed, using raw evidence",
						"sub_question", refined[i].SubQuestion, "error", err)
					out = refined[i]
				}
				refined[i] = out
				evidenceTotal += len(out.Evidence)
			}
			if rethinkCount == 0 {
				state = StateMemoryCheck
			} else {
				// Rewritten retrieval rounds skip the memory lookup.
				state = StateReasoning
			}

		case StateMemoryCheck:
			if !in.EnableMemory {
				state = StateReasoning
				break
			}
			var memOut activities.MemoryCheckResult
			if err := workflow.ExecuteActivity(ctx, "CheckConsultationMemory", activities.MemoryCheckInput{
				Query:     in.Query,
				TenantID:  in.TenantID,
				Threshold: in.MemoryThreshold,
				Limit:     in.MemoryLimit,
			}).Get(ctx, &memOut); err != nil {
				logger.Warn("Consultation memory lookup failed", "error", err)
			}
			memoryMatches = len(memOut.Matches)
			if memoryMatches > 0 {
				priorSummary = memOut.Matches[0].Entry.AnswerSummary
				logger.Info("Reusing prior consultation",
					"similarity", memOut.Matches[0].Similarity)
			}
			state = StateReasoning

		case StateReasoning:
			subAnswers = subAnswers[:0]
			for _, rf := range refined {
				var ans activities.SubAnswer
				if err := workflow.ExecuteActivity(ctx, "ReasonSubQuestion", activities.ReasonInput{
					SubQuestion:  rf.SubQuestion,
					Evidence:     rf.Evidence,
					QualityScore: rf.QualityScore,
					HasConflicts: rf.HasConflicts,
					PriorSummary: priorSummary,
				}).Get(ctx, &ans); err != nil {
					logger.Warn("Reasoning failed for sub-question",
						"sub_question", rf.SubQuestion, "error", err)
					continue
				}
				subAnswers = append(subAnswers, ans)
			}
			state = StateVerification

		case StateVerification:
			input := activities.VerifyInput{
				Query:      in.Query,
				SubAnswers: subAnswers,
				Enabled:    in.EnableVerification,
			}
			for _, rf := range refined {
				input.Evidence = append(input.Evidence, rf.Evidence...)
			}
			// Policy outcomes (fail-open approve, fail-closed reject)
			// arrive as results; an error here means the activity
			// itself could not run.
			if err := workflow.ExecuteActivity(ctx, "VerifyAnswers", input).Get(ctx, &verification); err != nil {
				logger.Warn("Verification activity unavailable, auto-approving", "error", err)
				verification = activities.VerifyResult{
					Status:     activities.VerificationApproved,
					Confidence: 0.5,
				}
			}
			result.VerificationStatus = verification.Status
			result.UnresolvedIssues = verification.Issues

			if verification.Status != activities.VerificationRejected {
				state = StateIntegration
				break
			}
			if rethinkCount >= in.MaxRethink {
				logger.Info("Rethink budget exhausted, forcing integration",
					"rethink_count", rethinkCount)
				state = StateIntegration
				break
			}
			rethinkCount++
			if verification.RequiresNewSearch && in.EnableHallucinationLoop {
				state = StateRewriting
			} else {
				state = StateReasoning
			}

		case StateRewriting:
			var rw activities.RewriteResult
			if err := workflow.ExecuteActivity(ctx, "RewriteQuery", activities.RewriteInput{
				Query:   in.Query,
				Issues:  verification.Issues,
				Attempt: rethinkCount,
			}).Get(ctx, &rw); err != nil || strings.TrimSpace(rw.RewrittenQuery) == "" {
				logger.Warn("Query rewrite failed, retrying retrieval with original query", "error", err)
				rw.RewrittenQuery = in.Query
			}
			retrievalQueries = []string{rw.RewrittenQuery}
			state = StateRetrieval

		case StateIntegration:
			abstain, reason := shouldAbstain(in, verification, subAnswers)
			if err := workflow.ExecuteActivity(ctx, "IntegrateAnswers", activities.IntegrateInput{
				Query:         in.Query,
				SubAnswers:    subAnswers,
				Abstain:       abstain,
				AbstainReason: reason,
			}).Get(ctx, &integrated); err != nil {
				logger.Warn("Integration failed, concatenating sub-answers", "error", err)
				integrated = fallbackIntegration(subAnswers)
			}
			if strings.TrimSpace(integrated.Response) == "" {
				integrated.Response = fallbackIntegration(subAnswers).Response
			}
			result.Response = integrated.Response
			result.Citations = integrated.Citations
			result.AbstainInfo = integrated.AbstainInfo
			state = StateExplainability

		case StateExplainability:
			result.Explanation = buildExplanation(routeOut.Decision.Reasons, subAnswers,
				verification, rethinkCount, memoryMatches > 0)
			state = StateMemoryStore

		case StateMemoryStore:
			if !in.EnableMemory || result.AbstainInfo != nil || len(subAnswers) == 0 {
				state = StateDone
				break
			}
			evidenceMap := make(map[string][]string, len(refined))
			for _, rf := range refined {
				ids := make([]string, 0, len(rf.Evidence))
				for _, ev := range rf.Evidence {
					ids = append(ids, ev.ID)
				}
				evidenceMap[rf.SubQuestion] = ids
			}
			var stored activities.MemoryStoreResult
			if err := workflow.ExecuteActivity(ctx, "StoreConsultationMemory", activities.MemoryStoreInput{
				Query:         in.Query,
				TenantID:      in.TenantID,
				MindMap:       plan.MindMap,
				SubQuestions:  plan.SubQuestions,
				EvidenceMap:   evidenceMap,
				AnswerSummary: summarize(result.Response),
			}).Get(ctx, &stored); err != nil {
				logger.Warn("Consultation memory store failed", "error", err)
			}
			result.MemoryEntryID = stored.EntryID
			state = StateDone

		default:
			return result, fmt.Errorf("unknown pass state: %s", state)
		}
	}

	result.FinalState = StateDone
	result.Metrics = PassMetrics{
		SubQuestions:  len(plan.SubQuestions),
		EvidenceItems: evidenceTotal,
		RethinkCount:  rethinkCount,
		MemoryMatches: memoryMatches,
	}

	outcome := "completed"
	abstained := result.AbstainInfo != nil
	abstainReason := ""
	if abstained {
		outcome = "abstained"
		abstainReason = result.AbstainInfo.Reason
	}
	if err := workflow.ExecuteActivity(ctx, "RecordPassMetrics", activities.PassMetricsInput{
		TenantID:      in.TenantID,
		Outcome:       outcome,
		RethinkCount:  rethinkCount,
		DurationSecs:  workflow.Now(ctx).Sub(start).Seconds(),
		Abstained:     abstained,
		AbstainReason: abstainReason,
	}).Get(ctx, nil); err != nil {
		logger.Warn("Pass metrics recording failed", "error", err)
	}

	logger.Info("Cognitive pass finished",
		"tenant_id", in.TenantID,
		"rethink_count", rethinkCount,
		"verification_status", result.VerificationStatus,
		"abstained", abstained,
	)
	return result, nil
}

func normalizeInput(in *PassInput) {
	if in.MaxRethink <= 0 {
		in.MaxRethink = defaultMaxRethink
	}
	if in.MaxSubQuestions <= 0 {
		in.MaxSubQuestions = defaultMaxSubQuestions
	}
	if in.TopEvidencePerQuestion <= 0 {
		in.TopEvidencePerQuestion = defaultTopEvidence
	}
	if in.RetrievalTopK <= 0 {
		in.RetrievalTopK = defaultRetrievalTopK
	}
	if in.MemoryThreshold <= 0 {
		in.MemoryThreshold = defaultMemoryThreshold
	}
	if in.MemoryLimit <= 0 {
		in.MemoryLimit = defaultMemoryLimit
	}
}

// shouldAbstain decides whether the integrator runs in abstention mode.
func shouldAbstain(in PassInput, ver activities.VerifyResult, answers []activities.SubAnswer) (bool, string) {
	if !in.EnableAbstention {
		return false, ""
	}
	if ver.Status == activities.VerificationAbstain {
		return true, "verification_abstained"
	}
	if len(answers) == 0 {
		return true, "no_grounded_answers"
	}
	if in.AbstainBelowConfidence > 0 {
		lowest := answers[0].Confidence
		for _, a := range answers[1:] {
			if a.Confidence < lowest {
				lowest = a.Confidence
			}
		}
		if lowest < in.AbstainBelowConfidence {
			return true, "low_confidence"
		}
	}
	return false, ""
}

// fallbackIntegration joins sub-answers when the integrator activity
// itself is unavailable. The final answer is never empty while grounded
// sub-answers exist.
func fallbackIntegration(answers []activities.SubAnswer) activities.IntegrateResult {
	if len(answers) == 0 {
		return activities.IntegrateResult{
			Response: "Não foi possível elaborar uma resposta fundamentada para esta consulta.",
		}
	}
	parts := make([]string, 0, len(answers))
	seen := make(map[string]bool)
	var citations []string
	for _, a := range answers {
		parts = append(parts, a.Answer)
		for _, c := range a.Citations {
			key := strings.ToLower(c)
			if !seen[key] {
				seen[key] = true
				citations = append(citations, c)
			}
		}
	}
	return activities.IntegrateResult{
		Response:  strings.Join(parts, "\n\n"),
		Citations: citations,
	}
}

func buildExplanation(reasons []string, answers []activities.SubAnswer, ver activities.VerifyResult, rethinks int, reusedMemory bool) Explanation {
	ex := Explanation{
		RouterReasons:      reasons,
		Confidences:        make(map[string]float64, len(answers)),
		VerificationStatus: ver.Status,
		VerificationIssues: ver.Issues,
		RethinkCount:       rethinks,
		ReusedMemory:       reusedMemory,
	}
	for _, a := range answers {
		ex.SubQuestions = append(ex.SubQuestions, a.SubQuestion)
		ex.Confidences[a.SubQuestion] = a.Confidence
	}
	return ex
}

// summarize keeps the stored answer summary bounded, cutting on a rune
// boundary so accented text stays valid UTF-8.
func summarize(text string) string {
	const maxLen = 600
	text = strings.TrimSpace(text)
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
