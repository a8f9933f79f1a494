package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"todo-assist-backend/internal/assist/contract"
	"todo-assist-backend/internal/assist/domain"
	"todo-assist-backend/internal/assist/repository"
	tododomain "todo-assist-backend/internal/todo/domain"
	todorepo "todo-assist-backend/internal/todo/repository"
	"todo-assist-backend/pkg/ai"
	"todo-assist-backend/pkg/telemetry"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxGoalLen          = 500
	todayPlanCandidates = 50
	insightsWindowDays  = 7
	insightsTopReasons  = 3
	undoReason          = "undo"
)

// assistUsecase implements AssistUsecase
type assistUsecase struct {
	suggestions repository.SuggestionRepository
	todos       todorepo.TodoRepository
	projects    todorepo.ProjectRepository
	generator   ai.SuggestionGenerator
	fallback    ai.SuggestionGenerator
	quota       *QuotaService
	applier     *ApplyService
	normalizer  *contract.Normalizer
	sink        telemetry.Sink
	now         func() time.Time
}

// NewAssistUsecase creates a new instance of assistUsecase. Output of
// generator that fails the contract is regenerated with the heuristic
// generator.
func NewAssistUsecase(
	suggestions repository.SuggestionRepository,
	todos todorepo.TodoRepository,
	projects todorepo.ProjectRepository,
	generator ai.SuggestionGenerator,
	quota *QuotaService,
	applier *ApplyService,
	normalizer *contract.Normalizer,
	sink telemetry.Sink,
) AssistUsecase {
	if sink == nil {
		sink = telemetry.NewNopSink()
	}
	return &assistUsecase{
		suggestions: suggestions,
		todos:       todos,
		projects:    projects,
		generator:   generator,
		fallback:    ai.NewHeuristicService(),
		quota:       quota,
		applier:     applier,
		normalizer:  normalizer,
		sink:        sink,
		now:         time.Now,
	}
}

func (u *assistUsecase) GenerateTodoBound(ctx context.Context, userID, todoID string, surface domain.Surface) (*GenerateResult, error) {
	if !surface.TodoBound() {
		return nil, fmt.Errorf("%w: %q is not a todo-bound surface", domain.ErrSurfaceMismatch, surface)
	}
	todo, err := u.todos.FindByID(userID, todoID)
	if err != nil {
		return nil, err
	}
	if err := u.checkQuota(userID); err != nil {
		return nil, err
	}

	requestID := uuid.New().String()
	decision, err := u.throttle(userID, surface)
	if err != nil {
		return nil, err
	}
	if decision.Throttled {
		log.Printf("[AssistUsecase] %s throttled on %s (%s)", userID, surface, *decision.Reason)
		return &GenerateResult{Envelope: domain.AbstainEnvelope(requestID, surface), Throttle: decision}, nil
	}

	tc := todoContext(todo)
	req := ai.DecisionAssistRequest{
		RequestID:           requestID,
		Surface:             string(surface),
		Todo:                &tc,
		Projects:            u.projectNames(userID),
		LastRejectionReason: u.lastRejection(userID, domain.RecordTaskCritic),
		Now:                 u.now(),
	}
	env, err := u.generateEnvelope(ctx, req, func(raw any) (*domain.Envelope, error) {
		return u.normalizer.NormalizeTodoBound(raw, todo.ID, surface)
	})
	if err != nil {
		return nil, err
	}

	record, err := u.persist(userID, requestID, domain.RecordTaskCritic, surface, req, env)
	if err != nil {
		return nil, err
	}
	u.emit(ctx, userID, telemetry.Event{
		EventName:       telemetry.EventGenerate,
		Surface:         string(surface),
		SuggestionID:    record.ID,
		TodoID:          todo.ID,
		SuggestionCount: telemetry.Count(len(env.Suggestions)),
	})
	return &GenerateResult{Suggestion: record, Envelope: env, Throttle: decision, Usage: u.usageAfter(userID)}, nil
}

func (u *assistUsecase) GenerateTodayPlan(ctx context.Context, userID string, topN int) (*GenerateResult, error) {
	switch topN {
	case 0:
		topN = 3
	case 3, 5:
	default:
		return nil, fmt.Errorf("%w: topN must be 3 or 5", domain.ErrInvalidRequest)
	}
	if err := u.checkQuota(userID); err != nil {
		return nil, err
	}

	surface := domain.SurfaceTodayPlan
	requestID := uuid.New().String()
	decision, err := u.throttle(userID, surface)
	if err != nil {
		return nil, err
	}
	if decision.Throttled {
		log.Printf("[AssistUsecase] %s throttled on %s (%s)", userID, surface, *decision.Reason)
		return &GenerateResult{Envelope: domain.AbstainEnvelope(requestID, surface), Throttle: decision}, nil
	}

	open, err := u.todos.ListOpen(userID, todayPlanCandidates)
	if err != nil {
		return nil, err
	}
	contexts := make([]ai.TodoContext, 0, len(open))
	for _, t := range open {
		contexts = append(contexts, todoContext(t))
	}

	req := ai.DecisionAssistRequest{
		RequestID:           requestID,
		Surface:             string(surface),
		Todos:               contexts,
		TopN:                topN,
		LastRejectionReason: u.lastRejection(userID, domain.RecordTodayPlan),
		Now:                 u.now(),
	}
	env, err := u.generateEnvelope(ctx, req, u.normalizer.NormalizeTodayPlan)
	if err != nil {
		return nil, err
	}

	record, err := u.persist(userID, requestID, domain.RecordTodayPlan, surface, req, env)
	if err != nil {
		return nil, err
	}
	u.emit(ctx, userID, telemetry.Event{
		EventName:       telemetry.EventGenerate,
		Surface:         string(surface),
		SuggestionID:    record.ID,
		SuggestionCount: telemetry.Count(len(env.Suggestions)),
	})
	return &GenerateResult{Suggestion: record, Envelope: env, Throttle: decision, Usage: u.usageAfter(userID)}, nil
}

func (u *assistUsecase) GeneratePlanFromGoal(ctx context.Context, userID, goal string) (*PlanGenerateResult, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" || utf8.RuneCountInString(goal) > maxGoalLen {
		return nil, fmt.Errorf("%w: goal must be 1-%d characters", domain.ErrInvalidRequest, maxGoalLen)
	}
	if err := u.checkQuota(userID); err != nil {
		return nil, err
	}

	req := ai.PlanRequest{
		Goal:                goal,
		LastRejectionReason: u.lastRejection(userID, domain.RecordPlanFromGoal),
		Now:                 u.now(),
	}

	var plan *domain.GoalPlan
	var lastErr error
	for _, gen := range u.generators() {
		out, err := gen.GeneratePlan(ctx, req)
		if err == nil {
			var raw any
			if raw, err = contract.DecodeRaw(out); err == nil {
				plan, err = contract.ValidatePlan(raw)
			}
		}
		if err == nil {
			break
		}
		log.Printf("[AssistUsecase] %s plan rejected: %v", gen.Name(), err)
		lastErr = err
	}
	if plan == nil {
		return nil, lastErr
	}

	record, err := u.persist(userID, uuid.New().String(), domain.RecordPlanFromGoal, "", req, plan)
	if err != nil {
		return nil, err
	}
	u.emit(ctx, userID, telemetry.Event{
		EventName:       telemetry.EventGenerate,
		SuggestionID:    record.ID,
		SuggestionCount: telemetry.Count(len(plan.Tasks)),
	})
	return &PlanGenerateResult{Suggestion: record, Plan: plan, Usage: u.usageAfter(userID)}, nil
}

func (u *assistUsecase) ListSuggestions(userID string, limit int) ([]*domain.SuggestionRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return u.suggestions.ListRecent(userID, limit)
}

func (u *assistUsecase) GetSuggestion(userID, id string) (*domain.SuggestionRecord, error) {
	return u.suggestions.FindByID(userID, id)
}

func (u *assistUsecase) UpdateStatus(ctx context.Context, userID, id string, req StatusRequest) (*domain.SuggestionRecord, error) {
	record, err := u.suggestions.UpdateStatus(userID, id, req.Status, req.Reason)
	if err != nil {
		return nil, err
	}
	if record.Status == domain.StatusRejected {
		u.emit(ctx, userID, telemetry.Event{
			EventName:    telemetry.EventDismiss,
			Surface:      string(record.Surface),
			SuggestionID: record.ID,
		})
	}
	return record, nil
}

func (u *assistUsecase) Apply(ctx context.Context, userID, id string, req ApplyRequest) (*ApplyResponse, error) {
	record, err := u.suggestions.FindByID(userID, id)
	if err != nil {
		return nil, err
	}
	if record.Status == domain.StatusRejected {
		return nil, domain.ErrAlreadyHandled
	}

	var resp *ApplyResponse
	switch record.Type {
	case domain.RecordPlanFromGoal:
		plan, err := loadPlan(record)
		if err != nil {
			return nil, err
		}
		res, err := u.suggestions.ApplyPlanSuggestionTransaction(userID, id, plan, req.Reason)
		if err != nil {
			return nil, err
		}
		resp = planResponse(res)

	case domain.RecordTaskCritic, domain.RecordTodayPlan:
		if record.Applied() {
			return u.appliedSnapshot(userID, record)
		}
		resp, err = u.applyEnvelope(userID, record, req)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrWrongRecordType, record.Type)
	}

	if !resp.Idempotent {
		u.emit(ctx, userID, telemetry.Event{
			EventName:            telemetry.EventApply,
			Surface:              string(record.Surface),
			SuggestionID:         record.ID,
			SelectedTodoIDsCount: telemetry.Count(len(resp.UpdatedTodoIDs)),
		})
	}
	return resp, nil
}

func (u *assistUsecase) applyEnvelope(userID string, record *domain.SuggestionRecord, req ApplyRequest) (*ApplyResponse, error) {
	env, err := u.loadEnvelope(record)
	if err != nil {
		return nil, err
	}
	selected, err := selectSuggestions(record.Type, env, req)
	if err != nil {
		return nil, err
	}

	guard := &ApplyGuard{
		Claim: func(tx *gorm.DB) error {
			return u.suggestions.WithTx(tx).ClaimApply(userID, record.ID, req.Reason)
		},
		Record: func(tx *gorm.DB, result *ApplyResult) error {
			return u.suggestions.WithTx(tx).RecordApplied(userID, record.ID, result.UpdatedTodoIDs, result.Undo)
		},
	}

	var result *ApplyResult
	if record.Type == domain.RecordTaskCritic {
		var todo *tododomain.Todo
		todo, err = u.todos.FindByID(userID, selected[0].TargetTodoID())
		if err != nil {
			return nil, err
		}
		result, err = u.applier.ApplyTodoBound(userID, selected[0], todo, req.Confirmed, guard)
	} else {
		result, err = u.applier.ApplyTodayPlan(userID, selected, req.Confirmed, guard)
	}
	if errors.Is(err, domain.ErrAlreadyApplied) {
		log.Printf("[AssistUsecase] suggestion %s applied concurrently, returning idempotent result", record.ID)
		latest, err := u.suggestions.FindByID(userID, record.ID)
		if err != nil {
			return nil, err
		}
		return u.appliedSnapshot(userID, latest)
	}
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, &ApplyError{Status: result.Status, Code: result.Code, Message: result.Error}
	}

	updated, err := u.suggestions.FindByID(userID, record.ID)
	if err != nil {
		return nil, err
	}
	return &ApplyResponse{
		OK:             true,
		Todos:          result.Todos,
		UpdatedTodoIDs: result.UpdatedTodoIDs,
		Suggestion:     updated,
	}, nil
}

func (u *assistUsecase) Undo(ctx context.Context, userID, id string) (*domain.SuggestionRecord, error) {
	record, err := u.suggestions.FindByID(userID, id)
	if err != nil {
		return nil, err
	}
	if record.Type == domain.RecordPlanFromGoal {
		return nil, fmt.Errorf("%w: plans cannot be undone", domain.ErrWrongRecordType)
	}
	if record.Status == domain.StatusRejected {
		return nil, domain.ErrAlreadyHandled
	}
	if !record.Applied() {
		return nil, fmt.Errorf("%w: suggestion has not been applied", domain.ErrApplyConflict)
	}

	if err := u.applier.Restore(userID, record.UndoState); err != nil {
		return nil, err
	}
	updated, err := u.suggestions.UpdateStatus(userID, id, domain.StatusRejected, undoReason)
	if err != nil {
		return nil, err
	}
	u.emit(ctx, userID, telemetry.Event{
		EventName:            telemetry.EventUndo,
		Surface:              string(record.Surface),
		SuggestionID:         record.ID,
		SelectedTodoIDsCount: telemetry.Count(len(record.UndoState)),
	})
	return updated, nil
}

func (u *assistUsecase) Usage(userID string) (*domain.Usage, error) {
	return u.quota.GetUsage(userID)
}

func (u *assistUsecase) Insights(userID string) (*Insights, error) {
	usage, err := u.quota.GetUsage(userID)
	if err != nil {
		return nil, err
	}
	records, err := u.suggestions.ListSince(userID, u.now().AddDate(0, 0, -insightsWindowDays))
	if err != nil {
		return nil, err
	}

	in := &Insights{
		Usage:               usage,
		WindowDays:          insightsWindowDays,
		GeneratedCount:      len(records),
		TopRejectionReasons: topReasons(records, insightsTopReasons),
	}
	for _, r := range records {
		switch r.Status {
		case domain.StatusAccepted:
			in.AcceptedCount++
		case domain.StatusRejected:
			in.RejectedCount++
		}
	}

	top := ""
	if len(in.TopRejectionReasons) > 0 {
		top = in.TopRejectionReasons[0].Reason
	}
	in.Recommendation = BuildInsightsRecommendation(InsightsInput{
		Plan:               usage.Plan,
		Remaining:          usage.Remaining,
		Limit:              usage.Limit,
		TopRejectionReason: top,
		GeneratedCount:     in.GeneratedCount,
	})
	return in, nil
}

func (u *assistUsecase) RecordEvent(ctx context.Context, userID string, e telemetry.Event) error {
	if err := telemetry.ValidateClientEvent(e.EventName); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if e.SuggestionID != "" {
		if _, err := u.suggestions.FindByID(userID, e.SuggestionID); err != nil {
			return err
		}
	}
	return u.sink.Emit(ctx, userID, e)
}

// generators returns the configured generator followed by the heuristic
// fallback, without repeating the heuristic
func (u *assistUsecase) generators() []ai.SuggestionGenerator {
	if u.generator == nil || u.generator.Name() == u.fallback.Name() {
		return []ai.SuggestionGenerator{u.fallback}
	}
	return []ai.SuggestionGenerator{u.generator, u.fallback}
}

func (u *assistUsecase) generateEnvelope(ctx context.Context, req ai.DecisionAssistRequest, normalize func(raw any) (*domain.Envelope, error)) (*domain.Envelope, error) {
	var lastErr error
	for _, gen := range u.generators() {
		out, err := gen.GenerateDecisionAssist(ctx, req)
		if err == nil {
			var raw any
			if raw, err = contract.DecodeRaw(out); err == nil {
				var env *domain.Envelope
				if env, err = normalize(raw); err == nil {
					return env, nil
				}
			}
		}
		log.Printf("[AssistUsecase] %s output rejected on %s: %v", gen.Name(), req.Surface, err)
		lastErr = err
	}
	return nil, lastErr
}

func (u *assistUsecase) checkQuota(userID string) error {
	exhausted, err := u.quota.CheckQuota(userID)
	if err != nil {
		return err
	}
	if exhausted != nil {
		return &domain.QuotaExceededError{Usage: *exhausted}
	}
	return nil
}

func (u *assistUsecase) usageAfter(userID string) *domain.Usage {
	usage, err := u.quota.GetUsage(userID)
	if err != nil {
		log.Printf("[AssistUsecase] usage lookup failed for %s: %v", userID, err)
		return nil
	}
	return usage
}

func (u *assistUsecase) throttle(userID string, surface domain.Surface) (domain.ThrottleDecision, error) {
	history, err := u.suggestions.ListRecent(userID, throttleHistoryCap)
	if err != nil {
		return domain.ThrottleDecision{}, err
	}
	return EvaluateThrottle(history, surface, u.now()), nil
}

func (u *assistUsecase) lastRejection(userID string, recordType domain.RecordType) string {
	record, err := u.suggestions.LatestRejected(userID, recordType)
	if err != nil {
		log.Printf("[AssistUsecase] latest rejection lookup failed: %v", err)
		return ""
	}
	if record == nil {
		return ""
	}
	return record.RejectionReason()
}

func (u *assistUsecase) projectNames(userID string) []string {
	if u.projects == nil {
		return nil
	}
	projects, err := u.projects.FindAll(userID)
	if err != nil {
		log.Printf("[AssistUsecase] project lookup failed: %v", err)
		return nil
	}
	names := make([]string, 0, len(projects))
	for _, p := range projects {
		names = append(names, p.Name)
	}
	return names
}

func (u *assistUsecase) persist(userID, id string, recordType domain.RecordType, surface domain.Surface, input, output any) (*domain.SuggestionRecord, error) {
	in, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}
	record := &domain.SuggestionRecord{
		ID:      id,
		UserID:  userID,
		Type:    recordType,
		Surface: surface,
		Input:   datatypes.JSON(in),
		Output:  datatypes.JSON(out),
	}
	if err := u.suggestions.Create(record); err != nil {
		return nil, err
	}
	return record, nil
}

func (u *assistUsecase) emit(ctx context.Context, userID string, e telemetry.Event) {
	if err := u.sink.Emit(ctx, userID, e); err != nil {
		log.Printf("[AssistUsecase] telemetry %s dropped: %v", e.EventName, err)
	}
}

// appliedSnapshot is the idempotent response for an already applied record
func (u *assistUsecase) appliedSnapshot(userID string, record *domain.SuggestionRecord) (*ApplyResponse, error) {
	todos := make([]*tododomain.Todo, 0, len(record.AppliedTodoIDs))
	for _, todoID := range record.AppliedTodoIDs {
		todo, err := u.todos.FindByID(userID, todoID)
		if errors.Is(err, tododomain.ErrTodoNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	ids := record.AppliedTodoIDs
	if ids == nil {
		ids = []string{}
	}
	return &ApplyResponse{
		OK:             true,
		Todos:          todos,
		UpdatedTodoIDs: ids,
		Suggestion:     record,
		Idempotent:     true,
	}, nil
}

// loadEnvelope re-validates the stored output so nothing unvalidated is applied
func (u *assistUsecase) loadEnvelope(record *domain.SuggestionRecord) (*domain.Envelope, error) {
	raw, err := contract.DecodeRaw(record.Output)
	if err != nil {
		return nil, fmt.Errorf("stored suggestion %s: %w", record.ID, err)
	}
	if record.Type == domain.RecordTodayPlan {
		return u.normalizer.NormalizeTodayPlan(raw)
	}
	return contract.Validate(raw)
}

func loadPlan(record *domain.SuggestionRecord) (*domain.GoalPlan, error) {
	raw, err := contract.DecodeRaw(record.Output)
	if err != nil {
		return nil, fmt.Errorf("stored plan %s: %w", record.ID, err)
	}
	return contract.ValidatePlan(raw)
}

func selectSuggestions(recordType domain.RecordType, env *domain.Envelope, req ApplyRequest) ([]domain.Suggestion, error) {
	ids := req.SuggestionIDs
	if req.SuggestionID != "" {
		ids = append([]string{req.SuggestionID}, ids...)
	}

	if recordType == domain.RecordTaskCritic {
		if len(ids) != 1 {
			return nil, fmt.Errorf("%w: select exactly one suggestion", domain.ErrSelectionRequired)
		}
		s, ok := env.FindSuggestion(ids[0])
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrSuggestionNotFound, ids[0])
		}
		if s.TargetTodoID() == "" {
			return nil, fmt.Errorf("%w: suggestion %s has no target todo", domain.ErrInvalidRequest, ids[0])
		}
		return []domain.Suggestion{s}, nil
	}

	if len(ids) == 0 {
		if len(env.Suggestions) == 0 {
			return nil, domain.ErrSelectionRequired
		}
		return env.Suggestions, nil
	}
	selected := make([]domain.Suggestion, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		s, ok := env.FindSuggestion(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrSuggestionNotFound, id)
		}
		selected = append(selected, s)
	}
	return selected, nil
}

func todoContext(t *tododomain.Todo) ai.TodoContext {
	return ai.TodoContext{
		ID:           t.ID,
		Title:        t.Title,
		Notes:        t.Notes,
		DueDate:      t.DueDate,
		Priority:     string(t.Priority),
		Category:     t.Category,
		SubtaskCount: len(t.Subtasks),
	}
}
