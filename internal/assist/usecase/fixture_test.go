package usecase

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"todo-assist-backend/internal/assist/contract"
	"todo-assist-backend/internal/assist/domain"
	"todo-assist-backend/internal/assist/repository"
	tododomain "todo-assist-backend/internal/todo/domain"
	todorepo "todo-assist-backend/internal/todo/repository"
	"todo-assist-backend/pkg/ai"
	"todo-assist-backend/pkg/database"
	"todo-assist-backend/pkg/telemetry"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type captureSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (s *captureSink) Emit(ctx context.Context, userID string, e telemetry.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *captureSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventName)
	}
	return out
}

// stubGenerator renders a fixed envelope for whatever request it receives
type stubGenerator struct {
	envelope func(req ai.DecisionAssistRequest) any
	plan     json.RawMessage
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) GenerateDecisionAssist(ctx context.Context, req ai.DecisionAssistRequest) (json.RawMessage, error) {
	return json.Marshal(g.envelope(req))
}

func (g *stubGenerator) GeneratePlan(ctx context.Context, req ai.PlanRequest) (json.RawMessage, error) {
	return g.plan, nil
}

type fixture struct {
	db          *gorm.DB
	todos       todorepo.TodoRepository
	projects    todorepo.ProjectRepository
	suggestions repository.SuggestionRepository
	quota       *QuotaService
	normalizer  *contract.Normalizer
	applier     *ApplyService
	sink        *captureSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewSQLiteConnection(filepath.Join(t.TempDir(), "usecase.db"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tododomain.Project{}, &tododomain.Todo{}, &tododomain.Subtask{}, &domain.SuggestionRecord{}))

	todos := todorepo.NewGormTodoRepository(db)
	projects := todorepo.NewCachedProjectRepository(todorepo.NewGormProjectRepository(db), time.Minute)
	suggestions := repository.NewSuggestionRepository(db, todos, projects)
	normalizer := contract.NewNormalizer(time.Now)
	return &fixture{
		db:          db,
		todos:       todos,
		projects:    projects,
		suggestions: suggestions,
		quota:       NewQuotaService(suggestions, nil, nil),
		normalizer:  normalizer,
		applier:     NewApplyService(db, todos, projects, normalizer),
		sink:        &captureSink{},
	}
}

func (f *fixture) usecase(gen ai.SuggestionGenerator) AssistUsecase {
	return NewAssistUsecase(f.suggestions, f.todos, f.projects, gen, f.quota, f.applier, f.normalizer, f.sink)
}

func (f *fixture) todo(t *testing.T, userID string, input tododomain.CreateTodoInput) *tododomain.Todo {
	t.Helper()
	todo, err := f.todos.Create(userID, input)
	require.NoError(t, err)
	return todo
}

func (f *fixture) reload(t *testing.T, userID, id string) *tododomain.Todo {
	t.Helper()
	todo, err := f.todos.FindByID(userID, id)
	require.NoError(t, err)
	return todo
}

func (f *fixture) recordCount(t *testing.T, userID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&domain.SuggestionRecord{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}
