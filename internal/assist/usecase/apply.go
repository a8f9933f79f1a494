package usecase

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"todo-assist-backend/internal/assist/contract"
	"todo-assist-backend/internal/assist/domain"
	tododomain "todo-assist-backend/internal/todo/domain"
	todorepo "todo-assist-backend/internal/todo/repository"
	"todo-assist-backend/pkg/fuzzy"

	"gorm.io/gorm"
)

// Apply failure codes
const (
	CodeConfirmationRequired = "confirmation_required"
	CodeInvalidPayload       = "invalid_payload"
	CodeNotSupported         = "not_supported_for_apply"
	CodeNotFound             = "not_found"
)

const (
	maxApplyTitleLen = 200
	maxApplySubtasks = 5
)

// ApplyResult is the discriminated outcome of an apply. When OK is false,
// Status, Code and Error describe the expected failure and nothing was written.
type ApplyResult struct {
	OK             bool                 `json:"ok"`
	Status         int                  `json:"status,omitempty"`
	Code           string               `json:"code,omitempty"`
	Error          string               `json:"error,omitempty"`
	Todos          []*tododomain.Todo   `json:"todos,omitempty"`
	UpdatedTodoIDs []string             `json:"updatedTodoIds,omitempty"`
	Undo           []domain.TodoRestore `json:"-"`
}

func applyFailure(status int, code, format string, args ...any) *ApplyResult {
	return &ApplyResult{Status: status, Code: code, Error: fmt.Sprintf(format, args...)}
}

// ApplyService executes the todo mutation a selected suggestion describes
type ApplyService struct {
	db         *gorm.DB
	todos      todorepo.TodoRepository
	projects   todorepo.ProjectRepository
	normalizer *contract.Normalizer
}

// NewApplyService creates an apply service. When db is set, each apply runs
// in one transaction. projects may be nil.
func NewApplyService(db *gorm.DB, todos todorepo.TodoRepository, projects todorepo.ProjectRepository, normalizer *contract.Normalizer) *ApplyService {
	return &ApplyService{
		db:         db,
		todos:      todos,
		projects:   projects,
		normalizer: normalizer,
	}
}

// ApplyGuard brackets the todo writes of an apply inside its transaction.
// Claim runs before the first write and aborts the apply when it errors.
// Record runs after the last write. tx is nil when the service has no db.
type ApplyGuard struct {
	Claim  func(tx *gorm.DB) error
	Record func(tx *gorm.DB, result *ApplyResult) error
}

// todoChange is the pending mutation of one todo
type todoChange struct {
	original *tododomain.Todo
	working  tododomain.Todo
	patch    tododomain.TodoPatch
	subtasks []string
}

func newTodoChange(todo *tododomain.Todo) *todoChange {
	return &todoChange{original: todo, working: *todo}
}

func (c *todoChange) add(p tododomain.TodoPatch) {
	c.patch = c.patch.Merge(p)
	p.ApplyTo(&c.working)
}

// ApplyTodoBound applies one on_create or task_drawer suggestion to todo
func (s *ApplyService) ApplyTodoBound(userID string, selected domain.Suggestion, todo *tododomain.Todo, confirmed bool, guard *ApplyGuard) (*ApplyResult, error) {
	if todo == nil {
		return applyFailure(http.StatusNotFound, CodeNotFound, "todo not found"), nil
	}
	if !confirmed && s.normalizer.RequiresConfirmation(selected) {
		return applyFailure(http.StatusBadRequest, CodeConfirmationRequired, "%s requires confirmation", selected.Type), nil
	}

	change := newTodoChange(todo)
	if failure, err := s.plan(userID, change, selected); failure != nil || err != nil {
		return failure, err
	}
	return s.persist(userID, []*todoChange{change}, guard)
}

// ApplyTodayPlan applies a batch of today_plan suggestions. If any of them
// needs confirmation and confirmed is false, nothing is applied. Suggestions
// without a target todo are skipped.
func (s *ApplyService) ApplyTodayPlan(userID string, suggestions []domain.Suggestion, confirmed bool, guard *ApplyGuard) (*ApplyResult, error) {
	if !confirmed {
		for _, sug := range suggestions {
			if strings.TrimSpace(sug.TargetTodoID()) == "" {
				continue
			}
			if s.normalizer.RequiresConfirmation(sug) {
				return applyFailure(http.StatusBadRequest, CodeConfirmationRequired,
					"suggestion %s (%s) requires confirmation", sug.SuggestionID, sug.Type), nil
			}
		}
	}

	inFlight := map[string]*todoChange{}
	var order []*todoChange
	for _, sug := range suggestions {
		todoID := strings.TrimSpace(sug.TargetTodoID())
		if todoID == "" {
			continue
		}
		change, ok := inFlight[todoID]
		if !ok {
			todo, err := s.todos.FindByID(userID, todoID)
			if errors.Is(err, tododomain.ErrTodoNotFound) {
				return applyFailure(http.StatusNotFound, CodeNotFound, "todo %s not found", todoID), nil
			}
			if err != nil {
				return nil, err
			}
			change = newTodoChange(todo)
			inFlight[todoID] = change
			order = append(order, change)
		}
		if failure, err := s.plan(userID, change, sug); failure != nil || err != nil {
			return failure, err
		}
	}
	return s.persist(userID, order, guard)
}

// plan validates sug and folds its mutation into change without writing
func (s *ApplyService) plan(userID string, change *todoChange, sug domain.Suggestion) (*ApplyResult, error) {
	switch p := sug.Payload.(type) {
	case *domain.RewriteTitlePayload:
		title := strings.TrimSpace(p.Title)
		if title == "" || utf8.RuneCountInString(title) > maxApplyTitleLen {
			return applyFailure(http.StatusBadRequest, CodeInvalidPayload, "title must be 1-%d characters", maxApplyTitleLen), nil
		}
		change.add(tododomain.TodoPatch{Title: &title})

	case *domain.SetDueDatePayload:
		due, err := p.DueDate()
		if err != nil {
			return applyFailure(http.StatusBadRequest, CodeInvalidPayload, "invalid due date: %v", err), nil
		}
		change.add(tododomain.TodoPatch{DueDate: &due})

	case *domain.SetPriorityPayload:
		switch p.Priority {
		case domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh:
		default:
			return applyFailure(http.StatusBadRequest, CodeInvalidPayload, "invalid priority %q", p.Priority), nil
		}
		priority := tododomain.Priority(p.Priority)
		change.add(tododomain.TodoPatch{Priority: &priority})

	case *domain.SetCategoryPayload:
		category := strings.TrimSpace(p.Category)
		if category == "" {
			return applyFailure(http.StatusBadRequest, CodeInvalidPayload, "category is required"), nil
		}
		change.add(tododomain.TodoPatch{Category: &category})

	case *domain.SetProjectPayload:
		patch, err := s.resolveProject(userID, p)
		if err != nil {
			return nil, err
		}
		if patch.Empty() {
			return applyFailure(http.StatusBadRequest, CodeInvalidPayload, "project could not be resolved"), nil
		}
		change.add(patch)

	case *domain.NextActionPayload:
		text := strings.TrimSpace(p.ActionText())
		if text == "" {
			return applyFailure(http.StatusBadRequest, CodeInvalidPayload, "next action text is required"), nil
		}
		notes := strings.TrimRight(change.working.Notes, "\n")
		if notes != "" {
			notes += "\n"
		}
		notes += "Next action: " + text
		change.add(tododomain.TodoPatch{Notes: &notes})

	case *domain.SplitSubtasksPayload:
		if len(p.Subtasks) == 0 || len(p.Subtasks) > maxApplySubtasks {
			return applyFailure(http.StatusBadRequest, CodeInvalidPayload, "split needs 1-%d subtasks", maxApplySubtasks), nil
		}
		titles := make([]string, 0, len(p.Subtasks))
		for _, draft := range orderedDrafts(p.Subtasks) {
			title := strings.TrimSpace(draft.Title)
			if title == "" || utf8.RuneCountInString(title) > maxApplyTitleLen {
				return applyFailure(http.StatusBadRequest, CodeInvalidPayload, "subtask titles must be 1-%d characters", maxApplyTitleLen), nil
			}
			titles = append(titles, title)
		}
		change.subtasks = append(change.subtasks, titles...)

	case *domain.ClarificationPayload, *domain.DeferPayload:
		return applyFailure(http.StatusBadRequest, CodeNotSupported, "%s is not supported for apply", sug.Type), nil

	default:
		return applyFailure(http.StatusBadRequest, CodeInvalidPayload, "unknown suggestion type %q", sug.Type), nil
	}
	return nil, nil
}

// resolveProject turns a set_project payload into a patch. An explicit
// category beats projectName; a matching real project beats both.
func (s *ApplyService) resolveProject(userID string, p *domain.SetProjectPayload) (tododomain.TodoPatch, error) {
	var patch tododomain.TodoPatch
	category := strings.TrimSpace(p.Category)
	if category == "" {
		category = strings.TrimSpace(p.ProjectName)
	}
	if category != "" {
		patch.Category = &category
	}
	if s.projects == nil || (p.ProjectID == "" && p.ProjectName == "") {
		return patch, nil
	}

	projects, err := s.projects.FindAll(userID)
	if err != nil {
		return patch, err
	}
	if project := matchProject(projects, p.ProjectID, p.ProjectName); project != nil {
		id, name := project.ID, project.Name
		patch.ProjectID = &id
		patch.Category = &name
	}
	return patch, nil
}

// matchProject resolves by id, then exact name, then fuzzy name
func matchProject(projects []*tododomain.Project, id, name string) *tododomain.Project {
	if id != "" {
		for _, p := range projects {
			if p.ID == id {
				return p
			}
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	names := make([]string, len(projects))
	for i, p := range projects {
		if strings.EqualFold(p.Name, name) {
			return p
		}
		names[i] = p.Name
	}
	if i := fuzzy.BestMatch(name, names); i >= 0 {
		return projects[i]
	}
	return nil
}

// persist writes every change, in one transaction when a db is configured
func (s *ApplyService) persist(userID string, changes []*todoChange, guard *ApplyGuard) (*ApplyResult, error) {
	result := &ApplyResult{OK: true, Todos: []*tododomain.Todo{}, UpdatedTodoIDs: []string{}, Undo: []domain.TodoRestore{}}
	var missing string

	write := func(todos todorepo.TodoRepository) error {
		for _, c := range changes {
			id := c.original.ID
			if !c.patch.Empty() {
				result.Undo = append(result.Undo, domain.TodoRestore{TodoID: id, Patch: c.patch.Inverse(c.original)})
				if _, err := todos.Update(userID, id, c.patch); err != nil {
					if errors.Is(err, tododomain.ErrTodoNotFound) {
						missing = id
					}
					return err
				}
			}
			for _, title := range c.subtasks {
				if _, err := todos.CreateSubtask(userID, id, title); err != nil {
					if errors.Is(err, tododomain.ErrTodoNotFound) {
						missing = id
					}
					return err
				}
			}
			fresh, err := todos.FindByID(userID, id)
			if err != nil {
				return err
			}
			result.Todos = append(result.Todos, fresh)
			result.UpdatedTodoIDs = append(result.UpdatedTodoIDs, id)
		}
		return nil
	}

	run := func(tx *gorm.DB, todos todorepo.TodoRepository) error {
		if guard != nil && guard.Claim != nil {
			if err := guard.Claim(tx); err != nil {
				return err
			}
		}
		if err := write(todos); err != nil {
			return err
		}
		if guard != nil && guard.Record != nil {
			return guard.Record(tx, result)
		}
		return nil
	}

	var err error
	if s.db != nil {
		err = s.db.Transaction(func(tx *gorm.DB) error {
			return run(tx, s.todos.WithTx(tx))
		})
	} else {
		err = run(nil, s.todos)
	}
	if err != nil {
		if missing != "" {
			return applyFailure(http.StatusNotFound, CodeNotFound, "todo %s not found", missing), nil
		}
		return nil, err
	}
	return result, nil
}

// Restore writes back the field values captured before an apply.
// Todos deleted since are skipped.
func (s *ApplyService) Restore(userID string, restores []domain.TodoRestore) error {
	write := func(todos todorepo.TodoRepository) error {
		for _, r := range restores {
			if _, err := todos.Update(userID, r.TodoID, r.Patch); err != nil {
				if errors.Is(err, tododomain.ErrTodoNotFound) {
					log.Printf("[ApplyService] Restore skipped missing todo %s", r.TodoID)
					continue
				}
				return err
			}
		}
		return nil
	}
	if s.db != nil {
		return s.db.Transaction(func(tx *gorm.DB) error {
			return write(s.todos.WithTx(tx))
		})
	}
	return write(s.todos)
}

func orderedDrafts(drafts []domain.SubtaskDraft) []domain.SubtaskDraft {
	out := append([]domain.SubtaskDraft(nil), drafts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
