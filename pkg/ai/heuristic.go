package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	heuristicModel   = "rules-v1"
	heuristicVersion = "1"
	dateLayout       = "2006-01-02"
)

// categoryKeywords maps title words onto a category suggestion
var categoryKeywords = map[string]string{
	"call":    "communication",
	"email":   "communication",
	"reply":   "communication",
	"buy":     "errands",
	"pick":    "errands",
	"shop":    "errands",
	"pay":     "finance",
	"invoice": "finance",
	"tax":     "finance",
	"fix":     "maintenance",
	"repair":  "maintenance",
	"clean":   "home",
	"meeting": "meetings",
	"review":  "work",
	"write":   "work",
}

// HeuristicService is the deterministic generator used when no model is
// configured or every model failed. Its output always passes the contract.
type HeuristicService struct{}

func NewHeuristicService() *HeuristicService { return &HeuristicService{} }

func (h *HeuristicService) Name() string { return "heuristic:" + heuristicModel }

type suggestion struct {
	Type       string         `json:"type"`
	Confidence float64        `json:"confidence"`
	Rationale  string         `json:"rationale"`
	Payload    map[string]any `json:"payload"`
}

type previewItem struct {
	TodoID          string  `json:"todoId"`
	Rank            int     `json:"rank"`
	TimeEstimateMin float64 `json:"timeEstimateMin"`
	Rationale       string  `json:"rationale"`
}

type envelope struct {
	RequestID   string            `json:"requestId"`
	Surface     string            `json:"surface"`
	MustAbstain bool              `json:"must_abstain"`
	ModelInfo   map[string]string `json:"modelInfo"`
	Suggestions []suggestion      `json:"suggestions"`
	PlanPreview *planPreview      `json:"planPreview,omitempty"`
}

type planPreview struct {
	TopN  int           `json:"topN"`
	Items []previewItem `json:"items"`
}

// GenerateDecisionAssist implements SuggestionGenerator
func (h *HeuristicService) GenerateDecisionAssist(ctx context.Context, req DecisionAssistRequest) (json.RawMessage, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	env := envelope{
		RequestID:   req.RequestID,
		Surface:     req.Surface,
		ModelInfo:   map[string]string{"provider": "heuristic", "model": heuristicModel, "version": heuristicVersion},
		Suggestions: []suggestion{},
	}
	specific := WantsSpecifics(req.LastRejectionReason)

	switch req.Surface {
	case "on_create", "task_drawer":
		if req.Todo == nil || strings.TrimSpace(req.Todo.Title) == "" {
			env.MustAbstain = true
			break
		}
		env.Suggestions = todoSuggestions(*req.Todo, req.Surface == "task_drawer", req.Projects, specific, now)
	case "today_plan":
		preview, suggestions := todayPlan(req.Todos, req.TopN, specific, now)
		env.PlanPreview = preview
		env.Suggestions = suggestions
		if len(preview.Items) == 0 {
			env.MustAbstain = true
		}
	default:
		return nil, fmt.Errorf("unknown surface %q", req.Surface)
	}
	if len(env.Suggestions) == 0 {
		env.MustAbstain = true
	}
	return json.Marshal(env)
}

func todoSuggestions(todo TodoContext, drawer bool, projects []string, specific bool, now time.Time) []suggestion {
	var out []suggestion
	title := strings.TrimSpace(todo.Title)
	words := strings.Fields(title)
	deadline := now.AddDate(0, 0, 3)
	if todo.DueDate != nil {
		deadline = *todo.DueDate
	}

	if specific {
		out = append(out, suggestion{
			Type:       "rewrite_title",
			Confidence: 0.8,
			Rationale:  "Earlier suggestions were too generic; this version names an owner, a metric and a deadline.",
			Payload: map[string]any{"title": truncate(fmt.Sprintf("%s (owner: me, metric: done and checked, deadline: %s)",
				title, deadline.Format(dateLayout)), 200)},
		})
	} else if len(words) < 3 {
		out = append(out, suggestion{
			Type:       "rewrite_title",
			Confidence: 0.55,
			Rationale:  "Short titles are easy to skip; stating the outcome makes the task actionable.",
			Payload:    map[string]any{"title": truncate("Finish: "+title, 200)},
		})
	}

	if todo.DueDate == nil {
		out = append(out, suggestion{
			Type:       "set_due_date",
			Confidence: 0.6,
			Rationale:  "Tasks without a date tend to drift; a date three days out keeps it visible.",
			Payload:    map[string]any{"dueDateISO": now.AddDate(0, 0, 3).Format(dateLayout)},
		})
	} else if todo.DueDate.Sub(now) < 24*time.Hour && todo.Priority != "high" {
		out = append(out, suggestion{
			Type:       "set_priority",
			Confidence: 0.7,
			Rationale:  "Due within a day; raising priority keeps it at the top of today's list.",
			Payload:    map[string]any{"priority": "high"},
		})
	}

	if todo.Category == "" {
		if category := keywordCategory(words); category != "" {
			out = append(out, categorySuggestion(category, projects))
		}
	}

	if len(words) == 1 {
		out = append(out, suggestion{
			Type:       "ask_clarification",
			Confidence: 0.5,
			Rationale:  "A one-word title leaves the expected outcome unclear.",
			Payload: map[string]any{
				"question": truncate(fmt.Sprintf("What does done look like for %q?", title), 240),
				"choices":  []string{"A quick check", "A finished deliverable"},
			},
		})
	}

	if drawer {
		if todo.SubtaskCount == 0 {
			out = append(out, suggestion{
				Type:       "split_subtasks",
				Confidence: 0.65,
				Rationale:  "Breaking the task into steps lowers the cost of starting.",
				Payload: map[string]any{"subtasks": []map[string]any{
					{"title": truncate("Define what done means for: "+title, 200), "order": 1},
					{"title": "Do the first focused work block", "order": 2},
					{"title": "Review the result and close the task", "order": 3},
				}},
			})
		}
		text := "Spend ten minutes on the first step of: " + title
		if specific {
			text = fmt.Sprintf("Owner: me. Metric: first step checked off. Deadline: %s. Start with: %s", deadline.Format(dateLayout), title)
		}
		out = append(out, suggestion{
			Type:       "propose_next_action",
			Confidence: 0.8,
			Rationale:  "A concrete next action makes the task easier to begin.",
			Payload:    map[string]any{"text": truncate(text, 200)},
		})
		if todo.DueDate == nil && todo.Priority == "low" {
			out = append(out, suggestion{
				Type:       "defer_task",
				Confidence: 0.4,
				Rationale:  "Low priority and undated; parking it keeps today's list focused.",
				Payload:    map[string]any{"strategy": "next_week"},
			})
		}
	}
	return out
}

func categorySuggestion(category string, projects []string) suggestion {
	for _, p := range projects {
		if strings.EqualFold(p, category) {
			return suggestion{
				Type:       "set_project",
				Confidence: 0.6,
				Rationale:  "The title matches an existing project.",
				Payload:    map[string]any{"projectName": p},
			}
		}
	}
	return suggestion{
		Type:       "set_category",
		Confidence: 0.5,
		Rationale:  "The title suggests this category.",
		Payload:    map[string]any{"category": category},
	}
}

func keywordCategory(words []string) string {
	for _, w := range words {
		if c, ok := categoryKeywords[strings.ToLower(strings.Trim(w, ".,!?:;"))]; ok {
			return c
		}
	}
	return ""
}

type scoredTodo struct {
	todo   TodoContext
	score  int
	reason string
}

func todayPlan(todos []TodoContext, topN int, specific bool, now time.Time) (*planPreview, []suggestion) {
	if topN != 5 {
		topN = 3
	}
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())

	scored := make([]scoredTodo, 0, len(todos))
	for _, t := range todos {
		s := scoredTodo{todo: t, reason: "Keeps steady progress on open work."}
		switch t.Priority {
		case "high":
			s.score += 2
			s.reason = "High priority."
		case "medium":
			s.score++
		}
		if t.DueDate != nil {
			switch {
			case t.DueDate.Before(now):
				s.score += 4
				s.reason = "Overdue."
			case !t.DueDate.After(endOfDay):
				s.score += 3
				s.reason = "Due today."
			case t.DueDate.Sub(now) < 72*time.Hour:
				s.score++
				s.reason = "Due within three days."
			}
		}
		scored = append(scored, s)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > topN {
		scored = scored[:topN]
	}

	preview := &planPreview{TopN: topN, Items: []previewItem{}}
	var out []suggestion
	for i, s := range scored {
		preview.Items = append(preview.Items, previewItem{
			TodoID:          s.todo.ID,
			Rank:            i + 1,
			TimeEstimateMin: float64(25 + 10*min(s.todo.SubtaskCount, 6)),
			Rationale:       s.reason,
		})

		if s.todo.DueDate != nil && s.todo.DueDate.Before(now) {
			out = append(out, suggestion{
				Type:       "set_due_date",
				Confidence: 0.6,
				Rationale:  "Overdue; moving the date to tomorrow keeps the list honest.",
				Payload:    map[string]any{"todoId": s.todo.ID, "dueDateISO": now.AddDate(0, 0, 1).Format(dateLayout)},
			})
		} else if s.todo.DueDate != nil && !s.todo.DueDate.After(endOfDay) && s.todo.Priority != "high" {
			out = append(out, suggestion{
				Type:       "set_priority",
				Confidence: 0.7,
				Rationale:  "Due today; raising priority reflects that.",
				Payload:    map[string]any{"todoId": s.todo.ID, "priority": "high"},
			})
		}
		if i == 0 {
			text := "Start with: " + s.todo.Title
			if specific {
				text = fmt.Sprintf("Owner: me. Metric: one step finished. Deadline: %s. Start with: %s", endOfDay.Format(dateLayout), s.todo.Title)
			}
			out = append(out, suggestion{
				Type:       "propose_next_action",
				Confidence: 0.75,
				Rationale:  "The top-ranked task is the best place to begin.",
				Payload:    map[string]any{"todoId": s.todo.ID, "text": truncate(text, 200)},
			})
		}
		if s.todo.SubtaskCount == 0 && utf8.RuneCountInString(s.todo.Title) > 60 {
			out = append(out, suggestion{
				Type:       "split_subtasks",
				Confidence: 0.5,
				Rationale:  "A long task reads better as steps.",
				Payload: map[string]any{"todoId": s.todo.ID, "subtasks": []map[string]any{
					{"title": "Outline the steps", "order": 1},
					{"title": "Complete the first step", "order": 2},
				}},
			})
		}
	}
	if out == nil {
		out = []suggestion{}
	}
	return preview, out
}

// GeneratePlan implements SuggestionGenerator
func (h *HeuristicService) GeneratePlan(ctx context.Context, req PlanRequest) (json.RawMessage, error) {
	goal := strings.TrimSpace(req.Goal)
	if goal == "" {
		return nil, fmt.Errorf("goal is required")
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	project := truncate(goal, 50)
	short := truncate(goal, 120)

	steps := []struct {
		title    string
		days     int
		priority string
	}{
		{"Define what success looks like for: " + short, 1, "high"},
		{"List the steps needed to " + short, 2, "medium"},
		{"Complete the first step toward " + short, 5, "medium"},
		{"Review progress on " + short, 14, "low"},
	}

	tasks := make([]map[string]any, 0, len(steps))
	for i, s := range steps {
		due := now.AddDate(0, 0, s.days)
		task := map[string]any{
			"title":       truncate(s.title, 200),
			"priority":    s.priority,
			"dueDateISO":  due.Format(dateLayout),
			"projectName": project,
		}
		if WantsSpecifics(req.LastRejectionReason) {
			task["notes"] = fmt.Sprintf("Owner: me. Metric: step %d checked off. Deadline: %s.", i+1, due.Format(dateLayout))
		}
		if i == 0 {
			task["subtasks"] = []map[string]any{
				{"title": "Write down the target outcome", "order": 1},
				{"title": "Pick a measurable checkpoint", "order": 2},
			}
		}
		tasks = append(tasks, task)
	}

	return json.Marshal(map[string]any{
		"goal":    truncate(goal, 200),
		"summary": fmt.Sprintf("%d steps from definition to review.", len(tasks)),
		"tasks":   tasks,
	})
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max]))
}
