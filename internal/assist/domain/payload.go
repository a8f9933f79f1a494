package domain

import "time"

// Payload is the typed body of a suggestion. Each suggestion type has exactly
// one payload type; the contract validator is the only producer.
type Payload interface {
	Kind() SuggestionType
	TargetTodoID() string
	BindTodo(todoID string)
}

// Binding carries the todo a payload targets
type Binding struct {
	TodoID string `json:"todoId,omitempty"`
}

func (b *Binding) TargetTodoID() string { return b.TodoID }

func (b *Binding) BindTodo(todoID string) { b.TodoID = todoID }

type SetDueDatePayload struct {
	Binding
	DueDateISO string `json:"dueDateISO"`
}

func (*SetDueDatePayload) Kind() SuggestionType { return TypeSetDueDate }

// DueDate parses DueDateISO
func (p *SetDueDatePayload) DueDate() (time.Time, error) {
	return ParseDate(p.DueDateISO)
}

type SetPriorityPayload struct {
	Binding
	Priority string `json:"priority"`
}

func (*SetPriorityPayload) Kind() SuggestionType { return TypeSetPriority }

type SetProjectPayload struct {
	Binding
	ProjectID   string `json:"projectId,omitempty"`
	ProjectName string `json:"projectName,omitempty"`
	Category    string `json:"category,omitempty"`
}

func (*SetProjectPayload) Kind() SuggestionType { return TypeSetProject }

type SetCategoryPayload struct {
	Binding
	Category string `json:"category"`
}

func (*SetCategoryPayload) Kind() SuggestionType { return TypeSetCategory }

type RewriteTitlePayload struct {
	Binding
	Title string `json:"title"`
}

func (*RewriteTitlePayload) Kind() SuggestionType { return TypeRewriteTitle }

type NextActionPayload struct {
	Binding
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

func (*NextActionPayload) Kind() SuggestionType { return TypeProposeNextAction }

// ActionText prefers Text over Title
func (p *NextActionPayload) ActionText() string {
	if p.Text != "" {
		return p.Text
	}
	return p.Title
}

// SubtaskDraft is a subtask proposed by split_subtasks or a generated plan
type SubtaskDraft struct {
	Title string `json:"title"`
	Order int    `json:"order"`
}

type SplitSubtasksPayload struct {
	Binding
	Subtasks []SubtaskDraft `json:"subtasks"`
}

func (*SplitSubtasksPayload) Kind() SuggestionType { return TypeSplitSubtasks }

type ClarificationPayload struct {
	Binding
	Question string   `json:"question"`
	Choices  []string `json:"choices,omitempty"`
}

func (*ClarificationPayload) Kind() SuggestionType { return TypeAskClarification }

type DeferPayload struct {
	Binding
	Strategy string `json:"strategy"`
}

func (*DeferPayload) Kind() SuggestionType { return TypeDeferTask }
