package domain

// GoalPlan is the output of a plan_from_goal generation
type GoalPlan struct {
	Goal    string     `json:"goal"`
	Summary string     `json:"summary,omitempty"`
	Tasks   []PlanTask `json:"tasks"`
}

// PlanTask becomes one todo when the plan is applied
type PlanTask struct {
	Title       string         `json:"title"`
	Notes       string         `json:"notes,omitempty"`
	Priority    string         `json:"priority,omitempty"`
	DueDateISO  string         `json:"dueDateISO,omitempty"`
	ProjectName string         `json:"projectName,omitempty"`
	Category    string         `json:"category,omitempty"`
	Subtasks    []SubtaskDraft `json:"subtasks,omitempty"`
}
