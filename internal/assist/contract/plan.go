package contract

import (
	"fmt"

	"todo-assist-backend/internal/assist/domain"
)

const (
	maxPlanTasks   = 10
	maxGoalLen     = 200
	maxSummaryLen  = 500
	maxPlanNoteLen = 2000
)

// ValidatePlan checks an untrusted plan_from_goal output
func ValidatePlan(raw any) (*domain.GoalPlan, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fail("", "plan must be an object")
	}
	goal, err := stringField(obj, "goal", "goal", true, maxGoalLen)
	if err != nil {
		return nil, err
	}
	summary, err := stringField(obj, "summary", "summary", false, maxSummaryLen)
	if err != nil {
		return nil, err
	}
	items, ok := obj["tasks"].([]any)
	if !ok {
		return nil, fail("tasks", "must be an array")
	}
	if len(items) == 0 || len(items) > maxPlanTasks {
		return nil, fail("tasks", fmt.Sprintf("must contain 1 to %d tasks", maxPlanTasks))
	}

	plan := &domain.GoalPlan{Goal: goal, Summary: summary, Tasks: make([]domain.PlanTask, 0, len(items))}
	for i, rawTask := range items {
		task, err := planTask(fmt.Sprintf("tasks[%d]", i), rawTask)
		if err != nil {
			return nil, err
		}
		plan.Tasks = append(plan.Tasks, task)
	}
	return plan, nil
}

func planTask(path string, raw any) (domain.PlanTask, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return domain.PlanTask{}, fail(path, "must be an object")
	}
	var (
		task domain.PlanTask
		err  error
	)
	if task.Title, err = stringField(obj, "title", path+".title", true, maxTitleLen); err != nil {
		return domain.PlanTask{}, err
	}
	if task.Notes, err = stringField(obj, "notes", path+".notes", false, maxPlanNoteLen); err != nil {
		return domain.PlanTask{}, err
	}
	if task.Priority, err = stringField(obj, "priority", path+".priority", false, 0); err != nil {
		return domain.PlanTask{}, err
	}
	if task.Priority != "" && !oneOf(task.Priority, domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh) {
		return domain.PlanTask{}, fail(path+".priority", "must be one of low, medium, high")
	}
	if task.DueDateISO, err = stringField(obj, "dueDateISO", path+".dueDateISO", false, 0); err != nil {
		return domain.PlanTask{}, err
	}
	if task.DueDateISO != "" {
		if _, err := domain.ParseDate(task.DueDateISO); err != nil {
			return domain.PlanTask{}, fail(path+".dueDateISO", "must be a parseable date")
		}
	}
	if task.ProjectName, err = stringField(obj, "projectName", path+".projectName", false, maxCategoryLen); err != nil {
		return domain.PlanTask{}, err
	}
	if task.Category, err = stringField(obj, "category", path+".category", false, maxCategoryLen); err != nil {
		return domain.PlanTask{}, err
	}

	rawSubtasks, present := obj["subtasks"]
	if !present || rawSubtasks == nil {
		return task, nil
	}
	subtasks, ok := rawSubtasks.([]any)
	if !ok {
		return domain.PlanTask{}, fail(path+".subtasks", "must be an array")
	}
	if len(subtasks) > maxSubtasks {
		return domain.PlanTask{}, fail(path+".subtasks", fmt.Sprintf("must contain at most %d items", maxSubtasks))
	}
	for i, rawSub := range subtasks {
		subPath := fmt.Sprintf("%s.subtasks[%d]", path, i)
		sub, ok := rawSub.(map[string]any)
		if !ok {
			return domain.PlanTask{}, fail(subPath, "must be an object")
		}
		title, err := stringField(sub, "title", subPath+".title", true, maxTitleLen)
		if err != nil {
			return domain.PlanTask{}, err
		}
		order := i + 1
		if rawOrder, present := sub["order"]; present && rawOrder != nil {
			if order, err = positiveInt(rawOrder, subPath+".order"); err != nil {
				return domain.PlanTask{}, err
			}
		}
		task.Subtasks = append(task.Subtasks, domain.SubtaskDraft{Title: title, Order: order})
	}
	return task, nil
}
