package contract

import (
	"fmt"

	"todo-assist-backend/internal/assist/domain"
)

func (v *validator) dueDatePayload(path string, obj map[string]any) (domain.Payload, error) {
	due, err := stringField(obj, "dueDateISO", path+".dueDateISO", true, 0)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseDate(due); err != nil {
		return nil, fail(path+".dueDateISO", "must be a parseable date")
	}
	return &domain.SetDueDatePayload{DueDateISO: due}, nil
}

func (v *validator) priorityPayload(path string, obj map[string]any) (domain.Payload, error) {
	priority, _ := obj["priority"].(string)
	if !oneOf(priority, domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh) {
		return nil, fail(path+".priority", "must be one of low, medium, high")
	}
	return &domain.SetPriorityPayload{Priority: priority}, nil
}

func (v *validator) projectPayload(path string, obj map[string]any) (domain.Payload, error) {
	projectID, err := stringField(obj, "projectId", path+".projectId", false, maxSuggestionIDLen)
	if err != nil {
		return nil, err
	}
	projectName, err := stringField(obj, "projectName", path+".projectName", false, maxCategoryLen)
	if err != nil {
		return nil, err
	}
	category, err := stringField(obj, "category", path+".category", false, maxCategoryLen)
	if err != nil {
		return nil, err
	}
	if projectID == "" && projectName == "" && category == "" {
		return nil, fail(path, "requires one of projectId, projectName, category")
	}
	return &domain.SetProjectPayload{ProjectID: projectID, ProjectName: projectName, Category: category}, nil
}

func (v *validator) categoryPayload(path string, obj map[string]any) (domain.Payload, error) {
	category, err := stringField(obj, "category", path+".category", true, maxCategoryLen)
	if err != nil {
		return nil, err
	}
	return &domain.SetCategoryPayload{Category: category}, nil
}

func (v *validator) rewriteTitlePayload(path string, obj map[string]any) (domain.Payload, error) {
	title, err := stringField(obj, "title", path+".title", true, maxTitleLen)
	if err != nil {
		return nil, err
	}
	return &domain.RewriteTitlePayload{Title: title}, nil
}

func (v *validator) nextActionPayload(path string, obj map[string]any) (domain.Payload, error) {
	title, err := stringField(obj, "title", path+".title", false, maxTitleLen)
	if err != nil {
		return nil, err
	}
	text, err := stringField(obj, "text", path+".text", false, maxTitleLen)
	if err != nil {
		return nil, err
	}
	if title == "" && text == "" {
		return nil, fail(path, "requires title or text")
	}
	return &domain.NextActionPayload{Title: title, Text: text}, nil
}

func (v *validator) splitSubtasksPayload(path string, obj map[string]any) (domain.Payload, error) {
	items, ok := obj["subtasks"].([]any)
	if !ok {
		return nil, fail(path+".subtasks", "must be an array")
	}
	if len(items) < minSubtasks || len(items) > maxSubtasks {
		return nil, fail(path+".subtasks", fmt.Sprintf("must contain %d to %d items", minSubtasks, maxSubtasks))
	}
	drafts := make([]domain.SubtaskDraft, 0, len(items))
	for i, raw := range items {
		itemPath := fmt.Sprintf("%s.subtasks[%d]", path, i)
		item, ok := raw.(map[string]any)
		if !ok {
			return nil, fail(itemPath, "must be an object")
		}
		title, err := stringField(item, "title", itemPath+".title", true, maxTitleLen)
		if err != nil {
			return nil, err
		}
		order, err := positiveInt(item["order"], itemPath+".order")
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, domain.SubtaskDraft{Title: title, Order: order})
	}
	return &domain.SplitSubtasksPayload{Subtasks: drafts}, nil
}

func (v *validator) clarificationPayload(path string, obj map[string]any) (domain.Payload, error) {
	v.clarifications++
	if v.clarifications > 1 {
		return nil, fail(path, "at most one ask_clarification suggestion is allowed per envelope")
	}
	question, err := stringField(obj, "question", path+".question", true, maxQuestionLen)
	if err != nil {
		return nil, err
	}
	payload := &domain.ClarificationPayload{Question: question}

	rawChoices, present := obj["choices"]
	if !present || rawChoices == nil {
		return payload, nil
	}
	choices, ok := rawChoices.([]any)
	if !ok {
		return nil, fail(path+".choices", "must be an array")
	}
	if len(choices) < minChoices || len(choices) > maxChoices {
		return nil, fail(path+".choices", fmt.Sprintf("must contain %d to %d choices", minChoices, maxChoices))
	}
	for i, rawChoice := range choices {
		choicePath := fmt.Sprintf("%s.choices[%d]", path, i)
		choice, err := stringField(map[string]any{"choice": rawChoice}, "choice", choicePath, true, maxChoiceLen)
		if err != nil {
			return nil, err
		}
		payload.Choices = append(payload.Choices, choice)
	}
	return payload, nil
}

func (v *validator) deferPayload(path string, obj map[string]any) (domain.Payload, error) {
	strategy, _ := obj["strategy"].(string)
	if !oneOf(strategy, domain.DeferSomeday, domain.DeferNextWeek, domain.DeferNextMonth) {
		return nil, fail(path+".strategy", "must be one of someday, next_week, next_month")
	}
	return &domain.DeferPayload{Strategy: strategy}, nil
}
