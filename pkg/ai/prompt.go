package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

const decisionAssistInstructions = `You are a task-management assistant. Suggest safe, reversible edits for the user's todos.

Return ONLY a JSON object with this shape:
{"requestId": string, "surface": "on_create"|"task_drawer"|"today_plan", "must_abstain": boolean,
 "suggestions": [{"type": string, "confidence": number 0..1, "rationale": string (max 240 chars), "payload": object}],
 "planPreview": {"topN": 3|5, "items": [{"todoId": string, "rank": integer >= 1, "timeEstimateMin": number, "rationale": string}]}}

Allowed suggestion types and payloads:
- set_due_date: {"dueDateISO": "YYYY-MM-DD"}
- set_priority: {"priority": "low"|"medium"|"high"}
- set_project: {"projectName": string} or {"category": string}
- set_category: {"category": string}
- rewrite_title: {"title": string}
- propose_next_action: {"text": string}
- split_subtasks: {"subtasks": [{"title": string, "order": integer}]} (1 to 5 items)
- ask_clarification: {"question": string, "choices": [string]} (at most one per response)
- defer_task: {"strategy": "someday"|"next_week"|"next_month"}

Rules:
- Never propose deleting anything and never propose bulk changes.
- Echo requestId and surface exactly as given.
- planPreview is only allowed when surface is today_plan; every today_plan suggestion must carry payload.todoId of a previewed item.
- If nothing useful and safe can be suggested, set must_abstain to true and return no suggestions.`

const planInstructions = `You are a planning assistant. Break the user's goal into concrete todos.

Return ONLY a JSON object with this shape:
{"goal": string, "summary": string, "tasks": [{"title": string, "notes": string, "priority": "low"|"medium"|"high",
 "dueDateISO": "YYYY-MM-DD", "projectName": string, "subtasks": [{"title": string, "order": integer}]}]}

Rules:
- Between 1 and 10 tasks, at most 5 subtasks each.
- Titles are short imperative sentences of at most 200 characters.`

const specificityInstructions = `
The user rejected earlier suggestions as too generic. Every suggestion must name an owner, a measurable metric and a deadline.`

func buildDecisionAssistPrompt(req DecisionAssistRequest) string {
	return buildPrompt(decisionAssistInstructions, req.LastRejectionReason, req)
}

func buildPlanPrompt(req PlanRequest) string {
	return buildPrompt(planInstructions, req.LastRejectionReason, req)
}

func buildPrompt(instructions, rejectionReason string, input any) string {
	var b strings.Builder
	b.WriteString(instructions)
	if WantsSpecifics(rejectionReason) {
		b.WriteString(specificityInstructions)
	}
	in, _ := json.MarshalIndent(input, "", "  ")
	fmt.Fprintf(&b, "\n\n[INPUT JSON]\n%s", in)
	return b.String()
}

// WantsSpecifics reports whether a rejection reason complains about vague output
func WantsSpecifics(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "generic") || strings.Contains(r, "vague") || strings.Contains(r, "specific")
}

// extractJSONObject strips markdown fences and surrounding prose from a model reply
func extractJSONObject(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	raw := json.RawMessage(text[start : end+1])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("model output is not valid JSON")
	}
	return raw, nil
}
