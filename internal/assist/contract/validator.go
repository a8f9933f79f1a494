// Package contract turns untrusted, model-generated suggestion JSON into the
// closed set of typed suggestions the rest of the service is allowed to act on.
package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"todo-assist-backend/internal/assist/domain"
)

const (
	maxRequestIDLen    = 120
	maxSuggestionIDLen = 120
	maxRationaleLen    = 240
	maxTitleLen        = 200
	maxCategoryLen     = 50
	maxQuestionLen     = 240
	maxChoiceLen       = 80
	maxModelInfoLen    = 80
	minSubtasks        = 1
	maxSubtasks        = 5
	minChoices         = 2
	maxChoices         = 5
)

// Type names containing these fragments are never accepted, whatever the enum says
var forbiddenTypeFragments = []string{"delete", "bulk"}

type payloadValidator func(v *validator, path string, obj map[string]any) (domain.Payload, error)

var payloadValidators = map[domain.SuggestionType]payloadValidator{
	domain.TypeSetDueDate:        (*validator).dueDatePayload,
	domain.TypeSetPriority:       (*validator).priorityPayload,
	domain.TypeSetProject:        (*validator).projectPayload,
	domain.TypeSetCategory:       (*validator).categoryPayload,
	domain.TypeRewriteTitle:      (*validator).rewriteTitlePayload,
	domain.TypeProposeNextAction: (*validator).nextActionPayload,
	domain.TypeSplitSubtasks:     (*validator).splitSubtasksPayload,
	domain.TypeAskClarification:  (*validator).clarificationPayload,
	domain.TypeDeferTask:         (*validator).deferPayload,
}

// validator carries state that spans suggestions of one envelope
type validator struct {
	clarifications int
}

// Validate checks an untrusted envelope (as produced by decoding JSON into
// any) and returns its typed form. The first violation aborts the whole
// envelope with a *domain.ValidationError.
func Validate(raw any) (*domain.Envelope, error) {
	v := &validator{}
	return v.envelope(raw)
}

// ValidateJSON decodes data and validates it
func ValidateJSON(data []byte) (*domain.Envelope, error) {
	raw, err := DecodeRaw(data)
	if err != nil {
		return nil, err
	}
	return Validate(raw)
}

// DecodeRaw decodes JSON into the untyped form Validate expects
func DecodeRaw(data []byte) (any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &domain.ValidationError{Message: "malformed JSON: " + err.Error()}
	}
	return raw, nil
}

// ToRaw converts a typed value back to its untyped JSON form
func ToRaw(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return DecodeRaw(data)
}

func (v *validator) envelope(raw any) (*domain.Envelope, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fail("", "envelope must be an object")
	}

	requestID, err := stringField(obj, "requestId", "requestId", true, maxRequestIDLen)
	if err != nil {
		return nil, err
	}

	surfaceStr, ok := obj["surface"].(string)
	surface := domain.Surface(surfaceStr)
	if !ok || !surface.Valid() {
		return nil, fail("surface", "must be one of on_create, task_drawer, today_plan")
	}

	mustAbstain, ok := obj["must_abstain"].(bool)
	if !ok {
		return nil, fail("must_abstain", "must be a boolean")
	}

	env := &domain.Envelope{
		RequestID:   requestID,
		Surface:     surface,
		MustAbstain: mustAbstain,
	}

	if rawInfo, present := obj["modelInfo"]; present && rawInfo != nil {
		info, err := modelInfo(rawInfo)
		if err != nil {
			return nil, err
		}
		env.ModelInfo = info
	}

	items, ok := obj["suggestions"].([]any)
	if !ok {
		return nil, fail("suggestions", "must be an array")
	}
	env.Suggestions = make([]domain.Suggestion, 0, len(items))
	for i, item := range items {
		s, err := v.suggestion(fmt.Sprintf("suggestions[%d]", i), item)
		if err != nil {
			return nil, err
		}
		env.Suggestions = append(env.Suggestions, s)
	}

	if rawPreview, present := obj["planPreview"]; present && rawPreview != nil {
		if surface != domain.SurfaceTodayPlan {
			return nil, fail("planPreview", "only allowed on the today_plan surface")
		}
		preview, err := planPreview(rawPreview)
		if err != nil {
			return nil, err
		}
		env.PlanPreview = preview
	}

	return env, nil
}

func modelInfo(raw any) (*domain.ModelInfo, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fail("modelInfo", "must be an object")
	}
	provider, err := stringField(obj, "provider", "modelInfo.provider", false, maxModelInfoLen)
	if err != nil {
		return nil, err
	}
	model, err := stringField(obj, "model", "modelInfo.model", false, maxModelInfoLen)
	if err != nil {
		return nil, err
	}
	version, err := stringField(obj, "version", "modelInfo.version", false, maxModelInfoLen)
	if err != nil {
		return nil, err
	}
	return &domain.ModelInfo{Provider: provider, Model: model, Version: version}, nil
}

func (v *validator) suggestion(path string, raw any) (domain.Suggestion, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return domain.Suggestion{}, fail(path, "must be an object")
	}

	typeStr, ok := obj["type"].(string)
	if !ok {
		return domain.Suggestion{}, fail(path+".type", "must be a string")
	}
	lowered := strings.ToLower(typeStr)
	for _, fragment := range forbiddenTypeFragments {
		if strings.Contains(lowered, fragment) {
			return domain.Suggestion{}, fail(path+".type", fmt.Sprintf("%q is a forbidden suggestion type", typeStr))
		}
	}
	st := domain.SuggestionType(typeStr)
	validatePayload, ok := payloadValidators[st]
	if !ok {
		return domain.Suggestion{}, fail(path+".type", fmt.Sprintf("unknown suggestion type %q", typeStr))
	}

	confidence, ok := obj["confidence"].(float64)
	if !ok || confidence < 0 || confidence > 1 {
		return domain.Suggestion{}, fail(path+".confidence", "must be a number between 0 and 1")
	}

	rationale, err := stringField(obj, "rationale", path+".rationale", true, maxRationaleLen)
	if err != nil {
		return domain.Suggestion{}, err
	}

	payloadObj, ok := obj["payload"].(map[string]any)
	if !ok {
		return domain.Suggestion{}, fail(path+".payload", "must be an object")
	}
	payload, err := validatePayload(v, path+".payload", payloadObj)
	if err != nil {
		return domain.Suggestion{}, err
	}
	todoID, err := stringField(payloadObj, "todoId", path+".payload.todoId", false, maxSuggestionIDLen)
	if err != nil {
		return domain.Suggestion{}, err
	}
	if todoID != "" {
		payload.BindTodo(todoID)
	}

	s := domain.Suggestion{
		Type:       st,
		Confidence: confidence,
		Rationale:  rationale,
		Payload:    payload,
	}

	if s.SuggestionID, err = stringField(obj, "suggestionId", path+".suggestionId", false, maxSuggestionIDLen); err != nil {
		return domain.Suggestion{}, err
	}
	if rawConfirm, present := obj["requiresConfirmation"]; present && rawConfirm != nil {
		confirm, ok := rawConfirm.(bool)
		if !ok {
			return domain.Suggestion{}, fail(path+".requiresConfirmation", "must be a boolean")
		}
		s.RequiresConfirmation = confirm
	}

	return s, nil
}

func planPreview(raw any) (*domain.PlanPreview, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fail("planPreview", "must be an object")
	}
	topN, ok := obj["topN"].(float64)
	if !ok || (topN != 3 && topN != 5) {
		return nil, fail("planPreview.topN", "must be 3 or 5")
	}
	items, ok := obj["items"].([]any)
	if !ok {
		return nil, fail("planPreview.items", "must be an array")
	}
	if len(items) > int(topN) {
		return nil, fail("planPreview.items", fmt.Sprintf("must contain at most %d items", int(topN)))
	}

	preview := &domain.PlanPreview{TopN: int(topN), Items: make([]domain.PlanPreviewItem, 0, len(items))}
	for i, rawItem := range items {
		path := fmt.Sprintf("planPreview.items[%d]", i)
		item, ok := rawItem.(map[string]any)
		if !ok {
			return nil, fail(path, "must be an object")
		}
		todoID, err := stringField(item, "todoId", path+".todoId", false, maxSuggestionIDLen)
		if err != nil {
			return nil, err
		}
		rank, err := positiveInt(item["rank"], path+".rank")
		if err != nil {
			return nil, err
		}
		rationale, err := stringField(item, "rationale", path+".rationale", true, maxRationaleLen)
		if err != nil {
			return nil, err
		}
		entry := domain.PlanPreviewItem{TodoID: todoID, Rank: rank, Rationale: rationale}
		if rawEstimate, present := item["timeEstimateMin"]; present && rawEstimate != nil {
			estimate, ok := rawEstimate.(float64)
			if !ok || estimate <= 0 {
				return nil, fail(path+".timeEstimateMin", "must be a number greater than 0")
			}
			entry.TimeEstimateMin = &estimate
		}
		preview.Items = append(preview.Items, entry)
	}
	return preview, nil
}

func fail(field, message string) error {
	return &domain.ValidationError{Field: field, Message: message}
}

// stringField reads obj[key] as a trimmed string. Absent, null and blank
// optional values all read as "".
func stringField(obj map[string]any, key, path string, required bool, maxLen int) (string, error) {
	raw, present := obj[key]
	if !present || raw == nil {
		if required {
			return "", fail(path, "is required")
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fail(path, "must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		if required {
			return "", fail(path, "must not be empty")
		}
		return "", nil
	}
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		return "", fail(path, fmt.Sprintf("must be at most %d characters", maxLen))
	}
	return s, nil
}

func positiveInt(raw any, path string) (int, error) {
	n, ok := raw.(float64)
	if !ok || n < 1 || n != math.Trunc(n) || n > math.MaxInt32 {
		return 0, fail(path, "must be a positive integer")
	}
	return int(n), nil
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
