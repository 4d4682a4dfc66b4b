package usecase

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/pwaforge/manifestd"
	"github.com/pwaforge/manifestd/internal/domain"
)

// coercedMembers are the known malformed-input members whose normalized
// value survives validation into the persisted record.
var coercedMembers = []string{"related_applications", "prefer_related_applications"}

// Validate runs one validation pass over the record: it submits a cleaned
// view of the content (icon generation markers stripped, malformed members
// coerced) to the rule engine, partitions the findings by severity and
// overwrites the record's issue groups with the aggregated result. A failed
// engine invocation leaves the record unmodified. Given a deterministic
// engine, repeated passes over unchanged content are idempotent.
func (uc *ManifestUsecase) Validate(ctx context.Context, record *manifestd.ManifestRecord) (*manifestd.ManifestRecord, error) {

	cleaned, err := cleanContent(record.Content)
	if err != nil {
		return nil, domain.ValidationEngineError{Err: err}
	}
	submission := *record
	submission.Content = cleaned

	findings, err := uc.engine.Validate(ctx, &submission, uc.platforms)
	if err != nil {
		return nil, domain.ValidationEngineError{Err: err}
	}

	// The member coercions become part of the record. Icons do not: the
	// caller-visible icon list keeps its generation markers.
	for _, member := range coercedMembers {
		if v, ok := submission.Content[member]; ok {
			record.Content[member] = v
		}
	}

	record.Errors = GroupByMember(FilterLevel(findings, manifestd.LevelError))
	record.Suggestions = GroupByMember(FilterLevel(findings, manifestd.LevelSuggestion))
	record.Warnings = GroupByMember(FilterLevel(findings, manifestd.LevelWarning))

	return record, nil
}

// cleanContent copies the content with icon generation markers removed and
// the two known malformed-input members coerced to their schema types. A
// string that cannot be coerced fails the whole pass.
func cleanContent(content manifestd.ManifestContent) (manifestd.ManifestContent, error) {
	cleaned := manifestd.ManifestContent{}
	for k, v := range content {
		cleaned[k] = v
	}

	icons := []any{}
	for _, entry := range content.Icons() {
		icon, ok := entry.(map[string]any)
		if !ok {
			icons = append(icons, entry)
			continue
		}
		stripped := map[string]any{}
		for k, v := range icon {
			if k == "generated" || k == "fileName" {
				continue
			}
			stripped[k] = v
		}
		icons = append(icons, stripped)
	}
	cleaned["icons"] = icons

	// related_applications must be an array; some sites ship it as a string.
	if s, ok := cleaned.String("related_applications"); ok && s != "" {
		cleaned["related_applications"] = []any{}
	}

	// prefer_related_applications must be a boolean; "true"/"false" strings
	// are parsed, anything else rejects the submission.
	if s, ok := cleaned.String("prefer_related_applications"); ok && s != "" {
		var b bool
		if err := json.Unmarshal([]byte(s), &b); err != nil {
			return nil, errors.Wrapf(err, "prefer_related_applications is not a boolean: %q", s)
		}
		cleaned["prefer_related_applications"] = b
	}

	return cleaned, nil
}
