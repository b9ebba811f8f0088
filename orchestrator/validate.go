package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	syncErrors "github.com/c0deZ3R0/go-sync-engine/errors"
	"github.com/c0deZ3R0/go-sync-engine/record"
)

// Request is a loosely typed sync request as it arrives from callers that
// decode their input themselves.
type Request struct {
	SourceData any      `json:"source_data" yaml:"source_data"`
	TargetData any      `json:"target_data" yaml:"target_data"`
	Options    *Options `json:"options" yaml:"options"`
}

// ValidationResult lists what is wrong with a Request. Warnings do not make
// a request invalid.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid" yaml:"is_valid"`
	Errors   []string `json:"errors" yaml:"errors"`
	Warnings []string `json:"warnings" yaml:"warnings"`
}

// ValidateSyncPrerequisites checks that both collections are record
// collections and that options name a source.
func (o *Orchestrator) ValidateSyncPrerequisites(req Request) ValidationResult {
	res := ValidationResult{Errors: []string{}, Warnings: []string{}}

	checkCollection := func(name string, data any) {
		if data == nil {
			res.Errors = append(res.Errors, name+" data is required")
			return
		}
		recs, ok := record.FromAny(data)
		if !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("%s data must be a record collection, got %T", name, data))
			return
		}
		if len(recs) == 0 {
			res.Warnings = append(res.Warnings, name+" data is empty")
			return
		}
		if dropped := len(recs) - len(record.Sanitize(recs)); dropped > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%d %s records have no usable id or a duplicate id and will be ignored", dropped, name))
		}
	}
	checkCollection("source", req.SourceData)
	checkCollection("target", req.TargetData)

	switch {
	case req.Options == nil:
		res.Errors = append(res.Errors, "options are required")
	case strings.TrimSpace(req.Options.Source) == "":
		res.Errors = append(res.Errors, "options must include a source identifier")
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

// Run validates req and orchestrates it. An invalid request is returned as
// a validation error without touching any component.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*SyncResult, error) {
	v := o.ValidateSyncPrerequisites(req)
	if !v.IsValid {
		return nil, syncErrors.NewValidationError(syncErrors.OpValidate, errors.New(strings.Join(v.Errors, "; ")))
	}
	source, _ := record.FromAny(req.SourceData)
	target, _ := record.FromAny(req.TargetData)
	return o.OrchestrateSync(ctx, source, target, *req.Options), nil
}
