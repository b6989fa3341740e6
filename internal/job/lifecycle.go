package job

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/infiniteaudio/mixintel/internal/common"
)

// Pure state-transition rules. No I/O here: exclusivity of the
// queued->processing step is enforced by the store's conditional update,
// not by these functions.

const (
	StageCreated   = "created"
	StageAnalyzing = "analyzing"
	StageDone      = "done"
	StageFailed    = "failed"

	// progress reported right after a successful claim
	progressClaimed = 5

	MaxDurationSeconds = 7200
)

// InvalidTransitionError names the current and requested states of a
// rejected transition. Satisfies errors.Is(err, common.ErrInvalidTransition).
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid job transition: %s -> %s", e.From, e.To)
}

func (e InvalidTransitionError) Is(target error) bool {
	return target == common.ErrInvalidTransition
}

// EnqueueRequest is the caller-supplied description of a new mix job.
type EnqueueRequest struct {
	UserID          uuid.UUID      `json:"user_id" validate:"required"`
	Context         Context        `json:"context" validate:"required,oneof=FULL_MIX VOCAL_ONLY INSTRUMENTAL"`
	Mode            Mode           `json:"mode" validate:"omitempty,oneof=FAST DEEP"`
	InputBucketKey  string         `json:"input_bucket_key" validate:"required"`
	InputObjectKey  string         `json:"input_object_key" validate:"required"`
	Filename        string         `json:"filename" validate:"required"`
	ContentType     string         `json:"content_type" validate:"required"`
	SizeBytes       int64          `json:"size_bytes" validate:"required,min=1"`
	DurationSeconds int            `json:"duration_seconds" validate:"required,min=1,max=7200"`
	Priority        int            `json:"priority"`
	PlanSnapshot    map[string]any `json:"plan_snapshot"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Enqueue builds a fresh queued job from req. Returns a validation error
// (errors.Is(err, common.ErrValidation)) before any state exists.
func Enqueue(req EnqueueRequest) (Job, error) {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return Job{}, fmt.Errorf("%w: %s", common.ErrValidation, strings.Join(msgs, "; "))
		}
		return Job{}, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeFast
	}
	plan := req.PlanSnapshot
	if plan == nil {
		plan = map[string]any{}
	}

	return Job{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Type:      TypeMixIntelligence,
		Status:    StatusQueued,
		Stage:     StageCreated,
		Progress:  0,
		Priority:  req.Priority,
		Mode:      mode,
		Context:   req.Context,
		CreatedAt: time.Now().UTC(),
		InputRef: InputRef{
			BucketKey:       req.InputBucketKey,
			ObjectKey:       req.InputObjectKey,
			Filename:        req.Filename,
			ContentType:     req.ContentType,
			SizeBytes:       req.SizeBytes,
			DurationSeconds: req.DurationSeconds,
		},
		PlanSnapshot: plan,
	}, nil
}

// BeginProcessing returns a processing copy of j. Valid only from queued.
func BeginProcessing(j Job) (Job, error) {
	if j.Status != StatusQueued {
		return Job{}, InvalidTransitionError{From: j.Status, To: StatusProcessing}
	}
	now := time.Now().UTC()
	j.Status = StatusProcessing
	j.Stage = StageAnalyzing
	j.Progress = progressClaimed
	j.StartedAt = &now
	return j, nil
}

// Complete returns a completed copy of j carrying the audit payload.
// Valid only from processing.
func Complete(j Job, audit []byte) (Job, error) {
	if j.Status != StatusProcessing {
		return Job{}, InvalidTransitionError{From: j.Status, To: StatusCompleted}
	}
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.Stage = StageDone
	j.Progress = 100
	j.CompletedAt = &now
	j.AuditResult = audit
	j.ErrorMessage = ""
	return j, nil
}

// Fail returns a failed copy of j. Valid from queued or processing.
func Fail(j Job, message string) (Job, error) {
	if j.Status.Terminal() {
		return Job{}, InvalidTransitionError{From: j.Status, To: StatusFailed}
	}
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.Stage = StageFailed
	j.CompletedAt = &now
	j.AuditResult = nil
	j.ErrorMessage = message
	return j, nil
}
