package job

import (
	"encoding/json"
	"time"

	uuid "github.com/google/uuid"
)

type Type string

const (
	TypeMixIntelligence Type = "MIX_INTELLIGENCE"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Context describes what kind of material the mix audit should assume.
type Context string

const (
	ContextFullMix      Context = "FULL_MIX"
	ContextVocalOnly    Context = "VOCAL_ONLY"
	ContextInstrumental Context = "INSTRUMENTAL"
)

// Mode selects the analysis depth. Stored on the job and passed through;
// the scheduler itself does not branch on it.
type Mode string

const (
	ModeFast Mode = "FAST"
	ModeDeep Mode = "DEEP"
)

// InputRef describes the uploaded audio artifact a job analyzes.
// Opaque to the scheduler; handed as-is to the analyzer.
type InputRef struct {
	BucketKey       string `json:"input_bucket_key"`
	ObjectKey       string `json:"input_object_key"`
	Filename        string `json:"filename"`
	ContentType     string `json:"content_type"`
	SizeBytes       int64  `json:"size_bytes"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Job is the durable unit of mix-analysis work.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Type        Type       `json:"type"`
	Status      Status     `json:"status"`
	Stage       string     `json:"stage"`
	Progress    int        `json:"progress"`
	Priority    int        `json:"priority"`
	Mode        Mode       `json:"mode"`
	Context     Context    `json:"context"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	InputRef

	PlanSnapshot map[string]any  `json:"plan_snapshot,omitempty"`
	AuditResult  json.RawMessage `json:"audit_result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Result is a row in the job_results side table. The latest row per job
// is what GetResult serves; the job row keeps a redundant copy of the audit.
type Result struct {
	ID        uuid.UUID       `json:"id"`
	JobID     uuid.UUID       `json:"job_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Tool      string          `json:"tool"`
	Output    json.RawMessage `json:"output"`
	CreatedAt time.Time       `json:"created_at"`
}

const ToolMixIntelligence = "mix_intelligence"
