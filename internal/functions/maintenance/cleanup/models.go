package cleanup

import "time"

type Input struct {
	// RetentionDays overrides chat.retention_days for this run.
	RetentionDays int  `json:"retentionDays,omitempty" validate:"omitempty,min=1,max=3650"`
	DryRun        bool `json:"dryRun,omitempty"`
}

// Report summarizes one retention sweep.
type Report struct {
	Cutoff               time.Time `json:"cutoff"`
	DryRun               bool      `json:"dryRun,omitempty"`
	MessagesDeleted      int       `json:"messagesDeleted"`
	ImagesDeleted        int       `json:"imagesDeleted"`
	ConversationsDeleted int64     `json:"conversationsDeleted"`
	IndexDeleted         int64     `json:"indexDeleted"`
	Warnings             []string  `json:"warnings,omitempty"`
	DurationMs           int64     `json:"durationMs"`
}
