package proposalmeterscreate

import errs "crm-functions/internal/common/errors"

type Input struct {
	ProposalID string       `json:"proposalId" validate:"required"`
	RequestID  string       `json:"requestId,omitempty" validate:"omitempty,max=100"`
	Meters     []MeterInput `json:"meters" validate:"required,min=1,max=50,dive"`
}

// MeterInput describes one metering point. Numeric fields arrive as decimal strings.
type MeterInput struct {
	POD               string      `json:"pod" validate:"required,max=40"`
	Name              string      `json:"name,omitempty" validate:"omitempty,max=80"`
	AnnualConsumption string      `json:"annualConsumption,omitempty"`
	ContractedPower   string      `json:"contractedPower,omitempty"`
	Tariff            string      `json:"tariff,omitempty" validate:"omitempty,max=40"`
	Files             []FileInput `json:"files,omitempty" validate:"omitempty,max=20,dive"`
}

type FileInput struct {
	URL      string `json:"url" validate:"required,url"`
	FileName string `json:"fileName" validate:"required,max=255"`
	Title    string `json:"title,omitempty" validate:"omitempty,max=255"`
}

type Output struct {
	Success    bool           `json:"success"`
	ProposalID string         `json:"proposalId"`
	Items      []ItemResult   `json:"items"`
	FailedAt   *FailedAt      `json:"failedAt,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorCode  errs.ErrorCode `json:"errorCode,omitempty"`
	Replayed   bool           `json:"replayed,omitempty"`
}

// ItemResult is one completed meter.
type ItemResult struct {
	POD             string       `json:"pod"`
	MeteringPointID string       `json:"meteringPointId"`
	JunctionID      string       `json:"junctionId"`
	Created         bool         `json:"created"`
	JunctionCreated bool         `json:"junctionCreated"`
	Files           []FileResult `json:"files"`
}

type FileResult struct {
	FileName          string `json:"fileName"`
	ContentVersionID  string `json:"contentVersionId,omitempty"`
	ContentDocumentID string `json:"contentDocumentId,omitempty"`
	LinkID            string `json:"linkId,omitempty"`
	AlreadyLinked     bool   `json:"alreadyLinked,omitempty"`
	Error             string `json:"error,omitempty"`
}

// FailedAt locates the step that aborted the workflow.
type FailedAt struct {
	Index int    `json:"index"`
	POD   string `json:"pod"`
	Step  string `json:"step"`
}

const (
	StepMeteringPoint = "metering-point"
	StepJunction      = "junction"
)
