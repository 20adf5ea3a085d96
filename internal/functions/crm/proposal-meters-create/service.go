package proposalmeterscreate

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	errs "crm-functions/internal/common/errors"
	httpclient "crm-functions/internal/common/http"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/salesforce"
)

// Downloader fetches attachment bytes from a URL.
type Downloader interface {
	Download(ctx context.Context, url string, maxBytes int64) (*httpclient.File, error)
}

type Service struct {
	downloader      Downloader
	maxFileBytes    int64
	downloadTimeout time.Duration
}

// run executes the workflow against an accessible proposal. Meter and
// junction failures stop the run; file failures are recorded per file.
func (s *Service) run(ctx context.Context, client *salesforce.Client, proposalID string, meters []MeterInput, log logger.Logger) *Output {
	out := &Output{ProposalID: proposalID, Items: []ItemResult{}}

	for i, m := range meters {
		pod := normalizePOD(m.POD)
		item := ItemResult{POD: pod, Files: []FileResult{}}

		meterID, created, err := s.ensureMeteringPoint(ctx, client, pod, m)
		if err != nil {
			s.fail(out, i, pod, StepMeteringPoint, err, log)
			return out
		}
		item.MeteringPointID, item.Created = meterID, created

		junctionID, junctionCreated, err := s.ensureJunction(ctx, client, proposalID, meterID)
		if err != nil {
			s.fail(out, i, pod, StepJunction, err, log)
			return out
		}
		item.JunctionID, item.JunctionCreated = junctionID, junctionCreated

		for _, f := range m.Files {
			item.Files = append(item.Files, s.attach(ctx, client, junctionID, f, log))
		}

		log.Info("Metering point linked to proposal", map[string]interface{}{
			"pod":             pod,
			"meteringPointId": meterID,
			"junctionId":      junctionID,
			"created":         created,
			"files":           len(item.Files),
		})
		out.Items = append(out.Items, item)
	}

	out.Success = true
	return out
}

func (s *Service) fail(out *Output, index int, pod, step string, err error, log logger.Logger) {
	std := salesforce.ClassifyError(step, err)
	out.Success = false
	out.FailedAt = &FailedAt{Index: index, POD: pod, Step: step}
	out.Error = describe(std)
	out.ErrorCode = std.Code

	log.Error("Proposal meter workflow aborted", map[string]interface{}{
		"index":     index,
		"pod":       pod,
		"step":      step,
		"errorCode": string(std.Code),
		"error":     describe(std),
		"completed": len(out.Items),
	})
}

func (s *Service) ensureMeteringPoint(ctx context.Context, client *salesforce.Client, pod string, m MeterInput) (string, bool, error) {
	var existing []salesforce.MeteringPoint
	soql := fmt.Sprintf("SELECT Id, Name, POD__c FROM %s WHERE POD__c = %s LIMIT 1", salesforce.ObjectMeteringPoint, salesforce.Quote(pod))
	if err := client.Query(ctx, soql, &existing); err != nil {
		return "", false, err
	}
	if len(existing) > 0 {
		return existing[0].ID, false, nil
	}

	name := strings.TrimSpace(m.Name)
	if name == "" {
		name = pod
	}
	fields := map[string]interface{}{
		"Name":   name,
		"POD__c": pod,
	}
	if d, ok, _ := parseDecimal("annualConsumption", m.AnnualConsumption); ok {
		fields["Annual_Consumption__c"] = json.Number(d.String())
	}
	if d, ok, _ := parseDecimal("contractedPower", m.ContractedPower); ok {
		fields["Contracted_Power__c"] = json.Number(d.String())
	}
	if m.Tariff != "" {
		fields["Tariff__c"] = m.Tariff
	}

	id, err := client.Create(ctx, salesforce.ObjectMeteringPoint, fields)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *Service) ensureJunction(ctx context.Context, client *salesforce.Client, proposalID, meterID string) (string, bool, error) {
	var existing []salesforce.ProposalMeter
	soql := fmt.Sprintf("SELECT Id FROM %s WHERE Proposal__c = %s AND Metering_Point__c = %s LIMIT 1",
		salesforce.ObjectProposalMeter, salesforce.Quote(proposalID), salesforce.Quote(meterID))
	if err := client.Query(ctx, soql, &existing); err != nil {
		return "", false, err
	}
	if len(existing) > 0 {
		return existing[0].ID, false, nil
	}

	id, err := client.Create(ctx, salesforce.ObjectProposalMeter, map[string]interface{}{
		"Proposal__c":       proposalID,
		"Metering_Point__c": meterID,
	})
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// attach downloads one file and links it to the junction. A file already
// linked under the same title and file name is reported instead of uploaded
// again.
func (s *Service) attach(ctx context.Context, client *salesforce.Client, junctionID string, f FileInput, log logger.Logger) FileResult {
	res := FileResult{FileName: f.FileName}
	title := f.Title
	if title == "" {
		title = strings.TrimSuffix(f.FileName, path.Ext(f.FileName))
	}
	fileLog := log.WithFields(map[string]interface{}{"junctionId": junctionID, "fileName": f.FileName})

	existing, err := client.FindLinkedFile(ctx, junctionID, title, f.FileName)
	if err != nil {
		fileLog.Warn("Linked file lookup failed, uploading anyway", map[string]interface{}{"error": err.Error()})
	} else if existing != nil {
		res.ContentVersionID = existing.ContentVersionID
		res.ContentDocumentID = existing.ContentDocumentID
		res.LinkID = existing.LinkID
		res.AlreadyLinked = true
		return res
	}

	dlCtx, cancel := context.WithTimeout(ctx, s.downloadTimeout)
	file, err := s.downloader.Download(dlCtx, f.URL, s.maxFileBytes)
	cancel()
	if err != nil {
		res.Error = describe(errs.NewFileDownloadError(f.URL, err))
		fileLog.Warn("File download failed", map[string]interface{}{"error": err.Error()})
		return res
	}

	attached, err := client.AttachFile(ctx, junctionID, salesforce.FileUpload{Title: title, FileName: f.FileName, Data: file.Data})
	if attached != nil {
		res.ContentVersionID = attached.ContentVersionID
		res.ContentDocumentID = attached.ContentDocumentID
		res.LinkID = attached.LinkID
	}
	if err != nil {
		res.Error = describe(salesforce.ClassifyError("attach file", err))
		fileLog.Warn("File upload failed", map[string]interface{}{"error": err.Error()})
		return res
	}

	fileLog.Debug("File attached", map[string]interface{}{
		"bytes":            len(file.Data),
		"contentVersionId": attached.ContentVersionID,
	})
	return res
}

func describe(e *errs.StandardError) string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}
