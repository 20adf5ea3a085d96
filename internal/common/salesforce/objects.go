package salesforce

import (
	"net/url"
	"strings"

	errs "crm-functions/internal/common/errors"
)

// CRM object API names.
const (
	ObjectOpportunity         = "Opportunity"
	ObjectProposal            = "Proposal__c"
	ObjectMeteringPoint       = "Metering_Point__c"
	ObjectProposalMeter       = "Proposal_Meter__c"
	ObjectContentVersion      = "ContentVersion"
	ObjectContentDocumentLink = "ContentDocumentLink"
)

type Opportunity struct {
	ID               string   `json:"Id"`
	Name             string   `json:"Name"`
	StageName        string   `json:"StageName"`
	CloseDate        string   `json:"CloseDate"`
	Amount           *float64 `json:"Amount"`
	AccountID        string   `json:"AccountId"`
	OwnerID          string   `json:"OwnerId"`
	LastModifiedDate string   `json:"LastModifiedDate"`
}

type Proposal struct {
	ID            string       `json:"Id"`
	Name          string       `json:"Name"`
	OpportunityID string       `json:"Opportunity__c"`
	Status        string       `json:"Status__c"`
	Opportunity   *Opportunity `json:"Opportunity__r"`
}

// MeteringPoint is keyed by its POD (point of delivery) code.
type MeteringPoint struct {
	ID                string   `json:"Id"`
	Name              string   `json:"Name"`
	POD               string   `json:"POD__c"`
	AnnualConsumption *float64 `json:"Annual_Consumption__c"`
	ContractedPower   *float64 `json:"Contracted_Power__c"`
	Tariff            string   `json:"Tariff__c"`
}

// ProposalMeter is the proposal <-> metering point junction.
type ProposalMeter struct {
	ID              string         `json:"Id"`
	Name            string         `json:"Name"`
	ProposalID      string         `json:"Proposal__c"`
	MeteringPointID string         `json:"Metering_Point__c"`
	MeteringPoint   *MeteringPoint `json:"Metering_Point__r"`
}

type ContentVersion struct {
	ID                string `json:"Id"`
	Title             string `json:"Title"`
	PathOnClient      string `json:"PathOnClient"`
	FileExtension     string `json:"FileExtension"`
	FileType          string `json:"FileType"`
	ContentDocumentID string `json:"ContentDocumentId"`
	ContentSize       int64  `json:"ContentSize"`
}

type ContentDocumentLink struct {
	ID                string `json:"Id"`
	ContentDocumentID string `json:"ContentDocumentId"`
	LinkedEntityID    string `json:"LinkedEntityId"`
	ContentDocument   *struct {
		Title                    string `json:"Title"`
		LatestPublishedVersionID string `json:"LatestPublishedVersionId"`
	} `json:"ContentDocument"`
}

var soqlEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// Quote renders s as a SOQL string literal.
func Quote(s string) string {
	return "'" + soqlEscaper.Replace(s) + "'"
}

// IsID reports whether s looks like a 15 or 18 character record id.
func IsID(s string) bool {
	if len(s) != 15 && len(s) != 18 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// CheckInstanceURL accepts only https URLs whose host is one of hosts or a
// subdomain of one.
func CheckInstanceURL(raw string, hosts []string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" || u.User != nil {
		return errs.NewValidationError("CRM instance URL must be an https URL", "instanceUrl: "+raw)
	}
	if u.Port() != "" && u.Port() != "443" {
		return errs.NewValidationError("CRM instance URL must use the default port", "instanceUrl: "+raw)
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range hosts {
		allowed = strings.ToLower(strings.TrimPrefix(allowed, "."))
		if allowed != "" && (host == allowed || strings.HasSuffix(host, "."+allowed)) {
			return nil
		}
	}
	return errs.NewValidationError("CRM instance host is not allowed", "instanceUrl: "+raw)
}
