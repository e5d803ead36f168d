package models

// PipelineStage is a stage in the CRM pipeline. The set of stages valid for a
// record depends on its BusinessMode; see the pipeline package for the
// per-mode vocabularies.
type PipelineStage string

const (
	StageLead       PipelineStage = "Lead"
	StageEvaluation PipelineStage = "Evaluation"
	StageProposal   PipelineStage = "Proposal"
	StageTreatment  PipelineStage = "Treatment"
	StageCompleted  PipelineStage = "Completed"

	StageDesign         PipelineStage = "Digital Design"
	StageProduction     PipelineStage = "In Production"
	StageQualityControl PipelineStage = "QC & Sterilization"
	StageShipping       PipelineStage = "Out for Delivery"
)

// ProposalStatus is the lifecycle state of a price quote.
type ProposalStatus string

const (
	ProposalDraft    ProposalStatus = "Draft"
	ProposalSent     ProposalStatus = "Sent"
	ProposalAccepted ProposalStatus = "Accepted"
	ProposalRejected ProposalStatus = "Rejected"
)

// ProposalItem is a single priced line in a proposal.
type ProposalItem struct {
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// Proposal is a price quote attached to a patient or lab order. Once
// generated it is never overwritten; a record acquires at most one
// auto-generated proposal from entering the Proposal stage.
type Proposal struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Items     []ProposalItem `json:"items"`
	Total     float64        `json:"total"`
	Status    ProposalStatus `json:"status"`
	CreatedAt string         `json:"createdAt"`
}

// Address is an optional structured mailing address.
type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighbor"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
}

// Patient represents either a clinical patient or a lab order, disambiguated
// by Mode. Mode is immutable after creation and determines which stage
// vocabulary is valid for Stage.
type Patient struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Phone           string        `json:"phone"`
	TaxID           string        `json:"cpf_cnpj,omitempty"`
	Address         *Address      `json:"address,omitempty"`
	Birthday        string        `json:"birthday,omitempty"`
	Stage           PipelineStage `json:"stage"`
	LastInteraction string        `json:"lastInteraction"`
	AIInsights      []string      `json:"aiInsights"`
	TotalValue      float64       `json:"totalValue"`
	Mode            BusinessMode  `json:"mode"`
	Proposals       []Proposal    `json:"proposals"`
	FilesCount      int           `json:"filesCount,omitempty"`
}

// HasProposal reports whether the record already carries at least one
// proposal. The auto-generation rule fires only while this is false.
func (p *Patient) HasProposal() bool {
	return len(p.Proposals) > 0
}

func (p Patient) clone() Patient {
	cp := p
	if p.Address != nil {
		addr := *p.Address
		cp.Address = &addr
	}
	cp.AIInsights = append([]string(nil), p.AIInsights...)
	cp.Proposals = make([]Proposal, len(p.Proposals))
	for i, prop := range p.Proposals {
		cp.Proposals[i] = prop
		cp.Proposals[i].Items = append([]ProposalItem(nil), prop.Items...)
	}
	return cp
}
