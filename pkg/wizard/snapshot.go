package wizard

import (
	"migra/pkg/domain"
	"migra/pkg/engine"
	"migra/pkg/report"
	"migra/pkg/tenant"
)

// FileView is a carried file together with its mapping and review.
type FileView struct {
	File    engine.DetectedFile  `json:"file"`
	Mapping FileMapping          `json:"mapping"`
	Review  engine.MappingReview `json:"review"`
}

// Snapshot is the state a client renders for the current step.
type Snapshot struct {
	Step       Step   `json:"step"`
	Error      string `json:"error,omitempty"`
	UploadID   string `json:"uploadId,omitempty"`
	UploadName string `json:"uploadName,omitempty"`

	// Analyze step.
	Files      []engine.DetectedFile  `json:"files,omitempty"`
	Failures   []engine.FailureRecord `json:"failures,omitempty"`
	Skipped    []string               `json:"skipped,omitempty"`
	Selected   []int                  `json:"selected,omitempty"`
	CanConfirm bool                   `json:"canConfirm"`

	// Target selection and later.
	Carried []engine.DetectedFile `json:"carried,omitempty"`
	Target  *Target               `json:"target,omitempty"`
	Tenant  *tenant.Tenant        `json:"tenant,omitempty"`

	// Map step.
	Page     int        `json:"page"`
	Mappings []FileView `json:"mappings,omitempty"`

	Report *report.ImportReport `json:"report,omitempty"`
}

// Snapshot returns a view of the session. File data rows are left out.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Step:       c.step,
		UploadID:   c.uploadID,
		UploadName: c.uploadName,
		CanConfirm: c.CanConfirmSelection(),
		Target:     c.target,
		Tenant:     c.tenant,
		Page:       c.page,
		Report:     c.report,
	}
	if c.err != nil {
		s.Error = domain.UserMessage(c.err)
	}
	if c.analysis != nil {
		s.Files = summaries(c.analysis.Files)
		s.Failures = c.analysis.Failures
		s.Skipped = c.analysis.Skipped
		s.Selected = c.Selected()
	}
	if c.carried != nil {
		s.Carried = summaries(c.carried)
	}
	for i := range c.mappings {
		s.Mappings = append(s.Mappings, FileView{
			File:    c.carried[i].Summary(),
			Mapping: c.mappings[i],
			Review:  c.review(i),
		})
	}
	return s
}

func summaries(files []engine.DetectedFile) []engine.DetectedFile {
	out := make([]engine.DetectedFile, len(files))
	for i, f := range files {
		out[i] = f.Summary()
	}
	return out
}
