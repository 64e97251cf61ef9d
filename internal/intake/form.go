// Package intake implements the four-step merchant intake wizard as a pure
// state machine. It performs no I/O; attachments are references to files
// staged elsewhere.
package intake

import (
	"fmt"
	"strings"

	apperr "onboard/internal/errors"
	"onboard/internal/validation"
)

// Step is a position in the wizard.
type Step int

const (
	StepBusiness Step = iota + 1
	StepPersonal
	StepDocuments
	StepFinalize
)

func (s Step) String() string {
	switch s {
	case StepBusiness:
		return "business"
	case StepPersonal:
		return "personal"
	case StepDocuments:
		return "documents"
	case StepFinalize:
		return "finalize"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Text field keys.
const (
	FieldDBAName         = "dba_name"
	FieldBusinessPhone   = "business_phone"
	FieldBusinessWebsite = "business_website"
	FieldBusinessAddress = "business_address"
	FieldShippingAddress = "shipping_address"
	FieldTaxID           = "tax_id"
	FieldOwnerFirstName  = "owner_first_name"
	FieldOwnerLastName   = "owner_last_name"
	FieldPersonalPhone   = "personal_phone"
	FieldEmail           = "email"
	FieldSSN             = "ssn"
)

// KeyAgree holds the agreement error; KeyForm holds submission failures.
const (
	KeyAgree = "agree"
	KeyForm  = "form"

	MsgAcceptanceRequired = "Acceptance is required"
)

// FieldKeys lists every accepted text field.
var FieldKeys = []string{
	FieldDBAName, FieldBusinessPhone, FieldBusinessWebsite, FieldBusinessAddress,
	FieldShippingAddress, FieldTaxID, FieldOwnerFirstName, FieldOwnerLastName,
	FieldPersonalPhone, FieldEmail, FieldSSN,
}

var knownFields = func() map[string]struct{} {
	m := make(map[string]struct{}, len(FieldKeys))
	for _, k := range FieldKeys {
		m[k] = struct{}{}
	}
	return m
}()

var requiredFields = map[Step][]string{
	StepBusiness: {FieldDBAName, FieldBusinessPhone, FieldBusinessAddress, FieldTaxID},
	StepPersonal: {FieldOwnerFirstName, FieldOwnerLastName, FieldEmail, FieldSSN},
}

// IsField reports whether key is an accepted text field.
func IsField(key string) bool {
	_, ok := knownFields[key]
	return ok
}

// Attachment describes a staged, not yet uploaded, file.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Ref         string `json:"ref"`
}

// Form is the wizard state.
type Form struct {
	Step   Step                         `json:"step"`
	Fields map[string]string            `json:"fields"`
	Files  map[DocumentType]*Attachment `json:"files"`
	Agreed bool                         `json:"agreed"`
	Errors map[string]string            `json:"errors"`
}

// NewForm returns an empty form at the first step.
func NewForm() *Form {
	f := &Form{Step: StepBusiness}
	f.ensureMaps()
	return f
}

func (f *Form) ensureMaps() {
	if f.Fields == nil {
		f.Fields = make(map[string]string)
	}
	if f.Files == nil {
		f.Files = make(map[DocumentType]*Attachment)
	}
	if f.Errors == nil {
		f.Errors = make(map[string]string)
	}
	if f.Step < StepBusiness || f.Step > StepFinalize {
		f.Step = StepBusiness
	}
}

// SetField stores a text value and clears that field's error only.
func (f *Form) SetField(key, value string) error {
	if !IsField(key) {
		return fmt.Errorf("unknown field %q", key)
	}
	f.ensureMaps()
	f.Fields[key] = value
	delete(f.Errors, key)
	return nil
}

// Field returns the value stored for key.
func (f *Form) Field(key string) string {
	return f.Fields[key]
}

// Attach stores a file reference for docType and clears its error.
func (f *Form) Attach(docType DocumentType, a *Attachment) error {
	if !docType.Valid() {
		return fmt.Errorf("unknown document type %q", docType)
	}
	if a == nil {
		return f.Detach(docType)
	}
	f.ensureMaps()
	f.Files[docType] = a
	delete(f.Errors, string(docType))
	return nil
}

// Detach removes the file reference for docType and clears its error.
func (f *Form) Detach(docType DocumentType) error {
	if !docType.Valid() {
		return fmt.Errorf("unknown document type %q", docType)
	}
	f.ensureMaps()
	delete(f.Files, docType)
	delete(f.Errors, string(docType))
	return nil
}

// SetAgreement records the agreement flag and clears its error.
func (f *Form) SetAgreement(agreed bool) {
	f.ensureMaps()
	f.Agreed = agreed
	delete(f.Errors, KeyAgree)
}

// Validate returns the errors for step only, without touching form state.
func (f *Form) Validate(step Step) map[string]string {
	v := validation.New()
	for _, key := range requiredFields[step] {
		v.Required(key, f.Fields[key])
	}
	if step == StepDocuments {
		for _, dt := range RequiredDocuments {
			v.Present(string(dt), f.Files[dt] != nil, validation.MsgRequired)
		}
	}
	if step == StepFinalize {
		v.Present(KeyAgree, f.Agreed, MsgAcceptanceRequired)
	}
	return v.Errors
}

// Next validates the current step. On failure the step's errors are
// recorded and a VALIDATION_FAILED error is returned. On success it advances,
// except at the final step where it reports ready instead.
func (f *Form) Next() (ready bool, err error) {
	f.ensureMaps()
	delete(f.Errors, KeyForm)

	errs := f.Validate(f.Step)
	if len(errs) > 0 {
		for k, msg := range errs {
			f.Errors[k] = msg
		}
		return false, apperr.Validation(errs)
	}

	if f.Step == StepFinalize {
		return true, nil
	}
	f.Step++
	return false, nil
}

// Back moves one step back; it never validates.
func (f *Form) Back() {
	f.ensureMaps()
	if f.Step > StepBusiness {
		f.Step--
	}
}

// Fail records a submission-level error under KeyForm.
func (f *Form) Fail(message string) {
	f.ensureMaps()
	f.Errors[KeyForm] = message
}

// Business holds the step one fields.
type Business struct {
	DBAName         string
	Phone           string
	Website         string
	Address         string
	ShippingAddress string
	TaxID           string
}

// Owner holds the step two fields.
type Owner struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
	SSN       string
}

// Intake is a fully validated form ready for submission.
type Intake struct {
	Business  Business
	Owner     Owner
	Documents map[DocumentType]*Attachment
}

// Intake validates every step and returns the collected values.
func (f *Form) Intake() (*Intake, error) {
	f.ensureMaps()
	all := make(map[string]string)
	for s := StepBusiness; s <= StepFinalize; s++ {
		for k, msg := range f.Validate(s) {
			all[k] = msg
		}
	}
	if len(all) > 0 {
		return nil, apperr.Validation(all)
	}

	get := func(k string) string { return strings.TrimSpace(f.Fields[k]) }
	docs := make(map[DocumentType]*Attachment, len(f.Files))
	for dt, a := range f.Files {
		docs[dt] = a
	}

	return &Intake{
		Business: Business{
			DBAName:         get(FieldDBAName),
			Phone:           get(FieldBusinessPhone),
			Website:         get(FieldBusinessWebsite),
			Address:         get(FieldBusinessAddress),
			ShippingAddress: get(FieldShippingAddress),
			TaxID:           get(FieldTaxID),
		},
		Owner: Owner{
			FirstName: get(FieldOwnerFirstName),
			LastName:  get(FieldOwnerLastName),
			Phone:     get(FieldPersonalPhone),
			Email:     get(FieldEmail),
			SSN:       get(FieldSSN),
		},
		Documents: docs,
	}, nil
}
