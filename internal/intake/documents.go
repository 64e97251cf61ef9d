package intake

// DocumentType names an uploadable document; it doubles as the storage folder.
type DocumentType string

const (
	DocDriversLicense  DocumentType = "drivers_license"
	DocBusinessLicense DocumentType = "business_license"
	DocVoidCheck       DocumentType = "void_check"
	DocAdditional      DocumentType = "additional"
)

// RequiredDocuments must be attached before leaving the documents step.
var RequiredDocuments = []DocumentType{DocDriversLicense, DocBusinessLicense, DocVoidCheck}

// AllDocuments lists every document type in upload order.
var AllDocuments = []DocumentType{DocDriversLicense, DocBusinessLicense, DocVoidCheck, DocAdditional}

// Valid reports whether d is a known document type.
func (d DocumentType) Valid() bool {
	switch d {
	case DocDriversLicense, DocBusinessLicense, DocVoidCheck, DocAdditional:
		return true
	}
	return false
}

// Folder is the storage folder for the document type.
func (d DocumentType) Folder() string {
	return string(d)
}
