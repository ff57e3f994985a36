package parequest

// Static reference data backing the request form: pure in-memory tables,
// looked up at creation time to validate the procedure code and resolve its
// display name.

// CodeEntry is one reference-data code with its display name.
type CodeEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Provider is one ordering provider.
type Provider struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	NPI       string `json:"npi"`
	Specialty string `json:"specialty"`
}

// Payer is one insurance payer.
type Payer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Procedures are the CPT codes the form accepts.
var Procedures = []CodeEntry{
	{Code: "72148", Name: "MRI Lumbar Spine without Contrast"},
	{Code: "72149", Name: "MRI Lumbar Spine with Contrast"},
	{Code: "72158", Name: "MRI Lumbar Spine without and with Contrast"},
	{Code: "70551", Name: "MRI Brain without Contrast"},
	{Code: "93306", Name: "Transthoracic Echocardiogram, Complete"},
	{Code: "97110", Name: "Physical Therapy, Therapeutic Exercise"},
	{Code: "62323", Name: "Lumbar Epidural Steroid Injection"},
	{Code: "27447", Name: "Total Knee Arthroplasty"},
}

// Medications are the HCPCS J-codes the form accepts.
var Medications = []CodeEntry{
	{Code: "J1745", Name: "Infliximab (Remicade) Injection"},
	{Code: "J0135", Name: "Adalimumab (Humira) Injection"},
	{Code: "J2357", Name: "Omalizumab (Xolair) Injection"},
	{Code: "J3262", Name: "Tocilizumab (Actemra) Injection"},
	{Code: "J9035", Name: "Bevacizumab (Avastin) Injection"},
}

// Diagnoses are the ICD-10 codes offered on the form.
var Diagnoses = []CodeEntry{
	{Code: "M54.16", Name: "Radiculopathy, lumbar region"},
	{Code: "M51.26", Name: "Other intervertebral disc displacement, lumbar region"},
	{Code: "M54.5", Name: "Low back pain"},
	{Code: "G89.29", Name: "Other chronic pain"},
	{Code: "M17.11", Name: "Unilateral primary osteoarthritis, right knee"},
	{Code: "I50.9", Name: "Heart failure, unspecified"},
	{Code: "R51.9", Name: "Headache, unspecified"},
}

var Providers = []Provider{
	{ID: "prov-1", Name: "Dr. Sarah Mitchell", NPI: "1234567890", Specialty: "Orthopedic Surgery"},
	{ID: "prov-2", Name: "Dr. James Okafor", NPI: "1234567891", Specialty: "Neurology"},
	{ID: "prov-3", Name: "Dr. Elena Vasquez", NPI: "1234567892", Specialty: "Cardiology"},
	{ID: "prov-4", Name: "Dr. Priya Raman", NPI: "1234567893", Specialty: "Physical Medicine"},
}

var Payers = []Payer{
	{ID: "payer-1", Name: "Medicare"},
	{ID: "payer-2", Name: "Blue Cross Blue Shield"},
	{ID: "payer-3", Name: "UnitedHealthcare"},
	{ID: "payer-4", Name: "Aetna"},
}

// ProcedureName resolves a procedure or medication code to its display
// name. The bool reports whether the code is known at all.
func ProcedureName(code string) (string, bool) {
	for _, entry := range Procedures {
		if entry.Code == code {
			return entry.Name, true
		}
	}
	for _, entry := range Medications {
		if entry.Code == code {
			return entry.Name, true
		}
	}
	return "", false
}
