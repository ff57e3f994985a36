package parequest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// demoRequests is the fixed demo dataset. Reseeding always yields exactly
// this many records; timestamps are stamped fresh on every seeding.
var demoRequests = []Request{
	{
		Patient:       PatientSnapshot{Name: "Margaret Chen", MRN: "MRN-100234", DOB: "1958-04-12", MemberID: "BCB-883921", Payer: "Blue Cross Blue Shield"},
		ProcedureCode: "72148",
		DiagnosisCode: "M54.16",
		DiagnosisName: "Radiculopathy, lumbar region",
		ProviderID:    "prov-1",
	},
	{
		Patient:       PatientSnapshot{Name: "Robert Alvarez", MRN: "MRN-100871", DOB: "1964-09-30", MemberID: "UHC-229184", Payer: "UnitedHealthcare"},
		ProcedureCode: "27447",
		DiagnosisCode: "M17.11",
		DiagnosisName: "Unilateral primary osteoarthritis, right knee",
		ProviderID:    "prov-1",
	},
	{
		Patient:       PatientSnapshot{Name: "Dorothy Williams", MRN: "MRN-101442", DOB: "1949-01-22", MemberID: "MCR-771203", Payer: "Medicare"},
		ProcedureCode: "93306",
		DiagnosisCode: "I50.9",
		DiagnosisName: "Heart failure, unspecified",
		ProviderID:    "prov-3",
	},
	{
		Patient:       PatientSnapshot{Name: "Ahmed Hassan", MRN: "MRN-102093", DOB: "1977-06-05", MemberID: "AET-448812", Payer: "Aetna"},
		ProcedureCode: "70551",
		DiagnosisCode: "R51.9",
		DiagnosisName: "Headache, unspecified",
		ProviderID:    "prov-2",
	},
	{
		Patient:       PatientSnapshot{Name: "Linda Kowalski", MRN: "MRN-102558", DOB: "1971-11-18", MemberID: "BCB-102947", Payer: "Blue Cross Blue Shield"},
		ProcedureCode: "62323",
		DiagnosisCode: "M51.26",
		DiagnosisName: "Other intervertebral disc displacement, lumbar region",
		ProviderID:    "prov-4",
	},
}

// Seed replaces the store's contents with the fixed demo dataset. It is
// idempotent in count but not in content: every seeding stamps fresh
// timestamps and may allocate different ids.
func Seed(ctx context.Context, store Store) error {
	existing, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("demo seed: list existing requests: %w", err)
	}
	for _, request := range existing {
		if _, err := store.Delete(ctx, request.ID); err != nil {
			return fmt.Errorf("demo seed: clear request %s: %w", request.ID, err)
		}
	}
	for _, template := range demoRequests {
		request := template
		if name, known := ProcedureName(request.ProcedureCode); known {
			request.ProcedureName = name
		}
		if err := store.Create(ctx, &request); err != nil {
			return fmt.Errorf("demo seed: create request for %s: %w", request.Patient.Name, err)
		}
	}
	log.Ctx(ctx).Info().Msgf("Demo dataset seeded (%d requests)", len(demoRequests))
	return nil
}
