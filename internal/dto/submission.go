package dto

import "github.com/opensalaries/teacherpay-api/internal/models"

// CreateSubmissionRequest is the public intake payload. Exactly one of
// SchoolID / NewSchoolName must be provided.
type CreateSubmissionRequest struct {
	SchoolID         string `json:"schoolId"`
	NewSchoolName    string `json:"newSchoolName"`
	NewSchoolCountry string `json:"newSchoolCountry"`

	Position      models.Position `json:"position" validate:"required"`
	GrossPay      float64         `json:"grossPay" validate:"required,gt=0"`
	GrossCurrency string          `json:"grossCurrency" validate:"required,len=3"`

	AccommodationType      models.AccommodationType `json:"accommodationType" validate:"required"`
	AccommodationAllowance *float64                 `json:"accommodationAllowance,omitempty" validate:"omitempty,gt=0"`
	AccommodationCurrency  string                   `json:"accommodationCurrency,omitempty" validate:"omitempty,len=3"`

	NetPay      *float64 `json:"netPay,omitempty" validate:"omitempty,gt=0"`
	NetCurrency string   `json:"netCurrency,omitempty" validate:"omitempty,len=3"`

	TaxNotApplicable       bool     `json:"taxNotApplicable"`
	PensionOffered         bool     `json:"pensionOffered"`
	PensionPercentage      *float64 `json:"pensionPercentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	ChildPlaces            *string  `json:"childPlaces,omitempty"`
	ChildPlacesDetail      *string  `json:"childPlacesDetail,omitempty"`
	MedicalInsurance       bool     `json:"medicalInsurance"`
	MedicalInsuranceDetail *string  `json:"medicalInsuranceDetail,omitempty"`
}

// CreateSubmissionResponse acknowledges intake.
type CreateSubmissionResponse struct {
	ID     string                  `json:"id"`
	Status models.SubmissionStatus `json:"status"`
}

// BulkRefileRequest re-files approved submissions to pending or denied.
type BulkRefileRequest struct {
	IDs    []string                `json:"ids" validate:"required,min=1"`
	Status models.SubmissionStatus `json:"status" validate:"required"`
}

// BulkRefileResponse reports how many rows moved.
type BulkRefileResponse struct {
	Moved  int64                   `json:"moved"`
	Status models.SubmissionStatus `json:"status"`
}

// MatchSchoolRequest links an unresolved submission to an existing school.
type MatchSchoolRequest struct {
	SchoolID string `json:"schoolId" validate:"required"`
}

// EditPendingNameRequest corrects the free-text school name before approval.
type EditPendingNameRequest struct {
	Name string `json:"name" validate:"required,min=2"`
}
