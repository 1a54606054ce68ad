package models

import "time"

// Position enumerates the five ordered pay tiers.
type Position string

const (
	PositionClassroomTeacher Position = "classroom_teacher"
	PositionTeacherExtra     Position = "teacher_additional_responsibilities"
	PositionMiddleLeader     Position = "middle_leader"
	PositionSeniorLeader     Position = "senior_leader_other"
	PositionSeniorHead       Position = "senior_leader_head"
)

var positionRank = map[Position]int{
	PositionClassroomTeacher: 0,
	PositionTeacherExtra:     1,
	PositionMiddleLeader:     2,
	PositionSeniorLeader:     3,
	PositionSeniorHead:       4,
}

// Rank returns the tier order of the position, -1 when unknown.
func (p Position) Rank() int {
	if rank, ok := positionRank[p]; ok {
		return rank
	}
	return -1
}

// Valid reports whether the position is one of the five tiers.
func (p Position) Valid() bool {
	_, ok := positionRank[p]
	return ok
}

// TeacherPositions are the tiers included in salary averages (leadership
// head/other excluded).
var TeacherPositions = []Position{
	PositionClassroomTeacher,
	PositionTeacherExtra,
	PositionMiddleLeader,
}

// AccommodationType enumerates accommodation arrangements.
type AccommodationType string

const (
	AccommodationAllowance   AccommodationType = "allowance"
	AccommodationFurnished   AccommodationType = "provided_furnished"
	AccommodationUnfurnished AccommodationType = "provided_unfurnished"
	AccommodationNone        AccommodationType = "not_provided"
)

// Valid reports whether the accommodation type is known.
func (a AccommodationType) Valid() bool {
	switch a {
	case AccommodationAllowance, AccommodationFurnished, AccommodationUnfurnished, AccommodationNone:
		return true
	}
	return false
}

// SubmissionStatus captures moderation workflow states.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusDenied   SubmissionStatus = "denied"
)

// Valid reports whether the status is a known workflow state.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied:
		return true
	}
	return false
}

// ModerationAction enumerates the administrative transitions.
type ModerationAction string

const (
	ActionApprove       ModerationAction = "approve"
	ActionDeny          ModerationAction = "deny"
	ActionRestore       ModerationAction = "restore"
	ActionRefilePending ModerationAction = "refile_pending"
	ActionRefileDenied  ModerationAction = "refile_denied"
)

// transitions is the single source of truth for the moderation state
// machine: current state x action -> next state. Combinations absent from
// the table are rejected centrally.
var transitions = map[SubmissionStatus]map[ModerationAction]SubmissionStatus{
	StatusPending: {
		ActionApprove: StatusApproved,
		ActionDeny:    StatusDenied,
	},
	StatusDenied: {
		ActionRestore: StatusPending,
	},
	StatusApproved: {
		ActionRefilePending: StatusPending,
		ActionRefileDenied:  StatusDenied,
	},
}

// NextStatus resolves the target state for an action, reporting legality.
func NextStatus(current SubmissionStatus, action ModerationAction) (SubmissionStatus, bool) {
	next, ok := transitions[current][action]
	return next, ok
}

// MoneyProjection is a monetary basis converted into the three display
// currencies plus the submission's local currency. A basis is either fully
// populated or entirely absent; partial conversion state is unrepresentable.
type MoneyProjection struct {
	SourceAmount   float64   `json:"sourceAmount"`
	SourceCurrency string    `json:"sourceCurrency"`
	USD            float64   `json:"usd"`
	GBP            float64   `json:"gbp"`
	EUR            float64   `json:"eur"`
	Local          float64   `json:"local"`
	RateDate       time.Time `json:"rateDate"`
}

// FraudSignals are the best-effort IP reputation flags attached at intake.
type FraudSignals struct {
	Flagged   bool    `json:"flagged"`
	IsVPN     bool    `json:"isVpn"`
	IsTor     bool    `json:"isTor"`
	IsProxy   bool    `json:"isProxy"`
	IsAbuser  bool    `json:"isAbuser"`
	IPAddress string  `json:"-"`
	IPCountry *string `json:"ipCountry,omitempty"`
}

// Submission is an anonymous salary report moving through moderation.
// Exactly one of SchoolID / NewSchoolName is set while the school is
// unresolved; matching or approval collapses it to SchoolID.
type Submission struct {
	ID               string  `json:"id"`
	SchoolID         *string `json:"schoolId,omitempty"`
	NewSchoolName    *string `json:"newSchoolName,omitempty"`
	NewSchoolCountry *string `json:"newSchoolCountry,omitempty"`

	Position          Position          `json:"position"`
	AccommodationType AccommodationType `json:"accommodationType"`

	Gross             MoneyProjection  `json:"gross"`
	Accommodation     *MoneyProjection `json:"accommodation,omitempty"`
	Net               *MoneyProjection `json:"net,omitempty"`
	LocalCurrencyCode string           `json:"localCurrencyCode"`

	TaxNotApplicable       bool    `json:"taxNotApplicable"`
	PensionOffered         bool    `json:"pensionOffered"`
	PensionPercentage      *float64 `json:"pensionPercentage,omitempty"`
	ChildPlaces            *string  `json:"childPlaces,omitempty"`
	ChildPlacesDetail      *string  `json:"childPlacesDetail,omitempty"`
	MedicalInsurance       bool     `json:"medicalInsurance"`
	MedicalInsuranceDetail *string  `json:"medicalInsuranceDetail,omitempty"`

	Fraud FraudSignals `json:"fraud"`

	Status      SubmissionStatus `json:"status"`
	SubmittedAt time.Time        `json:"submittedAt"`
	ReviewedAt  *time.Time       `json:"reviewedAt,omitempty"`

	// Joined display fields, populated by list queries.
	SchoolName  *string `json:"schoolName,omitempty"`
	CountryName *string `json:"countryName,omitempty"`
}

// SubmissionFilter constrains listing queries.
type SubmissionFilter struct {
	Status   SubmissionStatus
	SchoolID string
	Limit    int
	Offset   int
}
