package model

import "time"

// Status represents maintenance request status
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether no further status change is permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Urgency represents triage urgency
type Urgency string

const (
	UrgencyLow       Urgency = "LOW"
	UrgencyMedium    Urgency = "MEDIUM"
	UrgencyHigh      Urgency = "HIGH"
	UrgencyEmergency Urgency = "EMERGENCY"
)

// CostRange is an estimated min/max repair cost
type CostRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Analysis is the triage snapshot attached to a request at creation.
// It is immutable once stored.
type Analysis struct {
	Category            string    `json:"category"`
	Urgency             Urgency   `json:"urgency"`
	Summary             string    `json:"summary"`
	SuggestedTechnician string    `json:"suggestedTechnician"`
	SuggestionReason    string    `json:"suggestionReason"`
	IdentifiedIssue     *string   `json:"identifiedIssue,omitempty"`
	EstimatedCostRange  CostRange `json:"estimatedCostRange"`
	PotentialParts      []string  `json:"potentialParts,omitempty"`
	SafetyWarnings      []string  `json:"safetyWarnings,omitempty"`
}

// Contact is the requester's contact details
type Contact struct {
	Name  string  `json:"name"`
	Phone string  `json:"phone"`
	Email *string `json:"email,omitempty"`
}

// Request represents a maintenance work order from intake to closure.
//
// AssignedTechnicianID and ScheduledDate are a single nullable pair: both
// nil or both set. ScheduledDate is a calendar date in YYYY-MM-DD form.
type Request struct {
	ID            string   `json:"id"`
	UserID        *string  `json:"userId,omitempty"`
	Description   string   `json:"description"`
	Analysis      Analysis `json:"analysis"`
	Contact       Contact  `json:"contact"`
	Address       string   `json:"address,omitempty"`
	Photos        []string `json:"photos,omitempty"`
	InspectionFee float64  `json:"inspectionFee"`

	Status               Status     `json:"status"`
	AssignedTechnicianID *string    `json:"assignedTechnicianId,omitempty"`
	ScheduledDate        *string    `json:"scheduledDate,omitempty"`
	ProblemCause         *string    `json:"problemCause,omitempty"`
	Solution             *string    `json:"solution,omitempty"`
	AmountPaid           *float64   `json:"amountPaid,omitempty"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
	PointsAwarded        bool       `json:"pointsAwarded"`

	// Declared for forward compatibility; nothing in the lifecycle
	// populates these yet.
	AmountPaidForInspection *float64 `json:"amountPaidForInspection,omitempty"`
	PaymentStatus           string   `json:"paymentStatus,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Assigned reports whether the request occupies a board cell.
func (r *Request) Assigned() bool {
	return r.AssignedTechnicianID != nil && r.ScheduledDate != nil
}

// Technician is owned by the roster collaborator; the board reads it.
type Technician struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	Region         string    `json:"region"`
	Rating         float64   `json:"rating"`
	IsAvailable    bool      `json:"isAvailable"`
	CreatedAt      time.Time `json:"createdAt"`
}

// User accumulates loyalty points
type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	Email           *string   `json:"email,omitempty"`
	Points          int       `json:"points"`
	ReferralCode    string    `json:"referralCode,omitempty"`
	ReferredBy      *string   `json:"referredBy,omitempty"`
	ReferralAwarded bool      `json:"referralAwarded"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Review is a rewardable review submission
type Review struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	RequestID     string    `json:"requestId"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment,omitempty"`
	PointsAwarded bool      `json:"pointsAwarded"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Rental is a rewardable rental agreement signing
type Rental struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	PropertyID    string     `json:"propertyId"`
	SignedAt      *time.Time `json:"signedAt,omitempty"`
	PointsAwarded bool       `json:"pointsAwarded"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// CommonIssue is a known issue definition for a service category
type CommonIssue struct {
	Name         string  `json:"name"`
	MinCost      float64 `json:"minCost"`
	MaxCost      float64 `json:"maxCost"`
	WarrantyDays int     `json:"warrantyDays"`
}

// Category maps a service category to its common issues and inspection fee
type Category struct {
	Name          string        `json:"name"`
	CommonIssues  []CommonIssue `json:"commonIssues"`
	InspectionFee float64       `json:"inspectionFee"`
}

// PointsConfig holds per-event point values; static during a session.
type PointsConfig struct {
	PerMaintenanceRequest int  `json:"pointsPerMaintenanceRequest"`
	PerReview             int  `json:"pointsPerReview"`
	PerRental             int  `json:"pointsPerRental"`
	PerReferral           int  `json:"pointsPerReferral"`
	Enabled               bool `json:"isEnabled"`
}

// DefaultPointsConfig returns the session defaults used when no
// configuration override is provided.
func DefaultPointsConfig() PointsConfig {
	return PointsConfig{
		PerMaintenanceRequest: 15,
		PerReview:             10,
		PerRental:             50,
		PerReferral:           25,
		Enabled:               true,
	}
}

// Invoice is a read-side projection of a completed request. It is never
// stored; it is rendered from the request on demand.
type Invoice struct {
	RequestID     string    `json:"requestId"`
	Requester     Contact   `json:"requester"`
	Category      string    `json:"category"`
	ProblemCause  string    `json:"problemCause"`
	Solution      string    `json:"solution"`
	AmountPaid    float64   `json:"amountPaid"`
	InspectionFee float64   `json:"inspectionFee"`
	CreatedAt     time.Time `json:"createdAt"`
	CompletedAt   time.Time `json:"completedAt"`
}
