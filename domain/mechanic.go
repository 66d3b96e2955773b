package domain

import (
	"math"
	"time"
)

// Specialization enumerates the trades a mechanic can register under.
type Specialization string

const (
	SpecGeneral      Specialization = "General Mechanic"
	SpecEngine       Specialization = "Engine Specialist"
	SpecBrake        Specialization = "Brake Specialist"
	SpecElectrical   Specialization = "Electrical Specialist"
	SpecTransmission Specialization = "Transmission Specialist"
	SpecTire         Specialization = "Tire Specialist"
	SpecTowing       Specialization = "Towing Service"
)

// DaySchedule is a working window on one weekday, encoded as minutes since
// midnight so comparisons never go through string parsing.
type DaySchedule struct {
	StartMinutes int  `bson:"startMinutes" json:"startMinutes"`
	EndMinutes   int  `bson:"endMinutes" json:"endMinutes"`
	Available    bool `bson:"available" json:"available"`
}

// Availability is the weekly working schedule of a mechanic.
type Availability struct {
	Monday    DaySchedule `bson:"monday" json:"monday"`
	Tuesday   DaySchedule `bson:"tuesday" json:"tuesday"`
	Wednesday DaySchedule `bson:"wednesday" json:"wednesday"`
	Thursday  DaySchedule `bson:"thursday" json:"thursday"`
	Friday    DaySchedule `bson:"friday" json:"friday"`
	Saturday  DaySchedule `bson:"saturday" json:"saturday"`
	Sunday    DaySchedule `bson:"sunday" json:"sunday"`
}

// Day returns the schedule for a weekday.
func (a *Availability) Day(w time.Weekday) DaySchedule {
	switch w {
	case time.Monday:
		return a.Monday
	case time.Tuesday:
		return a.Tuesday
	case time.Wednesday:
		return a.Wednesday
	case time.Thursday:
		return a.Thursday
	case time.Friday:
		return a.Friday
	case time.Saturday:
		return a.Saturday
	default:
		return a.Sunday
	}
}

// AvailableAt reports whether the schedule covers the given instant.
func (a *Availability) AvailableAt(t time.Time) bool {
	day := a.Day(t.Weekday())
	if !day.Available {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= day.StartMinutes && minutes <= day.EndMinutes
}

// Review is one customer's feedback on a completed request. A mechanic
// carries at most one review per (customerId, requestId) pair.
type Review struct {
	CustomerID string    `bson:"customerId" json:"customerId"`
	RequestID  string    `bson:"requestId" json:"requestId"`
	Rating     int       `bson:"rating" json:"rating"`
	Comment    string    `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

// Earnings accumulates job income for a mechanic.
type Earnings struct {
	ThisMonth float64 `bson:"thisMonth" json:"thisMonth"`
	Total     float64 `bson:"total" json:"total"`
}

// Mechanic is a service provider profile linked 1:1 to an externally owned
// user identity. Rating is derived from Reviews and recomputed in the same
// atomic update that appends a review, never independently.
type Mechanic struct {
	ID              string         `bson:"_id,omitempty" json:"id"`
	UserID          string         `bson:"userId" json:"userId"`
	Specialization  Specialization `bson:"specialization" json:"specialization"`
	ExperienceYears int            `bson:"experienceYears" json:"experienceYears"`
	Rating          float64        `bson:"rating" json:"rating"`
	TotalJobs       int            `bson:"totalJobs" json:"totalJobs"`
	CompletedJobs   int            `bson:"completedJobs" json:"completedJobs"`
	IsVerified      bool           `bson:"isVerified" json:"isVerified"`
	IsOnline        bool           `bson:"isOnline" json:"isOnline"`
	CurrentLocation GeoPoint       `bson:"currentLocation" json:"currentLocation"`
	PricePerHour    float64        `bson:"pricePerHour" json:"pricePerHour"`
	Availability    Availability   `bson:"availability" json:"availability"`
	ServiceAreaKm   float64        `bson:"serviceArea" json:"serviceArea"`
	Reviews         []Review       `bson:"reviews" json:"reviews"`
	Earnings        Earnings       `bson:"earnings" json:"earnings"`
	CreatedAt       time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// AverageRating computes the mean of all review ratings rounded to one
// decimal, 0 when there are none.
func AverageRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return math.Round(float64(sum)/float64(len(reviews))*10) / 10
}

// ValidateReview checks a review submission against the schema constraints.
func ValidateReview(rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return NewValidation("rating must be between 1 and 5")
	}
	if len(comment) > maxReviewLen {
		return NewValidation("review cannot be more than %d characters", maxReviewLen)
	}
	return nil
}
