package domain

import "time"

// OnboardingStep is the ordered funnel a new user moves through.
type OnboardingStep string

const (
	StepCreated  OnboardingStep = "created"
	StepVerified OnboardingStep = "verified"
	StepFunded   OnboardingStep = "funded"
	StepActive   OnboardingStep = "active"
)

// onboardingOrder fixes the progression; a user only ever advances one step at a time.
var onboardingOrder = []OnboardingStep{StepCreated, StepVerified, StepFunded, StepActive}

// NextStep returns the step after s, or "" when s is terminal or unknown.
func NextStep(s OnboardingStep) OnboardingStep {
	for i, step := range onboardingOrder {
		if step == s && i+1 < len(onboardingOrder) {
			return onboardingOrder[i+1]
		}
	}
	return ""
}

// User is a platform member receiving picks and notifications.
type User struct {
	ID            string         `db:"id"             json:"id"`
	Email         string         `db:"email"          json:"email"`
	Phone         string         `db:"phone"          json:"phone"`
	DiscordID     string         `db:"discord_id"     json:"discord_id"`
	Step          OnboardingStep `db:"step"           json:"step"`
	EmailVerified bool           `db:"email_verified" json:"email_verified"`
	Funded        bool           `db:"funded"         json:"funded"`
	CreatedAt     time.Time      `db:"created_at"     json:"created_at"`
	StepChangedAt time.Time      `db:"step_changed_at" json:"step_changed_at"`
}
