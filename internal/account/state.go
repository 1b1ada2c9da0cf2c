package account

import (
	"echobox/internal/models"
	"echobox/internal/pending"
)

// RegistrationState is either Candidate (cache-resident, expiring) or
// Committed (store-resident, permanent).
type RegistrationState interface {
	registrationState()
	RegistrationEmail() string
}

// Candidate is a signup that has not been verified yet.
type Candidate struct {
	pending.Candidate
}

// Committed is a verified signup that now exists as a user row.
type Committed struct {
	User *models.User
}

func (Candidate) registrationState() {}
func (Committed) registrationState() {}

func (c Candidate) RegistrationEmail() string { return c.Email }
func (c Committed) RegistrationEmail() string { return c.User.Email }
