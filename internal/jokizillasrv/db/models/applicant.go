package models

type Applicant struct {
	ID                uint32  `db:"id"`
	FirstName         string  `db:"first_name"`
	LastName          string  `db:"last_name"`
	Email             string  `db:"email"`
	Phone             *string `db:"phone"`
	CountryID         uint16  `db:"country_id"`
	ApplicantStatusID uint8   `db:"applicant_status_id"`
	ReferralSourceID  *uint8  `db:"referral_source_id"`
	Notes             *string `db:"notes"`
}
