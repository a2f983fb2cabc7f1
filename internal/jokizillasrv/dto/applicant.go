package dto

type ApplicantView struct {
	ID                uint32  `json:"Id"`
	FirstName         string  `json:"FirstName"`
	LastName          string  `json:"LastName"`
	Email             string  `json:"Email"`
	Phone             *string `json:"Phone"`
	CountryID         uint16  `json:"CountryId"`
	ApplicantStatusID uint8   `json:"ApplicantStatusId"`
	ReferralSourceID  *uint8  `json:"ReferralSourceId"`
	Notes             *string `json:"Notes"`
}

type ApplicantUpdate struct {
	FirstName         string  `json:"FirstName" validate:"required,max=100"`
	LastName          string  `json:"LastName" validate:"required,max=100"`
	Email             string  `json:"Email" validate:"required,email,max=254"`
	Phone             *string `json:"Phone" validate:"omitempty,max=32"`
	CountryID         uint16  `json:"CountryId" validate:"required"`
	ApplicantStatusID uint8   `json:"ApplicantStatusId" validate:"required"`
	ReferralSourceID  *uint8  `json:"ReferralSourceId" validate:"omitempty,min=1"`
	Notes             *string `json:"Notes" validate:"omitempty,max=2000"`
}
