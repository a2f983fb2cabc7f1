// Package dto holds the wire shapes of every resource. A view is what clients read; an
// update carries the writable properties and is the model state validated on create and
// patch.
package dto

type ApplicantStatusView struct {
	ID          uint8   `json:"Id"`
	Name        string  `json:"Name"`
	Description *string `json:"Description"`
}

type ApplicantStatusUpdate struct {
	Name        string  `json:"Name" validate:"required,max=64"`
	Description *string `json:"Description" validate:"omitempty,max=500"`
}

type PriceTypeView struct {
	ID          uint8   `json:"Id"`
	Name        string  `json:"Name"`
	Description *string `json:"Description"`
}

type PriceTypeUpdate struct {
	Name        string  `json:"Name" validate:"required,max=64"`
	Description *string `json:"Description" validate:"omitempty,max=500"`
}

type ReferralSourceView struct {
	ID          uint8   `json:"Id"`
	Name        string  `json:"Name"`
	Description *string `json:"Description"`
}

type ReferralSourceUpdate struct {
	Name        string  `json:"Name" validate:"required,max=64"`
	Description *string `json:"Description" validate:"omitempty,max=500"`
}

type UrgencyView struct {
	ID              uint8   `json:"Id"`
	Name            string  `json:"Name"`
	Description     *string `json:"Description"`
	PriceMultiplier float64 `json:"PriceMultiplier"`
}

type UrgencyUpdate struct {
	Name            string  `json:"Name" validate:"required,max=64"`
	Description     *string `json:"Description" validate:"omitempty,max=500"`
	PriceMultiplier float64 `json:"PriceMultiplier" validate:"gt=0"`
}

type WorkLevelView struct {
	ID              uint8   `json:"Id"`
	Name            string  `json:"Name"`
	Description     *string `json:"Description"`
	PriceMultiplier float64 `json:"PriceMultiplier"`
}

type WorkLevelUpdate struct {
	Name            string  `json:"Name" validate:"required,max=64"`
	Description     *string `json:"Description" validate:"omitempty,max=500"`
	PriceMultiplier float64 `json:"PriceMultiplier" validate:"gt=0"`
}

type CountryView struct {
	ID        uint16  `json:"Id"`
	Name      string  `json:"Name"`
	Code      string  `json:"Code"`
	PhoneCode *string `json:"PhoneCode"`
}

type CountryUpdate struct {
	Name      string  `json:"Name" validate:"required,max=100"`
	Code      string  `json:"Code" validate:"required,iso3166_1_alpha2"`
	PhoneCode *string `json:"PhoneCode" validate:"omitempty,max=8"`
}
