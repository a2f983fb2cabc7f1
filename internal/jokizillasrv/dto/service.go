package dto

type AdditionalServiceView struct {
	ID          uint16  `json:"Id"`
	Name        string  `json:"Name"`
	Description *string `json:"Description"`
	Price       float64 `json:"Price"`
}

type AdditionalServiceUpdate struct {
	Name        string  `json:"Name" validate:"required,max=100"`
	Description *string `json:"Description" validate:"omitempty,max=500"`
	Price       float64 `json:"Price" validate:"gte=0"`
}

// ServiceView lists its additional services only when they were expanded.
type ServiceView struct {
	ID                 uint16                   `json:"Id"`
	Name               string                   `json:"Name"`
	Description        *string                  `json:"Description"`
	Price              float64                  `json:"Price"`
	PriceTypeID        uint8                    `json:"PriceTypeId"`
	AdditionalServices *[]AdditionalServiceView `json:"AdditionalServices,omitempty" mapstructure:"-"`
}

// ServiceUpdate replaces the complete set of bundled additional services when
// AdditionalServiceIds is present.
type ServiceUpdate struct {
	Name                 string   `json:"Name" validate:"required,max=100"`
	Description          *string  `json:"Description" validate:"omitempty,max=500"`
	Price                float64  `json:"Price" validate:"gte=0"`
	PriceTypeID          uint8    `json:"PriceTypeId" validate:"required"`
	AdditionalServiceIds []uint16 `json:"AdditionalServiceIds" validate:"omitempty,dive,min=1" mapstructure:"-"`
}
