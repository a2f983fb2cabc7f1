package models

type AdditionalService struct {
	ID          uint16  `db:"id"`
	Name        string  `db:"name"`
	Description *string `db:"description"`
	Price       float64 `db:"price"`
}

// Service is offered at a base price and may bundle additional services through
// ServiceAdditionalService join rows.
type Service struct {
	ID          uint16  `db:"id"`
	Name        string  `db:"name"`
	Description *string `db:"description"`
	Price       float64 `db:"price"`
	PriceTypeID uint8   `db:"price_type_id"`

	AdditionalServices []ServiceAdditionalService `db:"-"`
}

type ServiceAdditionalService struct {
	ServiceID           uint16 `db:"service_id"`
	AdditionalServiceID uint16 `db:"additional_service_id"`

	AdditionalService *AdditionalService `db:"-"`
}
