// Package models holds the persisted entities. Column names come from the db tags; the
// key column is always id.
package models

type ApplicantStatus struct {
	ID          uint8   `db:"id"`
	Name        string  `db:"name"`
	Description *string `db:"description"`
}

type PriceType struct {
	ID          uint8   `db:"id"`
	Name        string  `db:"name"`
	Description *string `db:"description"`
}

type ReferralSource struct {
	ID          uint8   `db:"id"`
	Name        string  `db:"name"`
	Description *string `db:"description"`
}

type Urgency struct {
	ID              uint8   `db:"id"`
	Name            string  `db:"name"`
	Description     *string `db:"description"`
	PriceMultiplier float64 `db:"price_multiplier"`
}

type WorkLevel struct {
	ID              uint8   `db:"id"`
	Name            string  `db:"name"`
	Description     *string `db:"description"`
	PriceMultiplier float64 `db:"price_multiplier"`
}

type Country struct {
	ID        uint16  `db:"id"`
	Name      string  `db:"name"`
	Code      string  `db:"code"` // ISO 3166-1 alpha-2
	PhoneCode *string `db:"phone_code"`
}
