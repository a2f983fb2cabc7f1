package store

import "github.com/jokizilla/jokizilla/internal/jokizillasrv/db/models"

var (
	AdditionalServices = NewTable[models.AdditionalService]("additional_services")
	Applicants         = NewTable[models.Applicant]("applicants")
	ApplicantStatuses  = NewTable[models.ApplicantStatus]("applicant_statuses")
	Countries          = NewTable[models.Country]("countries")
	PriceTypes         = NewTable[models.PriceType]("price_types")
	ReferralSources    = NewTable[models.ReferralSource]("referral_sources")
	Services           = NewTable[models.Service]("services")
	Urgencies          = NewTable[models.Urgency]("urgencies")
	WorkLevels         = NewTable[models.WorkLevel]("work_levels")
)
