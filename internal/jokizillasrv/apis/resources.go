package apis

import (
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/auth"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/store"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/mapping"
)

// resources returns a fresh controller per entity set. Applicants may be written by
// writers; every other set is maintained by admins.
func resources() []resource {
	return []resource{
		newController("AdditionalService", store.AdditionalServices, mapping.AdditionalService, auth.Admin),
		newController("Applicant", store.Applicants, mapping.Applicant, auth.Writer, auth.Admin),
		newController("ApplicantStatus", store.ApplicantStatuses, mapping.ApplicantStatus, auth.Admin),
		newController("Country", store.Countries, mapping.Country, auth.Admin),
		newController("PriceType", store.PriceTypes, mapping.PriceType, auth.Admin),
		newController("ReferralSource", store.ReferralSources, mapping.ReferralSource, auth.Admin),
		newController("Service", store.Services, mapping.Service, auth.Admin).
			withNavigation(store.LoadAdditionalServices, store.SaveAdditionalServices),
		newController("Urgency", store.Urgencies, mapping.Urgency, auth.Admin),
		newController("WorkLevel", store.WorkLevels, mapping.WorkLevel, auth.Admin),
	}
}
