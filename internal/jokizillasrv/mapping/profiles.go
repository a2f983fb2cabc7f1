package mapping

import (
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/models"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/dto"
)

var (
	AdditionalService = NewProfile[models.AdditionalService, dto.AdditionalServiceView, dto.AdditionalServiceUpdate]()
	Applicant         = NewProfile[models.Applicant, dto.ApplicantView, dto.ApplicantUpdate]()
	ApplicantStatus   = NewProfile[models.ApplicantStatus, dto.ApplicantStatusView, dto.ApplicantStatusUpdate]()
	Country           = NewProfile[models.Country, dto.CountryView, dto.CountryUpdate]()
	PriceType         = NewProfile[models.PriceType, dto.PriceTypeView, dto.PriceTypeUpdate]()
	ReferralSource    = NewProfile[models.ReferralSource, dto.ReferralSourceView, dto.ReferralSourceUpdate]()
	Urgency           = NewProfile[models.Urgency, dto.UrgencyView, dto.UrgencyUpdate]()
	WorkLevel         = NewProfile[models.WorkLevel, dto.WorkLevelView, dto.WorkLevelUpdate]()

	Service = NewProfile[models.Service, dto.ServiceView, dto.ServiceUpdate]().
		AfterView(serviceView).
		AfterUpdate(serviceUpdate).
		AfterApply(applyService)
)

// serviceView flattens loaded join rows. Services whose join rows were not loaded keep
// AdditionalServices unset.
func serviceView(e *models.Service, v *dto.ServiceView) {
	if e.AdditionalServices == nil {
		return
	}
	list := make([]dto.AdditionalServiceView, 0, len(e.AdditionalServices))
	for _, link := range e.AdditionalServices {
		if link.AdditionalService == nil {
			list = append(list, dto.AdditionalServiceView{ID: link.AdditionalServiceID})
			continue
		}
		a := link.AdditionalService
		list = append(list, dto.AdditionalServiceView{ID: a.ID, Name: a.Name, Description: a.Description, Price: a.Price})
	}
	v.AdditionalServices = &list
}

func serviceUpdate(e *models.Service, u *dto.ServiceUpdate) {
	u.AdditionalServiceIds = make([]uint16, 0, len(e.AdditionalServices))
	for _, link := range e.AdditionalServices {
		u.AdditionalServiceIds = append(u.AdditionalServiceIds, link.AdditionalServiceID)
	}
}

func applyService(u *dto.ServiceUpdate, e *models.Service) {
	e.AdditionalServices = make([]models.ServiceAdditionalService, 0, len(u.AdditionalServiceIds))
	for _, id := range u.AdditionalServiceIds {
		e.AdditionalServices = append(e.AdditionalServices, models.ServiceAdditionalService{
			ServiceID:           e.ID,
			AdditionalServiceID: id,
		})
	}
}
