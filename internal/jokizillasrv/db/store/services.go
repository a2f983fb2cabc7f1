package store

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/jokizilla/jokizilla/internal/common/apperrors"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/dberror"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/models"
	"github.com/rs/zerolog/log"
)

const serviceAdditionalServices = "service_additional_services"

// LoadAdditionalServices fills the AdditionalServices of each service with its join rows
// and the referenced additional services, ordered by additional service id.
func LoadAdditionalServices(ctx context.Context, s *Store, services []models.Service) apperrors.Error {
	if len(services) == 0 {
		return nil
	}
	index := make(map[uint16]int, len(services))
	ids := make([]uint16, 0, len(services))
	for i := range services {
		services[i].AdditionalServices = []models.ServiceAdditionalService{}
		if _, ok := index[services[i].ID]; !ok {
			index[services[i].ID] = i
			ids = append(ids, services[i].ID)
		}
	}

	query, args, err := sqlx.In(`SELECT j.service_id, a.id, a.name, a.description, a.price
		FROM `+serviceAdditionalServices+` j
		JOIN additional_services a ON a.id = j.additional_service_id
		WHERE j.service_id IN (?)
		ORDER BY j.service_id, a.id`, ids)
	if err != nil {
		return dberror.ErrDatabase.MsgErr("unable to load additional services", err)
	}
	var rows []struct {
		ServiceID uint16 `db:"service_id"`
		models.AdditionalService
	}
	if err := s.selectAll(ctx, &rows, query, args...); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to load additional services")
		return dberror.ErrDatabase.MsgErr("unable to load additional services", err)
	}
	for _, r := range rows {
		a := r.AdditionalService
		i := index[r.ServiceID]
		services[i].AdditionalServices = append(services[i].AdditionalServices, models.ServiceAdditionalService{
			ServiceID:           r.ServiceID,
			AdditionalServiceID: a.ID,
			AdditionalService:   &a,
		})
	}

	// duplicated ids share the first occurrence's result
	for i := range services {
		if first := index[services[i].ID]; first != i {
			services[i].AdditionalServices = services[first].AdditionalServices
		}
	}
	return nil
}

// ReplaceAdditionalServices makes ids the complete set of additional services bundled with
// serviceID. It must run inside a transaction together with the service write.
func ReplaceAdditionalServices(ctx context.Context, s *Store, serviceID uint16, ids []uint16) apperrors.Error {
	if _, err := s.exec(ctx, "DELETE FROM "+serviceAdditionalServices+" WHERE service_id = ?", serviceID); err != nil {
		log.Ctx(ctx).Error().Err(err).Uint16("service_id", serviceID).Msg("failed to clear additional services")
		return s.classify(err, "unable to update additional services")
	}
	seen := make(map[uint16]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		_, err := s.exec(ctx, "INSERT INTO "+serviceAdditionalServices+" (service_id, additional_service_id) VALUES (?, ?)", serviceID, id)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Uint16("service_id", serviceID).Uint16("additional_service_id", id).Msg("failed to link additional service")
			return s.classify(err, "unable to update additional services")
		}
	}
	return nil
}

// SaveAdditionalServices persists the join rows of svc.
func SaveAdditionalServices(ctx context.Context, s *Store, svc *models.Service) apperrors.Error {
	ids := make([]uint16, 0, len(svc.AdditionalServices))
	for _, link := range svc.AdditionalServices {
		ids = append(ids, link.AdditionalServiceID)
	}
	return ReplaceAdditionalServices(ctx, s, svc.ID, ids)
}
