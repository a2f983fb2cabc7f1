// Package seed loads lookup data from YAML files. Each document maps entity set names to
// lists of entities; every entity carries its Id so that seeding twice creates nothing new.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jokizilla/jokizilla/internal/common/apperrors"
	"github.com/jokizilla/jokizilla/internal/common/httpx"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/store"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/dto"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/mapping"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Data holds the entities of a seed file by entity set name.
type Data map[string][]map[string]any

// Stats counts the outcome for one entity set.
type Stats struct {
	Created  int
	Existing int
}

// ParseFile reads a seed file. Documents separated by --- are merged in order.
func ParseFile(filename string) (Data, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (Data, error) {
	data := Data{}
	decoder := yaml.NewDecoder(bytes.NewReader(b))
	for {
		var doc map[string][]map[string]any
		if err := decoder.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
		for name, items := range doc {
			if _, ok := setByName(name); !ok {
				return nil, fmt.Errorf("unknown entity set %q", name)
			}
			data[name] = append(data[name], items...)
		}
	}
	return data, nil
}

// Apply creates the entities of data that do not exist yet, referenced sets first. It
// stops at the first invalid entity; run it inside a transaction to keep a failed seed
// from being applied partially.
func Apply(ctx context.Context, s *store.Store, data Data) (map[string]Stats, error) {
	result := make(map[string]Stats, len(data))
	for _, set := range sets {
		items, ok := data[set.name()]
		if !ok {
			continue
		}
		stats, err := set.seed(ctx, s, items)
		if err != nil {
			return nil, err
		}
		result[set.name()] = stats
		log.Ctx(ctx).Info().Str("set", set.name()).Int("created", stats.Created).Int("existing", stats.Existing).Msg("seeded")
	}
	return result, nil
}

type entitySet interface {
	name() string
	seed(ctx context.Context, s *store.Store, items []map[string]any) (Stats, error)
}

// sets lists every set after the sets it references.
var sets = []entitySet{
	newSeeder("ApplicantStatus", store.ApplicantStatuses, mapping.ApplicantStatus),
	newSeeder("PriceType", store.PriceTypes, mapping.PriceType),
	newSeeder("ReferralSource", store.ReferralSources, mapping.ReferralSource),
	newSeeder("Urgency", store.Urgencies, mapping.Urgency),
	newSeeder("WorkLevel", store.WorkLevels, mapping.WorkLevel),
	newSeeder("Country", store.Countries, mapping.Country),
	newSeeder("AdditionalService", store.AdditionalServices, mapping.AdditionalService),
	newSeeder("Service", store.Services, mapping.Service).withSave(store.SaveAdditionalServices),
	newSeeder("Applicant", store.Applicants, mapping.Applicant),
}

func setByName(name string) (entitySet, bool) {
	for _, set := range sets {
		if set.name() == name {
			return set, true
		}
	}
	return nil, false
}

// SetNames lists the entity sets a seed file may contain.
func SetNames() []string {
	names := make([]string, 0, len(sets))
	for _, set := range sets {
		names = append(names, set.name())
	}
	sort.Strings(names)
	return names
}

type seeder[E, V, U any] struct {
	setName string
	table   *store.Table[E]
	profile *mapping.Profile[E, V, U]
	save    func(ctx context.Context, s *store.Store, row *E) apperrors.Error
}

func newSeeder[E, V, U any](name string, table *store.Table[E], profile *mapping.Profile[E, V, U]) *seeder[E, V, U] {
	return &seeder[E, V, U]{setName: name, table: table, profile: profile}
}

func (sd *seeder[E, V, U]) withSave(save func(ctx context.Context, s *store.Store, row *E) apperrors.Error) *seeder[E, V, U] {
	sd.save = save
	return sd
}

func (sd *seeder[E, V, U]) name() string {
	return sd.setName
}

func (sd *seeder[E, V, U]) seed(ctx context.Context, s *store.Store, items []map[string]any) (Stats, error) {
	var stats Stats
	for i, item := range items {
		where := fmt.Sprintf("%s #%d", sd.setName, i+1)
		id, err := sd.key(item)
		if err != nil {
			return stats, fmt.Errorf("%s: %w", where, err)
		}
		exists, aerr := sd.table.Exists(ctx, s, id)
		if aerr != nil {
			return stats, aerr
		}
		if exists {
			stats.Existing++
			continue
		}

		fields := make(map[string]any, len(item))
		for k, v := range item {
			if k != "Id" {
				fields[k] = v
			}
		}
		b, err := json.Marshal(fields)
		if err != nil {
			return stats, fmt.Errorf("%s: %w", where, err)
		}
		u := new(U)
		if err := httpx.DecodeStrict(b, u); err != nil {
			return stats, fmt.Errorf("%s: %w", where, err)
		}
		if verr := dto.Validate(u); verr != nil {
			return stats, fmt.Errorf("%s: %s", where, describe(verr))
		}
		row := new(E)
		if aerr := sd.profile.Apply(u, row); aerr != nil {
			return stats, aerr
		}
		sd.table.SetKey(row, id)
		if aerr := sd.table.Insert(ctx, s, row); aerr != nil {
			return stats, fmt.Errorf("%s: %w", where, aerr)
		}
		if sd.save != nil {
			if aerr := sd.save(ctx, s, row); aerr != nil {
				return stats, fmt.Errorf("%s: %w", where, aerr)
			}
		}
		stats.Created++
	}
	return stats, nil
}

func (sd *seeder[E, V, U]) key(item map[string]any) (uint64, error) {
	raw, ok := item["Id"]
	if !ok {
		return 0, fmt.Errorf("missing Id")
	}
	n, ok := raw.(int)
	if !ok || n <= 0 {
		return 0, fmt.Errorf("Id must be a positive integer, got %v", raw)
	}
	if bits := sd.table.KeyBits(); bits < 64 && uint64(n) >= 1<<bits {
		return 0, fmt.Errorf("Id %d is out of range", n)
	}
	return uint64(n), nil
}

func describe(err apperrors.Error) string {
	var parts []string
	for field, msgs := range err.Details() {
		parts = append(parts, field+": "+strings.Join(msgs, " "))
	}
	sort.Strings(parts)
	return err.Error() + ": " + strings.Join(parts, "; ")
}
