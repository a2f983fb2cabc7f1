package odata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/CiscoM31/godata"
	"github.com/jokizilla/jokizilla/internal/common/apperrors"
)

var ErrInvalidQuery apperrors.Error = apperrors.New("invalid query options").SetStatusCode(http.StatusBadRequest)

// OrderItem is one $orderby term.
type OrderItem struct {
	Property *Property
	Desc     bool
}

// QueryOptions are the parsed system query options of a request.
type QueryOptions struct {
	Filter  Expr
	OrderBy []OrderItem
	Top     int // -1 when absent
	Skip    int
	Select  []string // nil when absent or *
	Expand  []string
	Count   bool
	// raw keeps the original options for building the next link
	raw url.Values
}

func (q *QueryOptions) Expanded(nav string) bool {
	for _, e := range q.Expand {
		if e == nav {
			return true
		}
	}
	return false
}

var collectionOptions = []string{"$filter", "$orderby", "$top", "$skip", "$select", "$expand", "$count"}

// ParseQueryOptions reads the system query options that apply to a collection of set.
func ParseQueryOptions(ctx context.Context, values url.Values, set *EntitySet) (*QueryOptions, apperrors.Error) {
	return parseOptions(ctx, values, set, collectionOptions)
}

// ParseEntityOptions reads the system query options that apply to a single entity.
func ParseEntityOptions(ctx context.Context, values url.Values, set *EntitySet) (*QueryOptions, apperrors.Error) {
	return parseOptions(ctx, values, set, []string{"$select", "$expand"})
}

func parseOptions(ctx context.Context, values url.Values, set *EntitySet, allowed []string) (*QueryOptions, apperrors.Error) {
	q := &QueryOptions{Top: -1, raw: values}
	et := set.EntityType

	for name, vals := range values {
		if !strings.HasPrefix(name, "$") {
			continue // custom query options such as api-version
		}
		if !contains(allowed, name) {
			return nil, ErrInvalidQuery.Msg(fmt.Sprintf("the query parameter '%s' is not supported", name))
		}
		if len(vals) > 1 {
			return nil, ErrInvalidQuery.Msg(fmt.Sprintf("the query parameter '%s' is specified more than once", name))
		}
	}

	if v, ok := option(values, "$filter"); ok {
		if !set.AllowFilter {
			return nil, notAllowed("$filter", set)
		}
		e, err := ParseFilter(ctx, v, et)
		if err != nil {
			return nil, ErrInvalidQuery.Msg("invalid $filter: " + err.Error())
		}
		q.Filter = e
	}

	if v, ok := option(values, "$orderby"); ok {
		if !set.AllowOrderBy {
			return nil, notAllowed("$orderby", set)
		}
		items, err := parseOrderBy(ctx, v, et)
		if err != nil {
			return nil, ErrInvalidQuery.Msg("invalid $orderby: " + err.Error())
		}
		q.OrderBy = items
	}

	if v, ok := option(values, "$top"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, ErrInvalidQuery.Msg(fmt.Sprintf("invalid value '%s' for $top: expected a non-negative integer", v))
		}
		if set.MaxTop > 0 && n > set.MaxTop {
			return nil, ErrInvalidQuery.Msg(fmt.Sprintf("the limit of '%d' for Top query has been exceeded. The value from the incoming request is '%d'", set.MaxTop, n))
		}
		q.Top = n
	}

	if v, ok := option(values, "$skip"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, ErrInvalidQuery.Msg(fmt.Sprintf("invalid value '%s' for $skip: expected a non-negative integer", v))
		}
		q.Skip = n
	}

	if v, ok := option(values, "$count"); ok {
		if !set.AllowCount {
			return nil, notAllowed("$count", set)
		}
		switch v {
		case "true":
			q.Count = true
		case "false":
		default:
			return nil, ErrInvalidQuery.Msg(fmt.Sprintf("invalid value '%s' for $count: expected true or false", v))
		}
	}

	if v, ok := option(values, "$expand"); ok {
		if !set.AllowExpand {
			return nil, notAllowed("$expand", set)
		}
		items, err := parseExpand(ctx, v, et)
		if err != nil {
			return nil, ErrInvalidQuery.Msg("invalid $expand: " + err.Error())
		}
		q.Expand = items
	}

	if v, ok := option(values, "$select"); ok {
		if !set.AllowSelect {
			return nil, notAllowed("$select", set)
		}
		items, err := parseSelect(ctx, v, et)
		if err != nil {
			return nil, ErrInvalidQuery.Msg("invalid $select: " + err.Error())
		}
		q.Select = items
	}
	return q, nil
}

func parseOrderBy(ctx context.Context, src string, et *EntityType) ([]OrderItem, error) {
	parsed, err := godata.ParseOrderByString(ctx, src)
	if err != nil {
		return nil, err
	}
	if parsed == nil || len(parsed.OrderByItems) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	items := make([]OrderItem, 0, len(parsed.OrderByItems))
	for _, o := range parsed.OrderByItems {
		if o.Field == nil {
			return nil, fmt.Errorf("malformed term")
		}
		prop, ok := et.Property(o.Field.Value)
		if !ok {
			return nil, fmt.Errorf("could not find a property named '%s' on type '%s'", o.Field.Value, et.Name)
		}
		items = append(items, OrderItem{Property: prop, Desc: strings.EqualFold(o.Order, "desc")})
	}
	return items, nil
}

// parseSelect returns the selected properties and navigations, or nil when * is among them.
func parseSelect(ctx context.Context, src string, et *EntityType) ([]string, error) {
	parsed, err := godata.ParseSelectString(ctx, src)
	if err != nil {
		return nil, err
	}
	if parsed == nil || len(parsed.SelectItems) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	var items []string
	for _, item := range parsed.SelectItems {
		if len(item.Segments) != 1 {
			return nil, fmt.Errorf("property paths are not supported")
		}
		name := item.Segments[0].Value
		if name == "*" {
			return nil, nil
		}
		_, isProp := et.Property(name)
		_, isNav := et.Navigation(name)
		if !isProp && !isNav {
			return nil, fmt.Errorf("could not find a property named '%s' on type '%s'", name, et.Name)
		}
		if !contains(items, name) {
			items = append(items, name)
		}
	}
	return items, nil
}

// parseExpand returns the expanded navigations. Nested options are not supported.
func parseExpand(ctx context.Context, src string, et *EntityType) ([]string, error) {
	parsed, err := godata.ParseExpandString(ctx, src)
	if err != nil {
		return nil, err
	}
	if parsed == nil || len(parsed.ExpandItems) == 0 {
		return nil, fmt.Errorf("empty list")
	}
	var items []string
	for _, item := range parsed.ExpandItems {
		if len(item.Path) != 1 {
			return nil, fmt.Errorf("navigation paths are not supported")
		}
		if item.Filter != nil || item.OrderBy != nil || item.Select != nil || item.Expand != nil {
			return nil, fmt.Errorf("options on '%s' are not supported", item.Path[0].Value)
		}
		name := item.Path[0].Value
		if _, ok := et.Navigation(name); !ok {
			return nil, fmt.Errorf("could not find a navigation property named '%s' on type '%s'", name, et.Name)
		}
		if !contains(items, name) {
			items = append(items, name)
		}
	}
	return items, nil
}

func option(values url.Values, name string) (string, bool) {
	vals, ok := values[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return strings.TrimSpace(vals[0]), true
}

func notAllowed(option string, set *EntitySet) apperrors.Error {
	return ErrInvalidQuery.Msg(fmt.Sprintf("the query specified in the URI is not valid: %s is not allowed on '%s'", option, set.Name))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
