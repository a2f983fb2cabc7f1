package odata

import (
	"net/url"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Window returns the LIMIT and OFFSET of one response page. paged reports whether the
// page size cut the requested range, in which case the caller fetches one extra row to
// learn whether a next link is due.
func (q *QueryOptions) Window(set *EntitySet) (limit, offset int, paged bool) {
	limit = q.Top
	if set.PageSize > 0 && (limit < 0 || limit > set.PageSize) {
		limit = set.PageSize
		paged = true
	}
	return limit, q.Skip, paged
}

// NextLink addresses the page following one of size limit.
func (q *QueryOptions) NextLink(base string, set *EntitySet, limit int) string {
	next := url.Values{}
	for k, v := range q.raw {
		next[k] = append([]string(nil), v...)
	}
	next.Set("$skip", strconv.Itoa(q.Skip+limit))
	if q.Top >= 0 {
		next.Set("$top", strconv.Itoa(q.Top-limit))
	}
	// $ needs no escaping in a query and reads better unescaped
	return base + "/" + set.Name + "?" + strings.ReplaceAll(next.Encode(), "%24", "$")
}

// ContextURL is the @odata.context of a response about set.
func (q *QueryOptions) ContextURL(base string, set *EntitySet, entity bool) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("/$metadata#")
	b.WriteString(set.Name)
	var items []string
	items = append(items, q.Select...)
	for _, nav := range q.Expand {
		items = append(items, nav+"()")
	}
	if len(items) > 0 {
		b.WriteString("(" + strings.Join(items, ",") + ")")
	}
	if entity {
		b.WriteString("/$entity")
	}
	return b.String()
}

// Project keeps the selected properties of an entity and the expanded navigations.
// Properties keep their declaration order.
func (q *QueryOptions) Project(raw []byte, et *EntityType) ([]byte, error) {
	out := []byte("{}")
	var err error
	keep := func(name string) bool {
		return q.Select == nil || contains(q.Select, name)
	}
	for _, p := range et.Properties {
		if !keep(p.Name) {
			continue
		}
		if v := gjson.GetBytes(raw, p.Name); v.Exists() {
			if out, err = sjson.SetRawBytes(out, p.Name, []byte(v.Raw)); err != nil {
				return nil, err
			}
		}
	}
	for _, nav := range et.Navigations {
		if !q.Expanded(nav.Name) {
			continue
		}
		v := gjson.GetBytes(raw, nav.Name)
		value := []byte("[]")
		if v.Exists() {
			value = []byte(v.Raw)
		}
		if out, err = sjson.SetRawBytes(out, nav.Name, value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Collection is the body of a collection response.
type Collection struct {
	Context  string
	Value    [][]byte
	Count    *int64
	NextLink string
}

func (c *Collection) MarshalJSON() ([]byte, error) {
	s := json.BorrowStream(nil)
	defer json.ReturnStream(s)

	s.WriteObjectStart()
	s.WriteObjectField("@odata.context")
	s.WriteString(c.Context)
	if c.Count != nil {
		s.WriteMore()
		s.WriteObjectField("@odata.count")
		s.WriteInt64(*c.Count)
	}
	s.WriteMore()
	s.WriteObjectField("value")
	s.WriteArrayStart()
	for i, item := range c.Value {
		if i > 0 {
			s.WriteMore()
		}
		s.WriteRaw(string(item))
	}
	s.WriteArrayEnd()
	if c.NextLink != "" {
		s.WriteMore()
		s.WriteObjectField("@odata.nextLink")
		s.WriteString(c.NextLink)
	}
	s.WriteObjectEnd()
	if s.Error != nil {
		return nil, s.Error
	}
	return append([]byte(nil), s.Buffer()...), nil
}

// Entity prefixes a projected entity with its context URL.
func Entity(contextURL string, projected []byte) ([]byte, error) {
	ctx, err := json.Marshal(contextURL)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(string(projected))
	if body == "{}" {
		return []byte(`{"@odata.context":` + string(ctx) + `}`), nil
	}
	return []byte(`{"@odata.context":` + string(ctx) + `,` + body[1:]), nil
}

// Value is the body of a primitive function result.
func Value(contextURL string, v any) ([]byte, error) {
	return json.Marshal(struct {
		Context string `json:"@odata.context"`
		Value   any    `json:"value"`
	}{contextURL, v})
}
