package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"demandline/internal/domain"
	"demandline/internal/query"
)

const (
	dateLayout = "2006-01-02"
	allValues  = "all"
)

// parseSelection reads a comma separated query value. An empty value or
// one containing "all" selects everything.
func parseSelection[T comparable](name, raw string, parse func(string) (T, error)) (query.Selection[T], huma.StatusError) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return query.All[T](), nil
	}
	var values []T
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.EqualFold(part, allValues) {
			return query.All[T](), nil
		}
		v, err := parse(part)
		if err != nil {
			return query.Selection[T]{}, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"param": name})
		}
		values = append(values, v)
	}
	return query.Only(values...), nil
}

func parseUserID(s string) (domain.UserID, error) { return domain.UserID(s), nil }

func parseDate(name, raw string, loc *time.Location) (time.Time, huma.StatusError) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("%s must be a date formatted YYYY-MM-DD", name), map[string]any{"param": name})
	}
	return t, nil
}

// parseRange builds an inclusive day range. A single bound covers that day only.
func parseRange(from, to string, loc *time.Location) (query.DateRange, huma.StatusError) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return query.DateRange{}, nil
	}
	if from == "" {
		from = to
	}
	if to == "" {
		to = from
	}
	start, err := parseDate("from", from, loc)
	if err != nil {
		return query.DateRange{}, err
	}
	end, err := parseDate("to", to, loc)
	if err != nil {
		return query.DateRange{}, err
	}
	return query.Between(start, end), nil
}
