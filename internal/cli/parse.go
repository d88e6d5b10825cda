package cli

import (
	"strconv"
	"strings"

	"taskplan/internal/domain"
)

func parseID(field, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalid(field, "must be a positive integer")
	}
	return id, nil
}

func parseHours(field, raw string) (domain.Hours, error) {
	h, err := domain.ParseHours(raw)
	if err != nil {
		return 0, domain.Invalid(field, err.Error())
	}
	return h, nil
}

func parseDate(field, raw string) (domain.Date, error) {
	d, err := domain.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return domain.Date{}, domain.Invalid(field, "expected YYYY-MM-DD")
	}
	return d, nil
}

// parseOptionalDate maps "" and "none" to nil, so a flag can clear a date.
func parseOptionalDate(field, raw string) (*domain.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "none") {
		return nil, nil
	}
	d, err := parseDate(field, raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseIDs(field string, raw []string) ([]int64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, err := parseID(field, r)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
