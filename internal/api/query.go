package api

import (
	"net/url"
	"strconv"
	"strings"

	"boards/internal/board"
)

// ListParams: пагинация и разовая сортировка поверх сохранённого представления.
type ListParams struct {
	Limit  int
	Offset int
	// Sort из ?sort=a,-b заменяет сортировку представления на время запроса
	Sort []board.SortOption
}

const (
	defaultLimit = 50
	maxLimit     = 1000
)

func parseListParams(q url.Values) ListParams {
	limit := defaultLimit
	lv := q.Get("_limit")
	if lv == "" {
		lv = q.Get("limit")
	}
	if lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n >= 0 && n <= maxLimit {
			limit = n
		}
	}

	offset := 0
	ov := q.Get("_offset")
	if ov == "" {
		ov = q.Get("offset")
	}
	if ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			offset = n
		}
	}

	var keys []board.SortOption
	sv := strings.TrimSpace(q.Get("_sort"))
	if sv == "" {
		sv = strings.TrimSpace(q.Get("sort"))
	}
	for _, p := range strings.Split(sv, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		desc := false
		if strings.HasPrefix(p, "-") {
			desc = true
			p = strings.TrimPrefix(p, "-")
		} else {
			p = strings.TrimPrefix(p, "+")
		}
		if p != "" {
			keys = append(keys, board.SortOption{PropertyID: p, Reversed: desc})
		}
	}

	return ListParams{Limit: limit, Offset: offset, Sort: keys}
}

// page вырезает страницу; границы обрезаются.
func page[T any](all []T, lp ListParams) []T {
	start := min(max(lp.Offset, 0), len(all))
	end := min(start+lp.Limit, len(all))
	return all[start:end]
}
