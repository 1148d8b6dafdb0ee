// Package export выгружает представление доски в текст с табуляциями.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"boards/internal/board"
	"boards/internal/filter"
	"boards/internal/view"
)

// ContentType: для ответа HTTP.
const ContentType = "text/tab-separated-values; charset=utf-8"

// Exporter пишет видимые колонки уже отфильтрованных и отсортированных карточек.
type Exporter struct {
	// BaseURL: для относительных ссылок в url-колонках; пусто — ссылки как есть.
	BaseURL string
	Logger  *log.Logger
}

func (x Exporter) logf(format string, args ...any) {
	if x.Logger != nil {
		x.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Write: строка заголовка с именами колонок (Title первым), затем по строке на карточку.
func (x Exporter) Write(w io.Writer, b board.Board, v board.View, cards []board.Card) error {
	props := view.New(x.Logger).VisibleProperties(b, v)
	var base *url.URL
	if x.BaseURL != "" {
		u, err := url.Parse(x.BaseURL)
		if err != nil {
			return fmt.Errorf("%w: base url %q: %v", board.ErrInvalidInput, x.BaseURL, err)
		}
		base = u
	}

	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	header := make([]string, len(props))
	for i, p := range props {
		header[i] = p.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(props))
	for _, c := range cards {
		for i, p := range props {
			row[i] = x.cell(p, c, base)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (x Exporter) cell(p board.Property, c board.Card, base *url.URL) string {
	vals := view.Display(p, c)
	if len(vals) == 0 {
		return ""
	}
	switch p.Type.Class() {
	case board.ClassNumber:
		if f, ok := c.Value(p.ID).Float(); ok {
			return view.FormatNumber(f)
		}
	case board.ClassDate:
		ms, ok, err := filter.ParseInstant(vals[0])
		if err != nil {
			x.logf("export: malformed date in card %s property %s: %v", c.ID, p.ID, err)
			return ""
		}
		if ok {
			return time.UnixMilli(ms).UTC().Format(time.DateOnly)
		}
		return ""
	}
	if (p.Type == board.TypeURL || p.Type == board.TypeProposalURL) && base != nil {
		for i, s := range vals {
			if ref, err := url.Parse(s); err == nil && !ref.IsAbs() {
				vals[i] = base.ResolveReference(ref).String()
			}
		}
	}
	return strings.Join(vals, ",")
}
