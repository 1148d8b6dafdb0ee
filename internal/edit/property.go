package edit

import (
	"fmt"
	"slices"
	"strings"

	"boards/internal/board"
	"boards/internal/filter"
	"boards/internal/mutation"
)

// AddProperty добавляет колонку в конец схемы и делает её видимой в табличных представлениях.
func (e Editor) AddProperty(s Snapshot, p board.Property) (mutation.Entry, board.Property, error) {
	if strings.TrimSpace(p.Name) == "" {
		return mutation.Entry{}, board.Property{}, &ValueError{Code: CodeRequired, PropertyID: "name", Message: "property name is required"}
	}
	if !p.Type.Valid() {
		return mutation.Entry{}, board.Property{}, &ValueError{Code: CodeInvalidType, PropertyID: "type", Message: fmt.Sprintf("unknown property type %q", p.Type)}
	}
	if p.ID == "" {
		p.ID = board.NewID()
	}
	if _, dup := s.Board.Property(p.ID); dup || p.ID == board.TitlePropertyID {
		return mutation.Entry{}, board.Property{}, fmt.Errorf("%w: property %s already exists", board.ErrInvalidInput, p.ID)
	}
	p.Options = normalizeOptions(p.Options)
	if !p.Type.HasOptions() {
		p.Options = nil
	}

	var bd bundle
	after := cloneBoard(s.Board)
	after.Properties = append(after.Properties, p)
	e.touchBoard(&after)
	if err := bd.diff(s.Board, after); err != nil {
		return mutation.Entry{}, board.Property{}, err
	}
	for _, v := range s.Views {
		if v.Kind != board.ViewTable || slices.Contains(v.VisiblePropertyIDs, p.ID) {
			continue
		}
		nv := cloneView(v)
		nv.VisiblePropertyIDs = append(nv.VisiblePropertyIDs, p.ID)
		e.touchView(&nv)
		if err := bd.diff(v, nv); err != nil {
			return mutation.Entry{}, board.Property{}, err
		}
	}
	return bd.entry("add property "+p.Name, e.Actor), p, nil
}

// normalizeOptions выдаёт id вариантам без id и отбрасывает дубли по значению.
func normalizeOptions(opts []board.Option) []board.Option {
	out := make([]board.Option, 0, len(opts))
	seen := map[string]bool{}
	for _, o := range opts {
		key := strings.ToLower(strings.TrimSpace(o.Value))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if o.ID == "" {
			o.ID = board.NewOptionID()
		}
		out = append(out, o)
	}
	return out
}

// PropertyPatch: изменяемые атрибуты колонки; nil — не трогать.
type PropertyPatch struct {
	Name     *string
	Options  *[]board.Option
	Private  *bool
	ReadOnly *bool
}

// UpdateProperty меняет имя, варианты и флаги колонки. Удалённые варианты вычищаются из карточек.
func (e Editor) UpdateProperty(s Snapshot, id string, patch PropertyPatch) (mutation.Entry, error) {
	idx := s.Board.PropertyIndex(id)
	if idx < 0 {
		return mutation.Entry{}, fmt.Errorf("%w: %s", ErrPropertyNotFound, id)
	}
	after := cloneBoard(s.Board)
	p := &after.Properties[idx]
	if p.Type.Synced() && (patch.Options != nil || (patch.ReadOnly != nil && !*patch.ReadOnly)) {
		return mutation.Entry{}, &ValueError{Code: CodeReadOnly, PropertyID: id, Message: "options and read-only flag of synced property are managed by sync"}
	}
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return mutation.Entry{}, &ValueError{Code: CodeRequired, PropertyID: "name", Message: "property name is required"}
		}
		p.Name = *patch.Name
	}
	if patch.Private != nil {
		p.Private = *patch.Private
	}
	if patch.ReadOnly != nil {
		p.ReadOnly = *patch.ReadOnly
	}
	var removed map[string]bool
	if patch.Options != nil {
		if !p.Type.HasOptions() {
			return mutation.Entry{}, &ValueError{Code: CodeTypeMismatch, PropertyID: id, Message: "property has no options"}
		}
		next := normalizeOptions(*patch.Options)
		removed = map[string]bool{}
		for _, o := range p.Options {
			if _, ok := (board.Property{Options: next}).OptionByID(o.ID); !ok {
				removed[o.ID] = true
			}
		}
		p.Options = next
	}
	e.touchBoard(&after)

	var bd bundle
	if err := bd.diff(s.Board, after); err != nil {
		return mutation.Entry{}, err
	}
	if len(removed) > 0 {
		for _, c := range s.Cards {
			v := c.Value(id)
			if v.IsEmpty() {
				continue
			}
			kept := make([]string, 0)
			for _, oid := range v.Strings() {
				if !removed[oid] {
					kept = append(kept, oid)
				}
			}
			if len(kept) == len(v.Strings()) {
				continue
			}
			nc := cloneCard(c)
			switch {
			case len(kept) == 0:
				delete(nc.Values, id)
			case p.Type == board.TypeMultiSelect:
				nc.Values[id] = board.List(kept...)
			default:
				nc.Values[id] = board.Text(kept[0])
			}
			e.touchCard(&nc)
			if err := bd.diff(c, nc); err != nil {
				return mutation.Entry{}, err
			}
		}
	}
	return bd.entry("update property "+p.Name, e.Actor), nil
}

// MoveProperty переставляет колонку на позицию index (с обрезкой к границам).
func (e Editor) MoveProperty(s Snapshot, id string, index int) (mutation.Entry, error) {
	from := s.Board.PropertyIndex(id)
	if from < 0 {
		return mutation.Entry{}, fmt.Errorf("%w: %s", ErrPropertyNotFound, id)
	}
	after := cloneBoard(s.Board)
	p := after.Properties[from]
	after.Properties = slices.Delete(after.Properties, from, from+1)
	index = max(0, min(index, len(after.Properties)))
	after.Properties = slices.Insert(after.Properties, index, p)
	e.touchBoard(&after)

	var bd bundle
	if err := bd.diff(s.Board, after); err != nil {
		return mutation.Entry{}, err
	}
	return bd.entry("move property "+p.Name, e.Actor), nil
}

// DeleteProperty удаляет колонку из схемы, из видимых колонок, сортировок и фильтров
// всех представлений и из значений всех карточек. Одна запись журнала.
func (e Editor) DeleteProperty(s Snapshot, id string) (mutation.Entry, error) {
	idx := s.Board.PropertyIndex(id)
	if idx < 0 {
		return mutation.Entry{}, fmt.Errorf("%w: %s", ErrPropertyNotFound, id)
	}
	name := s.Board.Properties[idx].Name
	after := cloneBoard(s.Board)
	after.Properties = slices.Delete(after.Properties, idx, idx+1)
	e.touchBoard(&after)

	var bd bundle
	if err := bd.diff(s.Board, after); err != nil {
		return mutation.Entry{}, err
	}
	if err := e.cascade(s, map[string]bool{id: true}, nil, &bd); err != nil {
		return mutation.Entry{}, err
	}
	return bd.entry("delete property "+name, e.Actor), nil
}

// ChangeType меняет тип колонки и переносит значения карточек:
// select<->multi_select сохраняют id вариантов, select -> скаляр пишет текст варианта,
// скаляр -> select создаёт варианты по значениям (без дублей) и пишет их id.
// Клаузы фильтров по колонке удаляются, если меняется класс условий.
func (e Editor) ChangeType(s Snapshot, id string, to board.PropertyType) (mutation.Entry, error) {
	idx := s.Board.PropertyIndex(id)
	if idx < 0 {
		return mutation.Entry{}, fmt.Errorf("%w: %s", ErrPropertyNotFound, id)
	}
	if !to.Valid() {
		return mutation.Entry{}, &ValueError{Code: CodeInvalidType, PropertyID: id, Message: fmt.Sprintf("unknown property type %q", to)}
	}
	from := s.Board.Properties[idx]
	if from.Type == to {
		return mutation.Entry{}, nil
	}
	if from.Type.Synced() {
		return mutation.Entry{}, &ValueError{Code: CodeReadOnly, PropertyID: id, Message: fmt.Sprintf("type of synced property %q is managed by sync", from.Name)}
	}

	after := cloneBoard(s.Board)
	np := &after.Properties[idx]
	np.Type = to

	migrate := func(v board.Value) board.Value { return v }
	switch {
	case from.Type.HasOptions() && to.HasOptions():
		migrate = func(v board.Value) board.Value {
			ids := v.Strings()
			if to == board.TypeSelect {
				return board.Text(ids[0])
			}
			return board.List(ids...)
		}
	case from.Type.HasOptions():
		np.Options = nil
		migrate = func(v board.Value) board.Value {
			vals := make([]string, 0)
			for _, oid := range v.Strings() {
				if o, ok := from.OptionByID(oid); ok {
					vals = append(vals, o.Value)
				}
			}
			return convertScalar(board.Text(strings.Join(vals, ",")), to)
		}
	case to.HasOptions():
		np.Options = nil
		migrate = func(v board.Value) board.Value {
			vals := splitForOptions(v, to)
			ids := make([]string, 0, len(vals))
			for _, val := range vals {
				o, ok := np.OptionByValue(val)
				if !ok {
					o = board.Option{ID: board.NewOptionID(), Value: val}
					np.Options = append(np.Options, o)
				}
				if !slices.Contains(ids, o.ID) {
					ids = append(ids, o.ID)
				}
			}
			if len(ids) == 0 {
				return board.Value{}
			}
			if to == board.TypeSelect {
				return board.Text(ids[0])
			}
			return board.List(ids...)
		}
	default:
		migrate = func(v board.Value) board.Value { return convertScalar(v, to) }
	}

	var cardPatches bundle
	for _, c := range s.Cards {
		v := c.Value(id)
		if v.IsEmpty() {
			continue
		}
		nc := cloneCard(c)
		if to.Intrinsic() {
			delete(nc.Values, id)
		} else if nv := migrate(v); nv.IsEmpty() {
			delete(nc.Values, id)
		} else {
			nc.Values[id] = nv
		}
		e.touchCard(&nc)
		if err := cardPatches.diff(c, nc); err != nil {
			return mutation.Entry{}, err
		}
	}
	e.touchBoard(&after)

	var bd bundle
	if err := bd.diff(s.Board, after); err != nil {
		return mutation.Entry{}, err
	}
	if from.Type.Class() != to.Class() {
		for _, v := range s.Views {
			if !v.Filter.References(id) {
				continue
			}
			nv := cloneView(v)
			nv.Filter = nv.Filter.WithoutProperty(id)
			e.touchView(&nv)
			if err := bd.diff(v, nv); err != nil {
				return mutation.Entry{}, err
			}
		}
	}
	bd.fwd = append(bd.fwd, cardPatches.fwd...)
	bd.bwd = append(bd.bwd, cardPatches.bwd...)
	return bd.entry(fmt.Sprintf("change type of %s to %s", from.Name, to), e.Actor), nil
}

func splitForOptions(v board.Value, to board.PropertyType) []string {
	var raw []string
	if v.Kind() == board.KindList {
		raw = v.Strings()
	} else if to == board.TypeMultiSelect {
		raw = strings.Split(v.String(), ",")
	} else {
		raw = []string{v.String()}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// convertScalar переводит значение между типами без вариантов; непереводимое становится пустым.
func convertScalar(v board.Value, to board.PropertyType) board.Value {
	if v.IsEmpty() {
		return board.Value{}
	}
	switch to.Class() {
	case board.ClassNumber:
		if f, ok := v.Float(); ok {
			return board.Number(f)
		}
		return board.Value{}
	case board.ClassBoolean:
		switch strings.ToLower(strings.TrimSpace(v.First())) {
		case "true", "yes", "1":
			return board.Bool(true)
		case "false", "no", "0":
			return board.Bool(false)
		}
		return board.Value{}
	case board.ClassDate:
		if v.Kind() == board.KindNumber {
			return v
		}
		if _, ok, err := filter.ParseInstant(v.First()); err == nil && ok {
			return board.Text(v.First())
		}
		return board.Value{}
	case board.ClassMultiSelect:
		return board.List(v.Strings()...)
	}
	return board.Text(v.String())
}
