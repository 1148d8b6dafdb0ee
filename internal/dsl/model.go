package dsl

// Template: шаблон доски из .board файла
type Template struct {
	Name   string
	Fields []Field
}

// Field: колонка шаблона
type Field struct {
	Name    string
	Type    string            // text, number, select, multi_select, date ...
	Choices []string          // варианты select[...] / multi_select[...]
	Options map[string]string // readonly, private, catalog=<имя> и прочие опции
}

// Flag: опция без значения (readonly, private) или со значением "true".
func (f Field) Flag(name string) bool {
	return f.Options[name] == "true"
}
