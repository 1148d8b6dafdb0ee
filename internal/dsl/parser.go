package dsl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	boardRe  = regexp.MustCompile(`^board\s+([^:]+):\s*$`)
	fieldRe  = regexp.MustCompile(`^\s*([^:#]+?):\s*([^\s#]+)(.*)$`)
	choiceRe = regexp.MustCompile(`^(select|multi_select)\[(.*)\]$`)
)

// // parse: options tokenizer — делит "readonly catalog='a b'" на токены, не рвёт по пробелам внутри кавычек/скобок
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	bracketDepth := 0

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble && bracketDepth == 0 {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle && bracketDepth == 0 {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		case '[':
			if !inSingle && !inDouble {
				bracketDepth++
			}
			buf = append(buf, r)
		case ']':
			if !inSingle && !inDouble && bracketDepth > 0 {
				bracketDepth--
			}
			buf = append(buf, r)
		default:
			if (r == ' ' || r == '\t') && !inSingle && !inDouble && bracketDepth == 0 {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// Parse читает шаблоны досок:
//
//	board Grants:
//	  Status: select[Todo, Doing, Done]
//	  Budget: number readonly
//	  Priority: select catalog=priority
func Parse(r io.Reader) ([]*Template, error) {
	var out []*Template
	var current *Template
	n := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := boardRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				out = append(out, current)
			}
			current = &Template{Name: strings.TrimSpace(m[1])}
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("line %d: field outside of a board block", n)
		}

		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: cannot parse %q", n, line)
		}
		name, rawType, tail := strings.TrimSpace(m[1]), m[2], m[3]

		// склейка оборванных типов со скобками: select[A, B]
		if strings.Contains(rawType, "[") && !strings.Contains(rawType, "]") {
			idx := strings.Index(tail, "]")
			if idx < 0 {
				return nil, fmt.Errorf("line %d: unterminated choice list", n)
			}
			rawType += tail[:idx+1]
			tail = tail[idx+1:]
		}

		optsRaw := strings.TrimSpace(tail)
		if i := strings.IndexByte(optsRaw, '#'); i >= 0 {
			optsRaw = strings.TrimSpace(optsRaw[:i])
		}
		optsRaw = strings.ReplaceAll(optsRaw, ",", " ")

		f := Field{Name: name, Type: strings.ToLower(rawType), Options: map[string]string{}}
		if mm := choiceRe.FindStringSubmatch(f.Type); mm != nil {
			f.Type = mm[1]
			// варианты берём из исходной строки, чтобы не терять регистр
			inside := rawType[strings.Index(rawType, "[")+1 : len(rawType)-1]
			for _, p := range strings.Split(inside, ",") {
				if s := unquote(strings.TrimSpace(p)); s != "" {
					f.Choices = append(f.Choices, s)
				}
			}
		}

		for _, tok := range splitOptionTokens(optsRaw) {
			if !strings.Contains(tok, "=") {
				f.Options[strings.ToLower(tok)] = "true"
				continue
			}
			kv := strings.SplitN(tok, "=", 2)
			if k := strings.ToLower(strings.TrimSpace(kv[0])); k != "" {
				f.Options[k] = unquote(strings.TrimSpace(kv[1]))
			}
		}
		current.Fields = append(current.Fields, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		out = append(out, current)
	}
	return out, nil
}

// LoadTemplates читает один файл.
func LoadTemplates(path string) ([]*Template, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file)
}

// LoadAll обходит каталог и собирает все *.board шаблоны по имени.
// Отсутствующий каталог — пустой набор.
func LoadAll(root string) (map[string]*Template, error) {
	result := make(map[string]*Template)
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return result, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".board") {
			return nil
		}
		ts, err := LoadTemplates(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for _, t := range ts {
			if t.Name == "" {
				return fmt.Errorf("empty board name in %s", path)
			}
			if _, exists := result[t.Name]; exists {
				return fmt.Errorf("duplicate board template %q (file: %s)", t.Name, path)
			}
			result[t.Name] = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
