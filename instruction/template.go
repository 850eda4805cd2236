package instruction

import (
	"regexp"
	"strings"
)

// Переменные шаблона: {имя_в_нижнем_регистре}
var templateVarPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// renderTemplate строго подставляет переменные в шаблон контрмеры.
// Любая неразрешенная переменная — TemplateError: лучше не выдать указание,
// чем выдать указание с дырой вида "{current_value}".
func renderTemplate(actionCode, template string, vars map[string]string) (string, error) {
	matches := templateVarPattern.FindAllStringSubmatch(template, -1)

	out := template
	for _, match := range matches {
		name := match[1]
		value, ok := vars[name]
		if !ok {
			return "", &TemplateError{ActionCode: actionCode, Variable: name}
		}
		out = strings.ReplaceAll(out, match[0], value)
	}

	return out, nil
}

// consumedVariables перечисляет переменные, использованные в шаблоне
func consumedVariables(template string) []string {
	matches := templateVarPattern.FindAllStringSubmatch(template, -1)

	seen := make(map[string]struct{})
	var names []string
	for _, match := range matches {
		if _, ok := seen[match[1]]; ok {
			continue
		}
		seen[match[1]] = struct{}{}
		names = append(names, match[1])
	}

	return names
}
