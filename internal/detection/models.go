package detection

import (
	"sort"
	"strings"
)

// Model describes one detector exposed by the detection service.
type Model struct {
	Name      string `json:"name"`
	Endpoint  string `json:"endpoint"`
	OpenWorld bool   `json:"open_world"`
}

// RequiresPrompt reports whether the model needs a text prompt per request.
func (m Model) RequiresPrompt() bool { return m.OpenWorld }

var catalogue = map[string]Model{
	"yolov8":         {Name: "yolov8", Endpoint: "/yolo"},
	"yolo11":         {Name: "yolo11", Endpoint: "/yolo11"},
	"grounding-dino": {Name: "grounding-dino", Endpoint: "/grounding-dino", OpenWorld: true},
}

func LookupModel(name string) (Model, bool) {
	m, ok := catalogue[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

func Models() []Model {
	out := make([]Model, 0, len(catalogue))
	for _, m := range catalogue {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NormalizePrompt splits a prompt on '.' (or ',' when there is no '.') and
// rejoins the trimmed classes as "a. b.". The class list is empty when
// nothing usable remains.
func NormalizePrompt(prompt string) (string, []string) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", nil
	}
	sep := ""
	switch {
	case strings.Contains(prompt, "."):
		sep = "."
	case strings.Contains(prompt, ","):
		sep = ","
	}
	parts := []string{prompt}
	if sep != "" {
		parts = strings.Split(prompt, sep)
	}
	var classes []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			classes = append(classes, p)
		}
	}
	if len(classes) == 0 {
		return "", nil
	}
	return strings.Join(classes, ". ") + ".", classes
}
