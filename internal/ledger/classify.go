package ledger

import (
	"fmt"
	"path/filepath"
	"strings"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// Category groups files by what they hold.
type Category string

const (
	CategoryCode     Category = "code"
	CategoryDocument Category = "document"
	CategoryConfig   Category = "config"
	CategoryData     Category = "data"
	CategoryPrompt   Category = "prompt"
	CategoryModel    Category = "model"
	CategoryUnknown  Category = "unknown"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{
		CategoryCode, CategoryDocument, CategoryConfig, CategoryData,
		CategoryPrompt, CategoryModel, CategoryUnknown,
	}
}

// Priority ranks how much attention a change deserves.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists every priority from lowest to highest.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

func extSet(exts ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		m[e] = struct{}{}
	}
	return m
}

var (
	codeExts = extSet(".py", ".js", ".ts", ".jsx", ".tsx", ".java", ".cpp", ".c",
		".h", ".cs", ".go", ".rs", ".rb", ".php", ".swift", ".kt")
	documentExts = extSet(".md", ".txt", ".doc", ".docx", ".pdf", ".rtf", ".odt")
	configExts   = extSet(".yaml", ".yml", ".json", ".toml", ".ini", ".conf",
		".xml", ".properties", ".env")
	dataExts = extSet(".csv", ".xlsx", ".xls", ".db", ".sqlite", ".sql",
		".parquet", ".arrow", ".feather")
	modelExts = extSet(".pt", ".pth", ".h5", ".pkl", ".ckpt", ".safetensors",
		".onnx", ".tflite", ".pb")
	promptExts   = extSet(".md", ".txt")
	criticalConf = extSet(".yaml", ".yml", ".env")
)

func has(set map[string]struct{}, ext string) bool {
	_, ok := set[ext]
	return ok
}

// Classify derives a category from the file extension. Markdown and text
// files anywhere under a path containing "prompt" are prompts.
func Classify(path string, isDir bool) Category {
	if isDir {
		return CategoryUnknown
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case has(promptExts, ext) && strings.Contains(strings.ToLower(path), "prompt"):
		return CategoryPrompt
	case has(codeExts, ext):
		return CategoryCode
	case has(configExts, ext):
		return CategoryConfig
	case has(dataExts, ext):
		return CategoryData
	case has(modelExts, ext):
		return CategoryModel
	case has(documentExts, ext):
		return CategoryDocument
	}
	return CategoryUnknown
}

// PriorityFor ranks a change to path of category c.
func PriorityFor(c Category, t EventType, path string) Priority {
	switch c {
	case CategoryConfig:
		if has(criticalConf, strings.ToLower(filepath.Ext(path))) {
			return PriorityCritical
		}
	case CategoryModel:
		return PriorityCritical
	case CategoryCode:
		if t == Created || t == Modified {
			return PriorityHigh
		}
	case CategoryPrompt:
		return PriorityHigh
	case CategoryDocument, CategoryData:
		return PriorityMedium
	}
	return PriorityLow
}

// Annotate fills Category and Priority from the event's path and type.
func (e *Event) Annotate() {
	e.Category = Classify(e.FilePath, e.IsDirectory)
	e.Priority = PriorityFor(e.Category, e.EventType, e.FilePath)
}

// ParseCategory validates s. An empty string means "any".
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c == "" {
		return c, nil
	}
	for _, known := range Categories() {
		if c == known {
			return c, nil
		}
	}
	return "", fserrors.ValidationError(fmt.Sprintf("unknown category %q", s), nil).
		WithSuggestion("Use one of: code, document, config, data, prompt, model, unknown")
}

// ParsePriority validates s. An empty string means "any".
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, nil
	}
	return "", fserrors.ValidationError(fmt.Sprintf("unknown priority %q", s), nil).
		WithSuggestion("Use one of: low, medium, high, critical")
}
