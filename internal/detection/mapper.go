package detection

import (
	"strconv"
	"strings"
)

// LabelMapper resolves raw classifier class identifiers to detection labels.
// Inference services report either numeric class ids or class names; both are
// normalized to the upper-case names configured for the model.
type LabelMapper struct {
	classes []string
	byName  map[string]string
}

// NewLabelMapper creates a mapper for classes indexed by class id.
func NewLabelMapper(classes []string) *LabelMapper {
	m := &LabelMapper{
		classes: make([]string, len(classes)),
		byName:  make(map[string]string, len(classes)),
	}
	for i, c := range classes {
		label := normalizeLabel(c)
		m.classes[i] = label
		m.byName[label] = label
	}
	return m
}

// ByID returns the label for a numeric class id.
func (m *LabelMapper) ByID(id int) (string, bool) {
	if id < 0 || id >= len(m.classes) {
		return "", false
	}
	return m.classes[id], true
}

// Resolve maps a class reference, given as an id or a name, to a label.
// Unknown names are returned normalized so that they never match a
// configured label by accident.
func (m *LabelMapper) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		if label, ok := m.ByID(id); ok {
			return label
		}
		return "CLASS_" + ref
	}
	label := normalizeLabel(ref)
	if known, ok := m.byName[label]; ok {
		return known
	}
	return label
}

// Labels returns the configured labels in class id order.
func (m *LabelMapper) Labels() []string {
	out := make([]string, len(m.classes))
	copy(out, m.classes)
	return out
}

func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ToUpper(s)
}
