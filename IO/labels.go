package IO

import (
	"sort"

	"github.com/manningwu07/textcnn/params"
)

// Labels maps the categorical values seen in the training split to
// zero-based class indices, most frequent first.
type Labels struct {
	ToID   map[string]int
	Values []string
}

// BuildLabels fails when the training split holds more distinct labels
// than the model has classes.
func BuildLabels(examples []Example, numClass int) (Labels, error) {
	counts := map[string]int{}
	for _, ex := range examples {
		counts[ex.Label]++
	}
	values := make([]string, 0, len(counts))
	for k := range counts {
		values = append(values, k)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] == counts[values[j]] {
			return values[i] < values[j]
		}
		return counts[values[i]] > counts[values[j]]
	})
	if len(values) > numClass {
		return Labels{}, params.DataErrorf("train split has %d labels %v, model has %d classes", len(values), values, numClass)
	}
	toID := make(map[string]int, len(values))
	for i, v := range values {
		toID[v] = i
	}
	return Labels{ToID: toID, Values: values}, nil
}

// Encode returns the class index of label.
func (l Labels) Encode(label string) (int, error) {
	id, ok := l.ToID[label]
	if !ok {
		return 0, params.DataErrorf("label %q not among training labels %v", label, l.Values)
	}
	return id, nil
}

// EncodeAll maps labels into a new slice; the input is left untouched.
func (l Labels) EncodeAll(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, s := range labels {
		id, err := l.Encode(s)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
