package feed

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

type row struct {
	ID     string
	Status string
}

func rowKey(r row) string    { return r.ID }
func rowEqual(a, b row) bool { return a == b }

func diff(prev, next []row) Change[row] { return Diff(prev, next, rowKey, rowEqual) }

func TestDiff(t *testing.T) {
	prev := []row{{"a", "pending"}, {"b", "initialized"}, {"c", "pending"}}

	tests := []struct {
		name string
		next []row
		want Change[row]
	}{
		{
			name: "no change",
			next: prev,
			want: Change[row]{Results: prev},
		},
		{
			name: "status modification",
			next: []row{{"a", "pending"}, {"b", "uploaded"}, {"c", "pending"}},
			want: Change[row]{
				Results:       []row{{"a", "pending"}, {"b", "uploaded"}, {"c", "pending"}},
				Modifications: []int{1},
			},
		},
		{
			name: "insert and delete",
			next: []row{{"a", "pending"}, {"c", "pending"}, {"d", "initialized"}},
			want: Change[row]{
				Results:    []row{{"a", "pending"}, {"c", "pending"}, {"d", "initialized"}},
				Deletions:  []int{1},
				Insertions: []int{2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := diff(prev, tt.next)
			assert.Empty(t, cmp.Diff(tt.want, got))
		})
	}
}

func TestChange_EmptyAndTouched(t *testing.T) {
	assert.True(t, Change[row]{}.Empty())
	assert.False(t, Change[row]{Initial: true}.Empty())

	ch := Change[row]{
		Results:       []row{{"a", "x"}, {"b", "y"}, {"c", "z"}},
		Insertions:    []int{2},
		Modifications: []int{0},
	}
	assert.False(t, ch.Empty())
	assert.Equal(t, []row{{"a", "x"}, {"c", "z"}}, ch.Touched())
}
