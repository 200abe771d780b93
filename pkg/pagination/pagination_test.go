package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PerPage)
	assert.Equal(t, 0, p.Offset)
}

func TestNew_CustomValues(t *testing.T) {
	p := New(3, 50)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 50, p.PerPage)
	assert.Equal(t, 100, p.Offset) // (3-1) * 50
}

func TestNew_InvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		name          string
		page, perPage int
		wantPage      int
		wantPerPage   int
	}{
		{"zero page", 0, 10, 1, 10},
		{"negative page", -1, 10, 1, 10},
		{"zero per page", 2, 0, 2, DefaultPerPage},
		{"per page above max", 1, 101, 1, DefaultPerPage},
		{"per page at max", 1, 100, 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.page, tt.perPage)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPerPage, p.PerPage)
		})
	}
}

func TestNewResult(t *testing.T) {
	r := NewResult([]string{"a", "b"}, 45, New(2, 20))
	assert.Equal(t, 45, r.TotalCount)
	assert.Equal(t, 3, r.TotalPages)
	assert.True(t, r.HasNext)
	assert.True(t, r.HasPrev)
}

func TestNewResult_LastPage(t *testing.T) {
	r := NewResult([]int{1}, 40, New(2, 20))
	assert.Equal(t, 2, r.TotalPages)
	assert.False(t, r.HasNext)
	assert.True(t, r.HasPrev)
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	first := Slice(items, New(1, 2))
	assert.Equal(t, []int{1, 2}, first.Data)
	assert.Equal(t, 3, first.TotalPages)
	assert.True(t, first.HasNext)

	last := Slice(items, New(3, 2))
	assert.Equal(t, []int{5}, last.Data)
	assert.False(t, last.HasNext)

	past := Slice(items, New(9, 2))
	assert.Empty(t, past.Data)
	assert.Equal(t, 5, past.TotalCount)
}

func TestSlice_DataDoesNotAliasTail(t *testing.T) {
	items := []int{1, 2, 3}
	page := Slice(items, New(1, 2))
	page.Data = append(page.Data, 99)
	assert.Equal(t, []int{1, 2, 3}, items)
}

func TestSlice_Empty(t *testing.T) {
	r := Slice([]string(nil), DefaultParams())
	assert.Empty(t, r.Data)
	assert.Zero(t, r.TotalPages)
	assert.False(t, r.HasNext)
	assert.False(t, r.HasPrev)
}
