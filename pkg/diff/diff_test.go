package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type edit struct {
	From   int
	Insert string
	hidden int
}

func TestValues(t *testing.T) {
	t.Run("equal", func(t *testing.T) {
		assert.Empty(t, Values([]edit{{From: 1, Insert: "</x>"}}, []edit{{From: 1, Insert: "</x>"}}))
	})

	t.Run("unexported_fields_ignored", func(t *testing.T) {
		assert.Empty(t, Values(edit{From: 2, hidden: 1}, edit{From: 2, hidden: 9}))
	})

	t.Run("different", func(t *testing.T) {
		out := Values(edit{From: 2, Insert: "</a>"}, edit{From: 2, Insert: "</b>"})
		assert.Contains(t, out, "-")
		assert.Contains(t, out, "+")
		assert.Contains(t, out, "</a>")
		assert.Contains(t, out, "</b>")
	})
}
