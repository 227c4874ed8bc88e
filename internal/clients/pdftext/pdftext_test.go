package pdftext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Text_ShouldFailOnGarbage(t *testing.T) {
	_, err := New().Text([]byte("not a pdf at all"))
	assert.Error(t, err)
}

func Test_Text_ShouldFailOnEmptyInput(t *testing.T) {
	_, err := New().Text(nil)
	assert.Error(t, err)
}
