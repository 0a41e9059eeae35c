package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanFileName(t *testing.T) {
	assert.Equal(t, "無職転生 異世界行ったら本気だす", CleanFileName(" 無職転生 異世界行ったら本気だす "))
	assert.Equal(t, "ab", CleanFileName(`a/\:*?"<>|b`))
	assert.Equal(t, "title", CleanFileName("title..."))
	assert.Equal(t, "untitled", CleanFileName("///"))
}
