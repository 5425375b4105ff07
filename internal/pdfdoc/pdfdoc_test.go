package pdfdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityForDPI_BucketsByThreshold(t *testing.T) {
	assert.Equal(t, 90, QualityForDPI(300))
	assert.Equal(t, 90, QualityForDPI(600))
	assert.Equal(t, 82, QualityForDPI(200))
	assert.Equal(t, 82, QualityForDPI(299))
	assert.Equal(t, 70, QualityForDPI(150))
	assert.Equal(t, 70, QualityForDPI(0))
}

func TestOpen_MissingFileReturnsError(t *testing.T) {
	_, err := Open("/no/such/file.pdf")
	assert.Error(t, err)
}
