package fidelity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractedDirOf_RecoversGrandparentOfJSONPath(t *testing.T) {
	assert.Equal(t, "/data/extracted", extractedDirOf("/data/extracted/1998/A-98-001.json"))
}

func TestExtractedDirOf_NoSlashReturnsDot(t *testing.T) {
	assert.Equal(t, ".", extractedDirOf("A-98-001.json"))
}

func TestExtractedDirOf_OneSlashReturnsDot(t *testing.T) {
	assert.Equal(t, ".", extractedDirOf("1998/A-98-001.json"))
}

func TestCostCeilingErr_WrapsErrkindCostCeilingKind(t *testing.T) {
	err := costCeilingErr("adjudication cost ceiling reached")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "adjudication cost ceiling reached")
}
