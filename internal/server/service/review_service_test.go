package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fair-review/internal/server/model"
)

func TestCalculateRiskLevel(t *testing.T) {
	assert.Equal(t, model.RiskNone, CalculateRiskLevel(0))
	assert.Equal(t, model.RiskLow, CalculateRiskLevel(0.1))
	assert.Equal(t, model.RiskLow, CalculateRiskLevel(0.2))
	assert.Equal(t, model.RiskMedium, CalculateRiskLevel(0.3))
	assert.Equal(t, model.RiskMedium, CalculateRiskLevel(0.5))
	assert.Equal(t, model.RiskHigh, CalculateRiskLevel(0.51))
	assert.Equal(t, model.RiskHigh, CalculateRiskLevel(1))
}
