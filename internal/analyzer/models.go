package analyzer

import (
	"go-image-moderation/pkg/models"
)

// AnalysisResult is an alias to the shared models.AnalysisResult
type AnalysisResult = models.AnalysisResult

// metrics holds internal calculation results
type metrics struct {
	skinRatio                   float64
	avgLuminance, avgSaturation float64
	pixels                      int
}
