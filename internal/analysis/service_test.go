package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

func TestSelectVisualFeature_DeterministicForSameImage(t *testing.T) {
	image := []byte("the same scan bytes")

	first := selectVisualFeature(image)
	second := selectVisualFeature(image)

	assert.Equal(t, first, second)
}

func TestSelectVisualFeature_CoversDatabase(t *testing.T) {
	// Different inputs land on valid entries; no panics, no out-of-range
	inputs := [][]byte{
		[]byte("a"), []byte("b"), []byte("c"), []byte("scan-1"), []byte("scan-2"), {},
	}
	for _, input := range inputs {
		feature := selectVisualFeature(input)
		assert.NotEmpty(t, feature.description)
		assert.NotEmpty(t, feature.regions)
	}
}

func TestFallbackReport_BuiltFromSeededFindings(t *testing.T) {
	visual := featureDatabase[0]

	report := fallbackReport(visual, "未提供单细胞/基因数据。")

	assert.Contains(t, report.Summary, visual.regions[0])
	assert.Contains(t, report.DetailedFindings, visual.description)
	assert.Equal(t, "建议进一步检查。", report.Recommendation)
	require.Len(t, report.Regions, len(visual.regions))
	for i, region := range report.Regions {
		assert.Equal(t, visual.regions[i], region.Name)
		assert.Equal(t, types.RiskHigh, region.Level)
	}
}

func TestImageDataURL_DetectsPNG(t *testing.T) {
	pngHeader := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}

	url := imageDataURL("scan.bin", pngHeader)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}

func TestImageDataURL_FallsBackToExtension(t *testing.T) {
	url := imageDataURL("scan.jpg", []byte("not really an image"))
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
}
