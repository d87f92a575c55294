package audit

import "seoaudit/internal/parser"

// Penalty thresholds for the additive scoring model.
const (
	titleLengthMin = 10
	titleLengthMax = 60
	altRatioFloor  = 0.8
	thinContentMin = 300
)

// buildSignals converts raw extraction output into scorer input.
// internalLinks counts anchors resolving to the root host, duplicates
// included.
func buildSignals(info parser.PageInfo, internalLinks int) Signals {
	altRatio := 1.0
	if info.ImageCount > 0 {
		altRatio = float64(info.ImagesWithAlt) / float64(info.ImageCount)
	}

	return Signals{
		HasTitle:           info.HasTitle,
		TitleLength:        info.TitleLength,
		HasMetaDescription: info.HasDescription,
		H1Count:            info.H1Count,
		ImageAltRatio:      altRatio,
		InternalLinkCount:  internalLinks,
		WordCount:          info.WordCount,
	}
}

// scoreSignals applies fixed penalties starting from 100, floored at 0.
// Reasons are appended in a canonical order so identical signals always
// produce identical output.
func scoreSignals(s Signals) (int, []string) {
	score := 100
	reasons := []string{}

	if !s.HasTitle || s.TitleLength == 0 {
		score -= 15
		reasons = append(reasons, "missing title")
	} else if s.TitleLength < titleLengthMin || s.TitleLength > titleLengthMax {
		score -= 5
		reasons = append(reasons, "title length suboptimal")
	}

	if !s.HasMetaDescription {
		score -= 10
		reasons = append(reasons, "missing meta description")
	}

	switch {
	case s.H1Count == 0:
		score -= 10
		reasons = append(reasons, "no H1 heading")
	case s.H1Count > 1:
		score -= 5
		reasons = append(reasons, "multiple H1 headings")
	}

	if s.ImageAltRatio < altRatioFloor {
		score -= 10
		reasons = append(reasons, "images missing alt text")
	}

	if s.WordCount < thinContentMin {
		score -= 10
		reasons = append(reasons, "thin content")
	}

	if s.InternalLinkCount == 0 {
		score -= 5
		reasons = append(reasons, "no internal links")
	}

	if score < 0 {
		score = 0
	}

	return score, reasons
}
