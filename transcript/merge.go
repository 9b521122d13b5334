package transcript

import "strings"

// Transcripts longer than this get their segments merged before rendering.
const mergeThresholdSecs = 600

// Default size of a merged bucket, in seconds.
const mergeTargetSecs = 300

// MergeDense merges segments into buckets of roughly target seconds of
// spoken content. Gaps between segments do not count toward a bucket, so a
// sparse recording yields fewer, denser buckets. Each bucket spans from the
// start of its first segment to the end of its last.
func MergeDense(segments []Segment, target float64) []Segment {
	var merged []Segment
	var texts []string
	var start, end, spoken float64

	if len(segments) > 0 {
		start = segments[0].Start
	}
	for _, s := range segments {
		if spoken+s.Duration() > target && len(texts) > 0 {
			merged = append(merged, Segment{Text: strings.Join(texts, " "), Start: start, End: end})
			texts = nil
			spoken = 0
			start = s.Start
		}
		texts = append(texts, s.Text)
		end = s.End
		spoken += s.Duration()
	}
	if len(texts) > 0 {
		merged = append(merged, Segment{Text: strings.Join(texts, " "), Start: start, End: end})
	}
	return merged
}

// MergeSparse merges segments into fixed chronological buckets of target
// seconds: a segment belongs to the bucket its start time falls in. Bucket
// boundaries are absolute, so quiet stretches produce empty (omitted)
// buckets and timestamps stay easy to locate.
func MergeSparse(segments []Segment, target float64) []Segment {
	var merged []Segment
	var texts []string
	var start, end float64
	block := -1

	for _, s := range segments {
		b := int(s.Start / target)
		if b != block && len(texts) > 0 {
			merged = append(merged, Segment{Text: strings.Join(texts, " "), Start: start, End: end})
			texts = nil
		}
		if len(texts) == 0 {
			start = s.Start
			block = b
		}
		texts = append(texts, s.Text)
		end = s.End
	}
	if len(texts) > 0 {
		merged = append(merged, Segment{Text: strings.Join(texts, " "), Start: start, End: end})
	}
	return merged
}
