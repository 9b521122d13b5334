package transcript

import "strings"

// Whisper-style models hallucinate on silence, usually emitting subtitle
// credits, channel sign-offs, or the input filename. The lists below are
// matched case-insensitively against each segment; a hit drops the whole
// segment. See https://github.com/openai/whisper/discussions/928.
//
// Hallucinations is the exact-match list, HallucinationSubstrings matches
// anywhere in the segment, HallucinationPrefixes matches the start.
type Hallucinations struct {
	Exact      []string `yaml:"exact"`
	Substrings []string `yaml:"substrings"`
	Prefixes   []string `yaml:"prefixes"`
}

// DefaultHallucinations returns the built-in tables.
func DefaultHallucinations() Hallucinations {
	return Hallucinations{
		Exact: []string{
			"¡Incluso, yo lo compasto así!",
			"37670673",
			"376706763",
			"All-American Theme Song",
			"BEATS EVERY WEEK",
			"GX-70000KBMPS",
			"GX-70000KBPS",
			"GX-7000KBPS",
			"GX-7800KBPS",
			"Gxx-1000KBPS",
			"Gxx-2000KBPS",
			"Gxx-5000KBPS",
			"Intro",
			"Pa' qué respirare y reírme",
			"Sawgaw",
			"We are giving over the globe thanks to you.",
			"We hope that you are enjoying our drive today.",
		},
		Substrings: []string{
			// Websites
			"www.mooji.org",
			"www.multi-moto.eu",
			"amara.org",
			// Turns of phrase
			"click the like button",
			"clicking the like button",
			"give this video a like",
			"in the description",
			"in the next video",
			"purchase & download",
			"thank you for joining",
			"thanks for watching",
			"このビデオが好きな方は",
			"ご視聴ありがとう",
			"作詞・作曲・編曲",
			// Miscellaneous
			"Baguio Botanical Garden",
			"commentary is end",
			"cuando la luz de la luz",
			"without heavens, there is no reality",
		},
		Prefixes: []string{
			// DE/NL
			"copyright",
			"ondertiteld",
			"ondertiteling",
			"ondertitels ingediend door",
			"swr",
			"untertitel",
			// EN
			"thank you so much",
			"video by",
			"we are now at",
			// ES
			"más información",
			"subtitulado por",
			"subtítulos creados por",
			"subtítulos en",
			"subtítulos por",
			"subtítulos realizados por la",
			// FR
			"❤️ par",
			"cliquez-vous sur les sous-titres",
			"sous-titrage",
			"sous-titres",
			// IT
			"sottotitoli a cura",
			"sottotitoli creati",
			"sottotitoli di",
			"sottotitoli e revisione",
			// PT
			"legendas pela",
			"transcrição e legendas pela",
			// RU
			"Редактор субтитров",
			// ZH
			"字幕由",
			"小編字幕由",
		},
	}
}

// Filter drops hallucinated segments. basename, when set, is treated as an
// extra exact-match hallucination, since models sometimes echo the filename
// they were prompted with. When dedup is set, repeated word runs inside a
// segment are collapsed and adjacent segments with identical text are
// reduced to the first.
func (h Hallucinations) Filter(segments []Segment, basename string, dedup bool) []Segment {
	exact := make(map[string]bool, len(h.Exact)+1)
	for _, s := range h.Exact {
		exact[strings.ToLower(s)] = true
	}
	if basename != "" {
		exact[strings.ToLower(basename)] = true
	}

	var clean []Segment
	for _, s := range segments {
		text := s.Text
		if dedup {
			text = strings.TrimSpace(collapseRepeats(text))
		}
		lower := strings.ToLower(text)
		if text == "" || exact[lower] || matchesAny(lower, h.Substrings, strings.Contains) ||
			matchesAny(lower, h.Prefixes, strings.HasPrefix) {
			continue
		}
		clean = append(clean, Segment{Text: text, Start: s.Start, End: s.End})
	}
	if !dedup {
		return clean
	}

	// Keep the first of each run of identical neighbors.
	var out []Segment
	for _, s := range clean {
		if len(out) > 0 && strings.EqualFold(out[len(out)-1].Text, s.Text) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func matchesAny(text string, patterns []string, match func(string, string) bool) bool {
	for _, p := range patterns {
		if match(text, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// collapseRepeats reduces immediately repeated word runs ("so so so" or
// "over and over and over") to a single occurrence. Runs of up to eight
// words are considered, longest first.
func collapseRepeats(text string) string {
	words := strings.Fields(text)
	for runLen := 8; runLen >= 1; runLen-- {
		words = collapseRunLen(words, runLen)
	}
	return strings.Join(words, " ")
}

func collapseRunLen(words []string, runLen int) []string {
	var out []string
	for i := 0; i < len(words); {
		out = append(out, words[i:min(i+runLen, len(words))]...)
		j := i + runLen
		for j+runLen <= len(words) && sameRun(words, i, j, runLen) {
			j += runLen
		}
		i = j
	}
	return out
}

func sameRun(words []string, a, b, n int) bool {
	for k := 0; k < n; k++ {
		if words[a+k] != words[b+k] {
			return false
		}
	}
	return true
}
