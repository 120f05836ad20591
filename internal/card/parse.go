package card

import (
	"log/slog"
	"regexp"

	"card-scanner/internal/ocr"
)

var (
	// 002/191: collector number over set size.
	numberPattern = regexp.MustCompile(`(\d{3})/(\d{3})`)
	// Standalone three digits, used by cards without a set size such as basic energy.
	triplePattern = regexp.MustCompile(`\d{3}`)
	// Set code with the optional regulation mark prefix and language suffix: GSSPEN.
	setCodePattern = regexp.MustCompile(`(G)?([A-Z]{3})(EN)?`)
)

// ParseResult is the outcome of scanning recognized text.
type ParseResult struct {
	ID    Identifier
	Found bool

	// FirstTriple is the first three-digit run seen anywhere in the text. It is kept
	// for cards that print no set size; the pipeline does not look it up.
	FirstTriple string
}

// Parse scans blocks, lines and elements in reading order and returns the first
// collector number whose set code can be read from the token before it: the previous
// element on the same line, or the first element of the previous line when the
// number starts its line.
func Parse(text *ocr.Text) ParseResult {
	return parse(text, nil)
}

// ParseLogged is Parse with per-element debug logging.
func ParseLogged(text *ocr.Text, logger *slog.Logger) ParseResult {
	return parse(text, logger)
}

func parse(text *ocr.Text, logger *slog.Logger) ParseResult {
	var res ParseResult
	if text == nil {
		return res
	}

	for _, block := range text.Blocks {
		lines := block.Lines
		for j, line := range lines {
			elements := line.Elements
			for k, element := range elements {
				if logger != nil {
					logger.Debug("detected text element", "index", k, "text", element.Text)
				}

				if m := numberPattern.FindStringSubmatch(element.Text); m != nil {
					number := m[1]

					var previous string
					if k > 0 {
						previous = elements[k-1].Text
					} else if j > 0 && len(lines[j-1].Elements) > 0 {
						previous = lines[j-1].Elements[0].Text
					}

					// TODO: when previous is just the "EN" suffix split off by OCR, look one
					// element further back.
					if previous != "" {
						if sc := setCodePattern.FindStringSubmatch(previous); sc != nil {
							res.ID = Identifier{CardNumber: number, SetCode: sc[2]}
							res.Found = true
							if logger != nil {
								logger.Debug("found card identifier", "set_code", sc[2], "card_number", number)
							}
							return res
						}
					}
				}

				if res.FirstTriple == "" {
					if t := triplePattern.FindString(element.Text); t != "" {
						res.FirstTriple = t
					}
				}
			}
		}
	}
	return res
}
