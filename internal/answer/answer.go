// Package answer extracts the worker's free-text response from an MTurk
// answer document.
package answer

import (
	"encoding/xml"
	"strings"
)

// Extract walks the answer payload and returns the text of the first
// Answer/FreeText pair it finds. The payload comes from a third-party
// browser form, so nothing about it is trusted: envelope-only documents,
// malformed XML, truncated input and missing elements all return ok=false
// instead of an error. The extracted text is returned verbatim.
func Extract(payload string) (text string, ok bool) {
	if strings.TrimSpace(payload) == "" {
		return "", false
	}

	dec := xml.NewDecoder(strings.NewReader(payload))

	// depth tracks nesting inside the current Answer element so only a
	// direct FreeText child is captured.
	depth := 0
	inAnswer := false
	var freeText *strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			// io.EOF or a syntax error; either way there is nothing more
			// to be had from this document.
			return "", false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "Answer" && !inAnswer:
				inAnswer = true
				depth = 0
			case inAnswer:
				depth++
				if t.Name.Local == "FreeText" && depth == 1 {
					freeText = &strings.Builder{}
				}
			}
		case xml.CharData:
			if freeText != nil {
				freeText.Write(t)
			}
		case xml.EndElement:
			switch {
			case inAnswer && t.Name.Local == "FreeText" && depth == 1 && freeText != nil:
				return freeText.String(), true
			case inAnswer && depth > 0:
				depth--
			case inAnswer && t.Name.Local == "Answer":
				inAnswer = false
			}
		}
	}
}
