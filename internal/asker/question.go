package asker

import (
	"encoding/xml"
	"fmt"
	"net/url"
)

const externalQuestionNS = "http://mechanicalturk.amazonaws.com/AWSMechanicalTurkDataSchemas/2006-07-14/ExternalQuestion.xsd"

// frameHeight is the height of the iframe MTurk renders the form in.
const frameHeight = 600

type externalQuestion struct {
	XMLName     xml.Name `xml:"ExternalQuestion"`
	Namespace   string   `xml:"xmlns,attr"`
	ExternalURL string   `xml:"ExternalURL"`
	FrameHeight int      `xml:"FrameHeight"`
}

// formURL builds the worker-facing form URL: the configured base with the
// question, the optional operator callback and the environment's
// externalSubmit endpoint as query parameters. MTurk itself appends
// assignmentId and hitId when it loads the form.
func (s *Service) formURL(question string) (string, error) {
	u, err := url.Parse(s.cfg.FormURL)
	if err != nil {
		return "", fmt.Errorf("parse form URL: %w", err)
	}
	q := u.Query()
	q.Set("question", question)
	if s.cfg.CallbackURL != "" {
		q.Set("callbackUrl", s.cfg.CallbackURL)
	}
	q.Set("turkSubmitTo", s.cfg.SubmitURL())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// renderExternalQuestion wraps the form URL in the ExternalQuestion document
// the HIT creation call expects.
func renderExternalQuestion(formURL string) (string, error) {
	b, err := xml.Marshal(externalQuestion{
		Namespace:   externalQuestionNS,
		ExternalURL: formURL,
		FrameHeight: frameHeight,
	})
	if err != nil {
		return "", fmt.Errorf("marshal external question: %w", err)
	}
	return string(b), nil
}
