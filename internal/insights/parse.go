package insights

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hpungsan/mate/internal/errors"
)

// StripFence removes a single surrounding ``` or ```json code fence.
// Text without a fence is returned trimmed.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			opener := strings.TrimSpace(s[3:nl])
			if opener == "" || strings.EqualFold(opener, "json") {
				s = s[nl+1:]
			}
		} else {
			s = strings.TrimPrefix(strings.TrimPrefix(s, "```json"), "```")
		}
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// Parse decodes model output into Insights. Every key is validated on its
// own; unknown keys are ignored and missing keys stay absent. Malformed JSON,
// a non-object top level or a wrongly typed field yields a DECODE error.
func Parse(raw string) (*Insights, error) {
	body := StripFence(raw)
	if body == "" {
		return nil, errors.NewDecode("model output is empty", nil)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, errors.NewDecode("model output is not a JSON object", err)
	}
	if fields == nil {
		return nil, errors.NewDecode("model output is not a JSON object", nil)
	}

	out := &Insights{}
	var err error
	if out.Summary, err = optionalString(fields, "summary"); err != nil {
		return nil, err
	}
	if out.Suggestions, err = optionalString(fields, "suggestions"); err != nil {
		return nil, err
	}
	if out.Links, err = decodeLinks(fields["links"]); err != nil {
		return nil, err
	}
	return out, nil
}

func optionalString(fields map[string]json.RawMessage, key string) (*string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.NewDecode(fmt.Sprintf("%q must be a string", key), err)
	}
	return &s, nil
}

func decodeLinks(raw json.RawMessage) ([]Link, error) {
	if raw == nil || isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.NewDecode(`"links" must be an array`, err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	links := make([]Link, 0, len(items))
	for i, item := range items {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			return nil, errors.NewDecode(fmt.Sprintf("links[%d] must be an object", i), err)
		}
		var (
			l   Link
			err error
		)
		if l.URL, err = optionalString(obj, "url"); err != nil {
			return nil, err
		}
		if l.Summary, err = optionalString(obj, "summary"); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
