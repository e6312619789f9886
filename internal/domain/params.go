package domain

// Typed views over a node's raw parameter bag. Each category has a closed
// struct with its recognised fields; keys outside the closed set are kept in
// Extra so forward-compatible params survive a decode/encode round trip.

type TriggerParams struct {
	Schedule string                 `json:"schedule,omitempty"`
	Event    string                 `json:"event,omitempty"`
	Path     string                 `json:"path,omitempty"`
	Extra    map[string]interface{} `json:"-"`
}

type ActionParams struct {
	Recipient     string                 `json:"recipient,omitempty"`
	SpreadsheetID string                 `json:"spreadsheet_id,omitempty"`
	Channel       string                 `json:"channel,omitempty"`
	URL           string                 `json:"url,omitempty"`
	Subject       string                 `json:"subject,omitempty"`
	Body          string                 `json:"body,omitempty"`
	Extra         map[string]interface{} `json:"-"`
}

type ConditionParams struct {
	Expression string                 `json:"expression,omitempty"`
	Extra      map[string]interface{} `json:"-"`
}

type DelayParams struct {
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Extra      map[string]interface{} `json:"-"`
}

func stringParam(bag map[string]interface{}, key string) (string, bool) {
	v, ok := bag[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func extraParams(bag map[string]interface{}, known ...string) map[string]interface{} {
	extra := make(map[string]interface{})
	for k, v := range bag {
		recognised := false
		for _, name := range known {
			if k == name {
				recognised = true
				break
			}
		}
		if !recognised {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func DecodeTriggerParams(bag map[string]interface{}) TriggerParams {
	p := TriggerParams{}
	p.Schedule, _ = stringParam(bag, "schedule")
	p.Event, _ = stringParam(bag, "event")
	p.Path, _ = stringParam(bag, "path")
	p.Extra = extraParams(bag, "schedule", "event", "path")
	return p
}

func DecodeActionParams(bag map[string]interface{}) ActionParams {
	p := ActionParams{}
	p.Recipient, _ = stringParam(bag, "recipient")
	p.SpreadsheetID, _ = stringParam(bag, "spreadsheet_id")
	p.Channel, _ = stringParam(bag, "channel")
	p.URL, _ = stringParam(bag, "url")
	p.Subject, _ = stringParam(bag, "subject")
	p.Body, _ = stringParam(bag, "body")
	p.Extra = extraParams(bag, "recipient", "spreadsheet_id", "channel", "url", "subject", "body")
	return p
}

func DecodeConditionParams(bag map[string]interface{}) ConditionParams {
	p := ConditionParams{}
	p.Expression, _ = stringParam(bag, "expression")
	p.Extra = extraParams(bag, "expression")
	return p
}

func DecodeDelayParams(bag map[string]interface{}) DelayParams {
	p := DelayParams{}
	switch v := bag["duration_ms"].(type) {
	case float64:
		p.DurationMs = int64(v)
	case int64:
		p.DurationMs = v
	case int:
		p.DurationMs = int64(v)
	}
	p.Extra = extraParams(bag, "duration_ms")
	return p
}
