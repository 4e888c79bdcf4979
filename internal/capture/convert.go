package capture

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"

	"github.com/roach88/contracttape/internal/match"
	"github.com/roach88/contracttape/internal/recording"
)

// fromCassette converts a recorded cassette interaction.
//
// Bodies that are valid JSON are stored as JSON; anything else is stored as
// a JSON string. A response with a content encoding is stored as hex chunks
// next to its decoded form.
func fromCassette(ci *cassette.Interaction) (recording.Interaction, error) {
	u, err := url.Parse(ci.Request.URL)
	if err != nil {
		return recording.Interaction{}, fmt.Errorf("parse request URL: %w", err)
	}

	i := recording.Interaction{
		Scope:  u.Scheme + "://" + u.Host,
		Method: ci.Request.Method,
		Path:   u.RequestURI(),
		Status: ci.Response.Code,
	}

	if len(ci.Request.Headers) > 0 {
		i.RequestHeaders = make(map[string]recording.HeaderValue, len(ci.Request.Headers))
		for name, values := range ci.Request.Headers {
			i.RequestHeaders[strings.ToLower(name)] = append(recording.HeaderValue(nil), values...)
		}
	}

	names := make([]string, 0, len(ci.Response.Headers))
	for name := range ci.Response.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range ci.Response.Headers[name] {
			i.RawHeaders = append(i.RawHeaders, name, value)
		}
	}

	if ci.Request.Body != "" {
		i.Body = jsonOrString([]byte(ci.Request.Body))
	}

	if ci.Response.Body == "" {
		return i, nil
	}

	encoding := ci.Response.Headers.Get("Content-Encoding")
	if enc := strings.ToLower(strings.TrimSpace(encoding)); enc == "" || enc == "identity" {
		i.Response = jsonOrString([]byte(ci.Response.Body))
		return i, nil
	}

	i.Response = match.EncodePayload([]byte(ci.Response.Body))
	decoded, err := match.DecodePayload(i.Response, encoding)
	if err != nil {
		return recording.Interaction{}, fmt.Errorf("%s %s: %w", i.Method, i.Path, err)
	}
	i.DecodedResponse = jsonOrString(decoded)
	return i, nil
}

// toCassette converts a stored interaction back into what the server sent.
func toCassette(i recording.Interaction) (*cassette.Interaction, error) {
	reqHeaders := make(http.Header, len(i.RequestHeaders))
	for name, values := range i.RequestHeaders {
		for _, v := range values {
			reqHeaders.Add(name, v)
		}
	}

	respHeaders := make(http.Header)
	for j := 0; j+1 < len(i.RawHeaders); j += 2 {
		respHeaders.Add(i.RawHeaders[j], i.RawHeaders[j+1])
	}

	body, err := payloadText(i.Body, "")
	if err != nil {
		return nil, fmt.Errorf("request body: %w", err)
	}
	response, err := payloadText(i.Response, respHeaders.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}

	return &cassette.Interaction{
		Request: cassette.Request{
			Method:  i.Method,
			URL:     i.Scope + i.Path,
			Headers: reqHeaders,
			Body:    body,
		},
		Response: cassette.Response{
			Code:    i.Status,
			Status:  fmt.Sprintf("%d %s", i.Status, http.StatusText(i.Status)),
			Headers: respHeaders,
			Body:    response,
		},
	}, nil
}

// payloadText renders a stored payload as wire text. Encoded payloads are
// unpacked from hex but stay compressed.
func payloadText(raw json.RawMessage, contentEncoding string) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	if enc := strings.ToLower(strings.TrimSpace(contentEncoding)); enc != "" && enc != "identity" {
		payload, err := match.DecodePayload(raw, "identity")
		if err != nil {
			return "", err
		}
		return string(payload), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	return string(raw), nil
}

func jsonOrString(body []byte) json.RawMessage {
	if json.Valid(body) {
		return append(json.RawMessage(nil), body...)
	}
	data, _ := json.Marshal(string(body))
	return data
}
