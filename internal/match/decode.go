package match

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/roach88/contracttape/internal/recording"
)

const formContentType = "application/x-www-form-urlencoded"

// parseJSON decodes raw JSON keeping numbers as json.Number.
func parseJSON(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeBody returns the structured form of a request body. Form encoded
// bodies recorded as strings are expanded into a field map.
func decodeBody(i recording.Interaction) (any, error) {
	v, err := parseJSON(i.Body)
	if err != nil {
		return nil, fmt.Errorf("parse request body: %w", err)
	}

	s, ok := v.(string)
	if !ok {
		return v, nil
	}

	contentType, _ := i.RequestHeader("content-type")
	if isFormContentType(contentType) || (contentType == "" && looksLikeForm(s)) {
		if form, err := parseForm(s); err == nil {
			return form, nil
		}
	}
	return s, nil
}

func isFormContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == formContentType
}

func looksLikeForm(s string) bool {
	return strings.Contains(s, "=") && !strings.ContainsAny(s, " \t\r\n{}[]\"")
}

func parseForm(s string) (map[string]any, error) {
	values, err := url.ParseQuery(s)
	if err != nil {
		return nil, err
	}

	form := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			form[k] = vs[0]
			continue
		}
		list := make([]any, len(vs))
		for i, v := range vs {
			list[i] = v
		}
		form[k] = list
	}
	return form, nil
}

// contentEncodings returns the encodings of a response in the order they
// were applied.
func contentEncodings(i recording.Interaction) []string {
	header, ok := i.ResponseHeader("content-encoding")
	if !ok {
		return nil
	}
	return parseEncodings(header)
}

func parseEncodings(header string) []string {
	var encodings []string
	for _, enc := range strings.Split(header, ",") {
		enc = strings.ToLower(strings.TrimSpace(enc))
		if enc != "" && enc != "identity" {
			encodings = append(encodings, enc)
		}
	}
	return encodings
}

func supportedEncoding(enc string) bool {
	switch enc {
	case "gzip", "x-gzip", "deflate", "br":
		return true
	default:
		return false
	}
}

// decodeResponse returns the structured response of interaction i and whether
// one was recorded. A recorded decoded response takes precedence over decoding
// the raw payload again.
func decodeResponse(i recording.Interaction, index int) (any, bool, error) {
	encodings := contentEncodings(i)
	for _, enc := range encodings {
		if !supportedEncoding(enc) {
			return nil, false, &DecodeUnsupportedError{Encoding: enc, Index: index}
		}
	}

	if i.HasDecodedResponse() {
		v, err := parseJSON(i.DecodedResponse)
		if err != nil {
			return nil, false, &DecodeError{Encoding: "json", Index: index, Err: err}
		}
		return v, true, nil
	}

	if !i.HasResponse() {
		return nil, false, nil
	}

	if len(encodings) == 0 {
		v, err := parseJSON(i.Response)
		if err != nil {
			return nil, false, &DecodeError{Encoding: "json", Index: index, Err: err}
		}
		return v, true, nil
	}

	payload, err := encodedPayload(i.Response)
	if err != nil {
		return nil, false, &DecodeError{Encoding: strings.Join(encodings, ","), Index: index, Err: err}
	}

	for j := len(encodings) - 1; j >= 0; j-- {
		payload, err = decompress(encodings[j], payload)
		if err != nil {
			return nil, false, &DecodeError{Encoding: encodings[j], Index: index, Err: err}
		}
	}

	return structured(payload), true, nil
}

// DecodePayload decodes an encoded response payload into its body bytes.
// Exposed for the capture layer, which stores decoded responses next to the
// raw ones.
func DecodePayload(raw json.RawMessage, contentEncoding string) ([]byte, error) {
	payload, err := encodedPayload(raw)
	if err != nil {
		return nil, err
	}

	encodings := parseEncodings(contentEncoding)

	for j := len(encodings) - 1; j >= 0; j-- {
		if !supportedEncoding(encodings[j]) {
			return nil, &DecodeUnsupportedError{Encoding: encodings[j], Index: -1}
		}
		payload, err = decompress(encodings[j], payload)
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// CompressPayload applies contentEncoding to body and renders the result with
// EncodePayload. It is the inverse of DecodePayload up to compression bytes.
func CompressPayload(body []byte, contentEncoding string) (json.RawMessage, error) {
	encodings := parseEncodings(contentEncoding)

	payload := body
	for _, enc := range encodings {
		var err error
		if payload, err = compress(enc, payload); err != nil {
			return nil, err
		}
	}
	return EncodePayload(payload), nil
}

func compress(enc string, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch enc {
	case "gzip", "x-gzip":
		w = gzip.NewWriter(&buf)
	case "deflate":
		w = zlib.NewWriter(&buf)
	case "br":
		w = brotli.NewWriter(&buf)
	default:
		return nil, &DecodeUnsupportedError{Encoding: enc, Index: -1}
	}
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePayload renders compressed bytes the way recordings store them:
// a list of hex encoded chunks.
func EncodePayload(payload []byte) json.RawMessage {
	data, _ := json.Marshal([]string{hex.EncodeToString(payload)})
	return data
}

// encodedPayload accepts either a single hex string or a list of hex chunks.
func encodedPayload(raw json.RawMessage) ([]byte, error) {
	var chunks []string
	if err := json.Unmarshal(raw, &chunks); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("encoded payload must be a hex string or a list of hex strings")
		}
		chunks = []string{single}
	}

	payload, err := hex.DecodeString(strings.Join(chunks, ""))
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return payload, nil
}

func decompress(enc string, payload []byte) ([]byte, error) {
	var r io.Reader
	switch enc {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case "deflate":
		// HTTP deflate is zlib framed, but raw deflate streams are common.
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			fr := flate.NewReader(bytes.NewReader(payload))
			defer fr.Close()
			r = fr
		} else {
			defer zr.Close()
			r = zr
		}
	case "br":
		r = brotli.NewReader(bytes.NewReader(payload))
	default:
		return nil, &DecodeUnsupportedError{Encoding: enc, Index: -1}
	}
	return io.ReadAll(r)
}

// structured parses a decoded body as JSON, falling back to a plain string.
func structured(body []byte) any {
	if json.Valid(body) {
		if v, err := parseJSON(body); err == nil {
			return v
		}
	}
	return string(body)
}
