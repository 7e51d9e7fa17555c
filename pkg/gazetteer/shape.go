// Package gazetteer imports an external place dataset into the graph. The
// source file's top-level container shape varies between dataset releases,
// so the reader probes a fixed list of shape parsers and streams records
// with the first one that yields anything.
package gazetteer

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Shape identifies the top-level container layout of a gazetteer source.
type Shape int

const (
	// ShapeUnknown means no probe yielded a record.
	ShapeUnknown Shape = iota
	// ShapeArray is a top-level JSON array of place records.
	ShapeArray
	// ShapeGraphWrapper is a JSON-LD document with records under "@graph".
	ShapeGraphWrapper
	// ShapeKeyedWrapper is an object with records under some other key,
	// e.g. {"places": [...]}.
	ShapeKeyedWrapper
	// ShapeFeatureCollection is GeoJSON; records are feature "properties".
	ShapeFeatureCollection
	// ShapeIDMap is an object mapping ids to records.
	ShapeIDMap
	// ShapeNDJSON is newline-delimited JSON objects, the last resort.
	ShapeNDJSON
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeGraphWrapper:
		return "graph-wrapper"
	case ShapeKeyedWrapper:
		return "keyed-wrapper"
	case ShapeFeatureCollection:
		return "feature-collection"
	case ShapeIDMap:
		return "id-map"
	case ShapeNDJSON:
		return "ndjson"
	default:
		return "unknown"
	}
}

// errShapeMismatch signals that a probe does not apply to the stream.
// Before the first yield the reader moves on to the next shape; after it,
// the mismatch is terminal. Errors from the caller's yield function pass
// through unchanged and abort the scan.
var errShapeMismatch = fmt.Errorf("gazetteer: shape mismatch")

// Reader streams place records from a gazetteer source. The source is
// re-opened once per probe attempt, never loaded whole.
type Reader struct {
	open func() (io.ReadCloser, error)
}

// NewFileReader reads from a file path; a ".gz" suffix is decompressed
// transparently.
func NewFileReader(path string) *Reader {
	return &Reader{open: func() (io.ReadCloser, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		if strings.HasSuffix(strings.ToLower(path), ".gz") {
			zr, err := gzip.NewReader(f)
			if err != nil {
				f.Close()
				return nil, err
			}
			return &gzipReadCloser{zr: zr, f: f}, nil
		}
		return f, nil
	}}
}

// NewReader reads from streams produced by open. Used by tests.
func NewReader(open func() (io.ReadCloser, error)) *Reader {
	return &Reader{open: open}
}

type gzipReadCloser struct {
	zr *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.zr.Read(p) }

func (g *gzipReadCloser) Close() error {
	g.zr.Close()
	return g.f.Close()
}

// Each detects the source shape and streams every record through yield.
// It returns the shape that matched and the number of records yielded.
func (r *Reader) Each(yield func(record map[string]any) error) (Shape, int, error) {
	probes := []struct {
		shape Shape
		run   func(io.Reader, func(map[string]any) error) (int, error)
	}{
		{ShapeArray, probeArray},
		{ShapeGraphWrapper, probeGraphWrapper},
		{ShapeKeyedWrapper, probeKeyedWrapper},
		{ShapeFeatureCollection, probeFeatureCollection},
		{ShapeIDMap, probeIDMap},
		{ShapeNDJSON, probeNDJSON},
	}

	for _, probe := range probes {
		rc, err := r.open()
		if err != nil {
			return ShapeUnknown, 0, fmt.Errorf("failed to open gazetteer source: %w", err)
		}
		n, err := probe.run(rc, yield)
		rc.Close()

		if err == errShapeMismatch {
			// Records already streamed to the caller cannot be taken
			// back, so a mismatch after the first yield is terminal
			// rather than a signal to try the next shape.
			if n > 0 {
				return probe.shape, n, fmt.Errorf("gazetteer: %s source malformed after %d records", probe.shape, n)
			}
			continue
		}
		if err == nil && n == 0 {
			continue
		}
		if err != nil {
			return probe.shape, n, err
		}
		return probe.shape, n, nil
	}
	return ShapeUnknown, 0, nil
}

// probeArray handles a top-level JSON array.
func probeArray(r io.Reader, yield func(map[string]any) error) (int, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('[') {
		return 0, errShapeMismatch
	}
	return streamObjects(dec, yield)
}

func probeGraphWrapper(r io.Reader, yield func(map[string]any) error) (int, error) {
	return probeObjectArrayKey(r, func(key string) bool { return key == "@graph" }, yield)
}

func probeKeyedWrapper(r io.Reader, yield func(map[string]any) error) (int, error) {
	return probeObjectArrayKey(r, func(key string) bool {
		return key != "@graph" && key != "features"
	}, yield)
}

func probeFeatureCollection(r io.Reader, yield func(map[string]any) error) (int, error) {
	return probeObjectArrayKey(r, func(key string) bool { return key == "features" },
		func(feature map[string]any) error {
			props, ok := feature["properties"].(map[string]any)
			if !ok {
				return nil
			}
			return yield(props)
		})
}

// probeObjectArrayKey scans a top-level object for the first key accepted
// by match whose value is an array containing at least one object, and
// streams that array's objects.
func probeObjectArrayKey(r io.Reader, match func(string) bool, yield func(map[string]any) error) (int, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return 0, errShapeMismatch
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return 0, errShapeMismatch
		}
		key, ok := keyTok.(string)
		if !ok {
			return 0, errShapeMismatch
		}

		if !match(key) {
			if err := skipValue(dec); err != nil {
				return 0, errShapeMismatch
			}
			continue
		}

		valTok, err := dec.Token()
		if err != nil {
			return 0, errShapeMismatch
		}
		if valTok != json.Delim('[') {
			// Matching key but not an array; skip its remainder and keep
			// scanning.
			if err := skipAfterOpen(dec, valTok); err != nil {
				return 0, errShapeMismatch
			}
			continue
		}

		n, err := streamObjects(dec, yield)
		if err != nil {
			return n, err
		}
		if n > 0 {
			return n, nil
		}
	}
	return 0, errShapeMismatch
}

// probeIDMap handles a top-level object mapping ids to record objects.
func probeIDMap(r io.Reader, yield func(map[string]any) error) (int, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return 0, errShapeMismatch
	}

	n := 0
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return n, errShapeMismatch
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return n, errShapeMismatch
		}
		trimmed := strings.TrimSpace(string(raw))
		if !strings.HasPrefix(trimmed, "{") {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			continue
		}
		if err := yield(record); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// probeNDJSON handles one JSON object per line. Lines that fail strict
// parsing get one repair attempt before being dropped.
func probeNDJSON(r io.Reader, yield func(map[string]any) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	n := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] != '{' {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			repaired, rErr := jsonrepair.JSONRepair(line)
			if rErr != nil || json.Unmarshal([]byte(repaired), &record) != nil {
				continue
			}
		}
		if err := yield(record); err != nil {
			return n, err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, err
	}
	return n, nil
}

// streamObjects decodes array elements until ']', yielding the objects.
func streamObjects(dec *json.Decoder, yield func(map[string]any) error) (int, error) {
	n := 0
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return n, errShapeMismatch
		}
		trimmed := strings.TrimSpace(string(raw))
		if !strings.HasPrefix(trimmed, "{") {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			continue
		}
		if err := yield(record); err != nil {
			return n, err
		}
		n++
	}
	// Consume the closing ']' so callers can keep decoding the stream.
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return n, errShapeMismatch
	}
	return n, nil
}

// skipValue consumes the next complete value without buffering it.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	return skipAfterOpen(dec, tok)
}

// skipAfterOpen consumes the remainder of a value whose first token has
// already been read.
func skipAfterOpen(dec *json.Decoder, tok json.Token) error {
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		t, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := t.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
