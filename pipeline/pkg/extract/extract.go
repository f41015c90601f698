// Package extract splits a delimited results extract into raw chunks.
package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/malbeclabs/electionlake/pipeline/pkg/record"
)

const (
	EncodingLatin1 = "latin1"
	EncodingUTF8   = "utf8"

	DefaultChunkSize = 50000
	DefaultSeparator = ';'
)

type Config struct {
	ChunkSize int
	Separator rune
	Encoding  string
}

func (c *Config) Validate() error {
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.Separator == 0 {
		c.Separator = DefaultSeparator
	}
	if c.Separator == '"' || c.Separator == '\n' || c.Separator == '\r' {
		return fmt.Errorf("invalid separator %q", c.Separator)
	}
	enc, err := NormalizeEncoding(c.Encoding)
	if err != nil {
		return err
	}
	c.Encoding = enc
	return nil
}

// NormalizeEncoding maps the accepted encoding spellings to EncodingLatin1 or
// EncodingUTF8. The empty string means latin1.
func NormalizeEncoding(enc string) (string, error) {
	switch strings.ToLower(strings.ReplaceAll(enc, "-", "")) {
	case "", "latin1", "iso88591":
		return EncodingLatin1, nil
	case "utf8":
		return EncodingUTF8, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", enc)
	}
}

// ExtractionError reports an extract that could not be read.
type ExtractionError struct {
	Line int
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("extraction failed at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

var (
	ErrEmptyExtract   = errors.New("extract has no header row")
	ErrMissingColumns = errors.New("extract header is missing required columns")
)

// Extractor yields consecutive raw chunks from one extract. It is not safe
// for concurrent use.
type Extractor struct {
	cfg    Config
	reader *csv.Reader
	header []string
	next   int
	done   bool
}

// New reads and checks the header row of r.
func New(r io.Reader, cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// A leading UTF-8 BOM switches decoding to UTF-8 and is dropped before
	// the CSV reader sees the first quote.
	var dec transform.Transformer = unicode.UTF8.NewDecoder()
	if cfg.Encoding == EncodingLatin1 {
		dec = charmap.ISO8859_1.NewDecoder()
	}
	r = transform.NewReader(r, unicode.BOMOverride(dec))

	reader := csv.NewReader(r)
	reader.Comma = cfg.Separator
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ExtractionError{Err: ErrEmptyExtract}
		}
		return nil, &ExtractionError{Line: 1, Err: fmt.Errorf("failed to read header: %w", err)}
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	var missing []string
	for _, col := range record.RequiredColumns {
		if !slices.Contains(header, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &ExtractionError{Line: 1, Err: fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))}
	}

	return &Extractor{cfg: cfg, reader: reader, header: header}, nil
}

func (e *Extractor) Header() []string {
	return e.header
}

// Next returns the next chunk of at most ChunkSize rows, or io.EOF once the
// extract is exhausted. Lines with the wrong number of fields, or that the
// CSV reader rejects, are returned with RawRow.Err set.
func (e *Extractor) Next() (*record.RawChunk, error) {
	if e.done {
		return nil, io.EOF
	}
	chunk := &record.RawChunk{Index: e.next, Rows: make([]record.RawRow, 0, min(e.cfg.ChunkSize, 4096))}
	for len(chunk.Rows) < e.cfg.ChunkSize {
		fields, err := e.reader.Read()
		if errors.Is(err, io.EOF) {
			e.done = true
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			chunk.Rows = append(chunk.Rows, record.RawRow{Line: perr.StartLine, Err: perr.Err})
			continue
		}
		if err != nil {
			return nil, &ExtractionError{Err: err}
		}

		line, _ := e.reader.FieldPos(0)
		if len(fields) != len(e.header) {
			chunk.Rows = append(chunk.Rows, record.RawRow{
				Line: line,
				Err:  fmt.Errorf("line has %d fields, header has %d", len(fields), len(e.header)),
			})
			continue
		}
		m := make(map[string]string, len(fields))
		for i, h := range e.header {
			m[h] = fields[i]
		}
		chunk.Rows = append(chunk.Rows, record.RawRow{Line: line, Fields: m})
	}
	if len(chunk.Rows) == 0 {
		return nil, io.EOF
	}
	e.next++
	return chunk, nil
}
