package logparse

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultChunkLines is the number of lines processed per chunk.
	DefaultChunkLines = 1000
	// DefaultChunkThreshold is the input size at which ParseContext switches
	// to chunked processing.
	DefaultChunkThreshold = 1 << 20
)

// Parser extracts buffer variables from log text. A Parser holds no state
// between calls and may be reused.
type Parser struct {
	log        *zap.Logger
	obs        Observer
	cls        *Classifier
	marker     string
	chunkLines int
	threshold  int
	relevance  bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the debug logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.log = l
		}
	}
}

// WithObserver registers an observer for parse events.
func WithObserver(o Observer) Option {
	return func(p *Parser) {
		if o != nil {
			p.obs = o
		}
	}
}

// WithSessionMarker overrides the phrase that opens a test case.
func WithSessionMarker(marker string) Option {
	return func(p *Parser) {
		if marker != "" {
			p.marker = marker
		}
	}
}

// WithChunkLines sets the chunk size in lines.
func WithChunkLines(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.chunkLines = n
		}
	}
}

// WithChunkThreshold sets the input size in bytes above which ParseContext
// processes in chunks.
func WithChunkThreshold(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.threshold = n
		}
	}
}

// WithRelevanceFilter enables or disables dropping the preamble before the
// first session marker. Enabled by default.
func WithRelevanceFilter(on bool) Option {
	return func(p *Parser) { p.relevance = on }
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		log:        zap.NewNop(),
		obs:        nopObserver{},
		marker:     DefaultSessionMarker,
		chunkLines: DefaultChunkLines,
		threshold:  DefaultChunkThreshold,
		relevance:  true,
	}
	for _, o := range opts {
		o(p)
	}
	p.cls = NewClassifier(p.marker)
	return p
}

// Parse extracts all variables from text in a single pass. Line numbers refer
// to the unfiltered input.
func (p *Parser) Parse(text string) ([]Variable, error) {
	s := p.newScan(text)
	err := s.scanRange(s.start, len(s.lines))
	p.log.Debug("parsing completed", zap.Int("variables", len(s.out)), zap.Int("lines", len(s.lines)))
	return s.out, err
}

// ParseContext parses text, switching to chunked mode when the input is at
// least the chunk threshold. progress may be nil.
func (p *Parser) ParseContext(ctx context.Context, text string, progress func(ChunkProgress)) ([]Variable, error) {
	if len(text) < p.threshold {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		vars, err := p.Parse(text)
		if progress != nil && err == nil {
			progress(ChunkProgress{Chunk: 1, Chunks: 1, Variables: len(vars)})
		}
		return vars, err
	}
	return p.ParseChunked(ctx, text, progress)
}

// scan is the state of one parse run. It carries the enclosing session name
// across chunk boundaries.
type scan struct {
	p       *Parser
	lines   []string
	start   int
	session string
	out     []Variable
}

func (p *Parser) newScan(text string) *scan {
	lines := strings.Split(text, "\n")
	s := &scan{p: p, lines: lines}
	if p.relevance {
		s.start = relevantStart(lines, p.marker)
		if s.start > 0 {
			p.log.Debug("skipped preamble", zap.Int("lines", s.start))
		}
	}
	return s
}

func (s *scan) scanRange(lo, hi int) (err error) {
	i := lo
	defer func() {
		if r := recover(); r != nil {
			err = &ParseError{Line: i + 1, Err: fmt.Errorf("%v", r)}
			s.p.log.Error("parsing error", zap.Int("line", i+1), zap.Any("panic", r))
		}
	}()
	for ; i < hi; i++ {
		s.scanLine(i)
	}
	return nil
}

func (s *scan) scanLine(i int) {
	raw := s.lines[i]
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return
	}
	s.p.obs.LineScanned()

	c := s.p.cls.Classify(trimmed)
	switch c.Kind {
	case KindSessionStart:
		s.session = c.Session
	case KindAssignment:
		value := s.value(c, i)
		if value == "" {
			return
		}
		v := Variable{
			Name:         c.Name,
			Value:        value,
			Type:         ClassifyValue(c.Name, value),
			Line:         i + 1,
			Timestamp:    LeadingTimestamp(raw),
			OriginalLine: trimmed,
			Session:      s.session,
		}
		s.out = append(s.out, v)
		s.p.obs.VariableExtracted(v.Type)
		s.p.log.Debug("parsed variable", zap.String("type", v.Type.String()), zap.String("name", v.Name), zap.Int("line", v.Line))
	}
}

// value resolves an assignment's payload: inline scalar, then multi-line
// extraction, then the first quoted run after the phrase.
func (s *scan) value(c Classified, i int) string {
	if c.HasInline {
		return c.Inline
	}
	s.p.log.Debug("starting multi-line extraction", zap.String("name", c.Name), zap.Int("line", i+1))
	v, complete, ok := ExtractPayload(c.Rest, s.lines[i+1:])
	if ok && v != "" {
		if !complete {
			s.p.obs.Incomplete()
			s.p.log.Debug("payload incomplete at end of input", zap.String("name", c.Name), zap.Int("line", i+1))
		}
		return v
	}
	return firstQuotedRun(c.Rest)
}
