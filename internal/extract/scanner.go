package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const scannerBufSize = 32 * 1024

var (
	isSpace = [256]bool{' ': true, '\t': true, '\n': true, '\v': true, '\f': true, '\r': true}

	// isNumberByte covers JSON numbers and the nan/inf spellings accepted by strconv.
	isNumberByte = func() (t [256]bool) {
		for c := '0'; c <= '9'; c++ {
			t[c] = true
		}
		for c := 'a'; c <= 'z'; c++ {
			t[c] = true
			t[c-'a'+'A'] = true
		}
		t['+'], t['-'], t['.'] = true, true, true
		return t
	}()
)

// scanner is a buffered forward cursor over a byte stream.
// Bytes before the cursor are discarded on refill unless a mark pins them.
type scanner struct {
	r    io.Reader
	buf  []byte
	pos  int   // next unconsumed byte within buf
	used int   // end of valid data within buf
	base int64 // stream position of buf[0]
	eof  bool
	err  error // sticky read failure

	marked bool
	markAt int64

	num []byte
}

func newScanner(r io.Reader, base int64) *scanner {
	return &scanner{
		r:    r,
		buf:  make([]byte, scannerBufSize),
		base: base,
	}
}

// offset returns the stream position of the next unconsumed byte.
func (s *scanner) offset() int64 {
	return s.base + int64(s.pos)
}

// refill discards consumed bytes and reads at least one more byte.
// It returns io.EOF at the end of input and a *ReadError if the source fails.
func (s *scanner) refill() error {
	if s.err != nil {
		return s.err
	}
	if s.eof {
		return io.EOF
	}

	keep := s.pos
	if s.marked {
		if m := int(s.markAt - s.base); m < keep {
			keep = m
		}
	}
	if keep > 0 {
		copy(s.buf, s.buf[keep:s.used])
		s.used -= keep
		s.pos -= keep
		s.base += int64(keep)
	}

	// a mark can pin a whole buffer worth of lookahead
	if s.used == len(s.buf) {
		grown := make([]byte, 2*len(s.buf))
		copy(grown, s.buf[:s.used])
		s.buf = grown
	}

	n, err := io.ReadAtLeast(s.r, s.buf[s.used:], 1)
	s.used += n
	switch {
	case err == io.EOF:
		s.eof = true
		return io.EOF
	case err != nil:
		s.err = &ReadError{Pos: s.base + int64(s.used), Err: err}
		return s.err
	}

	return nil
}

// peekByte returns the next byte without consuming it.
func (s *scanner) peekByte() (byte, error) {
	for s.pos >= s.used {
		if err := s.refill(); err != nil {
			return 0, err
		}
	}
	return s.buf[s.pos], nil
}

// peek returns a view of the next n bytes. At the end of input the view is
// shorter than n and no error is returned.
func (s *scanner) peek(n int) ([]byte, error) {
	for s.used-s.pos < n {
		err := s.refill()
		if err == io.EOF {
			return s.buf[s.pos:s.used], nil
		}
		if err != nil {
			return nil, err
		}
	}
	return s.buf[s.pos : s.pos+n], nil
}

// advance consumes n bytes that have already been peeked.
func (s *scanner) advance(n int) {
	s.pos += n
}

// scanBytes consumes bytes while accept returns true.
func (s *scanner) scanBytes(accept func(c byte) bool) error {
	for {
		for s.pos < s.used {
			if !accept(s.buf[s.pos]) {
				return nil
			}
			s.pos++
		}
		err := s.refill()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *scanner) skipSpace() error {
	return s.scanBytes(func(c byte) bool { return isSpace[c] })
}

// matchLiteral consumes lit if the input continues with it. Nothing is
// consumed on a mismatch.
func (s *scanner) matchLiteral(lit string) (bool, error) {
	buf, err := s.peek(len(lit))
	if err != nil {
		return false, err
	}
	if string(buf) != lit {
		return false, nil
	}
	s.advance(len(lit))
	return true, nil
}

// matchToken skips whitespace, then matches lit.
func (s *scanner) matchToken(lit string) (bool, error) {
	if err := s.skipSpace(); err != nil {
		return false, err
	}
	return s.matchLiteral(lit)
}

// matchTokens matches every literal in order and stops at the first miss.
func (s *scanner) matchTokens(lits ...string) (bool, error) {
	for _, lit := range lits {
		ok, err := s.matchToken(lit)
		if !ok || err != nil {
			return false, err
		}
	}
	return true, nil
}

// readNumber reads a numeric literal after optional whitespace. Values out of
// float64 range come back as ±Inf, nan and inf spellings are accepted.
func (s *scanner) readNumber() (float64, error) {
	if err := s.skipSpace(); err != nil {
		return 0, err
	}

	pos := s.offset()
	s.num = s.num[:0]
	err := s.scanBytes(func(c byte) bool {
		if !isNumberByte[c] {
			return false
		}
		s.num = append(s.num, c)
		return true
	})
	if err != nil {
		return 0, err
	}
	if len(s.num) == 0 {
		return 0, s.errorf("expected number")
	}

	x, err := strconv.ParseFloat(string(s.num), 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			return x, nil
		}
		return 0, &syntaxError{pos: pos, msg: fmt.Sprintf("invalid number %q", s.num)}
	}

	return x, nil
}

// seek moves the cursor to the earliest occurrence of any of pats and returns
// the index of the pattern found there. The match itself is not consumed.
func (s *scanner) seek(pats ...[]byte) (int, error) {
	maxLen := 0
	for _, p := range pats {
		maxLen = max(maxLen, len(p))
	}

	for {
		window := s.buf[s.pos:s.used]
		best, which := -1, -1
		for i, p := range pats {
			idx := bytes.Index(window, p)
			if idx >= 0 && (best < 0 || idx < best) {
				best, which = idx, i
			}
		}

		// a longer pattern may still start before best once more data arrives
		if best >= 0 && (s.eof || best+maxLen <= len(window)) {
			s.pos += best
			return which, nil
		}
		if best < 0 {
			if keep := s.used - (maxLen - 1); keep > s.pos {
				s.pos = keep
			}
		}

		err := s.refill()
		if err == io.EOF {
			if best >= 0 {
				s.pos += best
				return which, nil
			}
			s.pos = s.used
			return -1, ErrBoundaryNotFound
		}
		if err != nil {
			return -1, err
		}
	}
}

// seekTo advances the cursor past the next occurrence of pat.
func (s *scanner) seekTo(pat []byte) error {
	if _, err := s.seek(pat); err != nil {
		return err
	}
	s.advance(len(pat))
	return nil
}

// mark remembers the cursor so that reset can return to it. Bytes from the
// mark on are retained until release.
func (s *scanner) mark() {
	s.marked = true
	s.markAt = s.offset()
}

func (s *scanner) reset() {
	s.pos = int(s.markAt - s.base)
}

func (s *scanner) release() {
	s.marked = false
}

func (s *scanner) errorf(format string, a ...any) error {
	return &syntaxError{pos: s.offset(), msg: fmt.Sprintf(format, a...)}
}
