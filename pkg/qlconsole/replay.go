package qlconsole

import "os"

// ReplayMode specifies how to handle lines already in the log.
type ReplayMode int

const (
	// ReplayNone only watches for new lines (default, tail -f behavior).
	ReplayNone ReplayMode = iota
	// ReplayFromStart reads from the beginning of the file.
	ReplayFromStart
	// ReplayLastN reads the last N lines before tailing.
	ReplayLastN
)

// DefaultMaxReplayLastN is the default maximum lines for ReplayLastN mode.
const DefaultMaxReplayLastN = 10000

// ReplayConfig configures replay behavior.
type ReplayConfig struct {
	Mode  ReplayMode
	LastN int // For ReplayLastN
}

// readLastNLines reads the last n non-empty lines of a file by scanning
// backwards in chunks. Lines are returned oldest first.
//
// maxBytes caps the total bytes read and maxLineBytes the length of a single
// line; 0 disables a cap. Exceeding either returns ErrReplayLimitExceeded.
func readLastNLines(path string, n int, maxBytes int, maxLineBytes int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	size := stat.Size()
	if size == 0 || n <= 0 {
		return nil, nil
	}

	const chunkSize = 4096
	lines := make([]string, 0, n)
	offset := size
	var carry []byte // partial line at the start of the previous chunk
	total := 0

	for len(lines) < n && offset > 0 {
		readSize := int64(chunkSize)
		if offset < readSize {
			readSize = offset
		}
		offset -= readSize

		if maxBytes > 0 && total+int(readSize)+len(carry) > maxBytes {
			return nil, ErrReplayLimitExceeded
		}

		chunk := make([]byte, readSize, int(readSize)+len(carry))
		if _, err := file.ReadAt(chunk, offset); err != nil {
			return nil, err
		}
		total += int(readSize)
		chunk = append(chunk, carry...)

		found, rest, ok := extractLinesBackward(chunk, n-len(lines), maxLineBytes)
		if !ok {
			return nil, ErrReplayLimitExceeded
		}
		lines = append(found, lines...)
		carry = rest
		if len(lines) < n && maxLineBytes > 0 && len(carry) > maxLineBytes {
			return nil, ErrReplayLimitExceeded
		}
	}

	// The first line of the file has no newline before it.
	if offset == 0 && len(carry) > 0 && len(lines) < n {
		if line := trimCR(string(carry)); line != "" {
			lines = append([]string{line}, lines...)
		}
	}
	return lines, nil
}

// extractLinesBackward returns the last max complete non-empty lines in buf,
// oldest first, and the partial line before the first newline. ok is false
// if a complete line is longer than maxLineBytes.
func extractLinesBackward(buf []byte, max int, maxLineBytes int) (lines []string, rest []byte, ok bool) {
	end := len(buf)
	for i := len(buf) - 1; i >= 0; i-- {
		if buf[i] != '\n' {
			continue
		}
		b := buf[i+1 : end]
		if maxLineBytes > 0 && len(b) > maxLineBytes {
			return nil, nil, false
		}
		if line := trimCR(string(b)); line != "" {
			lines = append(lines, line)
		}
		end = i
	}

	// lines were collected newest first.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines, buf[:end], true
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}
