// Package corpus turns phone-transcribed word lists into the padded integer
// datasets the recurrent model trains on: vocabulary construction, sequence
// encoding and train/validation splitting.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Reserved structural markers. Pad must sit at index 0 of every vocabulary:
// loss and perplexity code masks on that exact value.
const (
	PadSymbol   = "<p>"
	StartSymbol = "<s>"
	EndSymbol   = "<e>"
)

// ErrEmptyCorpus is returned when there are no sequences to build a
// vocabulary from.
var ErrEmptyCorpus = fmt.Errorf("corpus: empty corpus")

// UnknownSymbolError reports a symbol absent from the vocabulary during
// encoding or scoring. Encoding fails fast rather than substituting a
// default id.
type UnknownSymbolError struct {
	Symbol string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("corpus: unknown symbol %q", e.Symbol)
}

// Bracket wraps a phone sequence with the start and end markers.
func Bracket(phones []string) []string {
	out := make([]string, 0, len(phones)+2)
	out = append(out, StartSymbol)
	out = append(out, phones...)
	out = append(out, EndSymbol)
	return out
}

// ReadFile loads a word list: one word per line, whitespace-separated phone
// symbols. Trailing whitespace is stripped, blank lines skipped, and each
// word comes back bracketed with the start/end markers.
func ReadFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadWords(f)
}

// ReadWords is ReadFile over an already-open reader.
func ReadWords(r io.Reader) ([][]string, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	out := make([][]string, 0, 4096)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			phones := strings.Fields(line)
			if len(phones) > 0 {
				out = append(out, Bracket(phones))
			}
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}
