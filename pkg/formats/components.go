package formats

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

// Token types produced by the frame component lexer.
const (
	tokenNumber = iota
	tokenComment
	tokenJunk
)

var componentLexer *lexmachine.Lexer

func init() {
	componentLexer = lexmachine.NewLexer()
	componentLexer.Add([]byte(`[\+\-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][\+\-]?[0-9]+)?`), token(tokenNumber))
	componentLexer.Add([]byte(`//[^\n]*`), token(tokenComment))
	componentLexer.Add([]byte(`( |\t|\n|\r)+`), skip)
	componentLexer.Add([]byte(`.`), token(tokenJunk))
	if err := componentLexer.Compile(); err != nil {
		panic(err)
	}
}

func token(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(*lexmachine.Scanner, *machines.Match) (interface{}, error) {
	return nil, nil
}

// parseComponents tokenizes the body of a frame block into numbers.
// Comments and stray characters are dropped.
func parseComponents(body []byte) ([]float64, error) {
	scanner, err := componentLexer.Scanner(body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create component scanner")
	}

	components := make([]float64, 0, 64)
	for tok, err, eos := scanner.Next(); !eos; tok, err, eos = scanner.Next() {
		if ui, ok := err.(*machines.UnconsumedInput); ok {
			next := ui.FailTC
			if next <= ui.StartTC {
				next = ui.StartTC + 1
			}
			scanner.TC = next
			continue
		} else if err != nil {
			return nil, errors.Wrapf(err, "failed to scan frame components")
		}

		t := tok.(*lexmachine.Token)
		if t.Type != tokenNumber {
			continue
		}
		f, err := strconv.ParseFloat(string(t.Lexeme), 64)
		if err != nil {
			continue
		}
		components = append(components, f)
	}

	return components, nil
}
