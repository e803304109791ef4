package token

import "fmt"

// Position identifies a 1-indexed line and column within a source document.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}
