package mol

import (
	"fmt"

	"github.com/cznic/mathutil"
)

type TokenKind int

const (
	EOF TokenKind = iota
	IDENTIFIER
	INTLIT
	FLOATLIT
	STRLIT
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	PLUSPLUS
	MINUSMINUS
	EQ
	EQEQ
	BANG
	BANGEQ
	LESS
	LESSEQ
	GREATER
	GREATEREQ
	AMPAMP
	PIPEPIPE
	LEFTPAREN
	RIGHTPAREN
	LEFTBRACE
	RIGHTBRACE
	LEFTBRACKET
	RIGHTBRACKET
	COMMA
	SEMICOLON

	// keywords
	INT
	FLOAT
	BOOL
	STRING
	VOID
	MATRIX
	IF
	ELSE
	FOR
	WHILE
	RETURN
	TRUE
	FALSE
)

func (t TokenKind) String() string {
	switch t {
	case EOF:
		return "EOF"
	case IDENTIFIER:
		return "IDENTIFIER"
	case INTLIT:
		return "INTLIT"
	case FLOATLIT:
		return "FLOATLIT"
	case STRLIT:
		return "STRLIT"
	case PLUS:
		return "+"
	case MINUS:
		return "-"
	case STAR:
		return "*"
	case SLASH:
		return "/"
	case PERCENT:
		return "%"
	case PLUSPLUS:
		return "++"
	case MINUSMINUS:
		return "--"
	case EQ:
		return "="
	case EQEQ:
		return "=="
	case BANG:
		return "!"
	case BANGEQ:
		return "!="
	case LESS:
		return "<"
	case LESSEQ:
		return "<="
	case GREATER:
		return ">"
	case GREATEREQ:
		return ">="
	case AMPAMP:
		return "&&"
	case PIPEPIPE:
		return "||"
	case LEFTPAREN:
		return "("
	case RIGHTPAREN:
		return ")"
	case LEFTBRACE:
		return "{"
	case RIGHTBRACE:
		return "}"
	case LEFTBRACKET:
		return "["
	case RIGHTBRACKET:
		return "]"
	case COMMA:
		return ","
	case SEMICOLON:
		return ";"
	case INT:
		return "int"
	case FLOAT:
		return "float"
	case BOOL:
		return "bool"
	case STRING:
		return "string"
	case VOID:
		return "void"
	case MATRIX:
		return "matrix"
	case IF:
		return "if"
	case ELSE:
		return "else"
	case FOR:
		return "for"
	case WHILE:
		return "while"
	case RETURN:
		return "return"
	case TRUE:
		return "true"
	case FALSE:
		return "false"
	}
	panic("unreachable")
}

var keywords = map[string]TokenKind{
	"int":    INT,
	"float":  FLOAT,
	"bool":   BOOL,
	"string": STRING,
	"void":   VOID,
	"matrix": MATRIX,
	"if":     IF,
	"else":   ELSE,
	"for":    FOR,
	"while":  WHILE,
	"return": RETURN,
	"true":   TRUE,
	"false":  FALSE,
}

type Pos struct {
	filename string
	line     uint
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d", p.filename, p.line)
}

type Token struct {
	Pos
	Kind    TokenKind
	Content []byte
}

func ScanTokens(filename string, source []byte) ([]Token, error) {
	sc := NewScanner(filename, source)
	tokens := []Token{}
	for {
		tok, err := sc.Scan()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			break
		}
	}
	return tokens, nil
}

type Scanner struct {
	pos    Pos
	source []byte
	start  int
	end    int
}

func NewScanner(filename string, source []byte) Scanner {
	const DEFAULT_LINE uint = 1
	return Scanner{
		pos: Pos{
			filename: filename,
			line:     DEFAULT_LINE,
		},
		source: source,
	}
}

func (s *Scanner) Scan() (Token, error) {
	if err := s.skipWhitespace(); err != nil {
		return s.token(EOF), err
	}
	s.start = s.end
	var t Token
	switch c := s.next(); c {
	case 0:
		s.advance()
		t = s.token(EOF)
	case '+':
		s.advance()
		if s.next() == '+' {
			s.advance()
			t = s.token(PLUSPLUS)
		} else {
			t = s.token(PLUS)
		}
	case '-':
		s.advance()
		if s.next() == '-' {
			s.advance()
			t = s.token(MINUSMINUS)
		} else {
			t = s.token(MINUS)
		}
	case '*':
		s.advance()
		t = s.token(STAR)
	case '/':
		s.advance()
		t = s.token(SLASH)
	case '%':
		s.advance()
		t = s.token(PERCENT)
	case '=':
		s.advance()
		if s.next() == '=' {
			s.advance()
			t = s.token(EQEQ)
		} else {
			t = s.token(EQ)
		}
	case '!':
		s.advance()
		if s.next() == '=' {
			s.advance()
			t = s.token(BANGEQ)
		} else {
			t = s.token(BANG)
		}
	case '<':
		s.advance()
		if s.next() == '=' {
			s.advance()
			t = s.token(LESSEQ)
		} else {
			t = s.token(LESS)
		}
	case '>':
		s.advance()
		if s.next() == '=' {
			s.advance()
			t = s.token(GREATEREQ)
		} else {
			t = s.token(GREATER)
		}
	case '&':
		s.advance()
		if s.next() != '&' {
			return s.token(EOF), NewError(s.pos, ErrUnexpectedCharacter, "unexpected character: &")
		}
		s.advance()
		t = s.token(AMPAMP)
	case '|':
		s.advance()
		if s.next() != '|' {
			return s.token(EOF), NewError(s.pos, ErrUnexpectedCharacter, "unexpected character: |")
		}
		s.advance()
		t = s.token(PIPEPIPE)
	case '(':
		s.advance()
		t = s.token(LEFTPAREN)
	case ')':
		s.advance()
		t = s.token(RIGHTPAREN)
	case '{':
		s.advance()
		t = s.token(LEFTBRACE)
	case '}':
		s.advance()
		t = s.token(RIGHTBRACE)
	case '[':
		s.advance()
		t = s.token(LEFTBRACKET)
	case ']':
		s.advance()
		t = s.token(RIGHTBRACKET)
	case ',':
		s.advance()
		t = s.token(COMMA)
	case ';':
		s.advance()
		t = s.token(SEMICOLON)
	case '"':
		return s.str()
	default:
		if isId(c) {
			return s.id(), nil
		}
		if isNum(c) {
			return s.num(), nil
		}
		return s.token(EOF), NewError(s.pos, ErrUnexpectedCharacter, "unexpected character: %c", c)
	}
	return t, nil
}

func isId(c byte) bool {
	return ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || c == '_'
}

func isNum(c byte) bool {
	return '0' <= c && c <= '9'
}

func (s *Scanner) id() Token {
	for {
		c := s.next()
		if !isId(c) && !isNum(c) {
			break
		}
		s.advance()
	}
	t := s.token(IDENTIFIER)
	if kind, ok := keywords[string(t.Content)]; ok {
		t.Kind = kind
	}
	return t
}

func (s *Scanner) num() Token {
	for isNum(s.next()) {
		s.advance()
	}
	if s.next() == '.' {
		s.advance()
		for isNum(s.next()) {
			s.advance()
		}
		return s.token(FLOATLIT)
	}
	return s.token(INTLIT)
}

func (s *Scanner) str() (Token, error) {
	s.advance()
	s.start = s.end
	for {
		switch s.next() {
		case 0, '\n':
			return s.token(EOF), NewError(s.pos, ErrUnexpectedCharacter, "unterminated string literal")
		case '\\':
			s.advance()
			s.advance()
		case '"':
			t := s.token(STRLIT)
			s.advance()
			s.start = s.end
			return t, nil
		default:
			s.advance()
		}
	}
}

func (s *Scanner) skipWhitespace() error {
	for {
		switch s.next() {
		case ' ', '\t', '\r':
			s.advance()
		case '\n':
			s.advance()
			s.pos.line++
		case '/':
			switch s.peek(1) {
			case '/':
				for s.next() != '\n' && s.next() != 0 {
					s.advance()
				}
			case '*':
				if err := s.skipBlockComment(); err != nil {
					return err
				}
			default:
				return nil
			}
		default:
			return nil
		}
	}
}

func (s *Scanner) skipBlockComment() error {
	opened := s.pos
	s.advance()
	s.advance()
	for {
		switch s.next() {
		case 0:
			return NewError(opened, ErrUnexpectedCharacter, "unterminated comment")
		case '\n':
			s.advance()
			s.pos.line++
		case '*':
			s.advance()
			if s.next() == '/' {
				s.advance()
				return nil
			}
		default:
			s.advance()
		}
	}
}

func (s *Scanner) next() byte {
	if s.end >= len(s.source) {
		return 0
	}
	return s.source[s.end]
}

func (s *Scanner) peek(n int) byte {
	if s.end+n >= len(s.source) {
		return 0
	}
	return s.source[s.end+n]
}

func (s *Scanner) advance() byte {
	c := s.next()
	s.end++
	return c
}

func (s *Scanner) token(t TokenKind) Token {
	end := mathutil.Clamp(s.end, 0, len(s.source))
	content := s.source[s.start:end]
	s.start = end
	return Token{
		Pos: Pos{
			filename: s.pos.filename,
			line:     s.pos.line,
		},
		Kind:    t,
		Content: content,
	}
}
