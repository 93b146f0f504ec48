package agentflow

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// The condition language is a small boolean expression grammar evaluated
// against a snapshot of the data bag:
//
//	expr     = or
//	or       = and { "||" and }
//	and      = cmp { "&&" cmp }
//	cmp      = unary [ ("==" | "!=" | "<" | "<=" | ">" | ">=" | "in" | "includes") unary ]
//	unary    = "!" unary | primary
//	primary  = number | string | "true" | "false" | "null"
//	         | "defined" "(" ident ")" | ident | "(" expr ")"
//
// Identifiers resolve to data-bag keys; referencing an absent key anywhere
// except inside defined(...) is an EvaluationError.

// EvaluateCondition evaluates expr against a data-bag snapshot. The result
// must be a boolean; anything else, a malformed expression, or an absent key
// outside a defined(...) check yields an EvaluationError. Evaluation is pure.
func EvaluateCondition(expr string, snapshot map[string]any) (bool, error) {
	node, err := parseCondition(expr)
	if err != nil {
		return false, &EvaluationError{Expression: expr, Reason: err.Error()}
	}

	val, err := node.eval(snapshot)
	if err != nil {
		return false, &EvaluationError{Expression: expr, Reason: err.Error()}
	}

	b, ok := val.(bool)
	if !ok {
		return false, &EvaluationError{Expression: expr, Reason: fmt.Sprintf("expression is not boolean (got %T)", val)}
	}
	return b, nil
}

// Lexer

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokTrue
	tokFalse
	tokNull
	tokAnd
	tokOr
	tokNot
	tokEq
	tokNeq
	tokLt
	tokLte
	tokGt
	tokGte
	tokIn
	tokIncludes
	tokDefined
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func lexCondition(input string) ([]token, error) {
	var tokens []token
	i := 0

	for i < len(input) {
		c := input[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			tokens = append(tokens, token{kind: tokLParen})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen})
			i++

		case c == '&':
			if i+1 >= len(input) || input[i+1] != '&' {
				return nil, fmt.Errorf("unexpected %q at offset %d", string(c), i)
			}
			tokens = append(tokens, token{kind: tokAnd})
			i += 2
		case c == '|':
			if i+1 >= len(input) || input[i+1] != '|' {
				return nil, fmt.Errorf("unexpected %q at offset %d", string(c), i)
			}
			tokens = append(tokens, token{kind: tokOr})
			i += 2

		case c == '=':
			if i+1 >= len(input) || input[i+1] != '=' {
				return nil, fmt.Errorf("unexpected %q at offset %d (did you mean ==?)", string(c), i)
			}
			tokens = append(tokens, token{kind: tokEq})
			i += 2
		case c == '!':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{kind: tokNeq})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokNot})
				i++
			}
		case c == '<':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{kind: tokLte})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokLt})
				i++
			}
		case c == '>':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{kind: tokGte})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokGt})
				i++
			}

		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(input) && input[j] != quote {
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			tokens = append(tokens, token{kind: tokString, text: input[i+1 : j]})
			i = j + 1

		case c >= '0' && c <= '9' || c == '-' && i+1 < len(input) && input[i+1] >= '0' && input[i+1] <= '9':
			j := i + 1
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.') {
				j++
			}
			num, err := strconv.ParseFloat(input[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", input[i:j])
			}
			tokens = append(tokens, token{kind: tokNumber, num: num})
			i = j

		case unicode.IsLetter(rune(c)) || c == '_':
			j := i + 1
			for j < len(input) {
				r := rune(input[j])
				if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' {
					j++
					continue
				}
				break
			}
			word := input[i:j]
			switch word {
			case "true":
				tokens = append(tokens, token{kind: tokTrue})
			case "false":
				tokens = append(tokens, token{kind: tokFalse})
			case "null":
				tokens = append(tokens, token{kind: tokNull})
			case "in":
				tokens = append(tokens, token{kind: tokIn})
			case "includes":
				tokens = append(tokens, token{kind: tokIncludes})
			case "defined":
				tokens = append(tokens, token{kind: tokDefined})
			default:
				tokens = append(tokens, token{kind: tokIdent, text: word})
			}
			i = j

		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", string(c), i)
		}
	}

	tokens = append(tokens, token{kind: tokEOF})
	return tokens, nil
}

// Parser

type condExpr interface {
	eval(snapshot map[string]any) (any, error)
}

type litExpr struct {
	val any
}

type identExpr struct {
	key string
}

type definedExpr struct {
	key string
}

type notExpr struct {
	operand condExpr
}

type binExpr struct {
	op       tokenKind
	lhs, rhs condExpr
}

type condParser struct {
	tokens []token
	pos    int
}

func parseCondition(input string) (condExpr, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("empty expression")
	}

	tokens, err := lexCondition(input)
	if err != nil {
		return nil, err
	}

	p := &condParser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing input")
	}
	return node, nil
}

func (p *condParser) peek() token {
	return p.tokens[p.pos]
}

func (p *condParser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *condParser) parseOr() (condExpr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &binExpr{op: tokOr, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *condParser) parseAnd() (condExpr, error) {
	lhs, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		rhs, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		lhs = &binExpr{op: tokAnd, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *condParser) parseCmp() (condExpr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	switch op := p.peek().kind; op {
	case tokEq, tokNeq, tokLt, tokLte, tokGt, tokGte, tokIn, tokIncludes:
		p.next()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &binExpr{op: op, lhs: lhs, rhs: rhs}, nil
	default:
		return lhs, nil
	}
}

func (p *condParser) parseUnary() (condExpr, error) {
	if p.peek().kind == tokNot {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *condParser) parsePrimary() (condExpr, error) {
	switch t := p.next(); t.kind {
	case tokNumber:
		return &litExpr{val: t.num}, nil
	case tokString:
		return &litExpr{val: t.text}, nil
	case tokTrue:
		return &litExpr{val: true}, nil
	case tokFalse:
		return &litExpr{val: false}, nil
	case tokNull:
		return &litExpr{val: nil}, nil
	case tokIdent:
		return &identExpr{key: t.text}, nil
	case tokDefined:
		if p.next().kind != tokLParen {
			return nil, fmt.Errorf("defined requires a parenthesized key")
		}
		key := p.next()
		if key.kind != tokIdent {
			return nil, fmt.Errorf("defined requires a key name")
		}
		if p.next().kind != tokRParen {
			return nil, fmt.Errorf("missing ) after defined(%s", key.text)
		}
		return &definedExpr{key: key.text}, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return inner, nil
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected token")
	}
}

// Evaluation

func (e *litExpr) eval(map[string]any) (any, error) {
	return e.val, nil
}

func (e *identExpr) eval(snapshot map[string]any) (any, error) {
	val, ok := snapshot[e.key]
	if !ok {
		return nil, fmt.Errorf("key %q not present in data bag", e.key)
	}
	return val, nil
}

func (e *definedExpr) eval(snapshot map[string]any) (any, error) {
	_, ok := snapshot[e.key]
	return ok, nil
}

func (e *notExpr) eval(snapshot map[string]any) (any, error) {
	val, err := e.operand.eval(snapshot)
	if err != nil {
		return nil, err
	}
	b, ok := val.(bool)
	if !ok {
		return nil, fmt.Errorf("operand of ! is not boolean (got %T)", val)
	}
	return !b, nil
}

func (e *binExpr) eval(snapshot map[string]any) (any, error) {
	// Logical operators short-circuit
	if e.op == tokAnd || e.op == tokOr {
		lv, err := e.lhs.eval(snapshot)
		if err != nil {
			return nil, err
		}
		lb, ok := lv.(bool)
		if !ok {
			return nil, fmt.Errorf("logical operand is not boolean (got %T)", lv)
		}
		if e.op == tokAnd && !lb {
			return false, nil
		}
		if e.op == tokOr && lb {
			return true, nil
		}

		rv, err := e.rhs.eval(snapshot)
		if err != nil {
			return nil, err
		}
		rb, ok := rv.(bool)
		if !ok {
			return nil, fmt.Errorf("logical operand is not boolean (got %T)", rv)
		}
		return rb, nil
	}

	lv, err := e.lhs.eval(snapshot)
	if err != nil {
		return nil, err
	}
	rv, err := e.rhs.eval(snapshot)
	if err != nil {
		return nil, err
	}

	switch e.op {
	case tokEq:
		return valuesEqual(lv, rv), nil
	case tokNeq:
		return !valuesEqual(lv, rv), nil
	case tokLt, tokLte, tokGt, tokGte:
		return compareOrdered(e.op, lv, rv)
	case tokIn:
		return sequenceContains(rv, lv)
	case tokIncludes:
		return sequenceContains(lv, rv)
	default:
		return nil, fmt.Errorf("unsupported operator")
	}
}

func valuesEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func compareOrdered(op tokenKind, a, b any) (any, error) {
	var cmp int

	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return nil, fmt.Errorf("cannot compare number with %T", b)
		}
		switch {
		case af < bf:
			cmp = -1
		case af > bf:
			cmp = 1
		}
	} else if as, aok := a.(string); aok {
		bs, bok := b.(string)
		if !bok {
			return nil, fmt.Errorf("cannot compare string with %T", b)
		}
		cmp = strings.Compare(as, bs)
	} else {
		return nil, fmt.Errorf("values of type %T are not ordered", a)
	}

	switch op {
	case tokLt:
		return cmp < 0, nil
	case tokLte:
		return cmp <= 0, nil
	case tokGt:
		return cmp > 0, nil
	default:
		return cmp >= 0, nil
	}
}

func sequenceContains(seq, needle any) (any, error) {
	rv := reflect.ValueOf(seq)
	if !rv.IsValid() || rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("membership target is not a sequence (got %T)", seq)
	}

	for i := 0; i < rv.Len(); i++ {
		if valuesEqual(rv.Index(i).Interface(), needle) {
			return true, nil
		}
	}
	return false, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
