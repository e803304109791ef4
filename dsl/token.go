package dsl

// tokenKind enumerates the lexical categories of the expression sublanguage
// used for `when` and cost expressions. Predicate literals are not tokenized
// here at all -- see parsePredicateLiteral, which hands their raw source straight
// to the vendored graphql/parser.
type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenInvalid

	tokenSemicolon // ;
	tokenArrow     // =>
	tokenLParen    // (
	tokenRParen    // )

	tokenPlus  // +
	tokenMinus // -
	tokenStar  // *
	tokenSlash // /

	tokenEq  // ==
	tokenNe  // !=
	tokenLt  // <
	tokenLe  // <=
	tokenGt  // >
	tokenGe  // >=
	tokenAnd // &&
	tokenOr  // ||
	tokenNot // !

	tokenNumber  // 123, 0.5, 1e10
	tokenString  // "..."
	tokenCapture // $name

	tokenWhen    // when
	tokenDefault // default
	tokenTrue    // true
	tokenFalse   // false
)

func (k tokenKind) String() string {
	switch k {
	case tokenEOF:
		return "end of input"
	case tokenSemicolon:
		return `";"`
	case tokenArrow:
		return `"=>"`
	case tokenLParen:
		return `"("`
	case tokenRParen:
		return `")"`
	case tokenPlus:
		return `"+"`
	case tokenMinus:
		return `"-"`
	case tokenStar:
		return `"*"`
	case tokenSlash:
		return `"/"`
	case tokenEq:
		return `"=="`
	case tokenNe:
		return `"!="`
	case tokenLt:
		return `"<"`
	case tokenLe:
		return `"<="`
	case tokenGt:
		return `">"`
	case tokenGe:
		return `">="`
	case tokenAnd:
		return `"&&"`
	case tokenOr:
		return `"||"`
	case tokenNot:
		return `"!"`
	case tokenNumber:
		return "number"
	case tokenString:
		return "string"
	case tokenCapture:
		return "$identifier"
	case tokenWhen:
		return `"when"`
	case tokenDefault:
		return `"default"`
	case tokenTrue:
		return `"true"`
	case tokenFalse:
		return `"false"`
	default:
		return "invalid token"
	}
}
