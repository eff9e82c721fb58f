package ir

import "fmt"

// ParamError reports a malformed or invalid step parameter.
type ParamError struct {
	Kind    StepKind
	Field   string
	Message string
}

func (e *ParamError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s", e.Kind, e.Field, e.Message)
}

// EncodeParams converts typed step parameters into their compiled IRObject form.
// Optional fields are omitted rather than encoded as null.
func EncodeParams(p Params) (IRObject, error) {
	switch v := p.(type) {
	case ApplyFormula:
		return IRObject{
			"target":  coordinateObject(v.Target),
			"a1":      IRString(v.A1),
			"formula": IRString(v.Formula),
		}, nil
	case InsertRow:
		return IRObject{"index": IRInt(v.Index), "position": IRString(v.Position)}, nil
	case InsertColumn:
		return IRObject{"index": IRInt(v.Index), "position": IRString(v.Position)}, nil
	case DeleteRow:
		return IRObject{"index": IRInt(v.Index)}, nil
	case DeleteColumn:
		return IRObject{"index": IRInt(v.Index)}, nil
	case FillSeries:
		return IRObject{
			"source": coordinateObject(v.Source),
			"range":  rangeObject(v.Range),
		}, nil
	case SetColumnName:
		obj := IRObject{
			"header_row_index": IRInt(v.HeaderRowIndex),
			"from_header":      IRString(v.FromHeader),
			"to_header":        IRString(v.ToHeader),
			"column_ref":       IRObject{"index": IRInt(v.ColumnRef.Index)},
		}
		if v.ColumnLocator != nil {
			obj["column_locator"] = locatorObject(*v.ColumnLocator)
		}
		return obj, nil
	case ApplyHighlight:
		target := IRObject{}
		if v.Target.ByHeader != nil {
			target["by_header"] = locatorObject(*v.Target.ByHeader)
		}
		if v.Target.Row != nil {
			target["row"] = IRInt(*v.Target.Row)
		}
		if v.Target.Col != nil {
			target["col"] = IRInt(*v.Target.Col)
		}
		if v.Target.Range != nil {
			target["range"] = rangeObject(*v.Target.Range)
		}
		return IRObject{
			"color":            IRString(v.Color),
			"scope":            IRString(v.Scope),
			"header_row_index": IRInt(v.HeaderRowIndex),
			"target":           target,
		}, nil
	case nil:
		return nil, fmt.Errorf("encode params: step has no parameters")
	default:
		return nil, fmt.Errorf("encode params: unknown parameter type %T", p)
	}
}

// DecodeParams converts a compiled IRObject back into typed step parameters.
func DecodeParams(kind StepKind, obj IRObject) (Params, error) {
	f := &fieldReader{kind: kind, obj: obj}
	var p Params

	switch kind {
	case KindApplyFormula:
		p = ApplyFormula{
			Target:  f.coordinate("target"),
			A1:      f.optString("a1"),
			Formula: f.string("formula"),
		}
	case KindInsertRow:
		p = InsertRow{Index: f.int("index"), Position: RowPosition(f.string("position"))}
	case KindInsertColumn:
		p = InsertColumn{Index: f.int("index"), Position: ColumnPosition(f.string("position"))}
	case KindDeleteRow:
		p = DeleteRow{Index: f.int("index")}
	case KindDeleteColumn:
		p = DeleteColumn{Index: f.int("index")}
	case KindFillSeries:
		p = FillSeries{Source: f.coordinate("source"), Range: f.rng("range")}
	case KindSetColumnName:
		var ref ColumnRef
		f.child(f.sub("column_ref", true), func(s *fieldReader) {
			ref.Index = s.int("index")
		})
		p = SetColumnName{
			HeaderRowIndex: f.int("header_row_index"),
			FromHeader:     f.optString("from_header"),
			ToHeader:       f.string("to_header"),
			ColumnRef:      ref,
			ColumnLocator:  f.locator("column_locator"),
		}
	case KindApplyHighlight:
		var target HighlightTarget
		if t := f.sub("target", false); t != nil {
			f.child(t, func(s *fieldReader) {
				target = HighlightTarget{
					ByHeader: s.locator("by_header"),
					Row:      s.optInt("row"),
					Col:      s.optInt("col"),
				}
				if s.has("range") {
					r := s.rng("range")
					target.Range = &r
				}
			})
		}
		p = ApplyHighlight{
			Color:          f.string("color"),
			Scope:          HighlightScope(f.string("scope")),
			HeaderRowIndex: f.optIntValue("header_row_index"),
			Target:         target,
		}
	default:
		return nil, &ParamError{Kind: kind, Message: "unknown step kind"}
	}

	if f.err != nil {
		return nil, f.err
	}
	return p, nil
}

// ValidateParams checks the semantic constraints of step parameters that do
// not depend on sheet state.
func ValidateParams(p Params) error {
	bad := func(field, msg string) error {
		return &ParamError{Kind: p.Kind(), Field: field, Message: msg}
	}

	switch v := p.(type) {
	case ApplyFormula:
		if !v.Target.InBounds() {
			return bad("target", "coordinates must be non-negative and within the sheet limits")
		}
		if v.Formula == "" {
			return bad("formula", "must not be empty")
		}
	case InsertRow:
		if v.Index < 0 {
			return bad("index", "must be non-negative")
		}
		if v.Position != Above && v.Position != Below {
			return bad("position", fmt.Sprintf("must be %q or %q, got %q", Above, Below, v.Position))
		}
	case InsertColumn:
		if v.Index < 0 {
			return bad("index", "must be non-negative")
		}
		if v.Position != Left && v.Position != Right {
			return bad("position", fmt.Sprintf("must be %q or %q, got %q", Left, Right, v.Position))
		}
	case DeleteRow:
		if v.Index < 0 {
			return bad("index", "must be non-negative")
		}
	case DeleteColumn:
		if v.Index < 0 {
			return bad("index", "must be non-negative")
		}
	case FillSeries:
		if !v.Source.InBounds() {
			return bad("source", "coordinates must be non-negative and within the sheet limits")
		}
		if !v.Range.Valid() {
			return bad("range", "bounds must be non-negative and ordered")
		}
		if !v.Range.Bounded() {
			return bad("range", fmt.Sprintf("must lie within %dx%d and cover at most %d cells", MaxRows, MaxCols, MaxRangeCells))
		}
	case SetColumnName:
		if v.HeaderRowIndex < 0 {
			return bad("header_row_index", "must be non-negative")
		}
		if v.ToHeader == "" {
			return bad("to_header", "must not be empty")
		}
		if v.ColumnRef.Index < 0 {
			return bad("column_ref.index", "must be non-negative")
		}
		if err := validateLocator(v.ColumnLocator); err != nil {
			return bad("column_locator", err.Error())
		}
	case ApplyHighlight:
		return validateHighlight(v)
	case nil:
		return fmt.Errorf("step has no parameters")
	default:
		return fmt.Errorf("unknown parameter type %T", p)
	}
	return nil
}

func validateHighlight(v ApplyHighlight) error {
	bad := func(field, msg string) error {
		return &ParamError{Kind: KindApplyHighlight, Field: field, Message: msg}
	}
	if v.Color == "" {
		return bad("color", "must not be empty")
	}
	if v.HeaderRowIndex < 0 {
		return bad("header_row_index", "must be non-negative")
	}
	if err := validateLocator(v.Target.ByHeader); err != nil {
		return bad("target.by_header", err.Error())
	}
	hasCol := v.Target.Col != nil || v.Target.ByHeader != nil

	switch v.Scope {
	case ScopeCell:
		if v.Target.Row == nil || !hasCol {
			return bad("target", "CELL scope needs a row and a column or header locator")
		}
	case ScopeRow:
		if v.Target.Row == nil {
			return bad("target.row", "ROW scope needs a row")
		}
	case ScopeColumn:
		if !hasCol {
			return bad("target", "COLUMN scope needs a column or header locator")
		}
	case ScopeRange:
		if v.Target.Range == nil || !v.Target.Range.Valid() {
			return bad("target.range", "RANGE scope needs a valid range")
		}
		if !v.Target.Range.Bounded() {
			return bad("target.range", fmt.Sprintf("must lie within %dx%d and cover at most %d cells", MaxRows, MaxCols, MaxRangeCells))
		}
	default:
		return bad("scope", fmt.Sprintf("unknown scope %q", v.Scope))
	}
	if v.Target.Row != nil && (*v.Target.Row < 0 || *v.Target.Row >= MaxRows) {
		return bad("target.row", "must be non-negative and within the sheet limits")
	}
	if v.Target.Col != nil && (*v.Target.Col < 0 || *v.Target.Col >= MaxCols) {
		return bad("target.col", "must be non-negative and within the sheet limits")
	}
	return nil
}

func validateLocator(loc *ColumnLocator) error {
	if loc == nil {
		return nil
	}
	if loc.Strategy != StrategyByHeaderText {
		return fmt.Errorf("unknown strategy %q", loc.Strategy)
	}
	if loc.FallbackIndex != nil && *loc.FallbackIndex < 0 {
		return fmt.Errorf("fallback_index must be non-negative")
	}
	return nil
}

func coordinateObject(c Coordinate) IRObject {
	return IRObject{"row": IRInt(c.Row), "col": IRInt(c.Col)}
}

func rangeObject(r Range) IRObject {
	return IRObject{
		"start_row": IRInt(r.StartRow),
		"end_row":   IRInt(r.EndRow),
		"start_col": IRInt(r.StartCol),
		"end_col":   IRInt(r.EndCol),
	}
}

func locatorObject(l ColumnLocator) IRObject {
	strategy := l.Strategy
	if strategy == "" {
		strategy = StrategyByHeaderText
	}
	obj := IRObject{"strategy": IRString(strategy)}
	if l.FromHeader != nil {
		obj["from_header"] = IRString(*l.FromHeader)
	}
	if l.FallbackIndex != nil {
		obj["fallback_index"] = IRInt(*l.FallbackIndex)
	}
	return obj
}

// fieldReader pulls typed fields out of an IRObject, keeping the first error.
type fieldReader struct {
	kind   StepKind
	prefix string
	obj    IRObject
	err    error
}

func (f *fieldReader) fail(key, msg string) {
	if f.err == nil {
		f.err = &ParamError{Kind: f.kind, Field: f.prefix + key, Message: msg}
	}
}

func (f *fieldReader) lookup(key string) (IRValue, bool) {
	v, ok := f.obj[key]
	if !ok {
		return nil, false
	}
	if _, isNull := v.(IRNull); isNull {
		return nil, false
	}
	return v, true
}

func (f *fieldReader) has(key string) bool {
	_, ok := f.lookup(key)
	return ok
}

func (f *fieldReader) int(key string) int {
	v, ok := f.lookup(key)
	if !ok {
		f.fail(key, "is required")
		return 0
	}
	n, isInt := v.(IRInt)
	if !isInt {
		f.fail(key, fmt.Sprintf("must be an integer, got %T", v))
		return 0
	}
	return int(n)
}

func (f *fieldReader) optInt(key string) *int {
	if !f.has(key) {
		return nil
	}
	n := f.int(key)
	return &n
}

func (f *fieldReader) optIntValue(key string) int {
	if !f.has(key) {
		return 0
	}
	return f.int(key)
}

func (f *fieldReader) string(key string) string {
	v, ok := f.lookup(key)
	if !ok {
		f.fail(key, "is required")
		return ""
	}
	s, isString := v.(IRString)
	if !isString {
		f.fail(key, fmt.Sprintf("must be a string, got %T", v))
		return ""
	}
	return string(s)
}

func (f *fieldReader) optString(key string) string {
	if !f.has(key) {
		return ""
	}
	return f.string(key)
}

func (f *fieldReader) sub(key string, required bool) *fieldReader {
	v, ok := f.lookup(key)
	if !ok {
		if required {
			f.fail(key, "is required")
			return &fieldReader{kind: f.kind, obj: IRObject{}, err: f.err}
		}
		return nil
	}
	obj, isObj := v.(IRObject)
	if !isObj {
		f.fail(key, fmt.Sprintf("must be an object, got %T", v))
		return &fieldReader{kind: f.kind, obj: IRObject{}, err: f.err}
	}
	return &fieldReader{kind: f.kind, prefix: f.prefix + key + ".", obj: obj, err: f.err}
}

// child runs fn against a nested reader and propagates its error.
func (f *fieldReader) child(sub *fieldReader, fn func(*fieldReader)) {
	fn(sub)
	if f.err == nil && sub.err != nil {
		f.err = sub.err
	}
}

func (f *fieldReader) coordinate(key string) Coordinate {
	var c Coordinate
	f.child(f.sub(key, true), func(s *fieldReader) {
		c = Coordinate{Row: s.int("row"), Col: s.int("col")}
	})
	return c
}

func (f *fieldReader) rng(key string) Range {
	var r Range
	f.child(f.sub(key, true), func(s *fieldReader) {
		r = Range{
			StartRow: s.int("start_row"),
			EndRow:   s.int("end_row"),
			StartCol: s.int("start_col"),
			EndCol:   s.int("end_col"),
		}
	})
	return r
}

func (f *fieldReader) locator(key string) *ColumnLocator {
	sub := f.sub(key, false)
	if sub == nil {
		return nil
	}
	var loc ColumnLocator
	f.child(sub, func(s *fieldReader) {
		loc.Strategy = StrategyByHeaderText
		if s.has("strategy") {
			loc.Strategy = LocatorStrategy(s.string("strategy"))
		}
		if s.has("from_header") {
			h := s.string("from_header")
			loc.FromHeader = &h
		}
		loc.FallbackIndex = s.optInt("fallback_index")
	})
	return &loc
}
