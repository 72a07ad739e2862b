package types

// ValueType is the code stored with every parameter. It determines which
// native Go type the stored text decodes to.
type ValueType string

// Parameter value type codes. The codes are part of the exchange format and
// must not change.
const (
	ValueTypeString     ValueType = "STR"
	ValueTypeInt        ValueType = "INT"
	ValueTypeFloat      ValueType = "FLT"
	ValueTypeDecimal    ValueType = "DCL"
	ValueTypeBool       ValueType = "BOO"
	ValueTypeDate       ValueType = "DATE"
	ValueTypeDateTime   ValueType = "DATETIME"
	ValueTypeTime       ValueType = "TIME"
	ValueTypeURL        ValueType = "URL"
	ValueTypeEmail      ValueType = "EMAIL"
	ValueTypeList       ValueType = "LIST"
	ValueTypeDict       ValueType = "DICT"
	ValueTypeJSON       ValueType = "JSN"
	ValueTypePath       ValueType = "PATH"
	ValueTypeDuration   ValueType = "DURATION"
	ValueTypePercentage ValueType = "PERCENTAGE"
)

// valueTypeLabels maps each code to its display label and doubles as the set
// of recognized codes.
var valueTypeLabels = map[ValueType]string{
	ValueTypeString:     "String",
	ValueTypeInt:        "Integer",
	ValueTypeFloat:      "Float",
	ValueTypeDecimal:    "Decimal",
	ValueTypeBool:       "Boolean",
	ValueTypeDate:       "Date",
	ValueTypeDateTime:   "Datetime",
	ValueTypeTime:       "Time",
	ValueTypeURL:        "URL",
	ValueTypeEmail:      "Email",
	ValueTypeList:       "List",
	ValueTypeDict:       "Dict",
	ValueTypeJSON:       "JSON",
	ValueTypePath:       "Path",
	ValueTypeDuration:   "Duration",
	ValueTypePercentage: "Percentage",
}

// ValueTypes returns every recognized value type code in display order.
func ValueTypes() []ValueType {
	return []ValueType{
		ValueTypeString,
		ValueTypeInt,
		ValueTypeFloat,
		ValueTypeDecimal,
		ValueTypeBool,
		ValueTypeDate,
		ValueTypeDateTime,
		ValueTypeTime,
		ValueTypeURL,
		ValueTypeEmail,
		ValueTypeList,
		ValueTypeDict,
		ValueTypeJSON,
		ValueTypePath,
		ValueTypeDuration,
		ValueTypePercentage,
	}
}

// IsValid reports whether vt is a recognized value type code.
func (vt ValueType) IsValid() bool {
	_, ok := valueTypeLabels[vt]
	return ok
}

// Label returns the human-readable name of the type, or the raw code when
// the code is not recognized.
func (vt ValueType) Label() string {
	if l, ok := valueTypeLabels[vt]; ok {
		return l
	}
	return string(vt)
}

// ParseValueType converts an exchange or CLI code to a ValueType. An empty
// code resolves to ValueTypeString.
// Returns ErrInvalidValueType if the code is not recognized.
func ParseValueType(code string) (ValueType, error) {
	if code == "" {
		return ValueTypeString, nil
	}
	vt := ValueType(code)
	if !vt.IsValid() {
		return "", ErrInvalidValueType
	}
	return vt, nil
}
