package iec

import "fmt"

// TypeCode IEC 61131-3 数据类型名
type TypeCode string

const (
	TypeBOOL   TypeCode = "BOOL"
	TypeBYTE   TypeCode = "BYTE"
	TypeSINT   TypeCode = "SINT"
	TypeUSINT  TypeCode = "USINT"
	TypeINT    TypeCode = "INT"
	TypeUINT   TypeCode = "UINT"
	TypeWORD   TypeCode = "WORD"
	TypeDINT   TypeCode = "DINT"
	TypeUDINT  TypeCode = "UDINT"
	TypeDWORD  TypeCode = "DWORD"
	TypeLINT   TypeCode = "LINT"
	TypeULINT  TypeCode = "ULINT"
	TypeLWORD  TypeCode = "LWORD"
	TypeREAL   TypeCode = "REAL"
	TypeLREAL  TypeCode = "LREAL"
	TypeTIME   TypeCode = "TIME"
	TypeSTRING TypeCode = "STRING"
	TypeSTRUCT TypeCode = "STRUCT"
)

// DefaultStringLength STRING 未声明长度时的字符数（CODESYS 默认 80）
const DefaultStringLength = 80

// scalarSizes 各标量类型的字节宽度
var scalarSizes = map[TypeCode]int{
	TypeBOOL:  1,
	TypeBYTE:  1,
	TypeSINT:  1,
	TypeUSINT: 1,
	TypeINT:   2,
	TypeUINT:  2,
	TypeWORD:  2,
	TypeDINT:  4,
	TypeUDINT: 4,
	TypeDWORD: 4,
	TypeLINT:  8,
	TypeULINT: 8,
	TypeLWORD: 8,
	TypeREAL:  4,
	TypeLREAL: 8,
	TypeTIME:  4,
}

// SizeOf 返回类型的字节宽度。
// STRING(n) 占 n+1 字节（含结尾 NUL）。
func SizeOf(t TypeCode, stringLength int) (int, error) {
	if t == TypeSTRING {
		if stringLength <= 0 {
			stringLength = DefaultStringLength
		}
		return stringLength + 1, nil
	}
	if n, ok := scalarSizes[t]; ok {
		return n, nil
	}
	return 0, fmt.Errorf("iec: unknown type %q", t)
}
