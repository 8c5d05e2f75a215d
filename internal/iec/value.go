package iec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// 数值宽容转换：配置与 HTTP/JSON 层送进来的数字可能是
// int/int64/uint64/float64 等任意形态，这里统一收敛。

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("iec: not a number: %T", v)
}

func toUint64(v any) (uint64, error) {
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	default:
		n, err := toInt64(v)
		if err != nil {
			return false, fmt.Errorf("iec: not a bool: %T", v)
		}
		return n != 0, nil
	}
}

// encodeScalar 将单个标量按小端写入 dst（长度须等于类型宽度）
func encodeScalar(dst []byte, t TypeCode, v any) error {
	switch t {
	case TypeBOOL:
		b, err := toBool(v)
		if err != nil {
			return err
		}
		dst[0] = 0
		if b {
			dst[0] = 1
		}
	case TypeBYTE, TypeUSINT:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		dst[0] = byte(n)
	case TypeSINT:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		dst[0] = byte(int8(n))
	case TypeINT:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(dst, uint16(int16(n)))
	case TypeUINT, TypeWORD:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(dst, uint16(n))
	case TypeDINT:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, uint32(int32(n)))
	case TypeUDINT, TypeDWORD, TypeTIME:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, uint32(n))
	case TypeLINT:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(dst, uint64(n))
	case TypeULINT, TypeLWORD:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(dst, n)
	case TypeREAL:
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(f)))
	case TypeLREAL:
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(dst, math.Float64bits(f))
	case TypeSTRING:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("iec: not a string: %T", v)
		}
		// 超长截断，保留结尾 NUL
		max := len(dst) - 1
		if len(s) > max {
			s = s[:max]
		}
		copy(dst, s)
		for i := len(s); i < len(dst); i++ {
			dst[i] = 0
		}
	default:
		return fmt.Errorf("iec: cannot encode type %q", t)
	}
	return nil
}

// decodeScalar 从小端字节还原单个标量
func decodeScalar(src []byte, t TypeCode) (any, error) {
	switch t {
	case TypeBOOL:
		return src[0] != 0, nil
	case TypeBYTE, TypeUSINT:
		return src[0], nil
	case TypeSINT:
		return int8(src[0]), nil
	case TypeINT:
		return int16(binary.LittleEndian.Uint16(src)), nil
	case TypeUINT, TypeWORD:
		return binary.LittleEndian.Uint16(src), nil
	case TypeDINT:
		return int32(binary.LittleEndian.Uint32(src)), nil
	case TypeUDINT, TypeDWORD, TypeTIME:
		return binary.LittleEndian.Uint32(src), nil
	case TypeLINT:
		return int64(binary.LittleEndian.Uint64(src)), nil
	case TypeULINT, TypeLWORD:
		return binary.LittleEndian.Uint64(src), nil
	case TypeREAL:
		return math.Float32frombits(binary.LittleEndian.Uint32(src)), nil
	case TypeLREAL:
		return math.Float64frombits(binary.LittleEndian.Uint64(src)), nil
	case TypeSTRING:
		for i, b := range src {
			if b == 0 {
				return string(src[:i]), nil
			}
		}
		return string(src), nil
	}
	return nil, fmt.Errorf("iec: cannot decode type %q", t)
}
