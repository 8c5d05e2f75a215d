package iec

import (
	"fmt"

	"github.com/jisotalo/codesys-client/internal/protocol/nvl"
)

// Variable 一条变量声明。
// Count>1 表示一维数组；Type 为 STRUCT 时取 Members 递归展开。
type Variable struct {
	Name    string     `yaml:"name"`
	Type    TypeCode   `yaml:"type"`
	Length  int        `yaml:"length,omitempty"` // STRING 字符数
	Count   int        `yaml:"array,omitempty"`  // 数组元素个数
	Members []Variable `yaml:"members,omitempty"`
}

// unitLength 单个元素（不含数组重复）的字节数
func (v Variable) unitLength() (int, error) {
	if v.Type == TypeSTRUCT {
		if len(v.Members) == 0 {
			return 0, fmt.Errorf("iec: struct %q has no members", v.Name)
		}
		total := 0
		for _, m := range v.Members {
			n, err := m.byteLength()
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	}
	return SizeOf(v.Type, v.Length)
}

func (v Variable) byteLength() (int, error) {
	unit, err := v.unitLength()
	if err != nil {
		return 0, err
	}
	if v.Count > 1 {
		return unit * v.Count, nil
	}
	return unit, nil
}

// Definition 一个网络变量列表的完整结构定义。
// 变量按声明顺序紧凑排布（无对齐填充），实现 nvl.Definition。
type Definition struct {
	name       string
	listID     uint16
	vars       []Variable
	byteLength int
	elements   []nvl.Element
}

// NewDefinition 构造并预计算总长度与叶子字段表
func NewDefinition(name string, listID uint16, vars []Variable) (*Definition, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("iec: definition %q has no variables", name)
	}
	d := &Definition{name: name, listID: listID, vars: vars}

	offset := 0
	for _, v := range vars {
		next, err := d.collectElements(v, offset)
		if err != nil {
			return nil, fmt.Errorf("iec: definition %q variable %q: %w", name, v.Name, err)
		}
		offset = next
	}
	d.byteLength = offset
	return d, nil
}

// collectElements 深度优先展开叶子字段，返回下一个偏移
func (d *Definition) collectElements(v Variable, offset int) (int, error) {
	count := v.Count
	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		if v.Type == TypeSTRUCT {
			if len(v.Members) == 0 {
				return 0, fmt.Errorf("struct %q has no members", v.Name)
			}
			for _, m := range v.Members {
				next, err := d.collectElements(m, offset)
				if err != nil {
					return 0, err
				}
				offset = next
			}
			continue
		}
		size, err := SizeOf(v.Type, v.Length)
		if err != nil {
			return 0, err
		}
		d.elements = append(d.elements, nvl.Element{Start: offset, Length: size})
		offset += size
	}
	return offset, nil
}

func (d *Definition) Name() string          { return d.name }
func (d *Definition) ListID() uint16        { return d.listID }
func (d *Definition) Variables() []Variable { return d.vars }

// ByteLength 整条逻辑报文的字节数
func (d *Definition) ByteLength() int { return d.byteLength }

// Elements 按线缆顺序返回叶子字段
func (d *Definition) Elements() []nvl.Element { return d.elements }

// ConvertToBuffer 将 map[string]any 形式的值序列化为原始字节
func (d *Definition) ConvertToBuffer(value any) ([]byte, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("iec: definition %q expects map[string]any, got %T", d.name, value)
	}
	buf := make([]byte, d.byteLength)
	offset := 0
	for _, v := range d.vars {
		next, err := encodeVariable(buf, offset, v, m[v.Name])
		if err != nil {
			return nil, fmt.Errorf("iec: definition %q variable %q: %w", d.name, v.Name, err)
		}
		offset = next
	}
	return buf, nil
}

// ConvertFromBuffer 反序列化为 map[string]any
func (d *Definition) ConvertFromBuffer(b []byte) (any, error) {
	if len(b) != d.byteLength {
		return nil, fmt.Errorf("iec: definition %q expects %d bytes, got %d", d.name, d.byteLength, len(b))
	}
	m := make(map[string]any, len(d.vars))
	offset := 0
	for _, v := range d.vars {
		val, next, err := decodeVariable(b, offset, v)
		if err != nil {
			return nil, fmt.Errorf("iec: definition %q variable %q: %w", d.name, v.Name, err)
		}
		m[v.Name] = val
		offset = next
	}
	return m, nil
}

func encodeVariable(buf []byte, offset int, v Variable, val any) (int, error) {
	if v.Count > 1 {
		items, ok := val.([]any)
		if !ok {
			return 0, fmt.Errorf("array expects []any, got %T", val)
		}
		if len(items) != v.Count {
			return 0, fmt.Errorf("array expects %d items, got %d", v.Count, len(items))
		}
		unit := v
		unit.Count = 0
		for _, item := range items {
			next, err := encodeVariable(buf, offset, unit, item)
			if err != nil {
				return 0, err
			}
			offset = next
		}
		return offset, nil
	}

	if v.Type == TypeSTRUCT {
		m, ok := val.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("struct expects map[string]any, got %T", val)
		}
		for _, member := range v.Members {
			next, err := encodeVariable(buf, offset, member, m[member.Name])
			if err != nil {
				return 0, fmt.Errorf("member %q: %w", member.Name, err)
			}
			offset = next
		}
		return offset, nil
	}

	size, err := SizeOf(v.Type, v.Length)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, fmt.Errorf("missing value")
	}
	if err := encodeScalar(buf[offset:offset+size], v.Type, val); err != nil {
		return 0, err
	}
	return offset + size, nil
}

func decodeVariable(buf []byte, offset int, v Variable) (any, int, error) {
	if v.Count > 1 {
		unit := v
		unit.Count = 0
		items := make([]any, 0, v.Count)
		for i := 0; i < v.Count; i++ {
			item, next, err := decodeVariable(buf, offset, unit)
			if err != nil {
				return nil, 0, err
			}
			items = append(items, item)
			offset = next
		}
		return items, offset, nil
	}

	if v.Type == TypeSTRUCT {
		m := make(map[string]any, len(v.Members))
		for _, member := range v.Members {
			val, next, err := decodeVariable(buf, offset, member)
			if err != nil {
				return nil, 0, fmt.Errorf("member %q: %w", member.Name, err)
			}
			m[member.Name] = val
			offset = next
		}
		return m, offset, nil
	}

	size, err := SizeOf(v.Type, v.Length)
	if err != nil {
		return nil, 0, err
	}
	val, err := decodeScalar(buf[offset:offset+size], v.Type)
	if err != nil {
		return nil, 0, err
	}
	return val, offset + size, nil
}
