package iec

import (
	"math"
	"testing"
)

func TestDefinitionLayout(t *testing.T) {
	def, err := NewDefinition("plant", 1, []Variable{
		{Name: "running", Type: TypeBOOL},
		{Name: "speed", Type: TypeREAL},
		{Name: "temps", Type: TypeINT, Count: 4},
		{Name: "text", Type: TypeSTRING, Length: 15},
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	// 1 + 4 + 4*2 + 16 = 29，紧凑无填充
	if def.ByteLength() != 29 {
		t.Fatalf("byteLength=%d", def.ByteLength())
	}
	elems := def.Elements()
	// bool + real + 4 个数组元素 + string = 7 个叶子
	if len(elems) != 7 {
		t.Fatalf("elements=%d", len(elems))
	}
	if elems[0].Start != 0 || elems[0].Length != 1 {
		t.Fatalf("elem0=%+v", elems[0])
	}
	if elems[1].Start != 1 || elems[1].Length != 4 {
		t.Fatalf("elem1=%+v", elems[1])
	}
	if elems[6].Start != 13 || elems[6].Length != 16 {
		t.Fatalf("elem6=%+v", elems[6])
	}
}

func TestDefinitionStruct(t *testing.T) {
	def, err := NewDefinition("sp", 2, []Variable{
		{Name: "limits", Type: TypeSTRUCT, Members: []Variable{
			{Name: "min", Type: TypeREAL},
			{Name: "max", Type: TypeREAL},
		}},
	})
	if err != nil || def.ByteLength() != 8 || len(def.Elements()) != 2 {
		t.Fatalf("byteLength=%d elements=%d err=%v", def.ByteLength(), len(def.Elements()), err)
	}
}

func TestDefinitionStringDefaultLength(t *testing.T) {
	def, err := NewDefinition("s", 1, []Variable{{Name: "msg", Type: TypeSTRING}})
	if err != nil || def.ByteLength() != DefaultStringLength+1 {
		t.Fatalf("byteLength=%d err=%v", def.ByteLength(), err)
	}
}

func TestDefinitionErrors(t *testing.T) {
	if _, err := NewDefinition("empty", 1, nil); err == nil {
		t.Fatalf("want error for empty definition")
	}
	if _, err := NewDefinition("bad", 1, []Variable{{Name: "x", Type: "FLOAT"}}); err == nil {
		t.Fatalf("want error for unknown type")
	}
	if _, err := NewDefinition("s", 1, []Variable{{Name: "x", Type: TypeSTRUCT}}); err == nil {
		t.Fatalf("want error for empty struct")
	}
}

func TestConvertRoundTrip(t *testing.T) {
	def, err := NewDefinition("plant", 1, []Variable{
		{Name: "running", Type: TypeBOOL},
		{Name: "speed", Type: TypeREAL},
		{Name: "count", Type: TypeUDINT},
		{Name: "temps", Type: TypeINT, Count: 3},
		{Name: "text", Type: TypeSTRING, Length: 7},
		{Name: "limits", Type: TypeSTRUCT, Members: []Variable{
			{Name: "min", Type: TypeREAL},
			{Name: "max", Type: TypeREAL},
		}},
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	in := map[string]any{
		"running": true,
		"speed":   12.5,
		"count":   123456,
		"temps":   []any{-1, 0, 250},
		"text":    "hello",
		"limits":  map[string]any{"min": 0.5, "max": 99.5},
	}
	buf, err := def.ConvertToBuffer(in)
	if err != nil || len(buf) != def.ByteLength() {
		t.Fatalf("len=%d err=%v", len(buf), err)
	}

	outAny, err := def.ConvertFromBuffer(buf)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	out := outAny.(map[string]any)

	if out["running"] != true {
		t.Fatalf("running=%v", out["running"])
	}
	if out["speed"].(float32) != 12.5 {
		t.Fatalf("speed=%v", out["speed"])
	}
	if out["count"].(uint32) != 123456 {
		t.Fatalf("count=%v", out["count"])
	}
	temps := out["temps"].([]any)
	if len(temps) != 3 || temps[0].(int16) != -1 || temps[2].(int16) != 250 {
		t.Fatalf("temps=%v", temps)
	}
	if out["text"].(string) != "hello" {
		t.Fatalf("text=%q", out["text"])
	}
	limits := out["limits"].(map[string]any)
	if math.Abs(float64(limits["max"].(float32))-99.5) > 1e-6 {
		t.Fatalf("limits=%v", limits)
	}
}

func TestConvertStringTruncation(t *testing.T) {
	def, _ := NewDefinition("s", 1, []Variable{{Name: "msg", Type: TypeSTRING, Length: 4}})
	buf, err := def.ConvertToBuffer(map[string]any{"msg": "toolong"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	out, _ := def.ConvertFromBuffer(buf)
	if out.(map[string]any)["msg"] != "tool" {
		t.Fatalf("msg=%q", out.(map[string]any)["msg"])
	}
}

func TestConvertErrors(t *testing.T) {
	def, _ := NewDefinition("s", 1, []Variable{
		{Name: "a", Type: TypeINT},
		{Name: "arr", Type: TypeUINT, Count: 2},
	})

	if _, err := def.ConvertToBuffer("not a map"); err == nil {
		t.Fatalf("want type error")
	}
	// 缺字段
	if _, err := def.ConvertToBuffer(map[string]any{"arr": []any{1, 2}}); err == nil {
		t.Fatalf("want missing value error")
	}
	// 数组长度不符
	if _, err := def.ConvertToBuffer(map[string]any{"a": 1, "arr": []any{1}}); err == nil {
		t.Fatalf("want array length error")
	}
	// 长度不符的缓冲
	if _, err := def.ConvertFromBuffer(make([]byte, 3)); err == nil {
		t.Fatalf("want length error")
	}
}
