package nvl

// Element 叶子字段在原始缓冲中的位置描述
type Element struct {
	Start  int // 起始字节偏移
	Length int // 字节长度
}

// Definition 变量列表的结构定义（由外部类型系统实现）。
// 协议引擎只依赖本接口：按字段切分、判断报文完整、转换值。
// 任一转换出错即视为整条操作失败。
type Definition interface {
	// ByteLength 整条逻辑报文的期望字节数
	ByteLength() int
	// Elements 按线缆顺序返回全部叶子字段
	Elements() []Element
	// ConvertToBuffer 将结构化值序列化为 ByteLength 字节
	ConvertToBuffer(value any) ([]byte, error)
	// ConvertFromBuffer 反序列化
	ConvertFromBuffer(b []byte) (any, error)
}
