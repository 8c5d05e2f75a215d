package iec

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// declarationFile 声明文件结构（YAML）
type declarationFile struct {
	Lists []listDecl `yaml:"lists"`
}

type listDecl struct {
	Name      string     `yaml:"name"`
	ListID    uint16     `yaml:"listId"`
	Variables []Variable `yaml:"variables"`
}

// LoadDeclarations 从 YAML 文件加载全部变量列表定义。
// 列表 ID 不允许重复。
func LoadDeclarations(path string) ([]*Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read declarations: %w", err)
	}
	return ParseDeclarations(b)
}

// ParseDeclarations 解析声明文件内容
func ParseDeclarations(b []byte) ([]*Definition, error) {
	var file declarationFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("unmarshal declarations: %w", err)
	}
	if len(file.Lists) == 0 {
		return nil, fmt.Errorf("declarations contain no lists")
	}

	seen := make(map[uint16]string, len(file.Lists))
	defs := make([]*Definition, 0, len(file.Lists))
	for _, l := range file.Lists {
		if prev, dup := seen[l.ListID]; dup {
			return nil, fmt.Errorf("list id %d declared by both %q and %q", l.ListID, prev, l.Name)
		}
		seen[l.ListID] = l.Name

		def, err := NewDefinition(l.Name, l.ListID, l.Variables)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
