package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	cfgpkg "github.com/jisotalo/codesys-client/internal/config"
	"github.com/jisotalo/codesys-client/internal/iec"
	"github.com/jisotalo/codesys-client/internal/storage"
	"github.com/jisotalo/codesys-client/internal/storage/models"
)

// LoadDeclarations 加载变量列表声明文件
func LoadDeclarations(cfg cfgpkg.NVLConfig, log *zap.Logger) ([]*iec.Definition, error) {
	defs, err := iec.LoadDeclarations(cfg.DeclarationsPath)
	if err != nil {
		return nil, fmt.Errorf("load declarations %s: %w", cfg.DeclarationsPath, err)
	}
	for _, d := range defs {
		log.Info("netvar list declared",
			zap.Uint16("list", d.ListID()),
			zap.String("name", d.Name()),
			zap.Int("bytes", d.ByteLength()),
			zap.Int("elements", len(d.Elements())))
	}
	return defs, nil
}

// SyncListDeclarations 把声明同步到数据库（list_id 冲突覆盖）
func SyncListDeclarations(ctx context.Context, repo storage.CoreRepo, defs []*iec.Definition) error {
	for _, d := range defs {
		err := repo.EnsureList(ctx, &models.NetvarList{
			ListID:     int32(d.ListID()),
			Name:       d.Name(),
			ByteLength: int32(d.ByteLength()),
		})
		if err != nil {
			return fmt.Errorf("ensure list %d: %w", d.ListID(), err)
		}
	}
	return nil
}
