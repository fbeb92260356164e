package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dfberenson/ob-resident-scheduler/internal/repository"
	"github.com/dfberenson/ob-resident-scheduler/internal/service"
)

type exportOutput struct {
	Command string `json:"command"`
	File    string `json:"file"`
	Bytes   int    `json:"bytes"`
}

func newExportCmd(open func() (*env, error)) *cobra.Command {
	var (
		versionID  string
		format     string
		residentID string
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a schedule version as a workbook or calendar file",
		RunE: func(c *cobra.Command, _ []string) error {
			if format != service.FormatXLSX && format != service.FormatICS {
				return fmt.Errorf("invalid --format %q: 仅支持 xlsx 或 ics", format)
			}

			e, err := open()
			if err != nil {
				return err
			}
			defer e.close()

			svc := service.NewExportService(repository.NewRepository(e.db), e.logger)
			file, err := svc.Export(c.Context(), versionID, format, residentID)
			if err != nil {
				return err
			}

			path := filepath.Join(outDir, file.Filename)
			if err := os.WriteFile(path, file.Content.Bytes(), 0o644); err != nil {
				return fmt.Errorf("写入导出文件失败: %w", err)
			}
			e.logger.Info("排班版本已导出", zap.String("version_id", versionID), zap.String("file", path))

			return writeJSON(c.OutOrStdout(), exportOutput{Command: "export", File: path, Bytes: file.Content.Len()})
		},
	}

	cmd.Flags().StringVar(&versionID, "version", "", "版本 ID (required)")
	cmd.Flags().StringVar(&format, "format", service.FormatXLSX, "导出格式 xlsx|ics")
	cmd.Flags().StringVar(&residentID, "resident", "", "只导出指定住院医师")
	cmd.Flags().StringVar(&outDir, "out", ".", "输出目录")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}
